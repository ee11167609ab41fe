// Package config provides YAML-based configuration loading for bikereg.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level bikereg configuration, loaded from bikereg.yaml.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Scanner      ScannerConfig      `yaml:"scanner"`
	Auth         AuthConfig         `yaml:"auth"`
	Notify       NotifyConfig       `yaml:"notify"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
}

// ServerConfig holds portal listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig selects and addresses the registry store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ScannerConfig tunes engine-number scan sessions.
type ScannerConfig struct {
	StaleAfterMs   int          `yaml:"stale_after_ms"`
	DisplayDelayMs int          `yaml:"display_delay_ms"`
	Formats        []string     `yaml:"formats"`
	Camera         CameraConfig `yaml:"camera"`
}

// CameraConfig describes the capture command and the devices it can address.
type CameraConfig struct {
	Command         string         `yaml:"command"`
	FrameIntervalMs int            `yaml:"frame_interval_ms"`
	CaptureDir      string         `yaml:"capture_dir"`
	Devices         []DeviceConfig `yaml:"devices"`
}

// DeviceConfig names one video input.
type DeviceConfig struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// AuthConfig holds the super admin credentials and the registration gate.
// These normally come from the environment rather than the YAML file.
type AuthConfig struct {
	SuperAdminEmail      string `yaml:"super_admin_email"`
	SuperAdminPassword   string `yaml:"super_admin_password"`
	RegistrationPassword string `yaml:"registration_password"`
}

// NotifyConfig configures where registration notices are forwarded.
type NotifyConfig struct {
	Command string        `yaml:"command"`
	Slack   ChannelConfig `yaml:"slack"`
	Discord ChannelConfig `yaml:"discord"`
}

// ChannelConfig is a bot token and target channel.
type ChannelConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether both token and channel are set.
func (c ChannelConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// HousekeepingConfig schedules background maintenance.
type HousekeepingConfig struct {
	PruneSchedule             string `yaml:"prune_schedule"`
	ReapSchedule              string `yaml:"reap_schedule"`
	NotificationRetentionDays int    `yaml:"notification_retention_days"`
	SessionIdleMinutes        int    `yaml:"session_idle_minutes"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated Config with only defaults applied, used when
// no config file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadEnv loads .env style files into the process environment. Missing files
// are skipped; existing variables are not overwritten.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load env %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays secrets from the environment onto c. Set variables win
// over YAML values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Auth.SuperAdminEmail, "SUPER_ADMIN_EMAIL")
	set(&c.Auth.SuperAdminPassword, "SUPER_ADMIN_PASSWORD")
	set(&c.Auth.RegistrationPassword, "REGISTRATION_PASSWORD")
	set(&c.Notify.Slack.BotToken, "SLACK_BOT_TOKEN")
	set(&c.Notify.Discord.BotToken, "DISCORD_BOT_TOKEN")
	set(&c.Database.Password, "DB_PASSWORD")
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "bikereg.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "bikereg"
		}
	}
	if c.Scanner.StaleAfterMs == 0 {
		c.Scanner.StaleAfterMs = 1000
	}
	if c.Scanner.DisplayDelayMs == 0 {
		c.Scanner.DisplayDelayMs = 3000
	}
	if c.Scanner.Camera.FrameIntervalMs == 0 {
		c.Scanner.Camera.FrameIntervalMs = 100
	}
	if c.Housekeeping.PruneSchedule == "" {
		c.Housekeeping.PruneSchedule = "0 3 * * *"
	}
	if c.Housekeeping.ReapSchedule == "" {
		c.Housekeeping.ReapSchedule = "*/5 * * * *"
	}
	if c.Housekeeping.NotificationRetentionDays == 0 {
		c.Housekeeping.NotificationRetentionDays = 30
	}
	if c.Housekeeping.SessionIdleMinutes == 0 {
		c.Housekeeping.SessionIdleMinutes = 30
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.User == "" {
			errs = append(errs, "database.user is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Scanner.StaleAfterMs < 0 {
		errs = append(errs, "scanner.stale_after_ms must be positive")
	}
	if c.Scanner.DisplayDelayMs < 0 {
		errs = append(errs, "scanner.display_delay_ms must be positive")
	}
	if c.Scanner.Camera.FrameIntervalMs < 0 {
		errs = append(errs, "scanner.camera.frame_interval_ms must be positive")
	}
	if c.Scanner.Camera.Command != "" && len(c.Scanner.Camera.Devices) == 0 {
		errs = append(errs, "scanner.camera.devices is required when a camera command is set")
	}
	for i, d := range c.Scanner.Camera.Devices {
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("scanner.camera.devices[%d].id is required", i))
		}
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required with a bot token")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required with a bot token")
	}
	if _, err := cron.ParseStandard(c.Housekeeping.PruneSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("housekeeping.prune_schedule: %v", err))
	}
	if _, err := cron.ParseStandard(c.Housekeeping.ReapSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("housekeeping.reap_schedule: %v", err))
	}
	if c.Housekeeping.NotificationRetentionDays < 0 {
		errs = append(errs, "housekeeping.notification_retention_days must be positive")
	}
	if c.Housekeeping.SessionIdleMinutes < 0 {
		errs = append(errs, "housekeeping.session_idle_minutes must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// StaleAfter is the keystroke gap that discards a partial scanner burst.
func (s ScannerConfig) StaleAfter() time.Duration {
	return time.Duration(s.StaleAfterMs) * time.Millisecond
}

// DisplayDelay is how long "Scan successful!" stays visible.
func (s ScannerConfig) DisplayDelay() time.Duration {
	return time.Duration(s.DisplayDelayMs) * time.Millisecond
}

// FrameInterval is the pause between camera captures.
func (c CameraConfig) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

// Retention is how long read notifications are kept.
func (h HousekeepingConfig) Retention() time.Duration {
	return time.Duration(h.NotificationRetentionDays) * 24 * time.Hour
}

// SessionIdle is how long a scan session may go untouched before it is reaped.
func (h HousekeepingConfig) SessionIdle() time.Duration {
	return time.Duration(h.SessionIdleMinutes) * time.Minute
}
