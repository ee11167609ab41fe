package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/zulandar/bikereg/internal/barcode"
	"github.com/zulandar/bikereg/internal/camera"
	"github.com/zulandar/bikereg/internal/config"
	"github.com/zulandar/bikereg/internal/db"
	"github.com/zulandar/bikereg/internal/notify"
	"github.com/zulandar/bikereg/internal/registry"
	"github.com/zulandar/bikereg/internal/scan"
)

const defaultConfigPath = "bikereg.yaml"

// addConfigFlag registers the shared --config flag.
func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to bikereg config file")
}

// loadConfig reads the config file and overlays .env and environment
// secrets. A missing file is only an error when --config was given
// explicitly; otherwise defaults are used.
func loadConfig(cmd *cobra.Command, configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		explicit := cmd.Flags().Changed("config")
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = config.Default()
	}
	if err := config.LoadEnv(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

func connectFromConfig(cmd *cobra.Command, configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return nil, nil, err
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	return cfg, gormDB, nil
}

// newRegistry builds the registry with the notifiers the config enables.
func newRegistry(cfg *config.Config, gormDB *gorm.DB) (*registry.Registry, error) {
	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return nil, err
	}
	return registry.New(registry.Opts{
		DB:       gormDB,
		Notifier: notifier,
		Auth:     cfg.Auth,
	})
}

// buildCamera returns the configured capture camera, or a still-image
// camera when images are given. With neither, it returns nil and camera mode
// reports that no device is available.
func buildCamera(cfg config.ScannerConfig, images []string) (scan.Camera, error) {
	if len(images) > 0 {
		still, err := camera.NewStill(cfg.Camera.FrameInterval(), images...)
		if err != nil {
			return nil, err
		}
		return still, nil
	}
	if cfg.Camera.Command == "" {
		return nil, nil
	}
	devices := make([]scan.Device, len(cfg.Camera.Devices))
	for i, d := range cfg.Camera.Devices {
		devices[i] = scan.Device{ID: d.ID, Label: d.Label}
	}
	cam, err := camera.NewCommand(camera.CommandOpts{
		Command:       cfg.Camera.Command,
		Devices:       devices,
		FrameInterval: cfg.Camera.FrameInterval(),
		CaptureDir:    cfg.Camera.CaptureDir,
	})
	if err != nil {
		return nil, err
	}
	return cam, nil
}

// buildDecoder returns a barcode decoder for the configured formats.
func buildDecoder(cfg config.ScannerConfig) (*barcode.Decoder, error) {
	return barcode.New(cfg.Formats...)
}
