// Package camera provides scan.Camera implementations backed by an external
// still-capture command or by image files on disk.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/bikereg/internal/scan"
)

// Placeholders substituted into capture command arguments.
const (
	PlaceholderDevice = "{device}"
	PlaceholderOutput = "{output}"
)

// Presets are capture commands for common platforms.
var Presets = map[string]string{
	"libcamera": "libcamera-still --camera {device} -o {output} --timeout 1 --nopreview",
	"imagesnap": "imagesnap -d {device} {output}",
	"fswebcam":  "fswebcam -d {device} --no-banner -r 1280x720 {output}",
}

// DefaultFrameInterval is the pause between captures on an open stream.
const DefaultFrameInterval = 100 * time.Millisecond

// ErrUnknownDevice is returned by Open for a device ID not in the list.
var ErrUnknownDevice = errors.New("camera: unknown device")

// RunFunc runs a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Command captures frames by running a still-capture command repeatedly.
type Command struct {
	argv     []string
	devices  []scan.Device
	interval time.Duration
	dir      string
	run      RunFunc
}

// CommandOpts configures a Command camera.
type CommandOpts struct {
	// Command is the capture command line, or a key of Presets.
	Command       string
	Devices       []scan.Device
	FrameInterval time.Duration
	// CaptureDir holds captured files. Empty means os.TempDir().
	CaptureDir string
	// Run overrides command execution; nil uses os/exec.
	Run RunFunc
}

// NewCommand validates opts and returns a Command camera.
func NewCommand(opts CommandOpts) (*Command, error) {
	line := opts.Command
	if preset, ok := Presets[line]; ok {
		line = preset
	}
	argv := strings.Fields(line)
	if len(argv) == 0 {
		return nil, errors.New("camera: capture command is required")
	}
	if !strings.Contains(line, PlaceholderOutput) {
		return nil, fmt.Errorf("camera: capture command must contain %s", PlaceholderOutput)
	}
	c := &Command{
		argv:     argv,
		devices:  opts.Devices,
		interval: opts.FrameInterval,
		dir:      opts.CaptureDir,
		run:      opts.Run,
	}
	if c.interval <= 0 {
		c.interval = DefaultFrameInterval
	}
	if c.dir == "" {
		c.dir = os.TempDir()
	}
	if c.run == nil {
		c.run = execRun
	}
	return c, nil
}

// Devices returns the configured device list.
func (c *Command) Devices(ctx context.Context) ([]scan.Device, error) {
	out := make([]scan.Device, len(c.devices))
	copy(out, c.devices)
	return out, nil
}

// Open performs one capture synchronously so device or permission failures
// surface here, then starts streaming in the background.
func (c *Command) Open(ctx context.Context, deviceID string) (scan.Stream, error) {
	if !c.known(deviceID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("camera: capture dir: %w", err)
	}

	first, err := c.capture(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", deviceID, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &stream{
		frames: make(chan image.Image, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.frames <- first
	go s.loop(runCtx, c.interval, func(ctx context.Context) (image.Image, error) {
		return c.capture(ctx, deviceID)
	})
	return s, nil
}

func (c *Command) known(deviceID string) bool {
	for _, d := range c.devices {
		if d.ID == deviceID {
			return true
		}
	}
	return false
}

// capture runs the command once and loads the resulting image.
func (c *Command) capture(ctx context.Context, deviceID string) (image.Image, error) {
	output := filepath.Join(c.dir, fmt.Sprintf("frame_%s_%d.jpg", sanitize(deviceID), time.Now().UnixNano()))
	defer os.Remove(output)

	args := make([]string, len(c.argv)-1)
	for i, a := range c.argv[1:] {
		a = strings.ReplaceAll(a, PlaceholderDevice, deviceID)
		args[i] = strings.ReplaceAll(a, PlaceholderOutput, output)
	}
	if out, err := c.run(ctx, c.argv[0], args...); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", c.argv[0], err, msg)
		}
		return nil, fmt.Errorf("%s: %w", c.argv[0], err)
	}
	return loadImage(output)
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, id)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// stream delivers frames produced by next until Stop.
type stream struct {
	frames chan image.Image
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *stream) Frames() <-chan image.Image { return s.frames }

func (s *stream) Stop() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

func (s *stream) loop(ctx context.Context, interval time.Duration, next func(context.Context) (image.Image, error)) {
	defer close(s.done)
	defer close(s.frames)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		img, err := next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("camera: capture: %v", err)
			continue
		}
		select {
		case s.frames <- img:
		case <-ctx.Done():
			return
		}
	}
}
