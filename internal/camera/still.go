package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/zulandar/bikereg/internal/scan"
)

// StillDeviceID is the single device exposed by a Still camera.
const StillDeviceID = "still"

// Still replays image files as a camera stream, cycling through them.
type Still struct {
	paths    []string
	interval time.Duration
}

// NewStill returns a Still camera over the given image files.
func NewStill(interval time.Duration, paths ...string) (*Still, error) {
	if len(paths) == 0 {
		return nil, errors.New("camera: no still images given")
	}
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Still{paths: paths, interval: interval}, nil
}

// Devices returns the single still-image device.
func (s *Still) Devices(ctx context.Context) ([]scan.Device, error) {
	return []scan.Device{{ID: StillDeviceID, Label: "Still Images (back)"}}, nil
}

// Open loads every image up front so a bad file fails acquisition.
func (s *Still) Open(ctx context.Context, deviceID string) (scan.Stream, error) {
	if deviceID != StillDeviceID {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	imgs := make([]image.Image, 0, len(s.paths))
	for _, p := range s.paths {
		img, err := loadImage(p)
		if err != nil {
			return nil, fmt.Errorf("camera: open %s: %w", deviceID, err)
		}
		imgs = append(imgs, img)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	st := &stream{
		frames: make(chan image.Image, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	st.frames <- imgs[0]
	i := 0
	go st.loop(runCtx, s.interval, func(context.Context) (image.Image, error) {
		i = (i + 1) % len(imgs)
		return imgs[i], nil
	})
	return st, nil
}
