package scan

import (
	"context"
	"image"
	"strings"
)

// Device describes a video input.
type Device struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// Camera acquires video streams.
type Camera interface {
	// Devices lists the available video inputs.
	Devices(ctx context.Context) ([]Device, error)

	// Open starts capturing from the device. ctx bounds acquisition only;
	// the returned stream runs until Stop is called. Permission or
	// device-access failures are returned here and no stream is left open.
	Open(ctx context.Context, deviceID string) (Stream, error)
}

// Stream is an open capture device owned by exactly one Reconciler.
type Stream interface {
	// Frames delivers captured frames. The channel is closed once the
	// stream has stopped.
	Frames() <-chan image.Image

	// Stop releases the device. It blocks until capture has ceased and is
	// safe to call more than once.
	Stop() error
}

// Decoder turns a single frame into a decoded text payload. An error means
// the frame held nothing readable.
type Decoder interface {
	Decode(img image.Image) (string, error)
}

// SelectDevice picks the rear-facing camera when a device label says so,
// otherwise the first device. It reports false when devices is empty.
func SelectDevice(devices []Device) (Device, bool) {
	if len(devices) == 0 {
		return Device{}, false
	}
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Label), "back") {
			return d, true
		}
	}
	return devices[0], true
}
