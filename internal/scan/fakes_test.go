package scan

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
)

// textFrame is a frame whose "barcode" is its text. An empty text is an
// unreadable frame.
type textFrame struct{ text string }

func (textFrame) ColorModel() color.Model { return color.GrayModel }
func (textFrame) Bounds() image.Rectangle { return image.Rect(0, 0, 1, 1) }
func (textFrame) At(x, y int) color.Color { return color.Gray{} }

type textDecoder struct{}

func (textDecoder) Decode(img image.Image) (string, error) {
	f, ok := img.(textFrame)
	if !ok || f.text == "" {
		return "", errors.New("no barcode in frame")
	}
	return f.text, nil
}

// fakeStream is a Stream fed by the test through Send.
type fakeStream struct {
	frames chan image.Image
	once   sync.Once

	mu      sync.Mutex
	stopped bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan image.Image, 16)}
}

func (s *fakeStream) Frames() <-chan image.Image { return s.frames }

func (s *fakeStream) Stop() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.frames)
	})
	return nil
}

// Send delivers a frame unless the stream has already been stopped.
func (s *fakeStream) Send(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.frames <- textFrame{text: text}
}

func (s *fakeStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// fakeCamera records every stream it opens.
type fakeCamera struct {
	devices    []Device
	devicesErr error
	openErr    error
	block      chan struct{} // when set, Open waits on it or ctx
	ignoreCtx  bool          // Open waits on block alone

	mu      sync.Mutex
	opened  []string
	streams []*fakeStream
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{devices: []Device{{ID: "cam0", Label: "Front Camera"}, {ID: "cam1", Label: "Back Camera"}}}
}

func (c *fakeCamera) Devices(ctx context.Context) ([]Device, error) {
	return c.devices, c.devicesErr
}

func (c *fakeCamera) Open(ctx context.Context, deviceID string) (Stream, error) {
	if c.block != nil && c.ignoreCtx {
		<-c.block
	} else if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.openErr != nil {
		return nil, c.openErr
	}
	s := newFakeStream()
	c.mu.Lock()
	c.opened = append(c.opened, deviceID)
	c.streams = append(c.streams, s)
	c.mu.Unlock()
	return s, nil
}

func (c *fakeCamera) lastStream() *fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.streams) == 0 {
		return nil
	}
	return c.streams[len(c.streams)-1]
}

// running reports how many opened streams have not been stopped.
func (c *fakeCamera) running() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.streams {
		if !s.Stopped() {
			n++
		}
	}
	return n
}
