// Package keyboard turns a raw terminal into a key source so a USB
// keystroke-wedge scanner can be used from the command line kiosk.
package keyboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/zulandar/bikereg/internal/scan"
)

// ErrInterrupted is returned by Run when Ctrl-C is read in raw mode.
var ErrInterrupted = errors.New("keyboard: interrupted")

// Publisher receives decoded key events. *scan.KeyFeed satisfies it.
type Publisher interface {
	Publish(ev scan.KeyEvent) int
}

// KeyName maps a rune read from a raw terminal to a DOM-style key name. It
// returns "" for control characters that have no useful name.
func KeyName(r rune) string {
	switch r {
	case '\r', '\n':
		return scan.KeyEnter
	case '\t':
		return "Tab"
	case 0x7f, 0x08:
		return "Backspace"
	case 0x1b:
		return "Escape"
	}
	if r < 0x20 {
		return ""
	}
	return string(r)
}

// Run reads runes from in and publishes them until ctx is done, in reaches
// EOF, or Ctrl-C arrives. EOF is a clean stop.
func Run(ctx context.Context, in io.Reader, pub Publisher) error {
	type readResult struct {
		r   rune
		err error
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan readResult)
	go func() {
		br := bufio.NewReader(in)
		for {
			r, _, err := br.ReadRune()
			select {
			case ch <- readResult{r, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var lastCR bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if res.err != nil {
				if errors.Is(res.err, io.EOF) {
					return nil
				}
				return fmt.Errorf("keyboard: read: %w", res.err)
			}
			if res.r == 0x03 {
				return ErrInterrupted
			}
			// Scanners configured for CRLF would otherwise submit twice.
			if res.r == '\n' && lastCR {
				lastCR = false
				continue
			}
			lastCR = res.r == '\r'

			key := KeyName(res.r)
			if key == "" {
				continue
			}
			pub.Publish(scan.KeyEvent{Key: key, At: time.Now()})
		}
	}
}

// MakeRaw puts f into raw mode when it is a terminal and returns a function
// that restores it. For non-terminals restore is a no-op.
func MakeRaw(f *os.File) (restore func() error, err error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() error { return nil }, nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("keyboard: raw mode: %w", err)
	}
	return func() error { return term.Restore(fd, old) }, nil
}
