// Package scan reconciles the three ways a dealer can enter an engine number
// (typing it, pointing a camera at the barcode, or firing a keystroke-wedge
// scanner) into one authoritative value.
package scan

import (
	"fmt"
	"strings"
	"time"
)

// Mode identifies which acquisition path is currently armed.
type Mode int

const (
	Idle Mode = iota
	CameraActive
	ExternalListening
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "Idle"
	case CameraActive:
		return "CameraActive"
	case ExternalListening:
		return "ExternalListening"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText renders the mode by name so JSON consumers see "Idle" rather than 0.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name written by MarshalText.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Idle":
		*m = Idle
	case "CameraActive":
		*m = CameraActive
	case "ExternalListening":
		*m = ExternalListening
	default:
		return fmt.Errorf("scan: unknown mode %q", text)
	}
	return nil
}

// Target is the kind of control holding focus when a key was pressed.
type Target int

const (
	TargetNone Target = iota
	TargetInput
	TargetTextarea
	TargetSelect
)

// TargetFromTag maps a DOM tag name (as reported by document.activeElement)
// to a Target. Anything that is not a standard form control is TargetNone.
func TargetFromTag(tag string) Target {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "INPUT":
		return TargetInput
	case "TEXTAREA":
		return TargetTextarea
	case "SELECT":
		return TargetSelect
	default:
		return TargetNone
	}
}

// KeyEnter terminates a keystroke-wedge burst.
const KeyEnter = "Enter"

// KeyEvent is a single key press delivered by a KeySource. Key uses DOM key
// names: one character for printable keys, a name such as "Shift" otherwise.
type KeyEvent struct {
	Key    string
	Target Target
	At     time.Time // zero means "now"
}

// State is a snapshot of a Reconciler, suitable for display.
type State struct {
	Seq     uint64 `json:"seq"`
	Mode    Mode   `json:"mode"`
	Value   string `json:"value"`
	Buffer  string `json:"buffer"`
	Status  string `json:"status"`
	Success bool   `json:"scanSuccess"`
	Closed  bool   `json:"closed"`
}
