package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// Default timings for the keystroke-wedge path.
const (
	DefaultStaleAfter   = 1 * time.Second
	DefaultDisplayDelay = 3 * time.Second
)

// Status messages shown to the dealer.
const (
	StatusWaitingCamera   = "Waiting for scan..."
	StatusWaitingExternal = "Waiting for scanner input..."
	StatusSuccess         = "Scan successful!"
	statusCameraStopped   = "Camera stopped"
	statusCameraErrPrefix = "Camera error: "
)

var (
	// ErrClosed is returned by every operation after Teardown.
	ErrClosed = errors.New("scan: session closed")

	// ErrResolved is returned when a scan mode is requested after a scan
	// has already produced the engine number. ResetScan clears it.
	ErrResolved = errors.New("scan: engine number already scanned, reset first")

	// ErrNoDevice is reported when no video input is available.
	ErrNoDevice = errors.New("no video input devices found")

	// ErrSuperseded is returned by EnterCameraMode when another operation
	// (reset, teardown, a different mode) ran while the camera was being
	// acquired. The acquired stream, if any, has been stopped.
	ErrSuperseded = errors.New("scan: camera request superseded")
)

// Options configures a Reconciler.
type Options struct {
	Camera       Camera        // optional; camera mode reports ErrNoDevice without it
	Decoder      Decoder       // required when Camera is set
	Keys         KeySource     // optional; external listening is unavailable without it
	StaleAfter   time.Duration // idle gap that discards a partial burst; defaults to DefaultStaleAfter
	// StaleGrace delays the expiry timer beyond StaleAfter. Set it when key
	// timestamps come from a remote clock, so that transport delay between
	// keys cannot expire a burst whose own timestamps are still in time.
	StaleGrace   time.Duration
	DisplayDelay time.Duration // how long the success status stays up; defaults to DefaultDisplayDelay
	OnChange     func(State)   // called outside the lock after every transition
	Now          func() time.Time
}

// Reconciler owns one ScanSession: the current mode, the keystroke buffer,
// the resolved engine number and, while in camera mode, the camera stream.
// All methods are safe for concurrent use; transitions are serialized.
type Reconciler struct {
	camera       Camera
	decoder      Decoder
	keys         KeySource
	staleAfter   time.Duration
	staleGrace   time.Duration
	displayDelay time.Duration
	onChange     func(State)
	now          func() time.Time

	mu        sync.Mutex
	seq       uint64
	mode      Mode
	path      Mode // last acquisition path the user armed
	value     string
	resolved  bool
	buffer    []string
	lastKeyAt time.Time
	status    string
	success   bool
	closed    bool

	camGen    uint64
	camCancel context.CancelFunc
	camDone   chan struct{}
	stream    Stream

	listenGen   uint64
	unsubscribe func()

	staleTimer   *time.Timer
	displayGen   uint64
	displayTimer *time.Timer

	decoders sync.WaitGroup
}

// New creates a Reconciler in Idle mode.
func New(opts Options) (*Reconciler, error) {
	if opts.Camera != nil && opts.Decoder == nil {
		return nil, fmt.Errorf("scan: decoder is required when a camera is configured")
	}
	r := &Reconciler{
		camera:       opts.Camera,
		decoder:      opts.Decoder,
		keys:         opts.Keys,
		staleAfter:   opts.StaleAfter,
		staleGrace:   opts.StaleGrace,
		displayDelay: opts.DisplayDelay,
		onChange:     opts.OnChange,
		now:          opts.Now,
	}
	if r.staleAfter <= 0 {
		r.staleAfter = DefaultStaleAfter
	}
	if r.staleGrace < 0 {
		r.staleGrace = 0
	}
	if r.displayDelay <= 0 {
		r.displayDelay = DefaultDisplayDelay
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// State returns a snapshot of the session.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Value returns the current engine number.
func (r *Reconciler) Value() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Mode returns the armed acquisition path.
func (r *Reconciler) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// EnterCameraMode exits the current mode, acquires a camera and starts
// decoding frames in the background. It blocks while devices are enumerated
// and opened. Acquisition failures are reported through the status message
// and the returned error; the session is left Idle with nothing open.
func (r *Reconciler) EnterCameraMode(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.resolved {
		r.mu.Unlock()
		return ErrResolved
	}
	r.exitLocked()
	r.path = CameraActive
	if r.camera == nil {
		st := r.cameraFailedLocked(ErrNoDevice)
		r.mu.Unlock()
		r.emit(st)
		return fmt.Errorf("scan: enter camera mode: %w", ErrNoDevice)
	}
	r.mode = CameraActive
	r.status = StatusWaitingCamera
	gen := r.camGen
	acqCtx, cancel := context.WithCancel(ctx)
	r.camCancel = cancel
	// Teardown waits for the acquisition as well as the decoder, so a
	// stream opened by a camera that ignores ctx is stopped before it returns.
	r.decoders.Add(1)
	defer r.decoders.Done()
	st := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(st)

	stream, err := r.acquire(acqCtx)

	r.mu.Lock()
	if gen != r.camGen || r.closed {
		r.mu.Unlock()
		cancel()
		if stream != nil {
			stream.Stop()
		}
		return ErrSuperseded
	}
	cancel()
	r.camCancel = nil
	if err != nil {
		st := r.cameraFailedLocked(err)
		r.mu.Unlock()
		r.emit(st)
		log.Printf("scan: camera acquisition failed: %v", err)
		return fmt.Errorf("scan: enter camera mode: %w", err)
	}
	done := make(chan struct{})
	r.stream = stream
	r.camDone = done
	r.decoders.Add(1)
	go r.decodeLoop(gen, stream, done)
	r.mu.Unlock()
	return nil
}

// acquire enumerates devices and opens the preferred one.
func (r *Reconciler) acquire(ctx context.Context) (Stream, error) {
	devices, err := r.camera.Devices(ctx)
	if err != nil {
		return nil, err
	}
	dev, ok := SelectDevice(devices)
	if !ok {
		return nil, ErrNoDevice
	}
	return r.camera.Open(ctx, dev.ID)
}

func (r *Reconciler) cameraFailedLocked(err error) State {
	r.mode = Idle
	r.status = statusCameraErrPrefix + err.Error()
	return r.snapshotLocked()
}

// decodeLoop feeds frames to the decoder until one decodes, the stream ends,
// or the activation is released.
func (r *Reconciler) decodeLoop(gen uint64, stream Stream, done <-chan struct{}) {
	defer r.decoders.Done()
	frames := stream.Frames()
	for {
		select {
		case <-done:
			return
		case frame, ok := <-frames:
			if !ok {
				r.cameraEnded(gen)
				return
			}
			text, err := r.decoder.Decode(frame)
			if err != nil {
				// Most frames simply contain no barcode.
				continue
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			r.completeCamera(gen, text)
			return
		}
	}
}

func (r *Reconciler) completeCamera(gen uint64, text string) {
	r.mu.Lock()
	if gen != r.camGen || r.mode != CameraActive || r.closed {
		r.mu.Unlock()
		return
	}
	r.releaseCameraLocked()
	r.mode = Idle
	r.value = text
	r.resolved = true
	r.showSuccessLocked()
	st := r.snapshotLocked()
	r.mu.Unlock()
	log.Printf("scan: camera decoded engine number %q", text)
	r.emit(st)
}

func (r *Reconciler) cameraEnded(gen uint64) {
	r.mu.Lock()
	if gen != r.camGen || r.mode != CameraActive || r.closed {
		r.mu.Unlock()
		return
	}
	r.releaseCameraLocked()
	r.mode = Idle
	r.status = statusCameraStopped
	st := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(st)
}

// EnterExternalListeningMode exits the current mode and subscribes to the
// key source. Keys are captured only while this mode is armed.
func (r *Reconciler) EnterExternalListeningMode() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.resolved {
		r.mu.Unlock()
		return ErrResolved
	}
	if r.keys == nil {
		r.mu.Unlock()
		return fmt.Errorf("scan: enter external listening mode: no key source configured")
	}
	r.exitLocked()
	r.armListenerLocked()
	st := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(st)
	return nil
}

func (r *Reconciler) armListenerLocked() {
	r.mode = ExternalListening
	r.path = ExternalListening
	r.buffer = nil
	r.lastKeyAt = time.Time{}
	r.status = StatusWaitingExternal
	r.listenGen++
	gen := r.listenGen
	r.unsubscribe = r.keys.Subscribe(func(ev KeyEvent) {
		r.handleKey(gen, ev)
	})
}

func (r *Reconciler) handleKey(gen uint64, ev KeyEvent) {
	r.mu.Lock()
	if r.closed || gen != r.listenGen || r.mode != ExternalListening || r.success {
		r.mu.Unlock()
		return
	}
	if ev.Target != TargetNone {
		r.mu.Unlock()
		return
	}

	at := ev.At
	if at.IsZero() {
		at = r.now()
	}
	cleared := false
	if !r.lastKeyAt.IsZero() && at.Sub(r.lastKeyAt) >= r.staleAfter && len(r.buffer) > 0 {
		r.buffer = nil
		cleared = true
	}
	r.lastKeyAt = at

	if ev.Key == KeyEnter {
		cleaned := cleanBuffer(r.buffer)
		if cleaned == "" {
			if !cleared {
				r.mu.Unlock()
				return
			}
			r.stopStaleTimerLocked()
			st := r.snapshotLocked()
			r.mu.Unlock()
			r.emit(st)
			return
		}
		r.stopStaleTimerLocked()
		r.buffer = nil
		r.value = cleaned
		r.resolved = true
		r.detachListenerLocked()
		r.showSuccessLocked()
		st := r.snapshotLocked()
		r.mu.Unlock()
		log.Printf("scan: external scanner resolved engine number %q", cleaned)
		r.emit(st)
		return
	}

	r.buffer = append(r.buffer, ev.Key)
	r.armStaleTimerLocked(at)
	st := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(st)
}

// armStaleTimerLocked schedules the buffer to be dropped if no further key
// arrives within the staleness window.
func (r *Reconciler) armStaleTimerLocked(at time.Time) {
	r.stopStaleTimerLocked()
	gen := r.listenGen
	r.staleTimer = time.AfterFunc(r.staleAfter+r.staleGrace, func() {
		r.expireBuffer(gen, at)
	})
}

func (r *Reconciler) expireBuffer(gen uint64, at time.Time) {
	r.mu.Lock()
	if r.closed || gen != r.listenGen || !r.lastKeyAt.Equal(at) || len(r.buffer) == 0 {
		r.mu.Unlock()
		return
	}
	r.buffer = nil
	st := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(st)
}

func (r *Reconciler) stopStaleTimerLocked() {
	if r.staleTimer != nil {
		r.staleTimer.Stop()
		r.staleTimer = nil
	}
}

// showSuccessLocked raises the success status and schedules it to clear.
// An external-scanner session returns to Idle when the status clears.
func (r *Reconciler) showSuccessLocked() {
	r.stopDisplayTimerLocked()
	r.status = StatusSuccess
	r.success = true
	gen := r.displayGen
	r.displayTimer = time.AfterFunc(r.displayDelay, func() {
		r.finishSuccess(gen)
	})
}

func (r *Reconciler) finishSuccess(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.displayGen {
		r.mu.Unlock()
		return
	}
	r.displayTimer = nil
	r.success = false
	r.status = ""
	if r.mode == ExternalListening {
		r.mode = Idle
	}
	st := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(st)
}

func (r *Reconciler) stopDisplayTimerLocked() {
	if r.displayTimer != nil {
		r.displayTimer.Stop()
		r.displayTimer = nil
	}
	r.displayGen++
}

// ResetScan clears the engine number and keystroke buffer, releases the
// camera and returns to Idle. If the external scanner was the armed path,
// listening is re-armed immediately.
func (r *Reconciler) ResetScan() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	rearm := r.path == ExternalListening && r.keys != nil
	r.exitLocked()
	r.value = ""
	r.resolved = false
	r.status = ""
	if rearm {
		r.armListenerLocked()
	}
	st := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(st)
	return nil
}

// ManualOverride replaces the engine number with text typed by the user.
// Any in-flight scan is cancelled so it cannot overwrite the edit.
func (r *Reconciler) ManualOverride(text string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.exitLocked()
	r.value = text
	r.status = ""
	st := r.snapshotLocked()
	r.mu.Unlock()
	r.emit(st)
	return nil
}

// Teardown releases everything the session holds: the camera stream, the key
// subscription and all timers. It waits for the decode goroutine and any
// camera acquisition still in progress, and is safe to call more than once.
func (r *Reconciler) Teardown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.decoders.Wait()
		return
	}
	r.exitLocked()
	r.closed = true
	r.status = ""
	st := r.snapshotLocked()
	r.mu.Unlock()

	r.decoders.Wait()
	r.emit(st)
}

// exitLocked leaves the current mode. Cleanup always runs before the caller
// applies the next mode's side effects.
func (r *Reconciler) exitLocked() {
	r.releaseCameraLocked()
	r.detachListenerLocked()
	r.stopStaleTimerLocked()
	r.stopDisplayTimerLocked()
	r.success = false
	r.buffer = nil
	r.lastKeyAt = time.Time{}
	r.mode = Idle
}

// releaseCameraLocked aborts a pending acquisition and stops the owned
// stream. Bumping camGen invalidates any decode goroutine still running.
func (r *Reconciler) releaseCameraLocked() {
	r.camGen++
	if r.camCancel != nil {
		r.camCancel()
		r.camCancel = nil
	}
	if r.camDone != nil {
		close(r.camDone)
		r.camDone = nil
	}
	if r.stream != nil {
		if err := r.stream.Stop(); err != nil {
			log.Printf("scan: stop camera stream: %v", err)
		}
		r.stream = nil
	}
}

func (r *Reconciler) detachListenerLocked() {
	r.listenGen++
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

func (r *Reconciler) snapshotLocked() State {
	r.seq++
	return State{
		Seq:     r.seq,
		Mode:    r.mode,
		Value:   r.value,
		Buffer:  strings.Join(r.buffer, ""),
		Status:  r.status,
		Success: r.success,
		Closed:  r.closed,
	}
}

func (r *Reconciler) emit(st State) {
	if r.onChange != nil {
		r.onChange(st)
	}
}

// cleanBuffer joins the captured keys, dropping named keys such as "Shift"
// and non-printable characters, and trims the result.
func cleanBuffer(keys []string) string {
	var b strings.Builder
	for _, k := range keys {
		if utf8.RuneCountInString(k) != 1 {
			continue
		}
		r, _ := utf8.DecodeRuneInString(k)
		if !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
