package portal

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zulandar/bikereg/internal/scan"
)

// ErrSessionNotFound is returned for unknown or already closed session IDs.
var ErrSessionNotFound = errors.New("portal: scan session not found")

// watcherBuffer is how many undelivered states a slow SSE client may lag.
const watcherBuffer = 8

// maxPendingKeys bounds how many keys may wait behind a missing one before
// the gap is given up as lost.
const maxPendingKeys = 64

// defaultStaleGrace is how much longer than the stale gap a partial burst
// survives on the server clock. Browser keys carry the page's timestamps,
// and the requests delivering them can be delayed in transit.
const defaultStaleGrace = 2 * time.Second

// SessionOpts configures the scan sessions a SessionManager creates.
type SessionOpts struct {
	Camera       scan.Camera
	Decoder      scan.Decoder
	StaleAfter   time.Duration
	StaleGrace   time.Duration // defaults to defaultStaleGrace
	DisplayDelay time.Duration
	Now          func() time.Time
}

// SessionManager tracks one scan session per open registration form.
type SessionManager struct {
	opts SessionOpts
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty SessionManager.
func NewSessionManager(opts SessionOpts) *SessionManager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionManager{opts: opts, now: now, sessions: make(map[string]*Session)}
}

// Session is a Reconciler plus the browser-facing plumbing around it: the key
// feed the page posts into and the SSE watchers.
type Session struct {
	ID   string
	feed *scan.KeyFeed
	rec  *scan.Reconciler

	// keyMu serializes key delivery. nextKey is the next page sequence
	// number to apply; later ones wait in pending.
	keyMu   sync.Mutex
	keyGap  time.Duration
	nextKey uint64
	pending map[uint64]scan.KeyEvent

	mu          sync.Mutex
	lastSeen    time.Time
	last        scan.State
	watchers    map[int]chan scan.State
	nextWatcher int
	closed      bool
}

// Create starts a new session in Idle mode.
func (m *SessionManager) Create() (*Session, error) {
	s := &Session{
		ID:       uuid.NewString(),
		feed:     scan.NewKeyFeed(),
		keyGap:   m.opts.StaleAfter,
		nextKey:  1,
		pending:  make(map[uint64]scan.KeyEvent),
		lastSeen: m.now(),
		watchers: make(map[int]chan scan.State),
	}
	if s.keyGap <= 0 {
		s.keyGap = scan.DefaultStaleAfter
	}
	grace := m.opts.StaleGrace
	if grace <= 0 {
		grace = defaultStaleGrace
	}
	rec, err := scan.New(scan.Options{
		Camera:       m.opts.Camera,
		Decoder:      m.opts.Decoder,
		Keys:         s.feed,
		StaleAfter:   m.opts.StaleAfter,
		StaleGrace:   grace,
		DisplayDelay: m.opts.DisplayDelay,
		OnChange:     s.publish,
		Now:          m.opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("portal: create scan session: %w", err)
	}
	s.rec = rec
	s.last = rec.State()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a live session and marks it as recently used.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Close tears a session down and forgets it.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	return nil
}

// ReapIdle closes sessions untouched for longer than maxIdle, covering pages
// that vanished without sending their unmount request.
func (m *SessionManager) ReapIdle(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)
	var stale []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) && s.watcherCount() == 0 {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
		log.Printf("portal: reaped idle scan session %s", s.ID)
	}
	return len(stale)
}

// CloseAll tears down every session, used at shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reconciler returns the session's scan state machine.
func (s *Session) Reconciler() *scan.Reconciler { return s.rec }

// Key forwards a browser key press into the session's feed. seq is the
// page's running key counter starting at 1: keys are applied in seq order
// however their requests arrive, and a seq already applied is ignored. A zero
// seq is applied at once.
func (s *Session) Key(seq uint64, ev scan.KeyEvent) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	if seq == 0 {
		s.feed.Publish(ev)
		return
	}
	if seq < s.nextKey {
		return
	}
	s.pending[seq] = ev
	if _, ok := s.pending[s.nextKey]; !ok {
		if len(s.pending) <= maxPendingKeys && !s.pendingSpanStaleLocked() {
			return
		}
		// The missing keys are not coming back in time to matter: skip to
		// the oldest key still held.
		s.nextKey = s.oldestPendingLocked()
	}
	for {
		ev, ok := s.pending[s.nextKey]
		if !ok {
			return
		}
		delete(s.pending, s.nextKey)
		s.nextKey++
		s.feed.Publish(ev)
	}
}

// pendingSpanStaleLocked reports whether the held keys already span a stale
// gap, so the burst a missing key belonged to would be discarded anyway.
func (s *Session) pendingSpanStaleLocked() bool {
	var first, last time.Time
	for _, ev := range s.pending {
		if ev.At.IsZero() {
			continue
		}
		if first.IsZero() || ev.At.Before(first) {
			first = ev.At
		}
		if ev.At.After(last) {
			last = ev.At
		}
	}
	return !first.IsZero() && last.Sub(first) >= s.keyGap
}

func (s *Session) oldestPendingLocked() uint64 {
	var oldest uint64
	for seq := range s.pending {
		if oldest == 0 || seq < oldest {
			oldest = seq
		}
	}
	return oldest
}

// State returns the latest published state.
func (s *Session) State() scan.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Watch subscribes to state changes. The channel is closed when the session
// closes or cancel is called. A watcher that falls behind loses the oldest
// pending states, never the newest.
func (s *Session) Watch() (<-chan scan.State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan scan.State, watcherBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// publish receives reconciler snapshots. Callbacks can race each other, so
// anything older than what was already published is dropped.
func (s *Session) publish(st scan.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Seq <= s.last.Seq {
		return
	}
	s.last = st
	for _, ch := range s.watchers {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) watcherCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *Session) close() {
	s.rec.Teardown()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
}
