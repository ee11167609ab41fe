package notify

import (
	"context"
	"sync"
)

// MockNotifier records notices for tests. Err, when set, is returned from
// every Notify call after recording.
type MockNotifier struct {
	mu   sync.Mutex
	sent []string
	Err  error
}

// Notify implements Notifier.
func (m *MockNotifier) Notify(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return m.Err
}

// Sent returns a copy of every recorded notice.
func (m *MockNotifier) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}
