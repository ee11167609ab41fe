package scan

import "sync"

// KeySource delivers key presses to subscribed handlers. A source must not
// invoke the handler from inside Subscribe.
type KeySource interface {
	// Subscribe registers handler and returns a function that detaches it.
	// The returned function is safe to call more than once.
	Subscribe(handler func(KeyEvent)) (unsubscribe func())
}

// KeyFeed is an in-process KeySource. Producers (a terminal reader, an HTTP
// handler relaying browser keydown events) call Publish; keys published while
// nobody is subscribed are dropped.
type KeyFeed struct {
	mu   sync.Mutex
	next int
	subs map[int]func(KeyEvent)
}

// NewKeyFeed creates an empty KeyFeed.
func NewKeyFeed() *KeyFeed {
	return &KeyFeed{subs: make(map[int]func(KeyEvent))}
}

// Subscribe implements KeySource.
func (f *KeyFeed) Subscribe(handler func(KeyEvent)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = handler
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber and reports how many
// received it. Handlers run on the caller's goroutine, outside the feed lock.
func (f *KeyFeed) Publish(ev KeyEvent) int {
	f.mu.Lock()
	handlers := make([]func(KeyEvent), 0, len(f.subs))
	for _, h := range f.subs {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
	return len(handlers)
}

// Subscribers returns the number of attached handlers.
func (f *KeyFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
