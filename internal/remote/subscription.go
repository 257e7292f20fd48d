package remote

import (
	"sync"

	"github.com/matheus3301/convo/internal/chat"
)

// Feed is a Subscription backed by a buffered channel. Producers call Push; Close
// stops delivery and runs the release hook once.
type Feed struct {
	mu      sync.Mutex
	ch      chan chat.Event
	done    chan struct{}
	closed  bool
	release func()
}

// NewFeed creates a feed with the given buffer. release may be nil.
func NewFeed(buf int, release func()) *Feed {
	return &Feed{ch: make(chan chat.Event, buf), done: make(chan struct{}), release: release}
}

// Events implements Subscription.
func (f *Feed) Events() <-chan chat.Event { return f.ch }

// Done is closed when the feed is closed.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Push delivers evt, blocking until the consumer takes it or the feed closes.
// It returns false once the feed is closed.
func (f *Feed) Push(evt chat.Event) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	select {
	case f.ch <- evt:
		return true
	case <-f.done:
		return false
	}
}

// Close implements Subscription.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.done)
	f.mu.Unlock()
	if f.release != nil {
		f.release()
	}
	return nil
}
