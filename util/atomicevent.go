package util

import (
	"context"
	"sync"
)

// AtomicEvent is a latest-value mailbox. Writers never block; a slow
// reader only ever sees the newest value, together with the number of
// values sent so far so it can tell how many it skipped.
type AtomicEvent[T any] struct {
	mu     sync.Mutex
	value  T
	seq    uint64
	notify chan struct{} // capacity 1, a pending wakeup
}

func NewAtomicEvent[T any]() *AtomicEvent[T] {
	return &AtomicEvent[T]{
		notify: make(chan struct{}, 1),
	}
}

// Send replaces the held value and marks it pending.
func (ae *AtomicEvent[T]) Send(event T) {
	ae.mu.Lock()
	ae.value = event
	ae.seq++
	ae.mu.Unlock()

	select {
	case ae.notify <- struct{}{}:
	default:
	}
}

// Channel is readable once after one or more Sends.
func (ae *AtomicEvent[T]) Channel() <-chan struct{} {
	return ae.notify
}

func (ae *AtomicEvent[T]) Value() T {
	v, _ := ae.Latest()
	return v
}

// Latest returns the held value and its sequence number (0 before the
// first Send).
func (ae *AtomicEvent[T]) Latest() (T, uint64) {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value, ae.seq
}

// Wait blocks until a value is pending or ctx is done.
func (ae *AtomicEvent[T]) Wait(ctx context.Context) (T, bool) {
	select {
	case <-ae.notify:
		return ae.Value(), true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}
