// Package live provides an observable holder for the latest value of a stream.
//
// A Value keeps the most recent value and hands it to every subscriber. Slow
// subscribers skip intermediate values and always observe the newest one, which
// is the contract a renderer needs: it only ever draws the current state.
package live

import (
	"context"
	"slices"
	"sync"
)

// Value holds the latest value of type T. The zero Value is not usable; use
// New or Of.
type Value[T any] struct {
	mu      sync.Mutex
	val     T
	ready   bool
	version uint64
	equal   func(a, b T) bool
	subs    map[int]chan T
	nextID  int
	closed  bool
	changed chan struct{}
}

// New returns a Value with no value yet. Subscribers receive nothing until the
// first Set. When equal is non-nil, Set suppresses values equal to the current.
func New[T any](equal func(a, b T) bool) *Value[T] {
	return &Value[T]{
		equal:   equal,
		subs:    make(map[int]chan T),
		changed: make(chan struct{}),
	}
}

// Of returns a Value that already holds initial.
func Of[T any](initial T, equal func(a, b T) bool) *Value[T] {
	v := New(equal)
	v.val = initial
	v.ready = true
	v.version = 1
	return v
}

// Equal compares comparable values with ==.
func Equal[T comparable](a, b T) bool { return a == b }

// SliceEqual compares slices of comparable elements element-wise. A nil and an
// empty slice are equal.
func SliceEqual[E comparable](a, b []E) bool { return slices.Equal(a, b) }

// Set publishes x. It returns false when x was suppressed as equal to the
// current value or the Value is closed.
func (v *Value[T]) Set(x T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	if v.ready && v.equal != nil && v.equal(v.val, x) {
		return false
	}
	v.val = x
	v.ready = true
	v.version++
	for _, ch := range v.subs {
		offerLatest(ch, x)
	}
	close(v.changed)
	v.changed = make(chan struct{})
	return true
}

// offerLatest replaces any undelivered value in ch with x. Only Set sends on
// subscriber channels and it holds the lock, so the send cannot block.
func offerLatest[T any](ch chan T, x T) {
	select {
	case <-ch:
	default:
	}
	ch <- x
}

// Get returns the current value and whether one has been set.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val, v.ready
}

// Version increases by one on every accepted Set.
func (v *Value[T]) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

// Subscribe returns a channel that yields the current value (if any) followed by
// every later value, skipping values the reader was too slow to take. The
// returned cancel func closes the channel; Close on the Value closes it too.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan T, 1)
	if v.closed {
		close(ch)
		return ch, func() {}
	}
	v.nextID++
	id := v.nextID
	v.subs[id] = ch
	if v.ready {
		ch <- v.val
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if c, ok := v.subs[id]; ok {
				delete(v.subs, id)
				close(c)
			}
		})
	}
}

// Await blocks until the current value satisfies pred or ctx is done.
func (v *Value[T]) Await(ctx context.Context, pred func(T) bool) (T, error) {
	for {
		v.mu.Lock()
		val, ready, changed, closed := v.val, v.ready, v.changed, v.closed
		v.mu.Unlock()

		if ready && pred(val) {
			return val, nil
		}
		if closed {
			var zero T
			return zero, context.Canceled
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-changed:
		}
	}
}

// Close closes every subscriber channel. Later Sets are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for id, ch := range v.subs {
		delete(v.subs, id)
		close(ch)
	}
	close(v.changed)
}

// SubscriberCount returns the number of open subscriptions.
func (v *Value[T]) SubscriberCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}
