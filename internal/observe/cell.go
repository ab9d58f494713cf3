// Package observe implements a single-writer, multi-reader value cell.
//
// Store is called by exactly one owner. Readers either Load the current value
// or Subscribe and receive it on a channel. Subscriptions are coalescing: each
// subscriber channel holds at most one pending value, and a newer value
// replaces an unread older one, so a slow reader always catches up to the
// latest state and never blocks the writer.
package observe

import "sync"

// Cell holds a value of type T and fans changes out to subscribers.
type Cell[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   map[uint64]chan T
	next   uint64
	closed bool
}

// New returns a Cell initialised to v.
func New[T any](v T) *Cell[T] {
	return &Cell[T]{
		value: v,
		subs:  make(map[uint64]chan T),
	}
}

// Load returns the current value.
func (c *Cell[T]) Load() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Store replaces the value and notifies every subscriber.
func (c *Cell[T]) Store(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	for _, ch := range c.subs {
		offer(ch, v)
	}
}

// Subscribe returns a channel that receives the current value immediately
// and every later value. cancel detaches the subscription and closes the
// channel; it is safe to call more than once. After CloseAll the channel
// holds the last value and is already closed.
func (c *Cell[T]) Subscribe() (values <-chan T, cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan T, 1)
	ch <- c.value
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.next
	c.next++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// CloseAll detaches and closes every subscription. Later subscriptions
// are returned closed.
func (c *Cell[T]) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of attached subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// offer replaces any unread value in ch with v. Callers hold c.mu, so no
// other sender races for the single buffer slot.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
