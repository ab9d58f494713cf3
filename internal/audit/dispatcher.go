package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher relays events to a sink on its own goroutine. With DropIfFull
// off, Emit waits for buffer space.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	// mu guards closing events against concurrent sends.
	mu     sync.RWMutex
	closed bool
	events chan Event
	exited chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts a dispatcher. It returns nil when cfg.Enabled is
// false; every method is safe on a nil *Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		events:     make(chan Event, max(cfg.BufferSize, 1)),
		exited:     make(chan struct{}),
	}
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.exited)
	for ev := range d.events {
		d.sink.Emit(context.Background(), ev)
		d.delivered.Add(1)
	}
}

// Emit queues ev. Events emitted after Close are ignored. A full buffer
// drops ev when DropIfFull is set; otherwise Emit waits for space or ctx.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.events <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and returns once every buffered event has
// reached the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.exited
}

// Dropped returns the number of events that were not queued.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns the number of events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
