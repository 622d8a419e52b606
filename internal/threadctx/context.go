// Package threadctx tracks the per-producer state the backend worker needs
// to drain a producer's queue: its queue handle, identity, and lifecycle.
// "Thread" here means "producer goroutine" — Go gives user code no stable,
// enumerable OS thread id, so identity is the caller-supplied ID a producer
// obtains once and reuses for the lifetime of its context, the same way a
// quill thread-local handle is obtained once per OS thread.
package threadctx

import (
	"sync/atomic"

	"github.com/swiftlog/corelog/internal/queue"
)

// Context holds the per-producer state shared between one producer
// goroutine and the backend worker.
type Context struct {
	// ID is the caller-supplied, stable producer identity.
	ID string
	// Name is an optional human-readable producer name. The backend worker
	// does not copy it into records: sinks and %(thread_name) receive "".
	Name string

	// Queue is the byte queue this producer writes encoded records into,
	// either a growable UnboundedSpscQueue or a fixed-capacity
	// BoundedSpscQueue, depending on the producer's selected queue policy.
	Queue queue.Queue

	// valid is cleared by Invalidate when the producer is done, but the
	// context is only removed from the registry once the backend has
	// observed the drained, invalid state (has_invalid sweep).
	valid atomic.Bool

	// droppedCount counts records dropped because the queue had no room.
	droppedCount atomic.Uint64
	// blockedCount counts occurrences of the producer blocking waiting for
	// queue room under the block-until-space queue policy; always zero for
	// drop-on-full and unbounded-grow producers.
	blockedCount atomic.Uint64
}

// New creates a Context for a producer with the given stable ID.
func New(id, name string, q queue.Queue) *Context {
	c := &Context{ID: id, Name: name, Queue: q}
	c.valid.Store(true)
	return c
}

// Valid reports whether the producer is still active.
func (c *Context) Valid() bool {
	return c.valid.Load()
}

// Invalidate marks the producer as done. The backend worker drains any
// remaining queued records before removing the context from the registry.
func (c *Context) Invalidate() {
	c.valid.Store(false)
}

// RecordDropped increments the dropped-record counter and returns the new
// total, used by the backend to decide when to emit a "dropped N messages"
// diagnostic.
func (c *Context) RecordDropped() uint64 {
	return c.droppedCount.Add(1)
}

// DroppedCount returns the number of records dropped for this producer.
func (c *Context) DroppedCount() uint64 {
	return c.droppedCount.Load()
}

// RecordBlocked increments the blocked-occurrence counter and returns the
// new total.
func (c *Context) RecordBlocked() uint64 {
	return c.blockedCount.Add(1)
}

// BlockedCount returns the number of blocking occurrences recorded for this
// producer.
func (c *Context) BlockedCount() uint64 {
	return c.blockedCount.Load()
}
