// Package rdtsc provides a wall-clock timestamp source that amortizes the
// cost of reading the system clock by periodically resynchronizing a cheap
// monotonic counter against it, the same shape as quill's RdtscClock.
//
// Go exposes no portable RDTSC intrinsic without cgo or platform assembly,
// so TSCReader is an injectable abstraction: a caller can supply its own
// reader, while the default reader here returns time.Now().UnixNano(), a
// wall-clock reading in nanoseconds, so the resync/conversion path runs
// unchanged while staying portable. No assembly-backed reader is provided.
package rdtsc

import (
	"sync"
	"time"
)

// TSCReader returns the current value of a monotonically increasing counter
// (real TSC ticks, or any other cheap monotonic source).
type TSCReader func() uint64

// Clock converts TSCReader ticks into wall-clock time.Time values,
// periodically rebasing its tick/wall origin against time.Now() to bound
// drift. The tick/nanosecond ratio is fixed at 1 and never measured, so
// ticks are only converted correctly from a reader that counts nanoseconds.
type Clock struct {
	mu sync.Mutex

	reader          TSCReader
	resyncInterval  time.Duration

	baseTicks  uint64
	baseWall   time.Time
	ticksPerNs float64

	lastResync time.Time
}

// defaultReader uses time.Now().UnixNano(), the wall-clock reading in
// nanoseconds, as a stand-in "tick" source: it is cheap relative to
// formatting a timestamp, though not as cheap as a true RDTSC read.
func defaultReader() uint64 {
	return uint64(time.Now().UnixNano())
}

// New creates a Clock with the given resync interval. A nil reader selects
// defaultReader.
func New(reader TSCReader, resyncInterval time.Duration) *Clock {
	if reader == nil {
		reader = defaultReader
	}
	if resyncInterval <= 0 {
		resyncInterval = 500 * time.Millisecond
	}
	c := &Clock{reader: reader, resyncInterval: resyncInterval}
	c.resync()
	return c
}

// resync rebases the tick/wall conversion from a fresh sample. Since
// defaultReader already returns nanoseconds, ticksPerNs is 1 for the default
// reader; a true TSC reader would compute a ratio from two samples spaced
// apart in time, which this single-sample rebase approximates by always
// reusing the previous ratio on resync and only rebasing the origin point,
// matching quill's periodic-resync-of-the-origin-point behavior.
func (c *Clock) resync() {
	now := time.Now()
	c.baseTicks = c.reader()
	c.baseWall = now
	if c.ticksPerNs == 0 {
		c.ticksPerNs = 1
	}
	c.lastResync = now
}

// Now returns the current wall-clock time, resynchronizing first if more
// than resyncInterval has elapsed since the last resync.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastResync) >= c.resyncInterval {
		c.resync()
	}

	ticks := c.reader()
	deltaTicks := ticks - c.baseTicks
	deltaNs := int64(float64(deltaTicks) / c.ticksPerNs)
	return c.baseWall.Add(time.Duration(deltaNs))
}

// NowNanos is a convenience wrapper returning Now() as Unix nanoseconds.
func (c *Clock) NowNanos() int64 {
	return c.Now().UnixNano()
}
