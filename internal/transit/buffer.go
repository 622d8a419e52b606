package transit

import "fmt"

// Buffer is a growable FIFO of *Event slots belonging to one producer
// context. Slots are reused across pop/push cycles; the backing array only
// grows, doubling in size, up to a hard cap, the same discipline catrate's
// ringBuffer.Insert uses when it runs out of room.
type Buffer struct {
	slots []*Event
	// head is the index of the oldest populated event.
	head int
	// count is the number of populated events currently buffered.
	count int

	hardLimit int
}

// NewBuffer creates a buffer with the given initial capacity (rounded up to
// at least 1) and hard cap on the number of buffered events.
func NewBuffer(initialCapacity, hardLimit int) *Buffer {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	slots := make([]*Event, initialCapacity)
	for i := range slots {
		slots[i] = &Event{}
	}
	return &Buffer{slots: slots, hardLimit: hardLimit}
}

// Len returns the number of currently populated events.
func (b *Buffer) Len() int {
	return b.count
}

// Cap returns the buffer's current backing capacity.
func (b *Buffer) Cap() int {
	return len(b.slots)
}

// Front returns the oldest populated event without removing it, or nil if
// the buffer is empty.
func (b *Buffer) Front() *Event {
	if b.count == 0 {
		return nil
	}
	return b.slots[b.head]
}

// Pop removes and returns the oldest populated event, or nil if the buffer
// is empty. The returned Event's slot is recycled by a later Reserve call.
func (b *Buffer) Pop() *Event {
	if b.count == 0 {
		return nil
	}
	e := b.slots[b.head]
	b.head = (b.head + 1) % len(b.slots)
	b.count--
	return e
}

// Reserve returns the next free slot to populate, growing the backing array
// (doubling, capped at hardLimit) if it is currently full. ok is false only
// if the buffer is already at its hard cap.
func (b *Buffer) Reserve() (e *Event, ok bool) {
	if b.count == len(b.slots) {
		if !b.grow() {
			return nil, false
		}
	}
	idx := (b.head + b.count) % len(b.slots)
	b.count++
	return b.slots[idx], true
}

// grow doubles the backing array, capped at hardLimit, relocating existing
// entries so head is always 0 afterward. Returns false if already at cap.
func (b *Buffer) grow() bool {
	cur := len(b.slots)
	if b.hardLimit > 0 && cur >= b.hardLimit {
		return false
	}
	next := cur * 2
	if next < 1 {
		next = 1
	}
	if b.hardLimit > 0 && next > b.hardLimit {
		next = b.hardLimit
	}

	grown := make([]*Event, next)
	for i := 0; i < b.count; i++ {
		grown[i] = b.slots[(b.head+i)%cur]
	}
	for i := b.count; i < next; i++ {
		grown[i] = &Event{}
	}
	b.slots = grown
	b.head = 0
	return true
}

// String implements fmt.Stringer for debugging/diagnostics.
func (b *Buffer) String() string {
	return fmt.Sprintf("transit.Buffer{len=%d cap=%d}", b.count, len(b.slots))
}
