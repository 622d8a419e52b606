package corelog

import "sync"

// FlushFlag is the handle returned by Logger.Flush. It becomes done once
// the backend worker has flushed every sink for that Flush record,
// standing in for the raw completion-flag pointer a Flush wire record
// carries an index to instead of an address.
type FlushFlag struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
}

func newFlushFlag() *FlushFlag {
	f := &FlushFlag{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Done reports whether the backend has finished the flush this flag tracks.
func (f *FlushFlag) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Wait blocks until the backend marks this flag done.
func (f *FlushFlag) Wait() {
	f.mu.Lock()
	for !f.done {
		f.cond.Wait()
	}
	f.mu.Unlock()
}

func (f *FlushFlag) mark() {
	f.mu.Lock()
	f.done = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

// flushFlagTable is the runtime-owned table a Flush record's FlushFlagID
// indexes into, standing in for a raw completion-flag pointer the wire
// header would otherwise need to carry.
type flushFlagTable struct {
	mu     sync.Mutex
	nextID uint32
	flags  map[uint32]*FlushFlag
}

func newFlushFlagTable() *flushFlagTable {
	return &flushFlagTable{flags: make(map[uint32]*FlushFlag)}
}

// register allocates a new FlushFlag and its wire ID.
func (t *flushFlagTable) register() (*FlushFlag, uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	flag := newFlushFlag()
	t.flags[id] = flag
	return flag, id
}

// discard removes a flag that was allocated but never successfully
// enqueued, so it isn't left dangling in the table forever.
func (t *flushFlagTable) discard(id uint32) {
	t.mu.Lock()
	delete(t.flags, id)
	t.mu.Unlock()
}

// mark resolves id to its FlushFlag, removes it from the table, and marks
// it done. It is a no-op if id is unknown (already marked, or 0).
func (t *flushFlagTable) mark(id uint32) {
	t.mu.Lock()
	flag := t.flags[id]
	delete(t.flags, id)
	t.mu.Unlock()
	if flag != nil {
		flag.mark()
	}
}
