package threadctx

import (
	"testing"

	"github.com/swiftlog/corelog/internal/queue"
)

func newTestContext(t *testing.T, id string) *Context {
	t.Helper()
	q, err := queue.NewUnboundedSpscQueue(16, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	return New(id, "", q)
}

func TestNewContextFlagReportsAndClears(t *testing.T) {
	r := NewRegistry()
	if r.NewContextFlag() {
		t.Fatalf("NewContextFlag() = true before any Register")
	}

	r.Register(newTestContext(t, "p1"))

	if !r.NewContextFlag() {
		t.Fatalf("NewContextFlag() = false after Register, want true")
	}
	if r.NewContextFlag() {
		t.Fatalf("NewContextFlag() = true on second call, want it cleared by the first")
	}
}

func TestHasInvalidSetByInvalidateClearedByCleanup(t *testing.T) {
	r := NewRegistry()
	ctx := newTestContext(t, "p1")
	r.Register(ctx)

	if r.HasInvalid() {
		t.Fatalf("HasInvalid() = true before any Invalidate")
	}

	r.Invalidate("p1")
	if !r.HasInvalid() {
		t.Fatalf("HasInvalid() = false after Invalidate, want true")
	}

	r.CleanupInvalidated()
	if r.HasInvalid() {
		t.Fatalf("HasInvalid() = true after CleanupInvalidated drained the only invalid context, want false")
	}
	if got := r.Snapshot(); len(got) != 0 {
		t.Fatalf("Snapshot() after cleanup = %v, want empty", got)
	}
}

func TestHasInvalidStaysSetUntilQueueDrains(t *testing.T) {
	r := NewRegistry()
	ctx := newTestContext(t, "p1")
	r.Register(ctx)

	buf, err := ctx.Queue.PrepareWrite(4)
	if err != nil {
		t.Fatalf("PrepareWrite: %v", err)
	}
	copy(buf, []byte("data"))
	ctx.Queue.FinishWrite(4)

	r.Invalidate("p1")
	r.CleanupInvalidated()

	if !r.HasInvalid() {
		t.Fatalf("HasInvalid() = false while the invalidated context's queue is still unread, want true")
	}
	if got := r.Snapshot(); len(got) != 1 {
		t.Fatalf("Snapshot() = %v, want the still-unread context to remain registered", got)
	}
}
