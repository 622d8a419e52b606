package patternfmt

import (
	"strings"
	"testing"
	"time"
)

func TestFormatterRenderSubstitutesPlaceholders(t *testing.T) {
	f := Compile("%(level) %(logger_name): %(message)", "", time.UTC)
	got := f.Render(Record{Level: "INFO", LoggerName: "app", Message: "started"})
	want := "INFO app: started"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestFormatterRenderTime(t *testing.T) {
	f := Compile("%(time)", "2006-01-02", time.UTC)
	ts := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC).UnixNano()
	got := f.Render(Record{TimestampNanos: ts})
	if !strings.Contains(got, "2026-08-06") {
		t.Fatalf("Render() = %q, want to contain 2026-08-06", got)
	}
}

func TestCacheAcquireSharesAndRelease(t *testing.T) {
	c := NewCache()
	a := c.Acquire("%(message)", "", time.UTC)
	b := c.Acquire("%(message)", "", time.UTC)
	if a != b {
		t.Fatalf("Acquire() returned distinct formatters for identical keys")
	}
	if got := c.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}

	c.Release("%(message)", "", time.UTC)
	if got := c.Len(); got != 1 {
		t.Fatalf("Len() after one Release = %d, want 1 (still held)", got)
	}

	c.Release("%(message)", "", time.UTC)
	if got := c.Len(); got != 0 {
		t.Fatalf("Len() after final Release = %d, want 0", got)
	}
}
