package corelog

import (
	"time"

	"github.com/swiftlog/corelog/pkg/wire"
)

// NamedArg is a single `{name}`-style formatted argument extracted from a
// record's message template.
type NamedArg struct {
	Name  string
	Value string
}

// RecordMetadata is the static, per-call-site information captured once at
// the log statement (file, line, function, the raw message template) and
// referenced by ID from every record built from that call site, rather than
// copied into every record.
type RecordMetadata struct {
	File     string
	Line     int
	Function string
	Pattern  string
	Level    Level
}

// Sink is the destination for fully formatted, ordered log records. It
// replaces the queueing/retry machinery a Backend implementation used to
// provide for itself: the Runtime's backend worker is the only place
// records are queued and retried, so a Sink only needs to know how to accept
// an already-decided record.
type Sink interface {
	// ApplyFilters reports whether this sink wants to receive the record
	// described by the given metadata and rendered text. Returning false
	// skips WriteMessage for this sink and this record.
	ApplyFilters(meta RecordMetadata, tsNanos int64, threadID string, threadName string, loggerName string, level Level, rendered string) bool
	// WriteMessage delivers one formatted record. An error is reported
	// through the backend's ErrorNotifier and never stops the worker loop.
	WriteMessage(meta RecordMetadata, tsNanos int64, threadID string, threadName string, loggerName string, level Level, namedArgs []NamedArg, rendered string) error
	// Flush flushes any buffered output down to the sink's backing storage.
	Flush() error
	// RunPeriodicTasks is called by the backend worker on every idle pass so
	// sinks can perform upkeep (log rotation checks, connection keep-alives)
	// without their own timer goroutine.
	RunPeriodicTasks()
}

// Decoder renders a record's argument payload out of its wire cursor into
// an ArgStore the backend worker substitutes into the record's message
// template.
type Decoder interface {
	Decode(cursor *wire.Cursor, store *wire.ArgStore) error
}

// TimestampFormatter renders a nanosecond timestamp for a given timezone.
// Nothing in this package consumes one: pattern formatters always use their
// layout-based renderer, and no logger option accepts a TimestampFormatter.
type TimestampFormatter interface {
	Format(tsNanos int64, timezone *time.Location) string
}

// sinkEntry pairs a registered Sink with its bookkeeping, equivalent to what
// BackendQueue used to hold alongside a Backend.
type sinkEntry struct {
	id   string
	sink Sink
}

// LoggerDescriptor is the immutable, registry-resolved view of a Logger a
// backend worker consults while formatting records: its display name,
// format pattern, and backtrace flush threshold.
type LoggerDescriptor struct {
	ID                 uint32
	Name               string
	FormatPattern      string
	TimePattern        string
	Timezone           *time.Location
	BacktraceFlushLevel Level
	BacktraceCapacity   int

	// invalid is set by loggerRegistry.invalidateLogger once a user calls
	// Logger.Close; the backend's cleanup sweep removes the descriptor once
	// every producer queue and transit buffer has drained.
	invalid bool
}
