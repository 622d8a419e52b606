// Package transit holds the decoded, reusable log-record slots the backend
// worker populates from a producer's queue before ordering and formatting
// them, mirroring quill's TransitEvent/TransitEventBuffer pair.
package transit

import "github.com/swiftlog/corelog/pkg/wire"

// NamedArg is a single decoded `{name}`-style formatted argument.
type NamedArg struct {
	Name  string
	Value string
}

// Event is one decoded, reusable log record slot. The backend worker
// repopulates an Event in place on every reuse rather than allocating a new
// one, the same slot-reuse discipline quill's TransitEvent buffer relies on.
type Event struct {
	// TimestampNanos is the record's resolved wall-clock timestamp.
	TimestampNanos int64
	// MetadataID identifies the static call-site metadata this record was
	// built from.
	MetadataID uint32
	// LoggerID identifies the logger that produced this record.
	LoggerID uint32
	// DecoderID identifies the argument decoder used to render this record's
	// payload.
	DecoderID uint32
	// DynamicLevel carries the record's severity when the call site used a
	// dynamic (run-time resolved) level; it is cleared for every other
	// record so a reused slot never leaks a stale dynamic level into a
	// record that doesn't carry one.
	DynamicLevel int8
	// IsDynamic reports whether DynamicLevel should be consulted instead of
	// the metadata's static level.
	IsDynamic bool
	// FormattedMessage holds the rendered message text, reused across
	// populate calls to avoid reallocating a buffer per record.
	FormattedMessage []byte
	// NamedArgs holds this record's decoded named arguments, reused across
	// populate calls.
	NamedArgs []NamedArg
	// ThreadID is the producer identity this record came from.
	ThreadID string
	// Kind distinguishes a normal log record from a Flush/InitBacktrace/
	// FlushBacktrace control record.
	Kind wire.EventKind
	// FlushFlagID is the runtime-owned flush-flag table index this record
	// should mark done once dispatched, for Kind == wire.KindFlush. 0 means
	// no flag is attached.
	FlushFlagID uint32
}

// Reset clears an Event for reuse without releasing its backing slices,
// clearing DynamicLevel symmetrically with IsDynamic so a stale value from a
// prior dynamic-level record can never leak into a non-dynamic one.
func (e *Event) Reset() {
	e.TimestampNanos = 0
	e.MetadataID = 0
	e.LoggerID = 0
	e.DecoderID = 0
	e.DynamicLevel = 0
	e.IsDynamic = false
	e.FormattedMessage = e.FormattedMessage[:0]
	e.NamedArgs = e.NamedArgs[:0]
	e.ThreadID = ""
	e.Kind = wire.KindLog
	e.FlushFlagID = 0
}
