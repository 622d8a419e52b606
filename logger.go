package corelog

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/swiftlog/corelog/internal/backend"
	"github.com/swiftlog/corelog/pkg/wire"
)

// blockRetryInterval is how long commitWait sleeps between retries while
// waiting for a block-until-space producer's queue to free room.
const blockRetryInterval = 50 * time.Microsecond

// Logger is the caller-facing handle obtained from a Runtime. It holds no
// queueing state of its own — every call site commits directly onto the
// calling Producer's queue — so a Logger is safe to share across producer
// goroutines; only the Producer a given call passes in is producer-owned.
type Logger struct {
	rt   *Runtime
	desc *LoggerDescriptor
}

// LoggerOption configures a Logger at construction time.
type LoggerOption func(*LoggerDescriptor)

// WithFormatPattern sets the logger's rendering pattern (see
// internal/patternfmt for the supported %(...) tokens).
func WithFormatPattern(pattern string) LoggerOption {
	return func(d *LoggerDescriptor) { d.FormatPattern = pattern }
}

// WithTimePattern sets the Go reference-time layout used to render
// %(time) tokens.
func WithTimePattern(pattern string) LoggerOption {
	return func(d *LoggerDescriptor) { d.TimePattern = pattern }
}

// WithTimezone sets the timezone %(time) tokens are rendered in.
func WithTimezone(loc *time.Location) LoggerOption {
	return func(d *LoggerDescriptor) { d.Timezone = loc }
}

// WithBacktrace configures the logger to hold records logged at
// LevelBacktrace in a bounded ring of the given capacity instead of
// dispatching them immediately, emitting the ring once a record at or above
// flushLevel is logged. Records at any other level are dispatched directly.
func WithBacktrace(flushLevel Level, capacity int) LoggerOption {
	return func(d *LoggerDescriptor) {
		d.BacktraceFlushLevel = flushLevel
		d.BacktraceCapacity = capacity
	}
}

// defaultDecoderID is lazily registered the first time any Runtime commits
// a record, reusing backend.JoinedArgsDecoder, whose method set already
// satisfies this package's Decoder interface structurally.
func (rt *Runtime) defaultDecoderID() uint32 {
	rt.defaultDecoderOnce.Do(func() {
		rt.defaultDecoderIDValue = rt.sinks.registerDecoder(backend.JoinedArgsDecoder{})
	})
	return rt.defaultDecoderIDValue
}

// Log commits one record at level from producer p, encoding msg as this
// record's single positional argument. If p's queue has no room it returns
// a QueueFullError and the record is dropped, mirroring the "drop, count,
// continue" behavior the backend loop applies to its own failures; only a
// producer using QueuePolicyBlockUntilSpace blocks instead, retrying until
// room frees up (see commitWait).
func (l *Logger) Log(p *Producer, level Level, msg string) error {
	return l.log(p, level, msg)
}

// Logf is a convenience wrapper formatting args with fmt.Sprintf before
// committing.
func (l *Logger) Logf(p *Producer, level Level, format string, args ...any) error {
	return l.log(p, level, fmt.Sprintf(format, args...))
}

func (l *Logger) log(p *Producer, level Level, msg string) error {
	pc, file, line, _ := runtime.Caller(2)
	function := ""
	if fn := runtime.FuncForPC(pc); fn != nil {
		function = fn.Name()
	}

	metadataID := l.rt.loggers.registerMetadata(RecordMetadata{
		File:     file,
		Line:     line,
		Function: function,
		Level:    level,
	})

	var payload bytes.Buffer
	if err := wire.WriteString(&payload, msg); err != nil {
		return UnhandledErrorf("encoding record payload: %v", err)
	}

	return l.enqueue(p, wire.Header{
		MetadataID:   metadataID,
		DynamicLevel: wire.DynamicLevelNone,
		Kind:         wire.KindLog,
	}, payload.Bytes())
}

// Flush commits a control record instructing the backend to flush every
// active sink once it is dispatched, then mark the returned FlushFlag done.
// It never blocks on the flush itself; call Wait (or poll Done) on the
// returned flag to observe completion.
func (l *Logger) Flush(p *Producer) (*FlushFlag, error) {
	flag, flagID := l.rt.registerFlushFlag()
	if err := l.enqueue(p, wire.Header{
		DynamicLevel: wire.DynamicLevelNone,
		Kind:         wire.KindFlush,
		FlushFlagID:  flagID,
	}, nil); err != nil {
		l.rt.discardFlushFlag(flagID)
		return nil, err
	}
	return flag, nil
}

// InitBacktrace commits a control record that (re)sizes l's backtrace ring
// to capacity once the backend dispatches it, letting a producer change
// backtrace capacity at runtime instead of only at NewLogger time via
// WithBacktrace. capacity must be a power of two, or zero to disable the
// ring.
func (l *Logger) InitBacktrace(p *Producer, capacity int) error {
	var payload bytes.Buffer
	if err := wire.WriteString(&payload, strconv.Itoa(capacity)); err != nil {
		return UnhandledErrorf("encoding record payload: %v", err)
	}
	return l.enqueue(p, wire.Header{
		DynamicLevel: wire.DynamicLevelNone,
		Kind:         wire.KindInitBacktrace,
	}, payload.Bytes())
}

// FlushBacktrace commits a control record that unconditionally drains and
// emits l's backtrace ring once dispatched, independent of the
// level-comparison trigger normal dispatch uses.
func (l *Logger) FlushBacktrace(p *Producer) error {
	return l.enqueue(p, wire.Header{
		DynamicLevel: wire.DynamicLevelNone,
		Kind:         wire.KindFlushBacktrace,
	}, nil)
}

// Close marks l invalid; the backend removes it, releases its cached
// pattern formatter, and erases its backtrace ring once every producer
// queue and transit buffer has been fully drained.
func (l *Logger) Close() {
	l.rt.loggers.invalidateLogger(l.desc.Name)
	l.rt.notifyBackend()
}

// enqueue encodes header and payload onto p's queue and wakes the backend.
// header.Timestamp, LoggerID, and DecoderID are filled in here so every
// call site (Log, Flush, InitBacktrace, FlushBacktrace) only needs to set
// the fields specific to its own record kind.
func (l *Logger) enqueue(p *Producer, header wire.Header, payload []byte) error {
	header.Timestamp = uint64(l.rt.now())
	header.LoggerID = l.desc.ID
	header.DecoderID = l.rt.defaultDecoderID()

	var buf bytes.Buffer
	if err := wire.EncodeHeader(&buf, header); err != nil {
		return UnhandledErrorf("encoding record header: %v", err)
	}
	if len(payload) == 0 {
		// The default decoder reads one length-prefixed string whenever
		// bytes remain after the header, and the read span may already hold
		// the next record, so a payload-less record carries an empty string.
		if err := wire.WriteString(&buf, ""); err != nil {
			return UnhandledErrorf("encoding record payload: %v", err)
		}
	} else {
		buf.Write(payload)
	}

	dest, err := l.commitWait(p, buf.Len())
	if err != nil {
		p.ctx.RecordDropped()
		return QueueFullError("producer %q: %v", p.ID(), err)
	}
	copy(dest, buf.Bytes())
	p.ctx.Queue.FinishWrite(buf.Len())

	l.rt.notifyBackend()
	return nil
}

// commitWait returns room for n bytes on p's queue. Under
// QueuePolicyBlockUntilSpace it retries until the backend frees enough
// room instead of failing immediately, recording one blocked occurrence
// per retry; every other policy fails immediately like PrepareWrite does.
func (l *Logger) commitWait(p *Producer, n int) ([]byte, error) {
	buf, err := p.ctx.Queue.PrepareWrite(n)
	if err == nil || p.policy != QueuePolicyBlockUntilSpace {
		return buf, err
	}
	for err != nil {
		p.ctx.RecordBlocked()
		l.rt.notifyBackend()
		time.Sleep(blockRetryInterval)
		buf, err = p.ctx.Queue.PrepareWrite(n)
	}
	return buf, nil
}
