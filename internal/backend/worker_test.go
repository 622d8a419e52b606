package backend

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/swiftlog/corelog/internal/queue"
	"github.com/swiftlog/corelog/internal/threadctx"
	"github.com/swiftlog/corelog/pkg/wire"
)

// backtraceMetadataID is the metadata id newTestWorker's lookupMetadata
// mock resolves to levelBacktrace, so tests can write records that are
// actually eligible for backtrace buffering rather than dispatched directly.
const backtraceMetadataID = 43

// triggerMetadataID is the metadata id newTestWorker's lookupMetadata mock
// resolves to a level at or above the test logger's BacktraceFlushLevel, so
// tests can write a record that triggers a backtrace ring drain.
const triggerMetadataID = 44

type fakeSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *fakeSink) ApplyFilters(meta RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level Level, rendered string) bool {
	return true
}

func (s *fakeSink) WriteMessage(meta RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level Level, namedArgs []NamedArg, rendered string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, rendered)
	return nil
}

func (s *fakeSink) Flush() error { return nil }

func (s *fakeSink) RunPeriodicTasks() {}

func (s *fakeSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func writeRecord(t *testing.T, q *queue.UnboundedSpscQueue, ts uint64, metadataID uint32, message string) {
	t.Helper()
	var payload bytes.Buffer
	if err := wire.EncodeHeader(&payload, wire.Header{
		Timestamp:    ts,
		MetadataID:   metadataID,
		LoggerID:     1,
		DecoderID:    1,
		DynamicLevel: wire.DynamicLevelNone,
	}); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	if err := wire.WriteString(&payload, message); err != nil {
		t.Fatalf("WriteString: %v", err)
	}

	buf, err := q.PrepareWrite(payload.Len())
	if err != nil {
		t.Fatalf("PrepareWrite: %v", err)
	}
	copy(buf, payload.Bytes())
	q.FinishWrite(payload.Len())
}

func TestWorkerDispatchesDecodedRecordToSink(t *testing.T) {
	registry := threadctx.NewRegistry()
	q, err := queue.NewUnboundedSpscQueue(64, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	registry.Register(threadctx.New("producer-1", "", q))

	writeRecord(t, q, 1000, 42, "hello from the queue")

	sink := &fakeSink{}
	opts := Options{
		SleepDuration:                     time.Millisecond,
		TransitEventsSoftLimit:            10,
		TransitEventsHardLimit:            100,
		TransitEventBufferInitialCapacity: 4,
	}

	w := New(
		registry,
		opts,
		func() int64 { return time.Now().UnixNano() },
		func(id uint32) (RecordMetadata, bool) {
			return RecordMetadata{File: "main.go", Line: 10, Function: "main", Level: Level{Rank: 5, Tag: "INFO"}}, true
		},
		func(id uint32) (LoggerInfo, bool) {
			return LoggerInfo{ID: 1, Name: "app", FormatPattern: "%(level) %(message)"}, true
		},
		func(id uint32) (Decoder, bool) {
			return JoinedArgsDecoder{}, true
		},
		func() []Sink { return []Sink{sink} },
		nil,
		nil,
		nil,
		1234,
	)

	w.pass()
	w.pass()

	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("sink received %d messages, want 1: %v", len(got), got)
	}
	if got[0] != "INFO hello from the queue" {
		t.Fatalf("sink message = %q, want %q", got[0], "INFO hello from the queue")
	}
}

func writeControlRecord(t *testing.T, q *queue.UnboundedSpscQueue, kind wire.EventKind, loggerID uint32, flushFlagID uint32, payload string) {
	t.Helper()
	var buf bytes.Buffer
	if err := wire.EncodeHeader(&buf, wire.Header{
		LoggerID:     loggerID,
		DecoderID:    1,
		DynamicLevel: wire.DynamicLevelNone,
		Kind:         kind,
		FlushFlagID:  flushFlagID,
	}); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	if payload != "" {
		if err := wire.WriteString(&buf, payload); err != nil {
			t.Fatalf("WriteString: %v", err)
		}
	}

	dest, err := q.PrepareWrite(buf.Len())
	if err != nil {
		t.Fatalf("PrepareWrite: %v", err)
	}
	copy(dest, buf.Bytes())
	q.FinishWrite(buf.Len())
}

func newTestWorker(registry *threadctx.Registry, sinks []Sink, markFlushFlag FlushFlagMarker, invalidLoggers InvalidLoggerLister, removeLogger LoggerRemover) *Worker {
	opts := Options{
		SleepDuration:                     time.Millisecond,
		TransitEventsSoftLimit:            10,
		TransitEventsHardLimit:            100,
		TransitEventBufferInitialCapacity: 4,
	}
	return New(
		registry,
		opts,
		func() int64 { return time.Now().UnixNano() },
		func(id uint32) (RecordMetadata, bool) {
			switch id {
			case backtraceMetadataID:
				return RecordMetadata{File: "main.go", Line: 10, Function: "main", Level: levelBacktrace}, true
			case triggerMetadataID:
				return RecordMetadata{File: "main.go", Line: 10, Function: "main", Level: Level{Rank: 8, Tag: "ERROR"}}, true
			default:
				return RecordMetadata{File: "main.go", Line: 10, Function: "main", Level: Level{Rank: 5, Tag: "INFO"}}, true
			}
		},
		func(id uint32) (LoggerInfo, bool) {
			if id != 1 {
				return LoggerInfo{}, false
			}
			return LoggerInfo{ID: 1, Name: "app", FormatPattern: "%(level) %(message)", BacktraceFlushLevel: Level{Rank: 8, Tag: "ERROR"}}, true
		},
		func(id uint32) (Decoder, bool) {
			return JoinedArgsDecoder{}, true
		},
		func() []Sink { return sinks },
		markFlushFlag,
		invalidLoggers,
		removeLogger,
		1234,
	)
}

func TestWorkerDispatchFlushMarksFlushFlag(t *testing.T) {
	registry := threadctx.NewRegistry()
	q, err := queue.NewUnboundedSpscQueue(64, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	registry.Register(threadctx.New("producer-1", "", q))
	writeControlRecord(t, q, wire.KindFlush, 1, 7, "")

	sink := &fakeSink{}
	var marked uint32
	w := newTestWorker(registry, []Sink{sink}, func(id uint32) { marked = id }, nil, nil)

	w.pass()
	w.pass()

	if marked != 7 {
		t.Fatalf("markFlushFlag called with id = %d, want 7", marked)
	}
}

func TestWorkerDispatchInitBacktraceThenFlushBacktraceEmitsStoredRecords(t *testing.T) {
	registry := threadctx.NewRegistry()
	q, err := queue.NewUnboundedSpscQueue(64, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	registry.Register(threadctx.New("producer-1", "", q))

	writeControlRecord(t, q, wire.KindInitBacktrace, 1, 0, "4")
	writeRecord(t, q, 1000, backtraceMetadataID, "buffered one")
	writeRecord(t, q, 1001, backtraceMetadataID, "buffered two")
	writeControlRecord(t, q, wire.KindFlushBacktrace, 1, 0, "")

	sink := &fakeSink{}
	w := newTestWorker(registry, []Sink{sink}, nil, nil, nil)

	for i := 0; i < 4; i++ {
		w.pass()
	}

	got := sink.snapshot()
	if len(got) != 2 {
		t.Fatalf("sink received %d messages, want 2: %v", len(got), got)
	}
	if got[0] != "BACKTRACE buffered one" || got[1] != "BACKTRACE buffered two" {
		t.Fatalf("sink messages = %v, want [BACKTRACE buffered one, BACKTRACE buffered two]", got)
	}
}

// TestWorkerOrdinaryLowLevelRecordDispatchesDirectlyNotBuffered guards
// against conflating "any record below the flush level" with "a record
// explicitly logged at the Backtrace pseudo-level": only the latter should
// ever be diverted into the backtrace ring.
func TestWorkerOrdinaryLowLevelRecordDispatchesDirectlyNotBuffered(t *testing.T) {
	registry := threadctx.NewRegistry()
	q, err := queue.NewUnboundedSpscQueue(64, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	registry.Register(threadctx.New("producer-1", "", q))

	writeControlRecord(t, q, wire.KindInitBacktrace, 1, 0, "4")
	writeRecord(t, q, 1000, 42, "ordinary info")

	sink := &fakeSink{}
	w := newTestWorker(registry, []Sink{sink}, nil, nil, nil)

	w.pass()
	w.pass()

	got := sink.snapshot()
	if len(got) != 1 || got[0] != "INFO ordinary info" {
		t.Fatalf("sink messages = %v, want [INFO ordinary info] dispatched directly", got)
	}
}

// TestWorkerBacktraceTriggerDispatchesTriggeringRecordBeforeRing verifies
// the triggering record reaches sinks before the drained backtrace ring
// records, matching the documented dispatch order.
func TestWorkerBacktraceTriggerDispatchesTriggeringRecordBeforeRing(t *testing.T) {
	registry := threadctx.NewRegistry()
	q, err := queue.NewUnboundedSpscQueue(64, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	registry.Register(threadctx.New("producer-1", "", q))

	writeControlRecord(t, q, wire.KindInitBacktrace, 1, 0, "4")
	writeRecord(t, q, 1000, backtraceMetadataID, "r2")
	writeRecord(t, q, 1001, backtraceMetadataID, "r3")
	writeRecord(t, q, 1002, triggerMetadataID, "triggering")

	sink := &fakeSink{}
	w := newTestWorker(registry, []Sink{sink}, nil, nil, nil)

	for i := 0; i < 4; i++ {
		w.pass()
	}

	got := sink.snapshot()
	if len(got) != 3 {
		t.Fatalf("sink received %d messages, want 3: %v", len(got), got)
	}
	if got[0] != "ERROR triggering" || got[1] != "BACKTRACE r2" || got[2] != "BACKTRACE r3" {
		t.Fatalf("sink messages = %v, want [ERROR triggering, BACKTRACE r2, BACKTRACE r3]", got)
	}
}

// TestWorkerPicksUpProducerRegisteredAfterFirstPass verifies the
// activeContexts cache notices a producer registered mid-run instead of
// only ever seeing the set of producers that existed at worker creation.
func TestWorkerPicksUpProducerRegisteredAfterFirstPass(t *testing.T) {
	registry := threadctx.NewRegistry()
	q1, err := queue.NewUnboundedSpscQueue(64, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	registry.Register(threadctx.New("producer-1", "", q1))

	sink := &fakeSink{}
	w := newTestWorker(registry, []Sink{sink}, nil, nil, nil)

	if w.pass() {
		t.Fatalf("pass() = true on an empty queue, want false")
	}

	q2, err := queue.NewUnboundedSpscQueue(64, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	registry.Register(threadctx.New("producer-2", "", q2))
	writeRecord(t, q2, 1000, 42, "from the late producer")

	if !w.pass() {
		t.Fatalf("pass() = false after a record arrived on a newly-registered producer, want true")
	}

	got := sink.snapshot()
	if len(got) != 1 || got[0] != "INFO from the late producer" {
		t.Fatalf("sink messages = %v, want [INFO from the late producer]", got)
	}
}

func TestWorkerFormatterCacheReusedAcrossDispatches(t *testing.T) {
	registry := threadctx.NewRegistry()
	q, err := queue.NewUnboundedSpscQueue(64, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	registry.Register(threadctx.New("producer-1", "", q))
	writeRecord(t, q, 1000, 42, "first")
	writeRecord(t, q, 1001, 42, "second")

	sink := &fakeSink{}
	w := newTestWorker(registry, []Sink{sink}, nil, nil, nil)

	w.pass()
	w.pass()
	w.pass()

	if got := len(sink.snapshot()); got != 2 {
		t.Fatalf("sink received %d messages, want 2", got)
	}
	if got := w.formatterCache.Len(); got != 1 {
		t.Fatalf("formatterCache.Len() = %d, want 1 (formatter should be acquired once per logger, not once per dispatch)", got)
	}
}

func TestWorkerCleanupInvalidatedLoggersReleasesFormatterAndBacktrace(t *testing.T) {
	registry := threadctx.NewRegistry()
	q, err := queue.NewUnboundedSpscQueue(64, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	registry.Register(threadctx.New("producer-1", "", q))
	writeRecord(t, q, 1000, 42, "one")

	sink := &fakeSink{}
	removed := false
	loggerGone := false
	opts := Options{
		SleepDuration:                     time.Millisecond,
		TransitEventsSoftLimit:            10,
		TransitEventsHardLimit:            100,
		TransitEventBufferInitialCapacity: 4,
	}
	w := New(
		registry,
		opts,
		func() int64 { return time.Now().UnixNano() },
		func(id uint32) (RecordMetadata, bool) {
			return RecordMetadata{File: "main.go", Line: 10, Function: "main", Level: Level{Rank: 5, Tag: "INFO"}}, true
		},
		func(id uint32) (LoggerInfo, bool) {
			if id != 1 || loggerGone {
				return LoggerInfo{}, false
			}
			return LoggerInfo{ID: 1, Name: "app", FormatPattern: "%(level) %(message)", BacktraceFlushLevel: Level{Rank: 8, Tag: "ERROR"}}, true
		},
		func(id uint32) (Decoder, bool) {
			return JoinedArgsDecoder{}, true
		},
		func() []Sink { return []Sink{sink} },
		nil,
		func() []uint32 {
			if loggerGone {
				return nil
			}
			return []uint32{1}
		},
		func(id uint32) { removed = true; loggerGone = true },
		1234,
	)

	w.pass()
	w.pass()

	if got := w.formatterCache.Len(); got != 1 {
		t.Fatalf("formatterCache.Len() = %d before cleanup, want 1", got)
	}

	w.cleanupInvalidatedLoggers()

	if !removed {
		t.Fatalf("removeLogger was never called")
	}
	if got := w.formatterCache.Len(); got != 0 {
		t.Fatalf("formatterCache.Len() = %d after cleanup, want 0", got)
	}
}

func TestWorkerEmitsFailureCounterReportOnlyOnceForSameDelta(t *testing.T) {
	registry := threadctx.NewRegistry()
	q, err := queue.NewUnboundedSpscQueue(64, 0)
	if err != nil {
		t.Fatalf("NewUnboundedSpscQueue: %v", err)
	}
	ctx := threadctx.New("producer-1", "", q)
	registry.Register(ctx)
	ctx.RecordDropped()
	ctx.RecordDropped()

	var reports []string
	w := newTestWorker(registry, nil, nil, nil, nil)
	w.opts.Notify = func(msg string) { reports = append(reports, msg) }

	w.emitFailureCounterReports()
	w.emitFailureCounterReports()

	if len(reports) != 1 {
		t.Fatalf("emitFailureCounterReports reported %d times across two idle passes, want 1 (report only on new deltas): %v", len(reports), reports)
	}
}

func TestParseNamedArgsTemplateHandlesEscapedBraces(t *testing.T) {
	tokens := parseNamedArgsTemplate("{{literal}} {name} trailing")
	values := map[string]string{"name": "world"}
	got := renderNamedArgsTokens(tokens, values)
	want := "{literal} world trailing"
	if got != want {
		t.Fatalf("renderNamedArgsTokens() = %q, want %q", got, want)
	}
}

func TestSplitJoinedArgValues(t *testing.T) {
	joined := "a" + namedArgsDelimiter + "b" + namedArgsDelimiter + "c"
	got := splitJoinedArgValues(joined)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitJoinedArgValues() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitJoinedArgValues()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
