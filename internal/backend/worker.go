// Package backend implements the single background worker goroutine that
// drains every producer's queue, orders decoded records by timestamp,
// formats them, and dispatches them to sinks. It is grounded directly on
// quill's BackendWorker for algorithmic fidelity (populate/process/cleanup
// phases) and on galog's runBackend for the Go goroutine/channel shape.
package backend

import (
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/swiftlog/corelog/internal/backtrace"
	"github.com/swiftlog/corelog/internal/patternfmt"
	"github.com/swiftlog/corelog/internal/threadctx"
	"github.com/swiftlog/corelog/internal/transit"
	"github.com/swiftlog/corelog/pkg/wire"
)

// Level is the backend's own, dependency-free view of a severity level, so
// this package needs no import of the root package (which in turn depends
// on this package), avoiding an import cycle.
type Level struct {
	Rank int8
	Tag  string
}

// levelBacktrace mirrors the root package's LevelBacktrace sentinel: a
// record logged at this pseudo-level is held in the backtrace ring
// regardless of its numeric rank, rather than compared against it.
var levelBacktrace = Level{Rank: 0, Tag: "BACKTRACE"}

// RecordMetadata is the static call-site information a MetadataLookup
// resolves a record's MetadataID to.
type RecordMetadata struct {
	File     string
	Line     int
	Function string
	Pattern  string
	Level    Level
}

// NamedArg is a decoded `{name}`-style formatted argument.
type NamedArg struct {
	Name  string
	Value string
}

// LoggerInfo is the resolved view of a logger a LoggerLookup returns.
type LoggerInfo struct {
	ID                  uint32
	Name                string
	FormatPattern       string
	TimePattern         string
	Timezone            *time.Location
	BacktraceFlushLevel Level
	BacktraceCapacity   int
}

// Decoder renders a record's argument payload out of the wire cursor.
type Decoder interface {
	Decode(cursor *wire.Cursor, store *wire.ArgStore) error
}

// Sink is the backend's own view of the root package's Sink interface,
// expressed with this package's dependency-free types.
type Sink interface {
	ApplyFilters(meta RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level Level, rendered string) bool
	WriteMessage(meta RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level Level, namedArgs []NamedArg, rendered string) error
	Flush() error
	RunPeriodicTasks()
}

// MetadataLookup resolves a MetadataID to its RecordMetadata.
type MetadataLookup func(id uint32) (RecordMetadata, bool)

// LoggerLookup resolves a LoggerID to its LoggerInfo.
type LoggerLookup func(id uint32) (LoggerInfo, bool)

// DecoderLookup resolves a DecoderID to a Decoder.
type DecoderLookup func(id uint32) (Decoder, bool)

// SinkLister returns the currently registered sinks.
type SinkLister func() []Sink

// Clock returns the current wall-clock time in nanoseconds since Unix epoch.
type Clock func() int64

// FlushFlagMarker marks a runtime-owned flush flag done once the backend
// has flushed every sink for the Flush record that carried its ID.
type FlushFlagMarker func(flagID uint32)

// InvalidLoggerLister returns the IDs of every logger currently marked
// invalid by user request and not yet removed.
type InvalidLoggerLister func() []uint32

// LoggerRemover permanently removes a logger the backend has determined is
// both invalidated and unreferenced.
type LoggerRemover func(id uint32)

// Options mirrors the root package's BackendOptions, duplicated here with
// this package's dependency-free types to avoid an import cycle.
type Options struct {
	SleepDuration                     time.Duration
	EnableYieldWhenIdle               bool
	TransitEventsSoftLimit            int
	TransitEventsHardLimit            int
	TransitEventBufferInitialCapacity int
	EnableStrictLogTimestampOrder     bool
	WaitForQueuesToEmptyBeforeExit    bool
	ThreadName                        string
	Notify                            func(string)
}

// formatterHandle is the pattern formatter a Worker holds for one logger,
// tracked so it can be released exactly once, when that logger stops
// resolving, rather than once per dispatched record.
type formatterHandle struct {
	pattern     string
	timePattern string
	timezone    *time.Location
	formatter   *patternfmt.Formatter
}

// Worker is the single background goroutine draining every producer's
// queue, ordering decoded records by timestamp, formatting, and dispatching
// them to sinks.
type Worker struct {
	registry *threadctx.Registry
	opts     Options
	clock    Clock

	// activeContexts is a cache of the registry's producer contexts,
	// refreshed only when registry.NewContextFlag reports a new producer
	// registered since the last refresh, so a pass with no new producers
	// avoids the registry's lock entirely.
	activeContexts []*threadctx.Context

	lookupMetadata MetadataLookup
	lookupLogger   LoggerLookup
	lookupDecoder  DecoderLookup
	listSinks      SinkLister
	markFlushFlag  FlushFlagMarker
	invalidLoggers InvalidLoggerLister
	removeLogger   LoggerRemover

	formatterCache *patternfmt.Cache
	formattersMu   sync.Mutex
	formatters     map[uint32]formatterHandle

	buffersMu sync.Mutex
	buffers   map[string]*transit.Buffer

	backtraceMu sync.Mutex
	backtraces  map[uint32]*backtrace.Storage
	// backtraceCapacityOverrides holds the capacity a KindInitBacktrace
	// record most recently set for a loggerID, taking precedence over
	// that logger's construction-time LoggerInfo.BacktraceCapacity so a
	// producer can turn backtrace buffering on or off at runtime.
	backtraceCapacityOverrides map[uint32]int

	mu       sync.Mutex
	cond     *sync.Cond
	wakeup   bool
	stopping bool
	stopped  chan struct{}

	lastDispatchedTsNanos int64

	processID int

	namedArgsMu    sync.Mutex
	namedArgsCache map[string][]namedArgToken

	failuresMu          sync.Mutex
	lastReportedDropped map[string]uint64
	lastReportedBlocked map[string]uint64
}

// New creates a Worker. None of the lookup/lister/marker arguments may be
// nil except markFlushFlag, invalidLoggers, and removeLogger, which are
// only exercised by Flush records and the logger cleanup sweep.
func New(registry *threadctx.Registry, opts Options, clock Clock, lookupMetadata MetadataLookup, lookupLogger LoggerLookup, lookupDecoder DecoderLookup, listSinks SinkLister, markFlushFlag FlushFlagMarker, invalidLoggers InvalidLoggerLister, removeLogger LoggerRemover, processID int) *Worker {
	w := &Worker{
		registry:                   registry,
		opts:                       opts,
		clock:                      clock,
		lookupMetadata:             lookupMetadata,
		lookupLogger:               lookupLogger,
		lookupDecoder:              lookupDecoder,
		listSinks:                  listSinks,
		markFlushFlag:              markFlushFlag,
		invalidLoggers:             invalidLoggers,
		removeLogger:               removeLogger,
		formatterCache:             patternfmt.NewCache(),
		formatters:                 make(map[uint32]formatterHandle),
		buffers:                    make(map[string]*transit.Buffer),
		backtraces:                 make(map[uint32]*backtrace.Storage),
		backtraceCapacityOverrides: make(map[uint32]int),
		stopped:                    make(chan struct{}),
		processID:                  processID,
		namedArgsCache:             make(map[string][]namedArgToken),
		lastReportedDropped:        make(map[string]uint64),
		lastReportedBlocked:        make(map[string]uint64),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Notify wakes the worker if it is currently idle-waiting, coalescing
// repeated calls into a single wakeup, the same coalesced-wakeup semantics
// as quill's notify().
func (w *Worker) Notify() {
	w.mu.Lock()
	w.wakeup = true
	w.cond.Signal()
	w.mu.Unlock()
}

// Run executes the main loop until Stop is called. It is meant to be run in
// its own goroutine.
func (w *Worker) Run() {
	defer close(w.stopped)

	for {
		processed := w.pass()

		w.mu.Lock()
		stopping := w.stopping
		w.mu.Unlock()
		if stopping {
			if !w.opts.WaitForQueuesToEmptyBeforeExit || !w.hasPendingWork() {
				w.finalDrain()
				return
			}
			continue
		}

		if processed {
			continue
		}

		// No cached events to process this pass: minimal workload, so this
		// is the point quill's main loop uses to run its own idle
		// housekeeping (failure counters, invalidated-context/logger
		// cleanup) before sleeping.
		w.emitFailureCounterReports()
		if !w.hasPendingWork() {
			w.cleanupInvalidatedContexts()
			w.pruneFailureCounterState()
			w.cleanupInvalidatedLoggers()
		}
		for _, s := range w.listSinks() {
			s.RunPeriodicTasks()
		}

		w.idleWait()
	}
}

// Stop requests the loop exit and blocks until it has, flushing every sink
// once on the way out.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopping = true
	w.cond.Signal()
	w.mu.Unlock()
	<-w.stopped
}

// idleWait blocks until Notify is called or SleepDuration elapses,
// realizing the mutex+condvar wakeup protocol with a timer goroutine since
// sync.Cond has no native timed wait.
func (w *Worker) idleWait() {
	if w.opts.EnableYieldWhenIdle {
		runtime.Gosched()
		return
	}

	fired := false
	timer := time.AfterFunc(w.opts.SleepDuration, func() {
		w.mu.Lock()
		fired = true
		w.cond.Signal()
		w.mu.Unlock()
	})

	w.mu.Lock()
	for !w.wakeup && !w.stopping && !fired {
		w.cond.Wait()
	}
	w.wakeup = false
	w.mu.Unlock()

	timer.Stop()
}

// hasPendingWork reports whether any registered producer still has unread
// bytes or any per-thread transit buffer still holds events.
func (w *Worker) hasPendingWork() bool {
	w.refreshActiveContexts()
	for _, ctx := range w.activeContexts {
		if !ctx.Queue.Empty() {
			return true
		}
	}
	w.buffersMu.Lock()
	defer w.buffersMu.Unlock()
	for _, buf := range w.buffers {
		if buf.Len() > 0 {
			return true
		}
	}
	return false
}

// finalDrain processes whatever is left when WaitForQueuesToEmptyBeforeExit
// is set (records still queued otherwise are not dispatched) and then
// flushes every sink exactly once, the same order quill's _exit() uses:
// drain, then flush.
func (w *Worker) finalDrain() {
	if w.opts.WaitForQueuesToEmptyBeforeExit {
		for w.hasPendingWork() {
			if !w.pass() {
				break
			}
		}
	}
	for _, s := range w.listSinks() {
		if err := s.Flush(); err != nil {
			w.report(fmt.Sprintf("%s corelog INFO: sink flush failed: %v", w.nowTag(), err))
		}
	}
	w.cleanupInvalidatedContexts()
	w.cleanupInvalidatedLoggers()
}

// pass runs one populate+process cycle and reports whether any record was
// processed. Below TransitEventsSoftLimit cached events, it processes
// exactly one event then returns, so populate and dispatch stay
// interleaved; at or above the soft limit, it drains every cached event in
// a tight loop before returning, favoring catching up over fairness. This
// mirrors quill's _main_loop: the same branch decides whether idle
// housekeeping (failure-counter reports, invalidated-context/logger
// cleanup) runs this pass, since that only happens once there is nothing
// left to process.
func (w *Worker) pass() bool {
	w.refreshActiveContexts()
	var now int64
	if w.opts.EnableStrictLogTimestampOrder {
		now = w.clock()
	}
	w.populateTransitEvents()

	count := w.cachedTransitEventsCount()
	if count == 0 {
		return false
	}

	if count < w.opts.TransitEventsSoftLimit {
		return w.processNextCachedTransitEvent(now)
	}

	processed := false
	for w.processNextCachedTransitEvent(now) {
		processed = true
	}
	return processed
}

// refreshActiveContexts rebuilds the activeContexts cache from the
// registry, but only when the registry reports a new producer registered
// since the last refresh, mirroring quill's "refresh active contexts cache
// only when new_context_flag is observed set".
func (w *Worker) refreshActiveContexts() {
	if w.activeContexts == nil || w.registry.NewContextFlag() {
		w.activeContexts = w.registry.Snapshot()
	}
}

// cleanupInvalidatedContexts sweeps invalidated, fully-drained producer
// contexts out of the registry, but only when the registry reports one is
// actually pending, mirroring quill's "cleanup_invalidated_contexts runs
// only when has_invalid is set". A context invalidated after this check
// simply sets the flag again, so the next idle pass still sweeps it.
func (w *Worker) cleanupInvalidatedContexts() {
	if w.registry.HasInvalid() {
		w.registry.CleanupInvalidated()
	}
}

// cachedTransitEventsCount returns the total number of decoded events
// currently buffered across every producer's transit buffer.
func (w *Worker) cachedTransitEventsCount() int {
	w.buffersMu.Lock()
	defer w.buffersMu.Unlock()
	total := 0
	for _, buf := range w.buffers {
		total += buf.Len()
	}
	return total
}

// populateTransitEvents decodes every available queued record for every
// registered producer into that producer's transit buffer, grounded
// directly on quill's _populate_transit_events_from_frontend_queues. Each
// producer's queue is only committed once per pass, after every record it
// had available has been read, amortizing the cross-goroutine
// cache-coherence cost of CommitRead across the whole batch instead of
// paying it per record.
func (w *Worker) populateTransitEvents() {
	for _, ctx := range w.activeContexts {
		buf := w.bufferFor(ctx)
		totalBytes := 0

		for {
			if buf.Len() >= w.opts.TransitEventsHardLimit {
				break
			}
			raw, ok := ctx.Queue.PrepareRead()
			if !ok {
				break
			}

			cursor := wire.NewCursor(raw)
			header, err := wire.DecodeHeader(cursor)
			if err != nil {
				w.report(fmt.Sprintf("%s corelog ERROR: decode header failed for thread %s: %v", w.nowTag(), ctx.ID, err))
				ctx.Queue.FinishRead(len(raw))
				totalBytes += len(raw)
				break
			}

			var store wire.ArgStore
			if decoder, ok := w.lookupDecoder(header.DecoderID); ok {
				if err := decoder.Decode(cursor, &store); err != nil {
					w.report(fmt.Sprintf("%s corelog ERROR: decode payload failed for thread %s: %v", w.nowTag(), ctx.ID, err))
				}
			}

			event, ok := buf.Reserve()
			if !ok {
				// Hard limit hit mid-record: leave the bytes unread and stop
				// for this producer this pass.
				break
			}
			event.Reset()
			event.TimestampNanos = int64(header.Timestamp)
			event.MetadataID = header.MetadataID
			event.LoggerID = header.LoggerID
			event.DecoderID = header.DecoderID
			event.ThreadID = ctx.ID
			event.Kind = header.Kind
			event.FlushFlagID = header.FlushFlagID
			if header.DynamicLevel != wire.DynamicLevelNone {
				event.IsDynamic = true
				event.DynamicLevel = int8(header.DynamicLevel)
			}
			for _, na := range store.Named {
				event.NamedArgs = append(event.NamedArgs, transit.NamedArg{Name: na.Name, Value: na.Value})
			}
			if len(store.Positional) > 0 {
				event.FormattedMessage = append(event.FormattedMessage[:0], []byte(joinPositional(store.Positional))...)
			}

			ctx.Queue.FinishRead(cursor.Consumed())
			totalBytes += cursor.Consumed()
		}

		if totalBytes > 0 {
			ctx.Queue.CommitRead()
		}
	}
}

// processNextCachedTransitEvent finds, across every producer's buffer, the
// event with the earliest timestamp and dispatches it, mirroring quill's
// merge-by-timestamp selection across per-thread caches. now is the clock
// reading pass took before reading any queue this pass; it is only
// consulted under EnableStrictLogTimestampOrder.
func (w *Worker) processNextCachedTransitEvent(now int64) bool {
	w.buffersMu.Lock()
	var (
		oldestBuf *transit.Buffer
		oldestTs  int64
	)
	first := true
	for _, buf := range w.buffers {
		e := buf.Front()
		if e == nil {
			continue
		}
		if first || e.TimestampNanos < oldestTs {
			oldestBuf, oldestTs = buf, e.TimestampNanos
			first = false
		}
	}
	w.buffersMu.Unlock()

	if oldestBuf == nil {
		return false
	}

	event := oldestBuf.Front()

	if w.opts.EnableStrictLogTimestampOrder {
		if event.TimestampNanos/1000 >= now/1000 {
			// Too recent relative to the snapshotted "now": wait for a later
			// pass so ordering across producers stays correct, exactly the
			// guard quill's BackendWorker applies before accepting an event.
			return false
		}
	}

	oldestBuf.Pop()
	w.dispatch(event)
	return true
}

// dispatch routes one decoded event by its kind: a normal Log record is
// formatted and sent to backtrace storage or every filtering sink; a
// control record (Flush, InitBacktrace, FlushBacktrace) drives the
// corresponding backend-side side effect instead.
func (w *Worker) dispatch(event *transit.Event) {
	switch event.Kind {
	case wire.KindFlush:
		w.dispatchFlush(event)
		return
	case wire.KindInitBacktrace:
		w.dispatchInitBacktrace(event)
		return
	case wire.KindFlushBacktrace:
		w.dispatchFlushBacktrace(event)
		return
	}

	meta, ok := w.lookupMetadata(event.MetadataID)
	if !ok {
		w.report(fmt.Sprintf("%s corelog ERROR: unknown metadata id %d", w.nowTag(), event.MetadataID))
		return
	}
	logger, ok := w.lookupLogger(event.LoggerID)
	if !ok {
		w.report(fmt.Sprintf("%s corelog ERROR: unknown logger id %d", w.nowTag(), event.LoggerID))
		return
	}

	level := meta.Level
	if event.IsDynamic {
		level = Level{Rank: event.DynamicLevel, Tag: "DYNAMIC"}
	}

	formatter := w.formatterFor(logger)

	rendered := formatter.Render(patternfmt.Record{
		TimestampNanos: event.TimestampNanos,
		Level:          level.Tag,
		LoggerName:     logger.Name,
		ThreadID:       event.ThreadID,
		File:           meta.File,
		Line:           meta.Line,
		Function:       meta.Function,
		Message:        w.renderMessage(meta, event),
	})

	capacity := w.effectiveBacktraceCapacity(logger)
	if capacity > 0 && level == levelBacktrace {
		store := w.backtraceStorageFor(logger.ID, capacity)
		store.Insert(backtrace.Record{TimestampNanos: event.TimestampNanos, Level: level.Tag, Rank: level.Rank, Rendered: rendered})
		w.lastDispatchedTsNanos = event.TimestampNanos
		return
	}

	w.writeToSinks(meta, logger, level, event, rendered)
	w.flushBacktraceIfTriggered(logger, level, meta, event)
	w.lastDispatchedTsNanos = event.TimestampNanos
}

// dispatchFlush flushes every active sink, then marks this record's flush
// flag done, implementing the Flush event kind: "flush all active sinks,
// then store true into the producer's flush flag."
func (w *Worker) dispatchFlush(event *transit.Event) {
	for _, s := range w.listSinks() {
		if err := s.Flush(); err != nil {
			w.report(fmt.Sprintf("%s corelog INFO: sink flush failed: %v", w.nowTag(), err))
		}
	}
	if event.FlushFlagID != 0 && w.markFlushFlag != nil {
		w.markFlushFlag(event.FlushFlagID)
	}
	w.lastDispatchedTsNanos = event.TimestampNanos
}

// dispatchInitBacktrace parses the capacity carried in event's payload and
// (re)creates the logger's backtrace ring at that capacity, implementing
// "parse capacity from the formatted payload, set_capacity(logger_name, n)".
func (w *Worker) dispatchInitBacktrace(event *transit.Event) {
	logger, ok := w.lookupLogger(event.LoggerID)
	if !ok {
		w.report(fmt.Sprintf("%s corelog ERROR: unknown logger id %d", w.nowTag(), event.LoggerID))
		return
	}
	capacity, err := strconv.Atoi(string(event.FormattedMessage))
	if err != nil {
		w.report(fmt.Sprintf("%s corelog ERROR: invalid InitBacktrace capacity for logger %q: %v", w.nowTag(), logger.Name, err))
		return
	}
	store, err := backtrace.New(capacity)
	if err != nil {
		w.report(fmt.Sprintf("%s corelog ERROR: invalid InitBacktrace capacity %d for logger %q: %v", w.nowTag(), capacity, logger.Name, err))
		return
	}
	w.backtraceMu.Lock()
	w.backtraces[logger.ID] = store
	w.backtraceCapacityOverrides[logger.ID] = capacity
	w.backtraceMu.Unlock()
	w.lastDispatchedTsNanos = event.TimestampNanos
}

// dispatchFlushBacktrace drains and emits the logger's backtrace ring
// unconditionally, independent of the level-comparison trigger
// flushBacktraceIfTriggered uses during normal Log dispatch.
func (w *Worker) dispatchFlushBacktrace(event *transit.Event) {
	logger, ok := w.lookupLogger(event.LoggerID)
	if !ok {
		w.report(fmt.Sprintf("%s corelog ERROR: unknown logger id %d", w.nowTag(), event.LoggerID))
		return
	}
	meta, _ := w.lookupMetadata(event.MetadataID)
	w.drainBacktraceRing(meta, logger, event.ThreadID)
	w.lastDispatchedTsNanos = event.TimestampNanos
}

// flushBacktraceIfTriggered emits any records held in a logger's backtrace
// ring once a record at or above its flush level arrives.
func (w *Worker) flushBacktraceIfTriggered(logger LoggerInfo, level Level, meta RecordMetadata, event *transit.Event) {
	if w.effectiveBacktraceCapacity(logger) == 0 || level.Rank < logger.BacktraceFlushLevel.Rank {
		return
	}
	w.drainBacktraceRing(meta, logger, event.ThreadID)
}

// drainBacktraceRing emits every record currently held in logger's
// backtrace ring to every sink whose filters accept it, then empties the
// ring. Each drained record keeps the severity it was originally logged
// at (backtrace.Record.Rank/Level) rather than borrowing the triggering
// record's level.
func (w *Worker) drainBacktraceRing(meta RecordMetadata, logger LoggerInfo, threadID string) {
	capacity := w.effectiveBacktraceCapacity(logger)
	if capacity == 0 {
		return
	}
	store := w.backtraceStorageFor(logger.ID, capacity)
	for _, r := range store.Drain() {
		level := Level{Rank: r.Rank, Tag: r.Level}
		namedArgs := []NamedArg{}
		for _, sink := range w.listSinks() {
			if !sink.ApplyFilters(meta, r.TimestampNanos, threadID, "", logger.Name, level, r.Rendered) {
				continue
			}
			if err := sink.WriteMessage(meta, r.TimestampNanos, threadID, "", logger.Name, level, namedArgs, r.Rendered); err != nil {
				w.report(fmt.Sprintf("%s corelog ERROR: sink write failed: %v", w.nowTag(), err))
			}
		}
	}
}

// writeToSinks dispatches one rendered record to every sink whose filters
// accept it.
func (w *Worker) writeToSinks(meta RecordMetadata, logger LoggerInfo, level Level, event *transit.Event, rendered string) {
	namedArgs := make([]NamedArg, 0, len(event.NamedArgs))
	for _, na := range event.NamedArgs {
		namedArgs = append(namedArgs, NamedArg{Name: na.Name, Value: na.Value})
	}

	for _, sink := range w.listSinks() {
		if !sink.ApplyFilters(meta, event.TimestampNanos, event.ThreadID, "", logger.Name, level, rendered) {
			continue
		}
		if err := sink.WriteMessage(meta, event.TimestampNanos, event.ThreadID, "", logger.Name, level, namedArgs, rendered); err != nil {
			w.report(fmt.Sprintf("%s corelog ERROR: sink write failed: %v", w.nowTag(), err))
		}
	}
}

func (w *Worker) bufferFor(ctx *threadctx.Context) *transit.Buffer {
	w.buffersMu.Lock()
	defer w.buffersMu.Unlock()
	buf, ok := w.buffers[ctx.ID]
	if !ok {
		buf = transit.NewBuffer(w.opts.TransitEventBufferInitialCapacity, w.opts.TransitEventsHardLimit)
		w.buffers[ctx.ID] = buf
	}
	return buf
}

// renderMessage builds the final message text for event: when its call-site
// pattern carries named placeholders and the decoded record has named
// arguments, it substitutes them into the cached, pre-parsed template;
// otherwise it falls back to the positionally-joined text already decoded
// in populateTransitEvents.
func (w *Worker) renderMessage(meta RecordMetadata, event *transit.Event) string {
	if meta.Pattern == "" || len(event.NamedArgs) == 0 {
		return string(event.FormattedMessage)
	}

	values := make(map[string]string, len(event.NamedArgs))
	for _, na := range event.NamedArgs {
		values[na.Name] = na.Value
	}
	return renderNamedArgsTokens(w.namedArgsTokens(meta.Pattern), values)
}

// namedArgsTokens returns the parsed placeholder tokens for pattern,
// compiling and caching them on first use so a call site's template is only
// bracket-scanned once no matter how many records it produces.
func (w *Worker) namedArgsTokens(pattern string) []namedArgToken {
	w.namedArgsMu.Lock()
	defer w.namedArgsMu.Unlock()
	tokens, ok := w.namedArgsCache[pattern]
	if !ok {
		tokens = parseNamedArgsTemplate(pattern)
		w.namedArgsCache[pattern] = tokens
	}
	return tokens
}

// effectiveBacktraceCapacity returns the capacity that should gate whether
// logger's records are buffered into its backtrace ring: a runtime
// KindInitBacktrace override if one has been set, falling back to the
// capacity configured at logger construction time otherwise.
func (w *Worker) effectiveBacktraceCapacity(logger LoggerInfo) int {
	w.backtraceMu.Lock()
	defer w.backtraceMu.Unlock()
	if capacity, ok := w.backtraceCapacityOverrides[logger.ID]; ok {
		return capacity
	}
	return logger.BacktraceCapacity
}

func (w *Worker) backtraceStorageFor(loggerID uint32, capacity int) *backtrace.Storage {
	w.backtraceMu.Lock()
	defer w.backtraceMu.Unlock()
	store, ok := w.backtraces[loggerID]
	if !ok {
		store, _ = backtrace.New(capacity)
		w.backtraces[loggerID] = store
	}
	return store
}

// formatterFor returns the cached pattern Formatter for logger, acquiring
// it from the shared formatterCache only the first time this loggerID is
// seen, or again if its pattern/time pattern/timezone has since changed.
// The formatter is held for as long as the logger resolves instead of
// being acquired and released on every single dispatch, so
// reconcileFormatterCache — not this method — is what releases it.
func (w *Worker) formatterFor(logger LoggerInfo) *patternfmt.Formatter {
	w.formattersMu.Lock()
	defer w.formattersMu.Unlock()

	h, ok := w.formatters[logger.ID]
	if ok && h.pattern == logger.FormatPattern && h.timePattern == logger.TimePattern && sameTimezone(h.timezone, logger.Timezone) {
		return h.formatter
	}
	if ok {
		w.formatterCache.Release(h.pattern, h.timePattern, h.timezone)
	}
	formatter := w.formatterCache.Acquire(logger.FormatPattern, logger.TimePattern, logger.Timezone)
	w.formatters[logger.ID] = formatterHandle{
		pattern:     logger.FormatPattern,
		timePattern: logger.TimePattern,
		timezone:    logger.Timezone,
		formatter:   formatter,
	}
	return formatter
}

// reconcileFormatterCache releases the cached formatter for any loggerID
// that no longer resolves via lookupLogger, so removing a logger also
// releases its pattern formatter instead of pinning it in the cache
// forever.
func (w *Worker) reconcileFormatterCache() {
	w.formattersMu.Lock()
	defer w.formattersMu.Unlock()
	for id, h := range w.formatters {
		if _, ok := w.lookupLogger(id); ok {
			continue
		}
		w.formatterCache.Release(h.pattern, h.timePattern, h.timezone)
		delete(w.formatters, id)
	}
}

func sameTimezone(a, b *time.Location) bool {
	an, bn := "", ""
	if a != nil {
		an = a.String()
	}
	if b != nil {
		bn = b.String()
	}
	return an == bn
}

// emitFailureCounterReports reports, once per idle pass, how many
// additional records each producer has dropped or been blocked on since
// the last report, matching the diagnostic format an operator reads off
// the console (e.g. "12:30:05 INFO: Dropped 7 log messages from thread
// 4321"). Only the delta since the last report is emitted, so a producer
// that keeps dropping records isn't reported every pass with the same
// cumulative count.
func (w *Worker) emitFailureCounterReports() {
	w.failuresMu.Lock()
	defer w.failuresMu.Unlock()

	for _, ctx := range w.registry.Snapshot() {
		if dropped := ctx.DroppedCount(); dropped > w.lastReportedDropped[ctx.ID] {
			delta := dropped - w.lastReportedDropped[ctx.ID]
			w.lastReportedDropped[ctx.ID] = dropped
			w.report(fmt.Sprintf("%s INFO: Dropped %d log messages from thread %s", w.nowTag(), delta, ctx.ID))
		}
		if blocked := ctx.BlockedCount(); blocked > w.lastReportedBlocked[ctx.ID] {
			delta := blocked - w.lastReportedBlocked[ctx.ID]
			w.lastReportedBlocked[ctx.ID] = blocked
			w.report(fmt.Sprintf("%s INFO: Blocked %d times waiting for queue room from thread %s", w.nowTag(), delta, ctx.ID))
		}
	}
}

// pruneFailureCounterState drops bookkeeping for producer IDs no longer
// registered, so a reused ID after cleanup starts its delta tracking fresh
// instead of inheriting a stale high-water mark from a prior producer that
// happened to reuse the same ID.
func (w *Worker) pruneFailureCounterState() {
	w.failuresMu.Lock()
	defer w.failuresMu.Unlock()

	live := make(map[string]bool)
	for _, ctx := range w.registry.Snapshot() {
		live[ctx.ID] = true
	}
	for id := range w.lastReportedDropped {
		if !live[id] {
			delete(w.lastReportedDropped, id)
		}
	}
	for id := range w.lastReportedBlocked {
		if !live[id] {
			delete(w.lastReportedBlocked, id)
		}
	}
}

// cleanupInvalidatedLoggers removes every logger marked invalid by user
// request, releasing its cached pattern formatter and erasing its
// backtrace ring. Callers only reach this once hasPendingWork reports
// false, so every producer queue and transit buffer is already drained and
// no in-flight event can still reference the logger being removed —
// mirroring quill's own gating of _cleanup_invalidated_loggers on
// _check_frontend_queues_and_cached_transit_events_empty.
func (w *Worker) cleanupInvalidatedLoggers() {
	if w.invalidLoggers == nil || w.removeLogger == nil {
		return
	}
	ids := w.invalidLoggers()
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		w.removeLogger(id)
		w.backtraceMu.Lock()
		delete(w.backtraces, id)
		delete(w.backtraceCapacityOverrides, id)
		w.backtraceMu.Unlock()
	}
	w.reconcileFormatterCache()
}

func (w *Worker) report(msg string) {
	if w.opts.Notify != nil {
		w.opts.Notify(msg)
	}
}

func (w *Worker) nowTag() string {
	return time.Unix(0, w.clock()).Format("15:04:05")
}

func joinPositional(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
