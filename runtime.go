package corelog

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/swiftlog/corelog/internal/backend"
	"github.com/swiftlog/corelog/internal/rdtsc"
	"github.com/swiftlog/corelog/internal/threadctx"
	"github.com/swiftlog/corelog/pkg/wire"
)

// Runtime owns every component of one independent logging pipeline: its
// producer registry, logger and sink registries, and its single background
// worker. Unlike galog's process-wide defaultLogger singleton, a process
// may run any number of Runtimes concurrently (handy for tests, or for
// isolating subsystems with different sink configurations).
type Runtime struct {
	loggers    *loggerRegistry
	sinks      *sinkRegistry
	threads    *threadctx.Registry
	flushFlags *flushFlagTable

	opts Options

	mu      sync.Mutex
	worker  *backend.Worker
	running bool

	tscClock *rdtsc.Clock

	defaultDecoderOnce    sync.Once
	defaultDecoderIDValue uint32

	processID int
}

// NewRuntime creates a Runtime with no sinks and no running backend; call
// Start to launch the background worker.
func NewRuntime() *Runtime {
	return &Runtime{
		loggers:    newLoggerRegistry(),
		sinks:      newSinkRegistry(),
		threads:    threadctx.NewRegistry(),
		flushFlags: newFlushFlagTable(),
		processID:  os.Getpid(),
	}
}

// RegisterSink registers sink under id, replacing any sink previously
// registered under the same id. Safe to call before or after Start.
func (rt *Runtime) RegisterSink(id string, sink Sink) error {
	return rt.sinks.register(id, sink)
}

// UnregisterSink removes the sink registered under id, if any.
func (rt *Runtime) UnregisterSink(id string) {
	rt.sinks.unregister(id)
}

// RegisterDecoder registers d and returns the DecoderID to stamp into
// records whose payload d can decode.
func (rt *Runtime) RegisterDecoder(d Decoder) uint32 {
	return rt.sinks.registerDecoder(d)
}

// NewLogger creates and registers a Logger named name, applying opts.
// Calling NewLogger twice with the same name returns descriptors sharing
// the same LoggerID, so reconfiguring a logger by name updates every
// Producer's in-flight records consistently.
func (rt *Runtime) NewLogger(name string, opts ...LoggerOption) *Logger {
	desc := &LoggerDescriptor{
		Name:          name,
		FormatPattern: "%(time) [%(level)] %(logger_name): %(message)",
		TimePattern:   "2006-01-02T15:04:05.000000Z07:00",
		Timezone:      time.Local,
	}
	for _, opt := range opts {
		opt(desc)
	}
	rt.loggers.registerLogger(desc)
	return &Logger{rt: rt, desc: desc}
}

// Start launches the background worker goroutine with the given options.
// Start is idempotent while already running.
func (rt *Runtime) Start(opts Options) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.running {
		return nil
	}

	rt.opts = Options{Backend: opts.Backend.resolve(), Clock: opts.Clock}

	if rt.opts.Clock == ClockTSC {
		rt.tscClock = rdtsc.New(nil, rt.opts.Backend.RdtscResyncInterval)
	}

	backendOpts := backend.Options{
		SleepDuration:                     rt.opts.Backend.SleepDuration,
		EnableYieldWhenIdle:               rt.opts.Backend.EnableYieldWhenIdle,
		TransitEventsSoftLimit:            rt.opts.Backend.TransitEventsSoftLimit,
		TransitEventsHardLimit:            rt.opts.Backend.TransitEventsHardLimit,
		TransitEventBufferInitialCapacity: rt.opts.Backend.TransitEventBufferInitialCapacity,
		EnableStrictLogTimestampOrder:     rt.opts.Backend.EnableStrictLogTimestampOrder,
		WaitForQueuesToEmptyBeforeExit:    rt.opts.Backend.WaitForQueuesToEmptyBeforeExit,
		ThreadName:                        rt.opts.Backend.ThreadName,
		Notify:                            rt.opts.Backend.ErrorNotifier.notify,
	}

	rt.worker = backend.New(
		rt.threads,
		backendOpts,
		rt.now,
		rt.lookupMetadataForBackend,
		rt.lookupLoggerForBackend,
		rt.lookupDecoderForBackend,
		rt.listSinksForBackend,
		rt.markFlushFlagForBackend,
		rt.invalidLoggerIDsForBackend,
		rt.removeLoggerForBackend,
		rt.processID,
	)

	w := rt.worker
	affinity := rt.opts.Backend.BackendCPUAffinity
	threadName := rt.opts.Backend.ThreadName
	notifier := rt.opts.Backend.ErrorNotifier
	go func() {
		// Affinity and thread name apply to the calling OS thread, so the
		// worker goroutine locks itself to one and applies them there.
		runtime.LockOSThread()
		if len(affinity) > 0 {
			if err := backend.SetAffinity(affinity); err != nil {
				notifier.notify("corelog: failed to set backend CPU affinity: " + err.Error())
			}
		}
		if err := backend.SetThreadName(threadName); err != nil {
			notifier.notify("corelog: failed to set backend thread name: " + err.Error())
		}
		w.Run()
	}()
	rt.running = true
	return nil
}

// Stop requests the background worker exit, flushing every sink once on the
// way out, and blocks until it has.
func (rt *Runtime) Stop() {
	rt.mu.Lock()
	w := rt.worker
	rt.running = false
	rt.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

// IsRunning reports whether the background worker is currently active.
func (rt *Runtime) IsRunning() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.running
}

// Notify wakes the background worker immediately instead of waiting for its
// next idle-timeout pass.
func (rt *Runtime) Notify() {
	rt.notifyBackend()
}

func (rt *Runtime) notifyBackend() {
	rt.mu.Lock()
	w := rt.worker
	rt.mu.Unlock()
	if w != nil {
		w.Notify()
	}
}

// TimeSinceEpoch returns the Runtime's current notion of time in
// nanoseconds since the Unix epoch, honoring the configured ClockSource.
func (rt *Runtime) TimeSinceEpoch() int64 {
	return rt.now()
}

// BackendThreadID returns a human-readable identifier for the background
// worker's OS thread, for diagnostics; Go gives user code no portable way
// to read back a real OS thread id, so this reports the configured thread
// name instead.
func (rt *Runtime) BackendThreadID() string {
	if rt.opts.Backend.ThreadName != "" {
		return rt.opts.Backend.ThreadName
	}
	return defaultThreadName
}

func (rt *Runtime) now() int64 {
	switch rt.opts.Clock {
	case ClockTSC:
		if rt.tscClock != nil {
			return rt.tscClock.NowNanos()
		}
	case ClockUser:
		// No caller-supplied timestamp path exists: ClockUser records are
		// stamped from the system clock like ClockSystem ones.
	}
	return time.Now().UnixNano()
}

func (rt *Runtime) lookupMetadataForBackend(id uint32) (backend.RecordMetadata, bool) {
	m, ok := rt.loggers.lookupMetadata(id)
	if !ok {
		return backend.RecordMetadata{}, false
	}
	return backend.RecordMetadata{
		File:     m.File,
		Line:     m.Line,
		Function: m.Function,
		Pattern:  m.Pattern,
		Level:    backend.Level{Rank: m.Level.Rank(), Tag: m.Level.String()},
	}, true
}

func (rt *Runtime) lookupLoggerForBackend(id uint32) (backend.LoggerInfo, bool) {
	d, ok := rt.loggers.lookupLogger(id)
	if !ok {
		return backend.LoggerInfo{}, false
	}
	return backend.LoggerInfo{
		ID:                  d.ID,
		Name:                d.Name,
		FormatPattern:       d.FormatPattern,
		TimePattern:         d.TimePattern,
		Timezone:            d.Timezone,
		BacktraceFlushLevel: backend.Level{Rank: d.BacktraceFlushLevel.Rank(), Tag: d.BacktraceFlushLevel.String()},
		BacktraceCapacity:   d.BacktraceCapacity,
	}, true
}

func (rt *Runtime) lookupDecoderForBackend(id uint32) (backend.Decoder, bool) {
	d, ok := rt.sinks.lookupDecoder(id)
	if !ok {
		return nil, false
	}
	return decoderAdapter{d}, true
}

// registerFlushFlag allocates a new FlushFlag and its wire ID for a
// pending Logger.Flush call.
func (rt *Runtime) registerFlushFlag() (*FlushFlag, uint32) {
	return rt.flushFlags.register()
}

// discardFlushFlag removes a flag that Logger.Flush allocated but failed
// to enqueue.
func (rt *Runtime) discardFlushFlag(id uint32) {
	rt.flushFlags.discard(id)
}

// markFlushFlagForBackend is the callback the backend worker invokes once
// it has flushed every sink for the Flush record carrying this flag ID.
func (rt *Runtime) markFlushFlagForBackend(id uint32) {
	rt.flushFlags.mark(id)
}

// invalidLoggerIDsForBackend returns every logger currently marked invalid
// by Logger.Close, for the backend's cleanup sweep.
func (rt *Runtime) invalidLoggerIDsForBackend() []uint32 {
	return rt.loggers.invalidatedLoggerIDs()
}

// removeLoggerForBackend permanently removes a logger the backend's
// cleanup sweep has determined is both invalidated and unreferenced.
func (rt *Runtime) removeLoggerForBackend(id uint32) {
	rt.loggers.removeLogger(id)
}

func (rt *Runtime) listSinksForBackend() []backend.Sink {
	sinks := rt.sinks.snapshot()
	out := make([]backend.Sink, 0, len(sinks))
	for _, s := range sinks {
		out = append(out, sinkAdapter{s})
	}
	return out
}

// decoderAdapter satisfies backend.Decoder by delegating to a root Decoder;
// the two interfaces are structurally identical, but an explicit adapter
// keeps the two packages' type identities distinct.
type decoderAdapter struct{ d Decoder }

func (a decoderAdapter) Decode(cursor *wire.Cursor, store *wire.ArgStore) error {
	return a.d.Decode(cursor, store)
}

// sinkAdapter satisfies backend.Sink by delegating to a root Sink,
// translating between the two packages' dependency-free Level types.
type sinkAdapter struct{ s Sink }

func (a sinkAdapter) ApplyFilters(meta backend.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level backend.Level, rendered string) bool {
	return a.s.ApplyFilters(metaFromBackend(meta), tsNanos, threadID, threadName, loggerName, levelFromBackend(level), rendered)
}

func (a sinkAdapter) WriteMessage(meta backend.RecordMetadata, tsNanos int64, threadID, threadName, loggerName string, level backend.Level, namedArgs []backend.NamedArg, rendered string) error {
	args := make([]NamedArg, 0, len(namedArgs))
	for _, na := range namedArgs {
		args = append(args, NamedArg{Name: na.Name, Value: na.Value})
	}
	return a.s.WriteMessage(metaFromBackend(meta), tsNanos, threadID, threadName, loggerName, levelFromBackend(level), args, rendered)
}

func (a sinkAdapter) Flush() error {
	return a.s.Flush()
}

func (a sinkAdapter) RunPeriodicTasks() {
	a.s.RunPeriodicTasks()
}

func metaFromBackend(m backend.RecordMetadata) RecordMetadata {
	return RecordMetadata{
		File:     m.File,
		Line:     m.Line,
		Function: m.Function,
		Pattern:  m.Pattern,
		Level:    levelFromBackend(m.Level),
	}
}

func levelFromBackend(l backend.Level) Level {
	return Level{rank: l.Rank, tag: l.Tag}
}
