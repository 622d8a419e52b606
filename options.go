package corelog

import "time"

// BackendOptions configures the single background worker goroutine owned by
// a Runtime. The zero value is valid; resolve() fills in defaults the same
// way newBackendConfig used to seed a backendConfig.
type BackendOptions struct {
	// SleepDuration is how long the backend waits on its wakeup condition
	// before re-checking queues when idle.
	SleepDuration time.Duration
	// EnableYieldWhenIdle makes the backend call runtime.Gosched() instead of
	// sleeping the full SleepDuration when every queue was empty on the last
	// pass, trading CPU for latency.
	EnableYieldWhenIdle bool
	// TransitEventsSoftLimit is the number of buffered transit events after
	// which the backend prioritizes draining over further ingestion.
	TransitEventsSoftLimit int
	// TransitEventsHardLimit is the absolute cap on buffered transit events;
	// reaching it forces a drain pass before any further queue reads.
	TransitEventsHardLimit int
	// TransitEventBufferInitialCapacity is the starting capacity of each
	// per-producer TransitEventBuffer.
	TransitEventBufferInitialCapacity int
	// RdtscResyncInterval is how often the TSC clock resynchronizes against
	// the system clock. Ignored unless the runtime's ClockSource is ClockTSC.
	RdtscResyncInterval time.Duration
	// EnableStrictLogTimestampOrder holds back any record whose timestamp,
	// truncated to microseconds, is not earlier than the clock reading the
	// backend takes at the start of each pass; such a record stays buffered
	// and is dispatched in a later pass. No record is dropped or reported.
	EnableStrictLogTimestampOrder bool
	// WaitForQueuesToEmptyBeforeExit makes Stop drain every producer queue
	// before returning instead of exiting immediately.
	WaitForQueuesToEmptyBeforeExit bool
	// BackendCPUAffinity pins the backend goroutine's OS thread to this CPU
	// set, best-effort. Empty means no pinning is attempted.
	BackendCPUAffinity []int
	// ThreadName is applied to the backend's OS thread where the platform
	// supports it, best-effort.
	ThreadName string
	// ErrorNotifier receives diagnostic messages from the backend loop.
	ErrorNotifier ErrorNotifier
}

const (
	defaultSleepDuration                     = 500 * time.Microsecond
	defaultTransitEventsSoftLimit             = 500
	defaultTransitEventsHardLimit             = 10000
	defaultTransitEventBufferInitialCapacity  = 128
	defaultRdtscResyncInterval                = 500 * time.Millisecond
	defaultThreadName                         = "corelog-backend"
)

// resolve returns a copy of o with every zero-valued field replaced by its
// default, mirroring newBackendConfig's defaulting of queueSize/formatMap.
func (o BackendOptions) resolve() BackendOptions {
	if o.SleepDuration <= 0 {
		o.SleepDuration = defaultSleepDuration
	}
	if o.TransitEventsSoftLimit <= 0 {
		o.TransitEventsSoftLimit = defaultTransitEventsSoftLimit
	}
	if o.TransitEventsHardLimit <= 0 {
		o.TransitEventsHardLimit = defaultTransitEventsHardLimit
	}
	if o.TransitEventsHardLimit < o.TransitEventsSoftLimit {
		o.TransitEventsHardLimit = o.TransitEventsSoftLimit
	}
	if o.TransitEventBufferInitialCapacity <= 0 {
		o.TransitEventBufferInitialCapacity = defaultTransitEventBufferInitialCapacity
	}
	if o.RdtscResyncInterval <= 0 {
		o.RdtscResyncInterval = defaultRdtscResyncInterval
	}
	if o.ThreadName == "" {
		o.ThreadName = defaultThreadName
	}
	return o
}

// Options configures a Runtime at construction time.
type Options struct {
	// Backend is the background worker configuration.
	Backend BackendOptions
	// Clock selects the timestamp source records are stamped with.
	Clock ClockSource
}
