package corelog

// Level wraps the rank and display tag of a log level, the same shape as
// galog's Level, extended with the Backtrace and Dynamic pseudo-levels this
// core requires.
type Level struct {
	rank int8
	tag  string
}

// String returns the level's display tag.
func (l Level) String() string {
	return l.tag
}

// Enabled reports whether the level is a real, comparable severity (as
// opposed to None, which disables logging, or Dynamic, whose real severity
// is only known at decode time).
func (l Level) Enabled() bool {
	return l != LevelNone && l != LevelDynamic
}

var (
	// LevelBacktrace marks a record held back in a logger's backtrace ring
	// rather than dispatched immediately.
	LevelBacktrace = Level{0, "BACKTRACE"}
	// LevelTraceL3 is the most verbose trace level.
	LevelTraceL3 = Level{1, "TRACE_L3"}
	// LevelTraceL2 is a mid-verbosity trace level.
	LevelTraceL2 = Level{2, "TRACE_L2"}
	// LevelTraceL1 is the least verbose trace level.
	LevelTraceL1 = Level{3, "TRACE_L1"}
	// LevelDebug is the debug level.
	LevelDebug = Level{4, "DEBUG"}
	// LevelInfo is the informational level.
	LevelInfo = Level{5, "INFO"}
	// LevelNotice is the notice level.
	LevelNotice = Level{6, "NOTICE"}
	// LevelWarning is the warning level.
	LevelWarning = Level{7, "WARNING"}
	// LevelError is the error level.
	LevelError = Level{8, "ERROR"}
	// LevelCritical is the most severe level.
	LevelCritical = Level{9, "CRITICAL"}
	// LevelNone disables logging entirely.
	LevelNone = Level{-1, "NONE"}
	// LevelDynamic marks a record whose real level travels with the wire
	// payload (see [pkg/wire].DynamicLevel) instead of with the metadata
	// descriptor.
	LevelDynamic = Level{100, "DYNAMIC"}
)

// Rank returns the numeric severity rank used for >= / <= comparisons, e.g.
// against a logger's backtrace flush level.
func (l Level) Rank() int8 {
	return l.rank
}

// GreaterOrEqual reports whether l is at least as severe as other.
func (l Level) GreaterOrEqual(other Level) bool {
	return l.rank >= other.rank
}
