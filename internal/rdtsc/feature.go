package rdtsc

import "golang.org/x/sys/cpu"

// InvariantTSCAvailable reports whether the current CPU advertises an
// invariant TSC, the precondition an assembly-backed TSCReader would check
// before trusting raw RDTSC ticks as a stable monotonic source across
// frequency-scaling and sleep states. The default, portable reader in this
// package does not need this check; it exists so callers wiring in their
// own amd64 assembly reader have a ready feature gate.
func InvariantTSCAvailable() bool {
	return cpu.X86.HasRDTSCP
}
