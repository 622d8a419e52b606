//go:build !linux

package backend

// SetAffinity is a no-op on platforms without a best-effort CPU affinity
// mechanism wired in. It always reports success: the caller treats affinity
// as a latency optimization, never a correctness requirement.
func SetAffinity(cpus []int) error {
	return nil
}

// SetThreadName is a no-op on platforms without a thread-naming syscall
// wired in.
func SetThreadName(name string) error {
	return nil
}
