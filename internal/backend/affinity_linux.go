//go:build linux

package backend

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// SetAffinity pins the calling OS thread to cpus, best-effort. The caller
// must have already called runtime.LockOSThread. Any failure is returned
// for the caller to route through an ErrorNotifier; it is never fatal, the
// same non-fatal treatment quill gives a failed pthread_setaffinity_np call.
func SetAffinity(cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	return unix.SchedSetaffinity(0, &set)
}

// SetThreadName applies name to the calling OS thread via prctl(PR_SET_NAME),
// best-effort; the kernel truncates names longer than 15 bytes.
func SetThreadName(name string) error {
	if name == "" {
		return nil
	}
	b := append([]byte(name), 0)
	_, _, errno := unix.Syscall(unix.SYS_PRCTL, unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0)
	if errno != 0 {
		return errno
	}
	return nil
}
