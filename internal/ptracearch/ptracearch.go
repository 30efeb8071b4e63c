// Package ptracearch reads and writes a stopped tracee's general
// purpose register set. Every architecture uses the same
// PTRACE_GETREGSET/PTRACE_SETREGSET request with register-set
// identifier 1 (NT_PRSTATUS); only the layout of Regs and the location
// of the program counter within it differ per GOARCH, in
// ptracearch_<arch>.go.
package ptracearch

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const ntPRStatus = 1

// golang.org/x/sys/unix only exports arch-suffixed PTRACE_GETREGSET/
// SETREGSET wrappers (PtraceGetRegSetArm64 and friends), not a generic
// one that works across GOARCH, so these two call ptrace(2) directly.
func getRegSet[T any](tid int, regs *T) error {
	iov := unix.Iovec{Base: (*byte)(unsafe.Pointer(regs))}
	iov.SetLen(int(unsafe.Sizeof(*regs)))
	_, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, unix.PTRACE_GETREGSET, uintptr(tid), ntPRStatus, uintptr(unsafe.Pointer(&iov)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func setRegSet[T any](tid int, regs *T) error {
	iov := unix.Iovec{Base: (*byte)(unsafe.Pointer(regs))}
	iov.SetLen(int(unsafe.Sizeof(*regs)))
	_, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, unix.PTRACE_SETREGSET, uintptr(tid), ntPRStatus, uintptr(unsafe.Pointer(&iov)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
