package ptracearch

import "golang.org/x/sys/unix"

// Regs is the x86-64 NT_PRSTATUS layout. It reuses the layout
// golang.org/x/sys/unix already defines, but goes through the generic
// PTRACE_GETREGSET/SETREGSET path rather than unix's named
// PtraceGetRegsAmd64/PtraceSetRegsAmd64 helpers, so the same call
// sites in the driver work unmodified on every architecture this
// launcher supports.
type Regs = unix.PtraceRegsAmd64

func GetRegs(tid int, regs *Regs) error {
	return getRegSet(tid, regs)
}

func SetRegs(tid int, regs *Regs) error {
	return setRegSet(tid, regs)
}

func PC(regs *Regs) uint64 {
	return regs.Rip
}

func SetPC(regs *Regs, pc uint64) {
	regs.Rip = pc
}
