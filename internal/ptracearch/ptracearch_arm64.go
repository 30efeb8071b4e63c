package ptracearch

import "golang.org/x/sys/unix"

// Regs is the aarch64 NT_PRSTATUS layout (struct user_pt_regs): 31
// general-purpose registers, sp, pc, pstate.
type Regs = unix.PtraceRegsArm64

func GetRegs(tid int, regs *Regs) error {
	return getRegSet(tid, regs)
}

func SetRegs(tid int, regs *Regs) error {
	return setRegSet(tid, regs)
}

func PC(regs *Regs) uint64 {
	return regs.Pc
}

func SetPC(regs *Regs, pc uint64) {
	regs.Pc = pc
}
