package ptracearch

// Regs mirrors struct pt_regs from <asm/ptrace.h> on 32-bit ARM: 18
// 32-bit slots, of which uregs[15] is the program counter.
type Regs struct {
	Uregs [18]uint32
}

const armPCIndex = 15

func GetRegs(tid int, regs *Regs) error {
	return getRegSet(tid, regs)
}

func SetRegs(tid int, regs *Regs) error {
	return setRegSet(tid, regs)
}

func PC(regs *Regs) uint64 {
	return uint64(regs.Uregs[armPCIndex])
}

func SetPC(regs *Regs, pc uint64) {
	regs.Uregs[armPCIndex] = uint32(pc)
}
