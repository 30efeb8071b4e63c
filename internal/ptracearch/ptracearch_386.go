package ptracearch

// Regs mirrors struct user_regs_struct from <sys/user.h> on i386.
// golang.org/x/sys/unix does not export a named type for this
// architecture the way it does for amd64 and arm64, so the layout is
// reproduced here field-for-field; PTRACE_GETREGSET/SETREGSET copy it
// as an opaque byte range, so field names only matter for our own PC
// accessors below.
type Regs struct {
	Ebx     uint32
	Ecx     uint32
	Edx     uint32
	Esi     uint32
	Edi     uint32
	Ebp     uint32
	Eax     uint32
	Xds     uint32
	Xes     uint32
	Xfs     uint32
	Xgs     uint32
	OrigEax uint32
	Eip     uint32
	Xcs     uint32
	Eflags  uint32
	Esp     uint32
	Xss     uint32
}

func GetRegs(tid int, regs *Regs) error {
	return getRegSet(tid, regs)
}

func SetRegs(tid int, regs *Regs) error {
	return setRegSet(tid, regs)
}

func PC(regs *Regs) uint64 {
	return uint64(regs.Eip)
}

func SetPC(regs *Regs, pc uint64) {
	regs.Eip = uint32(pc)
}
