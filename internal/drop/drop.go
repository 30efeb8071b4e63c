// Package drop executes the privilege-drop sequence a tracee runs on
// itself between fork and exec: the eight ordered steps that bring its
// real/effective/saved identities, supplementary groups, syscall
// filter, and capability sets down to the target security context
// before the kernel ever loads the requested binary.
package drop

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"kernel.org/pub/linux/libs/security/libcap/cap"

	"cros.local/shellas/internal/seccompprofile"
	"cros.local/shellas/internal/seccontext"
)

// secureBitNoRoot is SECBIT_NOROOT (prctl(7)): disables the kernel's
// special-casing of UID 0 across exec, under which all capability bits
// are otherwise raised in the permitted set regardless of what the
// pre-exec permitted set contained.
const secureBitNoRoot = 1 << 0

// osOps is every OS-facing call the sequencer makes, factored out so
// tests can observe call order without touching real process state.
type osOps struct {
	Setresgid       func(rgid, egid, sgid int) error
	Setgroups       func(gids []int) error
	InstallFilter   func(profile seccontext.FilterProfile) error
	SetKeepCaps     func() error
	Setresuid       func(ruid, euid, suid int) error
	ApplyCapability func(permitted *cap.Set) error
	Traceme         func() error
	RaiseStop       func() error
	Exec            func(argv []string) error
}

var defaultOps = osOps{
	Setresgid: func(rgid, egid, sgid int) error {
		return unix.Setresgid(rgid, egid, sgid)
	},
	Setgroups: func(gids []int) error {
		return unix.Setgroups(gids)
	},
	InstallFilter: seccompprofile.Install,
	SetKeepCaps: func() error {
		return unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0)
	},
	Setresuid: func(ruid, euid, suid int) error {
		return unix.Setresuid(ruid, euid, suid)
	},
	ApplyCapability: applyCapability,
	Traceme: func() error {
		// golang.org/x/sys/unix does not export a PtraceTraceme
		// wrapper, so this calls ptrace(2) directly.
		_, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, unix.PTRACE_TRACEME, 0, 0, 0, 0, 0)
		if errno != 0 {
			return errno
		}
		return nil
	},
	RaiseStop: func() error {
		return unix.Kill(unix.Getpid(), unix.SIGSTOP)
	},
	Exec: execInPlace,
}

// Execute runs the full privilege-drop sequence for ctx, then execs
// argv in place. It never returns on success: the final step replaces
// the calling process's image. On any step's failure it returns an
// error instead of execing.
func Execute(ctx *seccontext.Context, argv []string) error {
	return execute(ctx, argv, defaultOps)
}

func execute(ctx *seccontext.Context, argv []string, ops osOps) error {
	// 1. Primary group.
	if ctx.GroupID != nil {
		if err := ops.Setresgid(int(*ctx.GroupID), int(*ctx.GroupID), int(*ctx.GroupID)); err != nil {
			return fmt.Errorf("drop: set primary group: %w", err)
		}
	}

	// 2. Supplementary groups.
	if ctx.GroupsSet {
		gids := make([]int, len(ctx.SupplementaryGroupIDs))
		for i, g := range ctx.SupplementaryGroupIDs {
			gids[i] = int(g)
		}
		if err := ops.Setgroups(gids); err != nil {
			return fmt.Errorf("drop: set supplementary groups: %w", err)
		}
	}

	// 3. Syscall filter. Must follow 1-2 and precede 5.
	if ctx.SyscallFilter != nil {
		if err := ops.InstallFilter(*ctx.SyscallFilter); err != nil {
			return fmt.Errorf("drop: install syscall filter: %w", err)
		}
	}

	// 4. Keep-capabilities flag. Unconditional: without it, step 5's
	// identity change drops the permitted set to empty even when no
	// capability re-expansion follows in step 6.
	if err := ops.SetKeepCaps(); err != nil {
		return fmt.Errorf("drop: set keep-caps flag: %w", err)
	}

	// 5. User identity.
	if ctx.UserID != nil {
		if err := ops.Setresuid(int(*ctx.UserID), int(*ctx.UserID), int(*ctx.UserID)); err != nil {
			return fmt.Errorf("drop: set user identity: %w", err)
		}
	}

	// 6. Capability re-expansion.
	if ctx.Capabilities != nil {
		if err := ops.ApplyCapability(ctx.Capabilities); err != nil {
			return fmt.Errorf("drop: re-expand capabilities: %w", err)
		}
	}

	// 7. Tracer attach and self-stop.
	if err := ops.Traceme(); err != nil {
		return fmt.Errorf("drop: request tracing: %w", err)
	}
	if err := ops.RaiseStop(); err != nil {
		return fmt.Errorf("drop: self-stop: %w", err)
	}

	// 8. Exec. Does not return on success.
	if err := ops.Exec(argv); err != nil {
		return fmt.Errorf("drop: exec %v: %w", argv, err)
	}
	return nil
}

// applyCapability raises every real capability in the permitted,
// inheritable and effective sets, clears the ambient set, then raises
// in the ambient set exactly the capabilities present in permitted's
// Permitted flag, so they survive the exec in step 8 even though the
// identity change in step 5 has already cleared the process's
// privileged-UID special case.
func applyCapability(permitted *cap.Set) error {
	all, err := cap.FromText("all+pie")
	if err != nil {
		return fmt.Errorf("build full capability set: %w", err)
	}
	if err := all.SetProc(); err != nil {
		return fmt.Errorf("commit inheritable set: %w", err)
	}

	if err := cap.ResetAmbient(); err != nil {
		return fmt.Errorf("clear ambient set: %w", err)
	}

	for v := cap.Value(0); v < cap.MaxBits(); v++ {
		raised, err := permitted.GetFlag(cap.Permitted, v)
		if err != nil {
			return fmt.Errorf("read permitted flag for %v: %w", v, err)
		}
		if !raised {
			continue
		}
		if err := cap.SetAmbient(true, v); err != nil {
			return fmt.Errorf("raise %v in ambient set: %w", v, err)
		}
	}

	// PR_GET_SECUREBITS returns its result as the prctl(2) return
	// value itself rather than through an out-pointer, so this goes
	// through the raw syscall rather than the unix.Prctl helper.
	secbits, _, errno := unix.Syscall6(unix.SYS_PRCTL, unix.PR_GET_SECUREBITS, 0, 0, 0, 0, 0)
	if errno != 0 {
		return fmt.Errorf("read securebits: %w", errno)
	}
	if err := unix.Prctl(unix.PR_SET_SECUREBITS, secbits|secureBitNoRoot, 0, 0, 0); err != nil {
		return fmt.Errorf("raise SECBIT_NOROOT: %w", err)
	}
	return nil
}

func execInPlace(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty argument vector")
	}
	return unix.Exec(argv[0], argv, os.Environ())
}
