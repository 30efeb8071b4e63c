// Package orchestrator composes the privilege-drop sequencer and the
// trace-and-inject driver into a single launch: it re-executes the
// running binary as a traced child (Go cannot safely fork(2) a running
// runtime, so this stands in for the traditional fork-point), waits
// for the child's self-stop, and then drives it through exec.
package orchestrator

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"cros.local/shellas/internal/drop"
	"cros.local/shellas/internal/seccontext"
	"cros.local/shellas/internal/shellaslog"
	"cros.local/shellas/internal/tracer"
)

// InternalChildFlag is the hidden marker argument this binary
// recognizes as "this invocation is the re-exec'd child; drop
// privileges and exec the target instead of orchestrating." It is
// exported so cmd/shell-as's main can detect it before doing any
// user-facing flag parsing.
const InternalChildFlag = "--internal-child"

// Hidden flags the re-exec'd child reads its resolved context back
// from. There's no ordering requirement among these, unlike the
// user-facing flags: the parent always emits all of them that apply,
// in this fixed order, once. They're exported so cmd/shell-as's
// cli.App flag table for the child sub-command
// can declare flags under the exact same names this package encodes.
const (
	FlagUID       = "internal-uid"
	FlagGID       = "internal-gid"
	FlagGroupsSet = "internal-groups-set"
	FlagGroups    = "internal-groups"
	FlagSELinux   = "internal-selinux"
	FlagFilter    = "internal-filter"
	FlagCaps      = "internal-caps"
)

const argvSeparator = "--"

// IsInternalChildInvocation reports whether args (os.Args[1:]) begins
// with the hidden child marker.
func IsInternalChildInvocation(args []string) bool {
	return len(args) > 0 && args[0] == InternalChildFlag
}

// StripInternalChildFlag removes the hidden marker, leaving the
// hidden-flag-encoded context and target argv that followed it.
func StripInternalChildFlag(args []string) []string {
	if IsInternalChildInvocation(args) {
		return args[1:]
	}
	return args
}

// childArgs renders ctx and the target argv into the hidden-flag
// encoding cmd/shell-as's internal-child cli.App decodes. It never
// includes InternalChildFlag itself; Run prepends that.
func childArgs(ctx *seccontext.Context, argv []string) []string {
	var out []string
	if ctx.UserID != nil {
		out = append(out, "--"+FlagUID, fmt.Sprint(*ctx.UserID))
	}
	if ctx.GroupID != nil {
		out = append(out, "--"+FlagGID, fmt.Sprint(*ctx.GroupID))
	}
	if ctx.GroupsSet {
		groups := make([]string, len(ctx.SupplementaryGroupIDs))
		for i, g := range ctx.SupplementaryGroupIDs {
			groups[i] = fmt.Sprint(g)
		}
		out = append(out, "--"+FlagGroupsSet, "--"+FlagGroups, strings.Join(groups, ","))
	}
	if ctx.MACLabel != nil {
		out = append(out, "--"+FlagSELinux, *ctx.MACLabel)
	}
	if ctx.SyscallFilter != nil {
		out = append(out, "--"+FlagFilter, ctx.SyscallFilter.String())
	}
	if ctx.Capabilities != nil {
		out = append(out, "--"+FlagCaps, ctx.Capabilities.String())
	}
	out = append(out, argvSeparator)
	out = append(out, argv...)
	return out
}

// RunChild executes the privilege-drop sequence in the calling process
// and then execs argv. It disables address-space layout randomization
// first, so the entry-address computation the parent performs against
// the binary's on-disk header stays valid. It does not return on
// success.
func RunChild(ctx *seccontext.Context, argv []string) error {
	const addrNoRandomize = 0x0040000
	// golang.org/x/sys/unix does not export a Personality wrapper, so
	// this calls personality(2) directly.
	if _, _, errno := unix.RawSyscall(unix.SYS_PERSONALITY, addrNoRandomize, 0, 0); errno != 0 {
		return fmt.Errorf("orchestrator: disable ASLR: %w", errno)
	}
	return drop.Execute(ctx, argv)
}

type startFunc func(reexecArgs []string) (pid int, err error)
type waitFunc func(pid int) (selfStopped bool, err error)
type driveFunc func(pid int, macLabel *string) error

// Run re-executes the current binary with ctx and argv encoded as
// hidden flags behind InternalChildFlag, waits for the child to reach
// its self-stop, and then drives it through exec and, if ctx carries a
// MAC label, the label injection. It returns the launcher's process
// exit status: 0 on success, 1 on any failure.
func Run(ctx *seccontext.Context, argv []string, logger *shellaslog.Logger) int {
	return run(ctx, argv, logger, startChild, waitForSelfStop, tracer.Drive)
}

func run(ctx *seccontext.Context, argv []string, logger *shellaslog.Logger, start startFunc, wait waitFunc, drive driveFunc) int {
	pid, err := start(childArgs(ctx, argv))
	if err != nil {
		logger.Errorf("orchestrator", "start traced child: %v", err)
		return 1
	}

	selfStopped, err := wait(pid)
	if err != nil {
		logger.Errorf("orchestrator", "wait for child's first stop: %v", err)
		return 1
	}
	if !selfStopped {
		logger.Errorf("orchestrator", "child exited during privilege drop before reaching trace handoff")
		return 1
	}

	if err := drive(pid, ctx.MACLabel); err != nil {
		logger.Errorf("orchestrator", "trace-and-inject: %v", err)
		return 1
	}
	return 0
}

func startChild(reexecArgs []string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve own executable path: %w", err)
	}

	args := append([]string{InternalChildFlag}, reexecArgs...)
	cmd := exec.Command(exe, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", exe, err)
	}
	return cmd.Process.Pid, nil
}

func waitForSelfStop(pid int) (bool, error) {
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, unix.WUNTRACED, nil); err != nil {
		return false, fmt.Errorf("wait4 pid %d: %w", pid, err)
	}
	if !ws.Stopped() {
		return false, nil
	}
	return ws.StopSignal() == unix.SIGSTOP, nil
}
