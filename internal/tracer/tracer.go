// Package tracer drives a stopped tracee through the exec boundary,
// stops it at its binary's declared entry point, and, when a MAC label
// is present, injects and runs the set-MAC-label payload before
// detaching.
package tracer

import (
	"fmt"

	"golang.org/x/sys/unix"

	"cros.local/shellas/internal/elfimage"
	"cros.local/shellas/internal/payload"
	"cros.local/shellas/internal/ptracearch"
	"cros.local/shellas/internal/shellaserr"
)

const (
	ptraceEventExec = 4
	traceOptions    = unix.PTRACE_O_TRACEEXEC | unix.PTRACE_O_EXITKILL
)

// stopEvent is the signal and, for SIGTRAP stops, the ptrace event
// cause that produced a wait-for-stop return. It exists so the state
// machine below doesn't reach into raw wait-status bit layout, and so
// tests can construct stops directly.
type stopEvent struct {
	signal    int
	trapCause int
}

// ops is every ptrace-facing call the driver makes, factored out so
// tests can simulate a tracee's memory and register file without a
// real kernel on the other end.
type ops interface {
	SetOptions(pid int, options int) error
	Cont(pid int) error
	Wait(pid int) (stopEvent, error)
	WaitExit(pid int) error
	PeekData(pid int, addr uint64, length int) ([]byte, error)
	PokeData(pid int, addr uint64, data []byte) error
	GetRegs(pid int) (ptracearch.Regs, error)
	SetRegs(pid int, regs ptracearch.Regs) error
	Detach(pid int) error
	InspectImage(pid int) (entry uint64, wideMode bool, err error)
}

type kernelOps struct{}

func (kernelOps) SetOptions(pid int, options int) error {
	return unix.PtraceSetOptions(pid, options)
}

func (kernelOps) Cont(pid int) error {
	return unix.PtraceCont(pid, 0)
}

func (kernelOps) Wait(pid int) (stopEvent, error) {
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return stopEvent{}, fmt.Errorf("wait4 pid %d: %w", pid, err)
	}
	if !ws.Stopped() {
		return stopEvent{}, fmt.Errorf("pid %d: expected a ptrace-stop, got status %#x", pid, ws)
	}
	return stopEvent{signal: int(ws.StopSignal()), trapCause: ws.TrapCause()}, nil
}

func (kernelOps) WaitExit(pid int) error {
	var ws unix.WaitStatus
	_, err := unix.Wait4(pid, &ws, 0, nil)
	return err
}

func (kernelOps) PeekData(pid int, addr uint64, length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := unix.PtracePeekData(pid, uintptr(addr), buf); err != nil {
		return nil, fmt.Errorf("peekdata pid %d addr %#x: %w", pid, addr, err)
	}
	return buf, nil
}

func (kernelOps) PokeData(pid int, addr uint64, data []byte) error {
	if _, err := unix.PtracePokeData(pid, uintptr(addr), data); err != nil {
		return fmt.Errorf("pokedata pid %d addr %#x: %w", pid, addr, err)
	}
	return nil
}

func (kernelOps) GetRegs(pid int) (ptracearch.Regs, error) {
	var regs ptracearch.Regs
	err := ptracearch.GetRegs(pid, &regs)
	return regs, err
}

func (kernelOps) SetRegs(pid int, regs ptracearch.Regs) error {
	return ptracearch.SetRegs(pid, &regs)
}

func (kernelOps) Detach(pid int) error {
	return unix.PtraceDetach(pid)
}

func (kernelOps) InspectImage(pid int) (uint64, bool, error) {
	return elfimage.Inspect(pid)
}

// Drive assumes pid is stopped at its post-TRACEME self-stop. It sets
// the exec-trap and exit-kill options, continues the tracee through
// its exec, stops it at the binary's declared entry, optionally
// injects and runs the set-MAC-label payload, then detaches.
//
// macLabel is nil when no MAC transition was requested.
func Drive(pid int, macLabel *string) error {
	return drive(pid, macLabel, kernelOps{})
}

func drive(pid int, macLabel *string, o ops) error {
	if err := o.SetOptions(pid, traceOptions); err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "set trace options", err)
	}
	if err := o.Cont(pid); err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "continue to exec", err)
	}

	ev, err := o.Wait(pid)
	if err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "wait for exec stop", err)
	}
	if ev.signal != int(unix.SIGTRAP) || ev.trapCause != ptraceEventExec {
		return shellaserr.New(shellaserr.TraceFailed, "wait for exec stop",
			fmt.Errorf("unexpected stop: signal %d, trap cause %d", ev.signal, ev.trapCause))
	}

	entry, wideMode, err := o.InspectImage(pid)
	if err != nil {
		return shellaserr.New(shellaserr.ImageUnreadable, "inspect executable image", err)
	}
	if wideMode {
		return shellaserr.New(shellaserr.UnsupportedImage, "inspect executable image",
			fmt.Errorf("32-bit ARM image is in wide (ARM) mode, not compact (thumb) mode"))
	}

	trapCode, trapSignal, err := payload.TrapPayload()
	if err != nil {
		return shellaserr.New(shellaserr.UnsupportedImage, "load trap payload", err)
	}

	entryBackup, err := o.PeekData(pid, entry, len(trapCode))
	if err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "save entry bytes", err)
	}
	if err := o.PokeData(pid, entry, trapCode); err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "write trap payload", err)
	}
	if err := o.Cont(pid); err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "continue to entry", err)
	}

	ev, err = o.Wait(pid)
	if err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "wait for entry stop", err)
	}
	if ev.signal != trapSignal {
		return shellaserr.New(shellaserr.TraceFailed, "wait for entry stop",
			fmt.Errorf("unexpected stop signal %d, want %d", ev.signal, trapSignal))
	}

	if err := o.PokeData(pid, entry, entryBackup); err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "restore entry bytes", err)
	}

	regs, err := o.GetRegs(pid)
	if err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "read registers at entry", err)
	}
	ptracearch.SetPC(&regs, entry)
	if err := o.SetRegs(pid, regs); err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "reset program counter to entry", err)
	}

	if macLabel != nil {
		if err := injectMACLabel(pid, *macLabel, o); err != nil {
			return err
		}
	}

	if err := o.Detach(pid); err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "detach", err)
	}
	if err := o.WaitExit(pid); err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "wait for final exit", err)
	}
	return nil
}

// injectMACLabel runs at the entry-restored state: it saves the
// tracee's registers and the code bytes under its program counter,
// overwrites them with the set-MAC-label payload, runs it to
// completion, then restores both before returning. Every write this
// function makes to tracee memory is undone before it returns, on both
// the success and the failure path once the payload has actually been
// written.
func injectMACLabel(pid int, label string, o ops) error {
	regs, err := o.GetRegs(pid)
	if err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "read registers before injection", err)
	}
	pc := ptracearch.PC(&regs)

	code, err := payload.MACLabelPayload(label)
	if err != nil {
		return shellaserr.New(shellaserr.UnsupportedImage, "load set-MAC-label payload", err)
	}

	codeBackup, err := o.PeekData(pid, pc, len(code))
	if err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "save code under program counter", err)
	}
	if err := o.PokeData(pid, pc, code); err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "write set-MAC-label payload", err)
	}
	if err := o.Cont(pid); err != nil {
		_ = o.PokeData(pid, pc, codeBackup)
		return shellaserr.New(shellaserr.TraceFailed, "continue into payload", err)
	}

	ev, waitErr := o.Wait(pid)
	restoreErr := o.PokeData(pid, pc, codeBackup)
	if waitErr != nil {
		return shellaserr.New(shellaserr.TraceFailed, "wait for payload stop-self", waitErr)
	}
	if ev.signal != int(unix.SIGSTOP) {
		return shellaserr.New(shellaserr.TraceFailed, "wait for payload stop-self",
			fmt.Errorf("unexpected stop signal %d, want SIGSTOP", ev.signal))
	}
	if restoreErr != nil {
		return shellaserr.New(shellaserr.TraceFailed, "restore code under program counter", restoreErr)
	}

	if err := o.SetRegs(pid, regs); err != nil {
		return shellaserr.New(shellaserr.TraceFailed, "restore registers after injection", err)
	}
	return nil
}
