package ptracearch

import (
	"os/exec"
	"runtime"
	"testing"

	"golang.org/x/sys/unix"
)

func TestSetPCRoundTrips(t *testing.T) {
	// Kept within 32 bits so this test is meaningful whether Regs is
	// the 32-bit or 64-bit layout for the build's GOARCH.
	var regs Regs
	SetPC(&regs, 0x56550000)
	if got := PC(&regs); got != 0x56550000 {
		t.Errorf("PC() = %#x, want %#x", got, 0x56550000)
	}
}

func TestSetPCOverwritesPriorValue(t *testing.T) {
	var regs Regs
	SetPC(&regs, 0x401000)
	SetPC(&regs, 0x402000)
	if got := PC(&regs); got != 0x402000 {
		t.Errorf("PC() = %#x, want %#x", got, 0x402000)
	}
}

// A process can't ptrace itself, so unlike procstatus's self-pid test
// this needs a second process: a child this test starts, attaches to,
// and detaches from, exercising the PTRACE_GETREGSET/SETREGSET path
// GetRegs/SetRegs funnel through.
func TestGetRegsSetRegsRoundTripOnTracedChild(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cmd := exec.Command("/bin/sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Skipf("start child: %v", err)
	}
	pid := cmd.Process.Pid
	defer cmd.Process.Kill()

	if err := unix.PtraceAttach(pid); err != nil {
		t.Skipf("PtraceAttach: %v", err)
	}
	defer unix.PtraceDetach(pid)

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		t.Fatalf("wait4 after attach: %v", err)
	}

	var regs Regs
	if err := GetRegs(pid, &regs); err != nil {
		t.Fatalf("GetRegs: %v", err)
	}

	original := PC(&regs)
	SetPC(&regs, original)
	if err := SetRegs(pid, &regs); err != nil {
		t.Fatalf("SetRegs: %v", err)
	}

	var got Regs
	if err := GetRegs(pid, &got); err != nil {
		t.Fatalf("GetRegs after SetRegs: %v", err)
	}
	if PC(&got) != original {
		t.Errorf("PC after round trip = %#x, want %#x", PC(&got), original)
	}
}
