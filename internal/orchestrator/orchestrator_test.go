package orchestrator

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cros.local/shellas/internal/seccontext"
	"cros.local/shellas/internal/shellaslog"
)

func TestChildArgsEncodesPopulatedFieldsAndTrailingArgv(t *testing.T) {
	uid := uint32(10123)
	gid := uint32(10123)
	label := "u:r:untrusted_app:s0"
	filter := seccontext.FilterApp
	ctx := &seccontext.Context{
		UserID:                &uid,
		GroupID:               &gid,
		GroupsSet:             true,
		SupplementaryGroupIDs: []uint32{1, 2, 3},
		MACLabel:              &label,
		SyscallFilter:         &filter,
	}

	got := childArgs(ctx, []string{"/system/bin/id"})
	want := []string{
		"--" + FlagUID, "10123",
		"--" + FlagGID, "10123",
		"--" + FlagGroupsSet, "--" + FlagGroups, "1,2,3",
		"--" + FlagSELinux, label,
		"--" + FlagFilter, "app",
		"--", "/system/bin/id",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("childArgs (-want +got):\n%s", diff)
	}
}

func TestChildArgsElidesAbsentFields(t *testing.T) {
	got := childArgs(&seccontext.Context{}, []string{"/system/bin/sh"})
	want := []string{"--", "/system/bin/sh"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("childArgs (-want +got):\n%s", diff)
	}
}

func TestChildArgsEncodesExplicitlyEmptyGroups(t *testing.T) {
	got := childArgs(&seccontext.Context{GroupsSet: true}, []string{"/system/bin/sh"})
	want := []string{"--" + FlagGroupsSet, "--" + FlagGroups, "", "--", "/system/bin/sh"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("childArgs (-want +got):\n%s", diff)
	}
}

func TestIsInternalChildInvocation(t *testing.T) {
	if !IsInternalChildInvocation([]string{InternalChildFlag, "--uid", "10123"}) {
		t.Error("want true when the marker leads the argument list")
	}
	if IsInternalChildInvocation([]string{"--uid", "10123"}) {
		t.Error("want false when the marker is absent")
	}
	if IsInternalChildInvocation(nil) {
		t.Error("want false on an empty argument list")
	}
}

func TestStripInternalChildFlag(t *testing.T) {
	got := StripInternalChildFlag([]string{InternalChildFlag, "--uid", "10123"})
	want := []string{"--uid", "10123"}
	if len(got) != len(want) {
		t.Fatalf("StripInternalChildFlag = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("StripInternalChildFlag = %v, want %v", got, want)
		}
	}

	// No marker: returned unchanged.
	noMarker := []string{"--uid", "10123"}
	got = StripInternalChildFlag(noMarker)
	if len(got) != 2 || got[0] != "--uid" || got[1] != "10123" {
		t.Fatalf("StripInternalChildFlag without marker = %v, want unchanged", got)
	}
}

func TestRunSucceedsOnCleanSelfStop(t *testing.T) {
	label := "u:r:untrusted_app:s0"
	ctx := &seccontext.Context{MACLabel: &label}

	var drivenPID int
	var drivenLabel *string
	start := func(args []string) (int, error) { return 4242, nil }
	wait := func(pid int) (bool, error) { return true, nil }
	drive := func(pid int, macLabel *string) error {
		drivenPID, drivenLabel = pid, macLabel
		return nil
	}

	got := run(ctx, []string{"--uid", "10123"}, shellaslog.New(false), start, wait, drive)
	if got != 0 {
		t.Fatalf("run() = %d, want 0", got)
	}
	if drivenPID != 4242 {
		t.Errorf("drive called with pid %d, want 4242", drivenPID)
	}
	if drivenLabel != &label {
		t.Errorf("drive called with a different MAC label pointer than ctx carried")
	}
}

func TestRunFailsWhenStartFails(t *testing.T) {
	ctx := &seccontext.Context{}
	start := func(args []string) (int, error) { return 0, errors.New("exec: not found") }
	wait := func(pid int) (bool, error) { t.Fatal("wait should not be called"); return false, nil }
	drive := func(pid int, macLabel *string) error { t.Fatal("drive should not be called"); return nil }

	if got := run(ctx, nil, shellaslog.New(false), start, wait, drive); got != 1 {
		t.Fatalf("run() = %d, want 1", got)
	}
}

func TestRunFailsWhenChildDidNotSelfStop(t *testing.T) {
	ctx := &seccontext.Context{}
	start := func(args []string) (int, error) { return 99, nil }
	wait := func(pid int) (bool, error) { return false, nil }
	drive := func(pid int, macLabel *string) error { t.Fatal("drive should not be called"); return nil }

	if got := run(ctx, nil, shellaslog.New(false), start, wait, drive); got != 1 {
		t.Fatalf("run() = %d, want 1", got)
	}
}

func TestRunFailsWhenWaitErrors(t *testing.T) {
	ctx := &seccontext.Context{}
	start := func(args []string) (int, error) { return 99, nil }
	wait := func(pid int) (bool, error) { return false, errors.New("wait4: no such process") }
	drive := func(pid int, macLabel *string) error { t.Fatal("drive should not be called"); return nil }

	if got := run(ctx, nil, shellaslog.New(false), start, wait, drive); got != 1 {
		t.Fatalf("run() = %d, want 1", got)
	}
}

func TestRunFailsWhenDriveFails(t *testing.T) {
	ctx := &seccontext.Context{}
	start := func(args []string) (int, error) { return 99, nil }
	wait := func(pid int) (bool, error) { return true, nil }
	drive := func(pid int, macLabel *string) error { return errors.New("trace-failed: detach") }

	if got := run(ctx, nil, shellaslog.New(false), start, wait, drive); got != 1 {
		t.Fatalf("run() = %d, want 1", got)
	}
}
