package drop

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"kernel.org/pub/linux/libs/security/libcap/cap"

	"cros.local/shellas/internal/seccontext"
)

// recordingOps returns an osOps whose every call appends its step name
// to trace and otherwise succeeds, plus a pointer to trace itself.
func recordingOps() (osOps, *[]string) {
	trace := &[]string{}
	record := func(step string) { *trace = append(*trace, step) }
	return osOps{
		Setresgid: func(int, int, int) error {
			record("setresgid")
			return nil
		},
		Setgroups: func([]int) error {
			record("setgroups")
			return nil
		},
		InstallFilter: func(seccontext.FilterProfile) error {
			record("installfilter")
			return nil
		},
		SetKeepCaps: func() error {
			record("setkeepcaps")
			return nil
		},
		Setresuid: func(int, int, int) error {
			record("setresuid")
			return nil
		},
		ApplyCapability: func(*cap.Set) error {
			record("applycapability")
			return nil
		},
		Traceme: func() error {
			record("traceme")
			return nil
		},
		RaiseStop: func() error {
			record("raisestop")
			return nil
		},
		Exec: func([]string) error {
			record("exec")
			return nil
		},
	}, trace
}

func uint32ptr(v uint32) *uint32 { return &v }

func filterPtr(f seccontext.FilterProfile) *seccontext.FilterProfile { return &f }

func TestExecuteFullContextRunsAllEightStepsInOrder(t *testing.T) {
	ops, trace := recordingOps()
	ctx := &seccontext.Context{
		UserID:                uint32ptr(10123),
		GroupID:               uint32ptr(10123),
		GroupsSet:             true,
		SupplementaryGroupIDs: []uint32{10123},
		SyscallFilter:         filterPtr(seccontext.FilterApp),
		Capabilities:          &cap.Set{},
	}

	if err := execute(ctx, []string{"/system/bin/sh"}, ops); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := []string{
		"setresgid", "setgroups", "installfilter", "setkeepcaps",
		"setresuid", "applycapability", "traceme", "raisestop", "exec",
	}
	if diff := cmp.Diff(want, *trace); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteElidesAbsentFields(t *testing.T) {
	ops, trace := recordingOps()
	ctx := &seccontext.Context{
		UserID: uint32ptr(10123),
		// GroupID, GroupsSet, SyscallFilter, Capabilities all absent.
	}

	if err := execute(ctx, []string{"/system/bin/sh"}, ops); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := []string{"setkeepcaps", "setresuid", "traceme", "raisestop", "exec"}
	if diff := cmp.Diff(want, *trace); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteEmptyContextStillTracesAndExecs(t *testing.T) {
	ops, trace := recordingOps()
	ctx := &seccontext.Context{}

	if err := execute(ctx, []string{"/system/bin/sh"}, ops); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := []string{"setkeepcaps", "traceme", "raisestop", "exec"}
	if diff := cmp.Diff(want, *trace); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteNogroupsStillCallsSetgroups(t *testing.T) {
	ops, trace := recordingOps()
	ctx := &seccontext.Context{
		UserID:                uint32ptr(10123),
		GroupID:               uint32ptr(10123),
		GroupsSet:             true,
		SupplementaryGroupIDs: nil,
	}

	if err := execute(ctx, []string{"/system/bin/sh"}, ops); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := []string{"setresgid", "setgroups", "setkeepcaps", "setresuid", "traceme", "raisestop", "exec"}
	if diff := cmp.Diff(want, *trace); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteStopsAtFirstFailingStep(t *testing.T) {
	ops, trace := recordingOps()
	sentinel := fmt.Errorf("permission denied")
	ops.Setresuid = func(int, int, int) error {
		*trace = append(*trace, "setresuid")
		return sentinel
	}

	ctx := &seccontext.Context{
		GroupID: uint32ptr(10123),
		UserID:  uint32ptr(10123),
	}

	err := execute(ctx, []string{"/system/bin/sh"}, ops)
	if err == nil {
		t.Fatal("execute succeeded, want error")
	}

	want := []string{"setresgid", "setkeepcaps", "setresuid"}
	if diff := cmp.Diff(want, *trace); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}
