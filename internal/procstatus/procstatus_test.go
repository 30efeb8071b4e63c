package procstatus_test

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cros.local/shellas/internal/procstatus"
)

func TestReadIdentitiesSelf(t *testing.T) {
	// /proc/<pid>/status path is hardcoded by pid, so the only process
	// we can address without a container is this test binary itself.
	ids, err := procstatus.ReadIdentities(os.Getpid())
	if err != nil {
		t.Fatalf("ReadIdentities(self): %v", err)
	}
	if ids.UID != uint32(os.Getuid()) {
		t.Errorf("UID = %d, want %d", ids.UID, os.Getuid())
	}
	if ids.GID != uint32(os.Getgid()) {
		t.Errorf("GID = %d, want %d", ids.GID, os.Getgid())
	}
	wantGroups, err := os.Getgroups()
	if err != nil {
		t.Fatalf("os.Getgroups: %v", err)
	}
	var got []int
	for _, g := range ids.Groups {
		got = append(got, int(g))
	}
	sortInts(got)
	sortInts(wantGroups)
	if diff := cmp.Diff(wantGroups, got); diff != "" {
		t.Errorf("Groups mismatch (-want +got):\n%s", diff)
	}
}

func TestReadIdentitiesNoSuchProcess(t *testing.T) {
	_, err := procstatus.ReadIdentities(-1)
	if err == nil {
		t.Fatal("ReadIdentities(-1) succeeded, want error")
	}
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
