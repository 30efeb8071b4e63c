package seccompprofile

import (
	"errors"
	"testing"

	seccomp "github.com/elastic/go-seccomp-bpf"

	"cros.local/shellas/internal/seccontext"
)

func TestInstallNoneIsNoop(t *testing.T) {
	called := false
	restore := stubLoadFilter(t, func(seccomp.Filter) error {
		called = true
		return nil
	})
	defer restore()

	if err := Install(seccontext.FilterNone); err != nil {
		t.Fatalf("Install(FilterNone) = %v, want nil", err)
	}
	if called {
		t.Error("Install(FilterNone) invoked loadFilter, want no-op")
	}
}

func TestInstallKnownProfiles(t *testing.T) {
	for _, profile := range []seccontext.FilterProfile{
		seccontext.FilterApp,
		seccontext.FilterAppZygote,
		seccontext.FilterSystem,
	} {
		var got seccomp.Filter
		restore := stubLoadFilter(t, func(f seccomp.Filter) error {
			got = f
			return nil
		})

		if err := Install(profile); err != nil {
			t.Fatalf("Install(%v) = %v, want nil", profile, err)
		}
		if len(got.Policy.Syscalls) != 1 {
			t.Fatalf("Install(%v) loaded %d syscall groups, want 1", profile, len(got.Policy.Syscalls))
		}
		if len(got.Policy.Syscalls[0].Names) == 0 {
			t.Errorf("Install(%v) loaded an empty allow list", profile)
		}
		restore()
	}
}

func TestInstallPropagatesLoadError(t *testing.T) {
	sentinel := errors.New("seccomp not supported")
	restore := stubLoadFilter(t, func(seccomp.Filter) error {
		return sentinel
	})
	defer restore()

	err := Install(seccontext.FilterApp)
	if !errors.Is(err, sentinel) {
		t.Fatalf("Install error = %v, want wrapping %v", err, sentinel)
	}
}

func stubLoadFilter(t *testing.T, fn func(seccomp.Filter) error) func() {
	t.Helper()
	orig := loadFilter
	loadFilter = fn
	return func() { loadFilter = orig }
}
