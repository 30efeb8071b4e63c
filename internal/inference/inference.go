// Package inference builds a complete security context from a live
// process or a predefined profile, and derives the syscall-filter
// profile implied by a user identity.
package inference

import (
	"fmt"

	selinux "github.com/opencontainers/selinux/go-selinux"
	"kernel.org/pub/linux/libs/security/libcap/cap"

	"cros.local/shellas/internal/donor"
	"cros.local/shellas/internal/procstatus"
	"cros.local/shellas/internal/seccontext"
)

// appUserThreshold is the first user ID the kernel reserves for
// application sandboxes; identities at or above it get the App
// filter, identities below it get System.
const appUserThreshold = 10000

// FilterForUID is the pure user-identity-to-filter mapping: App at or
// above the application-user threshold, System below it. AppZygote is
// never produced by this function.
func FilterForUID(uid uint32) seccontext.FilterProfile {
	if uid >= appUserThreshold {
		return seccontext.FilterApp
	}
	return seccontext.FilterSystem
}

// FromProcess builds a context from a live process: its MAC label, its
// capability vector, and its identities. On any failure the returned
// context is nil; no partial context is ever returned.
func FromProcess(pid int) (*seccontext.Context, error) {
	label, err := selinux.PidLabel(pid)
	if err != nil {
		return nil, fmt.Errorf("inference: read MAC label of pid %d: %w", pid, err)
	}

	caps, err := cap.GetPID(pid)
	if err != nil {
		return nil, fmt.Errorf("inference: read capabilities of pid %d: %w", pid, err)
	}

	ids, err := procstatus.ReadIdentities(pid)
	if err != nil {
		return nil, fmt.Errorf("inference: read identities of pid %d: %w", pid, err)
	}

	filter := FilterForUID(ids.UID)

	uid := ids.UID
	gid := ids.GID
	return &seccontext.Context{
		UserID:                &uid,
		GroupID:               &gid,
		GroupsSet:             true,
		SupplementaryGroupIDs: ids.Groups,
		MACLabel:              &label,
		SyscallFilter:         &filter,
		Capabilities:          caps,
	}, nil
}

// FromProfile builds a context from a predefined profile name. The
// only recognized profile is "untrusted-app", which provisions the
// reference donor application and delegates to FromProcess on its PID.
func FromProfile(name string) (*seccontext.Context, error) {
	if name != "untrusted-app" {
		return nil, fmt.Errorf("inference: unrecognized profile %q", name)
	}

	pid, err := donor.New().Provision()
	if err != nil {
		return nil, fmt.Errorf("inference: provision donor for profile %q: %w", name, err)
	}

	return FromProcess(pid)
}
