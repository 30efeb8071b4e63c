// Package seccompprofile compiles the launcher's named syscall filter
// profiles into BPF programs and installs them on the calling thread.
package seccompprofile

import (
	"fmt"

	seccomp "github.com/elastic/go-seccomp-bpf"

	"cros.local/shellas/internal/seccontext"
)

// loadFilter is a seam so this package's tests can observe that
// Install was reached without actually entering seccomp mode.
var loadFilter = seccomp.LoadFilter

// commonAllow is the baseline every non-empty profile grants: the
// syscalls needed to finish process teardown and do basic I/O after the
// filter is already installed.
var commonAllow = []string{
	"read", "write", "close", "exit", "exit_group",
	"rt_sigreturn", "restart_syscall",
	"futex", "sched_yield",
}

var profileAllow = map[seccontext.FilterProfile][]string{
	seccontext.FilterApp: append(append([]string{}, commonAllow...),
		"mmap", "mprotect", "munmap", "brk",
		"openat", "fstat", "lseek", "pread64", "pwrite64",
		"poll", "epoll_wait", "epoll_ctl", "epoll_create1",
		"sendto", "recvfrom", "socket", "connect", "getsockopt",
		"clock_gettime", "gettimeofday", "nanosleep",
		"rt_sigaction", "rt_sigprocmask", "sigaltstack",
		"clone", "execve", "wait4", "prctl", "getpid", "gettid",
	),
	seccontext.FilterAppZygote: append(append([]string{}, commonAllow...),
		"mmap", "mprotect", "munmap", "brk",
		"clone", "execve", "wait4", "prctl",
		"getpid", "gettid", "getuid", "getgid",
		"rt_sigaction", "rt_sigprocmask",
	),
	seccontext.FilterSystem: append(append([]string{}, commonAllow...),
		"mmap", "mprotect", "munmap", "brk",
		"openat", "fstat", "lseek", "pread64", "pwrite64",
		"poll", "epoll_wait", "epoll_ctl", "epoll_create1",
		"sendto", "recvfrom", "socket", "bind", "connect", "accept4",
		"getsockopt", "setsockopt",
		"clock_gettime", "gettimeofday", "nanosleep",
		"rt_sigaction", "rt_sigprocmask", "sigaltstack",
		"clone", "clone3", "execve", "wait4", "prctl",
		"getpid", "gettid", "getuid", "getgid", "setuid", "setgid",
		"capget", "capset", "unshare", "mount", "umount2",
		"ioctl", "fcntl",
	),
}

// Install compiles profile into a BPF program and loads it onto the
// calling thread via seccomp(2). FilterNone is a no-op: the caller
// keeps whatever filter, if any, it already had.
func Install(profile seccontext.FilterProfile) error {
	if profile == seccontext.FilterNone {
		return nil
	}

	names, ok := profileAllow[profile]
	if !ok {
		return fmt.Errorf("seccompprofile: unknown profile %v", profile)
	}

	filter := seccomp.Filter{
		NoNewPrivs: false, // PR_SET_NO_NEW_PRIVS is not set here, nor anywhere in the drop sequence
		Flag:       seccomp.FilterFlagTSync,
		Policy: seccomp.Policy{
			DefaultAction: seccomp.ActionKillProcess,
			Syscalls: []seccomp.SyscallGroup{
				{
					Action: seccomp.ActionAllow,
					Names:  names,
				},
			},
		},
	}

	if err := loadFilter(filter); err != nil {
		return fmt.Errorf("seccompprofile: install %v: %w", profile, err)
	}
	return nil
}
