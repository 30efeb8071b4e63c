// Command shell-as executes a program in a specified Android security
// context: a target user and group identity, supplementary groups, an
// SELinux label, a seccomp filter profile, and a capability set.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/urfave/cli/v2"
	"kernel.org/pub/linux/libs/security/libcap/cap"

	"cros.local/shellas/internal/idparse"
	"cros.local/shellas/internal/inference"
	"cros.local/shellas/internal/orchestrator"
	"cros.local/shellas/internal/seccontext"
	"cros.local/shellas/internal/shellaserr"
	"cros.local/shellas/internal/shellaslog"
)

const usage = `Usage: shell-as [options] [<program> <arguments>...]

shell-as executes a program in a specified Android security context. The
default program that is executed if none is specified is /system/bin/sh.

The following options can be used to define the target security context.

  --verbose, -v                      Enable verbose logging.
  --uid <uid>, -u <uid>              The target real and effective user ID.
  --gid <gid>, -g <gid>              The target real and effective group ID.
  --groups <gid1,gid2,..>, -G <...>  A comma-separated list of supplementary
                                     group IDs.
  --nogroups                        Clear all supplementary groups.
  --selinux <context>, -s <context> The target SELinux context.
  --seccomp <filter>, -f <filter>    The target seccomp filter: one of
                                     "none", "uid-inferred", "app",
                                     "app-zygote", "system".
  --caps <capabilities>              A libcap textual expression describing
                                     the desired permitted capability set.
  --pid <pid>, -p <pid>              Infer the target context from a running
                                     process. Implies --seccomp uid-inferred.
  --profile <profile>, -P <profile>  Infer the target context from a
                                     predefined profile ("untrusted-app" is
                                     the only recognized value).

Options are evaluated in the order given. For example, the following sets
the target context to that of process 1234 but overrides the user ID to 0:

    shell-as --pid 1234 --uid 0
`

var defaultArgv = []string{"/system/bin/sh"}

// errHelpRequested is returned by parseArgs when --help/-h was seen; it
// carries no message of its own because main prints the full usage text
// instead.
var errHelpRequested = errors.New("help requested")

func main() {
	// All ptrace calls for one tracee must come from the same OS thread.
	runtime.LockOSThread()

	args := os.Args[1:]
	if orchestrator.IsInternalChildInvocation(args) {
		if err := runInternalChild(orchestrator.StripInternalChildFlag(args)); err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		return // unreachable: runInternalChild only returns on error
	}

	verbose, ctx, argv, err := parseArgs(args)
	if err == errHelpRequested {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := shellaslog.New(verbose)
	if verbose {
		shellaslog.Dump(ctx.DumpLines())
	}

	os.Exit(orchestrator.Run(ctx, argv, logger))
}

// The flagInternal* flags and internalChildApp decode the hidden-flag
// context encoding orchestrator.Run's re-exec produces. Order doesn't
// matter across these flags (unlike the user-facing table below), so a
// plain cli.App is a good fit for this leg.
var (
	flagInternalUID       = &cli.UintFlag{Name: orchestrator.FlagUID}
	flagInternalGID       = &cli.UintFlag{Name: orchestrator.FlagGID}
	flagInternalGroupsSet = &cli.BoolFlag{Name: orchestrator.FlagGroupsSet}
	flagInternalGroups    = &cli.StringFlag{Name: orchestrator.FlagGroups}
	flagInternalSELinux   = &cli.StringFlag{Name: orchestrator.FlagSELinux}
	flagInternalFilter    = &cli.StringFlag{Name: orchestrator.FlagFilter}
	flagInternalCaps      = &cli.StringFlag{Name: orchestrator.FlagCaps}
)

var internalChildApp = &cli.App{
	Name:            "shell-as-internal-child",
	HideHelp:        true,
	HideHelpCommand: true,
	Flags: []cli.Flag{
		flagInternalUID,
		flagInternalGID,
		flagInternalGroupsSet,
		flagInternalGroups,
		flagInternalSELinux,
		flagInternalFilter,
		flagInternalCaps,
	},
}

// runInternalChild decodes the hidden-flag context this process was
// re-exec'd with and drops into it. It does not return on success.
func runInternalChild(args []string) error {
	ctx := &seccontext.Context{}
	var argv []string
	var decodeErr error

	internalChildApp.Action = func(c *cli.Context) error {
		argv = c.Args().Slice()
		if len(argv) > 0 && argv[0] == "--" {
			argv = argv[1:]
		}
		if c.IsSet(flagInternalUID.Name) {
			v := uint32(c.Uint(flagInternalUID.Name))
			ctx.UserID = &v
		}
		if c.IsSet(flagInternalGID.Name) {
			v := uint32(c.Uint(flagInternalGID.Name))
			ctx.GroupID = &v
		}
		if c.Bool(flagInternalGroupsSet.Name) {
			ctx.GroupsSet = true
			if v := c.String(flagInternalGroups.Name); v != "" {
				ids, err := idparse.SplitAndParseIDs(v, ",", 0)
				if err != nil {
					decodeErr = fmt.Errorf("%s: %w", flagInternalGroups.Name, err)
					return decodeErr
				}
				ctx.SupplementaryGroupIDs = ids
			}
		}
		if c.IsSet(flagInternalSELinux.Name) {
			v := c.String(flagInternalSELinux.Name)
			ctx.MACLabel = &v
		}
		if c.IsSet(flagInternalFilter.Name) {
			filter, err := parseFilterName(c.String(flagInternalFilter.Name))
			if err != nil {
				decodeErr = err
				return err
			}
			ctx.SyscallFilter = &filter
		}
		if c.IsSet(flagInternalCaps.Name) {
			set, err := cap.FromText(c.String(flagInternalCaps.Name))
			if err != nil {
				decodeErr = fmt.Errorf("%s: %w", flagInternalCaps.Name, err)
				return decodeErr
			}
			ctx.Capabilities = set
		}
		return nil
	}

	fullArgs := append([]string{internalChildApp.Name}, args...)
	if err := internalChildApp.Run(fullArgs); err != nil {
		if decodeErr != nil {
			return decodeErr
		}
		return err
	}

	return orchestrator.RunChild(ctx, argv)
}

func parseFilterName(name string) (seccontext.FilterProfile, error) {
	switch name {
	case "none":
		return seccontext.FilterNone, nil
	case "app":
		return seccontext.FilterApp, nil
	case "app-zygote":
		return seccontext.FilterAppZygote, nil
	case "system":
		return seccontext.FilterSystem, nil
	default:
		return 0, fmt.Errorf("%s: unrecognized filter name %q", flagInternalFilter.Name, name)
	}
}

// flagSpec is one recognized option: its names (long form first),
// whether it consumes a following value, and how it mutates the
// working context. This table is the Go equivalent of command-line.cpp's
// short_options/long_options pair plus its switch statement, collapsed
// into one place since Go has no getopt_long of its own.
type flagSpec struct {
	names  []string
	hasArg bool
	apply  func(b *builder, value string) error
}

type builder struct {
	verbose       bool
	ctx           *seccontext.Context
	filterPending bool
}

func newBuilder() *builder {
	return &builder{ctx: &seccontext.Context{}}
}

var flagTable = []flagSpec{
	{[]string{"--verbose", "-v"}, false, func(b *builder, _ string) error {
		b.verbose = true
		return nil
	}},
	{[]string{"--uid", "-u"}, true, func(b *builder, v string) error {
		id, err := idparse.ParseUint32(v)
		if err != nil {
			return shellaserr.New(shellaserr.ParseError, "--uid", err)
		}
		b.ctx.UserID = &id
		return nil
	}},
	{[]string{"--gid", "-g"}, true, func(b *builder, v string) error {
		id, err := idparse.ParseUint32(v)
		if err != nil {
			return shellaserr.New(shellaserr.ParseError, "--gid", err)
		}
		b.ctx.GroupID = &id
		return nil
	}},
	{[]string{"--groups", "-G"}, true, func(b *builder, v string) error {
		ids, err := idparse.SplitAndParseIDs(v, ",", 0)
		if err != nil {
			return shellaserr.New(shellaserr.ParseError, "--groups", err)
		}
		b.ctx.GroupsSet = true
		b.ctx.SupplementaryGroupIDs = ids
		return nil
	}},
	{[]string{"--nogroups"}, false, func(b *builder, _ string) error {
		b.ctx.GroupsSet = true
		b.ctx.SupplementaryGroupIDs = nil
		return nil
	}},
	{[]string{"--selinux", "-s"}, true, func(b *builder, v string) error {
		b.ctx.MACLabel = &v
		return nil
	}},
	{[]string{"--seccomp", "-f"}, true, func(b *builder, v string) error {
		return applySeccompFlag(b, v)
	}},
	{[]string{"--caps"}, true, func(b *builder, v string) error {
		set, err := cap.FromText(v)
		if err != nil {
			return shellaserr.New(shellaserr.ParseError, "--caps", err)
		}
		b.ctx.Capabilities = set
		return nil
	}},
	{[]string{"--pid", "-p"}, true, func(b *builder, v string) error {
		pid, err := idparse.ParseUint32(v)
		if err != nil {
			return shellaserr.New(shellaserr.ParseError, "--pid", err)
		}
		inferred, err := inference.FromProcess(int(pid))
		if err != nil {
			return shellaserr.New(shellaserr.InferenceImpossible, "--pid", err)
		}
		b.ctx = inferred
		b.filterPending = true
		return nil
	}},
	{[]string{"--profile", "-P"}, true, func(b *builder, v string) error {
		inferred, err := inference.FromProfile(v)
		if err != nil {
			return shellaserr.New(shellaserr.DonorUnavailable, "--profile", err)
		}
		b.ctx = inferred
		b.filterPending = true
		return nil
	}},
}

func applySeccompFlag(b *builder, v string) error {
	switch v {
	case "none":
		b.ctx.SyscallFilter = nil
		b.filterPending = false
	case "uid-inferred":
		b.filterPending = true
	case "app":
		f := seccontext.FilterApp
		b.ctx.SyscallFilter = &f
		b.filterPending = false
	case "app-zygote":
		f := seccontext.FilterAppZygote
		b.ctx.SyscallFilter = &f
		b.filterPending = false
	case "system":
		f := seccontext.FilterSystem
		b.ctx.SyscallFilter = &f
		b.filterPending = false
	default:
		return shellaserr.New(shellaserr.ParseError, "--seccomp", fmt.Errorf("unrecognized filter %q", v))
	}
	return nil
}

func lookupFlag(name string) *flagSpec {
	for i := range flagTable {
		for _, n := range flagTable[i].names {
			if n == name {
				return &flagTable[i]
			}
		}
	}
	return nil
}

// parseArgs evaluates args left to right, exactly like getopt_long's
// loop in command-line.cpp: each option mutates a single working
// context builder, so a later option always overrides an earlier one,
// and --pid/--profile replace the whole builder outright.
func parseArgs(args []string) (verbose bool, ctx *seccontext.Context, argv []string, err error) {
	b := newBuilder()

	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			i++
			break
		}
		if a == "--help" || a == "-h" {
			return false, nil, nil, errHelpRequested
		}
		spec := lookupFlag(a)
		if spec == nil {
			if len(a) > 0 && a[0] == '-' {
				return false, nil, nil, shellaserr.New(shellaserr.ParseError, a, fmt.Errorf("unrecognized option"))
			}
			break // first positional token: program begins here
		}

		var value string
		if spec.hasArg {
			i++
			if i >= len(args) {
				return false, nil, nil, shellaserr.New(shellaserr.ParseError, a, fmt.Errorf("missing value"))
			}
			value = args[i]
		}
		if err := spec.apply(b, value); err != nil {
			return false, nil, nil, err
		}
	}

	if b.filterPending {
		if b.ctx.UserID == nil {
			return false, nil, nil, shellaserr.New(shellaserr.InferenceImpossible, "--seccomp uid-inferred",
				fmt.Errorf("no user ID to infer a filter from"))
		}
		filter := inference.FilterForUID(*b.ctx.UserID)
		b.ctx.SyscallFilter = &filter
	}

	target := args[i:]
	if len(target) == 0 {
		target = defaultArgv
	}
	return b.verbose, b.ctx, target, nil
}
