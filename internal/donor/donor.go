// Package donor provisions the reference-process donor: a small
// platform application installed, launched, and located purely so its
// live process can be read back by the context-inference component as
// a stand-in for "the untrusted-app profile."
package donor

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/klauspost/compress/gzip"

	"cros.local/shellas/internal/donor/assets"
)

// State names the provisioner's position in the Absent -> Staged ->
// Installed -> Running -> Located lifecycle.
type State int

const (
	Absent State = iota
	Staged
	Installed
	Running
	Located
)

// stagingPath is a fixed path under the device's world-writable
// temporary directory. It is a var, not a const, purely so tests can
// redirect it to a temp directory instead of touching /data/local/tmp.
var stagingPath = "/data/local/tmp/shellas-donor.pkg"

const (
	// packageID is the fixed reverse-domain identifier the installer
	// registers the donor under and the PID search matches against.
	packageID = "com.chromium.shellas.donor"

	mainActivity = packageID + "/.MainActivity"

	locateRetries = 5
)

// locateBackoff is a var, not a const, so tests can shrink the
// retry-loop's one-second backoff instead of actually waiting on it.
var locateBackoff = time.Second

// runner abstracts the external commands the provisioner shells out
// to, so tests can substitute a fake without touching the real
// package manager or activity manager.
type runner interface {
	Run(name string, args ...string) error
}

// execRunner runs real commands via the OS, logging each invocation
// the way the rest of this module logs subprocess commands.
type execRunner struct{}

// Provisioner drives the donor through its lifecycle and reports the
// PID of the running instance once located.
type Provisioner struct {
	state     State
	runner    runner
	locatePID func(packageID string) (int, error)
}

// New returns a Provisioner in the Absent state, using the real OS
// package and activity managers.
func New() *Provisioner {
	return &Provisioner{state: Absent, runner: execRunner{}, locatePID: findPIDByPackage}
}

// State reports the provisioner's current lifecycle position.
func (p *Provisioner) State() State {
	return p.state
}

// Provision drives the full Absent -> Located sequence and returns
// the donor's PID. Calling Provision twice in succession on a fresh
// Provisioner each time yields the same final state and, barring PID
// re-use by the kernel, the same PID.
func (p *Provisioner) Provision() (int, error) {
	if err := p.stage(); err != nil {
		return 0, err
	}
	if err := p.install(); err != nil {
		return 0, err
	}
	if err := p.launch(); err != nil {
		return 0, err
	}
	return p.locate()
}

// stage decompresses the embedded donor package and writes it to the
// fixed staging path, truncating any prior file there.
func (p *Provisioner) stage() error {
	gz, err := gzip.NewReader(bytes.NewReader(assets.DonorPackageGz))
	if err != nil {
		return fmt.Errorf("donor: open embedded package: %w", err)
	}
	defer gz.Close()

	f, err := os.OpenFile(stagingPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("donor: stage %s: %w", stagingPath, err)
	}
	defer f.Close()

	if _, err := f.ReadFrom(gz); err != nil {
		return fmt.Errorf("donor: decompress into %s: %w", stagingPath, err)
	}

	p.state = Staged
	return nil
}

// install makes the installer idempotent by uninstalling first,
// unconditionally and without checking the result, then installs the
// staged package granting all runtime permissions.
func (p *Provisioner) install() error {
	_ = p.runner.Run("pm", "uninstall", packageID)

	if err := p.runner.Run("pm", "install", "-g", stagingPath); err != nil {
		return fmt.Errorf("donor: install %s: %w", stagingPath, err)
	}

	p.state = Installed
	return nil
}

// launch starts the donor's main activity.
func (p *Provisioner) launch() error {
	if err := p.runner.Run("am", "start", "-n", mainActivity); err != nil {
		return fmt.Errorf("donor: launch %s: %w", mainActivity, err)
	}

	p.state = Running
	return nil
}

// locate polls the process table for the donor's PID, retrying up to
// locateRetries times with a one-second backoff because process
// creation after am start is asynchronous.
func (p *Provisioner) locate() (int, error) {
	var lastErr error
	for attempt := 0; attempt < locateRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(locateBackoff)
		}
		pid, err := p.locatePID(packageID)
		if err == nil {
			p.state = Located
			return pid, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("donor: locate %s after %d attempts: %w", packageID, locateRetries, lastErr)
}

// findPIDByPackage scans /proc for a process whose cmdline matches
// packageID exactly, the way the platform's activity manager names
// application processes after their package.
func findPIDByPackage(packageID string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, fmt.Errorf("read /proc: %w", err)
	}

	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		cmdline, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
		if err != nil {
			continue
		}

		fields := strings.Split(string(cmdline), "\x00")
		if len(fields) > 0 && fields[0] == packageID {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("no process named %q", packageID)
}

func (execRunner) Run(name string, args ...string) error {
	argv := append([]string{name}, args...)
	fmt.Fprintf(os.Stderr, "[shell-as donor] %s\n", shellescape.QuoteCommand(argv))

	cmd := newCommand(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%w: %s", err, firstLine(stderr.String()))
		}
		return err
	}
	return nil
}

func newCommand(name string, args ...string) *exec.Cmd {
	return exec.Command(name, args...)
}

func firstLine(s string) string {
	scanner := bufio.NewScanner(strings.NewReader(s))
	if scanner.Scan() {
		return scanner.Text()
	}
	return s
}
