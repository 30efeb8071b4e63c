// Package payload supplies the opaque, position-independent machine
// code blobs the tracer injects into a stopped tracee. MACLabelPayload
// and TrapPayload return plain byte slices; neither they nor the tracer
// stage the blobs in executable memory. EnsureExecutable performs that
// staging as a separate check.
//
// The code bytes themselves are architecture-specific and are defined
// per GOARCH in payload_<arch>.go; this file only holds the assembly
// and staging logic that is common across architectures.
package payload

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// archKey selects which architecture's code tables apply. It is a
// variable, not a constant, purely so tests can't be tempted to
// shadow runtime.GOARCH; production code never reassigns it.
var archKey = runtime.GOARCH

// archCode is the per-architecture description of one payload: its
// machine code and, for payloads that end by raising a signal on
// themselves, the signal number the driver should expect to observe.
type archCode struct {
	code   []byte
	signal int
}

// macLabelCode and trapCode are populated by the per-GOARCH
// payload_<arch>.go file compiled into the binary; exactly one of
// those files is ever built into a given binary.
var (
	macLabelCode = map[string]archCode{}
	trapCode     = map[string]archCode{}
)

// MACLabelPayload returns the position-independent machine code that
// sets the MAC label of the calling thread to label, followed by the
// label's bytes with a trailing NUL the code expects immediately after
// its own final instruction. The returned length includes the label.
func MACLabelPayload(label string) ([]byte, error) {
	arch, ok := macLabelCode[archKey]
	if !ok {
		return nil, fmt.Errorf("payload: no set-MAC-label payload for %s", archKey)
	}
	if len(label) == 0 {
		return nil, fmt.Errorf("payload: empty MAC label")
	}

	buf := make([]byte, 0, len(arch.code)+len(label)+1)
	buf = append(buf, arch.code...)
	buf = append(buf, label...)
	buf = append(buf, 0)
	return buf, nil
}

// TrapPayload returns the minimal machine code that raises a stop
// signal on the calling thread, and the signal number the driver
// should wait for. It is used to break execution at a tracee's entry
// point regardless of whether the entry is reached via a statically or
// dynamically linked image.
func TrapPayload() ([]byte, int, error) {
	arch, ok := trapCode[archKey]
	if !ok {
		return nil, 0, fmt.Errorf("payload: no trap payload for %s", archKey)
	}
	return append([]byte(nil), arch.code...), arch.signal, nil
}

// EnsureExecutable stages code in a fresh, page-aligned anonymous
// mapping, marks it read-execute, and reports whether that succeeded.
// It checks that the bytes are placeable in executable memory at all;
// the mapping is unmapped before EnsureExecutable returns.
func EnsureExecutable(code []byte) error {
	if len(code) == 0 {
		return fmt.Errorf("payload: empty code")
	}

	mem, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return fmt.Errorf("payload: stage mmap: %w", err)
	}
	defer unix.Munmap(mem)

	copy(mem, code)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("payload: mark executable: %w", err)
	}
	return nil
}
