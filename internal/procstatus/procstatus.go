// Package procstatus reads identity fields out of /proc/<pid>/status, the
// same way the kernel's own task_state() renders them.
package procstatus

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"cros.local/shellas/internal/idparse"
)

// Identities is the subset of /proc/<pid>/status this launcher infers a
// target security context from.
type Identities struct {
	UID    uint32
	GID    uint32
	Groups []uint32
}

// ReadIdentities parses the Uid, Gid, and Groups lines out of
// /proc/<pid>/status. Each of Uid/Gid records four whitespace-separated
// values (real, effective, saved, filesystem); only the first, the real
// ID, is kept. Groups lists the supplementary group IDs, and all of them
// are kept. A missing or malformed line fails the whole
// read rather than returning a partial Identities.
func ReadIdentities(pid int) (Identities, error) {
	path := fmt.Sprintf("/proc/%d/status", pid)
	f, err := os.Open(path)
	if err != nil {
		return Identities{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var (
		ids     Identities
		sawUID  bool
		sawGID  bool
		sawGrps bool
	)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "Uid:"):
			vals, err := idparse.SplitAndParseIDs(line, " \t", 1)
			if err != nil {
				return Identities{}, fmt.Errorf("parse Uid line %q: %w", line, err)
			}
			if len(vals) == 0 {
				return Identities{}, fmt.Errorf("parse Uid line %q: no values", line)
			}
			ids.UID = vals[0]
			sawUID = true
		case strings.HasPrefix(line, "Gid:"):
			vals, err := idparse.SplitAndParseIDs(line, " \t", 1)
			if err != nil {
				return Identities{}, fmt.Errorf("parse Gid line %q: %w", line, err)
			}
			if len(vals) == 0 {
				return Identities{}, fmt.Errorf("parse Gid line %q: no values", line)
			}
			ids.GID = vals[0]
			sawGID = true
		case strings.HasPrefix(line, "Groups:"):
			vals, err := idparse.SplitAndParseIDs(line, " \t", 1)
			if err != nil {
				return Identities{}, fmt.Errorf("parse Groups line %q: %w", line, err)
			}
			ids.Groups = vals
			sawGrps = true
		}
	}
	if err := scanner.Err(); err != nil {
		return Identities{}, fmt.Errorf("scan %s: %w", path, err)
	}
	if !sawUID || !sawGID || !sawGrps {
		return Identities{}, fmt.Errorf("%s: missing Uid, Gid, or Groups line", path)
	}
	return ids, nil
}
