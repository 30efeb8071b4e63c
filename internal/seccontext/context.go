// Package seccontext defines the security context a child process is
// transitioned into before its own first instruction runs.
package seccontext

import (
	"fmt"

	"kernel.org/pub/linux/libs/security/libcap/cap"
)

// FilterProfile names an opaque, installable syscall filter policy.
type FilterProfile int

const (
	FilterNone FilterProfile = iota
	FilterApp
	FilterAppZygote
	FilterSystem
)

func (f FilterProfile) String() string {
	switch f {
	case FilterApp:
		return "app"
	case FilterAppZygote:
		return "app-zygote"
	case FilterSystem:
		return "system"
	default:
		return "none"
	}
}

// Context is the entire specification of a target security posture.
// Every field is optional: a nil/unset field means "do not change that
// attribute". SupplementaryGroupIDs is distinguished from "absent" by
// GroupsSet, because an explicitly empty list ("clear supplementary
// groups") is a different request than "leave them alone".
//
// A Context is immutable once handed to the orchestrator.
type Context struct {
	UserID                *uint32
	GroupID               *uint32
	GroupsSet             bool
	SupplementaryGroupIDs []uint32
	MACLabel              *string
	SyscallFilter         *FilterProfile
	Capabilities          *cap.Set
}

// Clone returns a value-independent copy. Capabilities is not deep
// copied; the *cap.Set itself is treated as immutable after it is set,
// matching the Context as a whole.
func (c *Context) Clone() *Context {
	clone := *c
	if c.SupplementaryGroupIDs != nil {
		clone.SupplementaryGroupIDs = append([]uint32(nil), c.SupplementaryGroupIDs...)
	}
	return &clone
}

// DumpLines renders the six verbose-dump lines in the fixed field
// order: user ID, group ID, supplementary group IDs, MAC, syscall
// filter, capabilities.
func (c *Context) DumpLines() []string {
	lines := make([]string, 0, 6)
	lines = append(lines, "\tuid = "+optUint32(c.UserID))
	lines = append(lines, "\tgid = "+optUint32(c.GroupID))
	lines = append(lines, "\tgroups = "+c.groupsText())
	lines = append(lines, "\tselinux = "+optString(c.MACLabel))
	lines = append(lines, "\tseccomp = "+c.filterText())
	lines = append(lines, "\tcaps = "+c.capsText())
	return lines
}

func (c *Context) groupsText() string {
	if !c.GroupsSet {
		return "<no value>"
	}
	return fmt.Sprint(c.SupplementaryGroupIDs)
}

func (c *Context) filterText() string {
	if c.SyscallFilter == nil {
		return "<no value>"
	}
	return c.SyscallFilter.String()
}

func (c *Context) capsText() string {
	if c.Capabilities == nil {
		return "<no value>"
	}
	return c.Capabilities.String()
}

func optUint32(v *uint32) string {
	if v == nil {
		return "<no value>"
	}
	return fmt.Sprint(*v)
}

func optString(v *string) string {
	if v == nil {
		return "<no value>"
	}
	return *v
}
