// Package uia exposes the accessibility-tree capability used to resolve a
// screen point to a taskbar element and its display name.
package uia

import (
	"context"
	"regexp"
	"strings"
)

// Name sentinels carried through the pipeline instead of errors; a sentinel
// name is never usable for matching or mapping.
const (
	ErrorName   = "[Error getting name]"
	UnknownName = "[Unknown]"
)

// Element is a snapshot of one accessibility-tree node.
type Element struct {
	// Name is the accessible name, or ErrorName when it could not be read.
	Name string

	// PID is the owning process reported by the accessibility layer.
	PID    uint32
	HasPID bool

	// WindowAddress is the compositor window handle backing this node, when
	// the node has one. Empty for sub-window widgets like taskbar buttons.
	WindowAddress string

	// Ref is a scanner-private node reference used for ancestor walks.
	Ref string
}

// Scanner resolves screen points to elements and walks toward the taskbar.
type Scanner interface {
	// ElementFromPoint returns the deepest element at the screen point, or
	// nil when nothing is there.
	ElementFromPoint(ctx context.Context, x, y int) (*Element, error)

	// TaskbarAncestor walks up from the element, bounded by a small max
	// depth, and returns the nearest ancestor owned by the shell taskbar.
	// Nil when the element is not inside a taskbar.
	TaskbarAncestor(ctx context.Context, element *Element) (*Element, error)
}

// UsableName reports whether a name can drive title matching or mapping
// lookups.
func UsableName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && name != ErrorName && name != UnknownName
}

var runningWindowsSuffix = regexp.MustCompile(`(?i)^(.*?)(?:\s*-\s*\d+\s+running\s+windows?)?$`)

// ExtractAppName strips the "- N running windows" suffix a taskbar group
// button appends to its accessible name.
func ExtractAppName(uiaName string) string {
	if strings.TrimSpace(uiaName) == "" || uiaName == ErrorName {
		return ""
	}
	match := runningWindowsSuffix.FindStringSubmatch(uiaName)
	if len(match) > 1 && strings.TrimSpace(match[1]) != "" {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(uiaName)
}
