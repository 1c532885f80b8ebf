package identify

import (
	"errors"
	"strings"

	"github.com/knobd/knobd/internal/proc"
)

// systemProcessNames are shell and OS helper processes that taskbar elements
// frequently resolve to via naive handle lookup; none of them is ever the
// user-facing app the click was aimed at.
var systemProcessNames = map[string]struct{}{
	"explorer":                {},
	"svchost":                 {},
	"dwm":                     {},
	"csrss":                   {},
	"wininit":                 {},
	"services":                {},
	"lsass":                   {},
	"smss":                    {},
	"system":                  {},
	"idle":                    {},
	"registry":                {},
	"sihost":                  {},
	"ctfmon":                  {},
	"fontdrvhost":             {},
	"applicationframehost":    {},
	"shellexperiencehost":     {},
	"startmenuexperiencehost": {},
	"searchhost":              {},
	"searchapp":               {},
	"searchindexer":           {},
	"runtimebroker":           {},
	"securityhealthsystray":   {},
	"textinputhost":           {},
	"taskhostw":               {},
	"dllhost":                 {},
	"consent":                 {},
	"audiodg":                 {},
}

// IsValidAppPid reports whether pid is a plausible user-facing application.
// allowExplorer admits the shell process itself, which is a legitimate answer
// only when the element's own window handle resolved to it.
func (i *Identifier) IsValidAppPid(pid uint32, allowExplorer bool) bool {
	if pid == 0 || pid == i.procs.Self() {
		return false
	}
	if !i.procs.Exists(pid) {
		return false
	}

	name, err := i.procs.Name(pid)
	if errors.Is(err, proc.ErrGone) {
		return false
	}
	if err != nil {
		// The process exists but is unreadable (elevated or restricted).
		// Treat it as valid rather than producing a false negative.
		return true
	}

	normalized := strings.ToLower(strings.TrimSuffix(name, ".exe"))
	if _, denied := systemProcessNames[normalized]; denied {
		return allowExplorer && normalized == "explorer"
	}
	return true
}
