package uia

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Accessibility nodes whose application or role marks them as part of the
// shell taskbar family.
var taskbarApps = map[string]struct{}{
	"waybar":       {},
	"nwg-panel":    {},
	"plasmashell":  {},
	"gnome-panel":  {},
	"xfce4-panel":  {},
	"taskbar":      {},
	"hyprpanel":    {},
	"eww":          {},
	"ags":          {},
	"lxqt-panel":   {},
	"polybar":      {},
	"cairo-dock":   {},
	"latte-dock":   {},
	"budgie-panel": {},
}

const ancestorMaxDepth = 8

// AtspiScanner resolves elements through the AT-SPI registry. Each query
// shells out to gdbus against the dedicated accessibility bus; every accessor
// is fail-soft.
type AtspiScanner struct {
	busAddress string
}

// NewAtspiScanner resolves the accessibility bus address. A missing a11y bus
// is a fatal startup condition for the daemon.
func NewAtspiScanner(ctx context.Context) (*AtspiScanner, error) {
	out, err := exec.CommandContext(ctx,
		"busctl", "--user", "call",
		"org.a11y.Bus", "/org/a11y/bus", "org.a11y.Bus", "GetAddress",
	).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("resolve accessibility bus: %w", err)
		}
		return nil, fmt.Errorf("resolve accessibility bus: %w (%s)", err, trimmed)
	}

	address := parseBusctlString(string(out))
	if address == "" {
		return nil, fmt.Errorf("accessibility bus returned empty address")
	}
	return &AtspiScanner{busAddress: address}, nil
}

// ElementFromPoint asks the registry root which accessible is under the
// screen point.
func (s *AtspiScanner) ElementFromPoint(ctx context.Context, x, y int) (*Element, error) {
	// Coordinate type 0 = screen coordinates.
	out, err := s.call(ctx,
		"org.a11y.atspi.Registry", "/org/a11y/atspi/accessible/root",
		"org.a11y.atspi.Component.GetAccessibleAtPoint",
		strconv.Itoa(x), strconv.Itoa(y), "0",
	)
	if err != nil {
		return nil, err
	}

	dest, path := parseAccessibleRef(out)
	if path == "" || strings.HasSuffix(path, "/null") {
		return nil, nil
	}
	return s.snapshot(ctx, dest, path), nil
}

// TaskbarAncestor walks parents looking for a node owned by a known shell
// taskbar application.
func (s *AtspiScanner) TaskbarAncestor(ctx context.Context, element *Element) (*Element, error) {
	if element == nil {
		return nil, nil
	}

	dest, path, ok := splitRef(element.Ref)
	if !ok {
		return nil, nil
	}

	current := element
	for depth := 0; depth < ancestorMaxDepth; depth++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s.isTaskbarNode(ctx, dest, path) {
			return current, nil
		}

		out, err := s.call(ctx, dest, path, "org.freedesktop.DBus.Properties.Get",
			"org.a11y.atspi.Accessible", "Parent")
		if err != nil {
			return nil, nil
		}
		parentDest, parentPath := parseAccessibleRef(out)
		if parentPath == "" || strings.HasSuffix(parentPath, "/null") || parentPath == path {
			return nil, nil
		}
		dest, path = parentDest, parentPath
		current = s.snapshot(ctx, dest, path)
	}
	return nil, nil
}

// snapshot reads the fail-soft property set for a node.
func (s *AtspiScanner) snapshot(ctx context.Context, dest, path string) *Element {
	element := &Element{Name: ErrorName, Ref: dest + "::" + path}

	if out, err := s.call(ctx, dest, path, "org.freedesktop.DBus.Properties.Get",
		"org.a11y.atspi.Accessible", "Name"); err == nil {
		element.Name = parseBusctlString(out)
	}

	if out, err := s.call(ctx, dest, path, "org.a11y.atspi.Accessible.GetApplication"); err == nil {
		appDest, appPath := parseAccessibleRef(out)
		if pidOut, err := s.call(ctx, appDest, appPath, "org.freedesktop.DBus.Properties.Get",
			"org.a11y.atspi.Application", "ProcessID"); err == nil {
			if pid := parseBusctlUint(pidOut); pid != 0 {
				element.PID = pid
				element.HasPID = true
			}
		}
	}

	// Top-level frames advertise their compositor handle; widgets do not.
	if out, err := s.call(ctx, dest, path, "org.freedesktop.DBus.Properties.Get",
		"org.a11y.atspi.Accessible", "WindowID"); err == nil {
		element.WindowAddress = parseBusctlString(out)
	}

	return element
}

func (s *AtspiScanner) isTaskbarNode(ctx context.Context, dest, path string) bool {
	out, err := s.call(ctx, dest, path, "org.a11y.atspi.Accessible.GetApplication")
	if err != nil {
		return false
	}
	appDest, appPath := parseAccessibleRef(out)

	nameOut, err := s.call(ctx, appDest, appPath, "org.freedesktop.DBus.Properties.Get",
		"org.a11y.atspi.Accessible", "Name")
	if err != nil {
		return false
	}
	_, known := taskbarApps[strings.ToLower(strings.TrimSpace(parseBusctlString(nameOut)))]
	return known
}

// call invokes one method on the accessibility bus through gdbus.
func (s *AtspiScanner) call(ctx context.Context, dest, path, method string, args ...string) (string, error) {
	dotIndex := strings.LastIndex(method, ".")
	if dotIndex <= 0 {
		return "", fmt.Errorf("malformed method %q", method)
	}

	gdbusArgs := []string{
		"call", "--address", s.busAddress,
		"--dest", dest,
		"--object-path", path,
		"--method", method,
	}
	gdbusArgs = append(gdbusArgs, args...)

	out, err := exec.CommandContext(ctx, "gdbus", gdbusArgs...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return "", fmt.Errorf("gdbus %s failed: %w", method, err)
		}
		return "", fmt.Errorf("gdbus %s failed: %w (%s)", method, err, trimmed)
	}
	return string(out), nil
}

var (
	// busctl quotes strings with double quotes, gdbus with single quotes.
	quotedString  = regexp.MustCompile(`["']([^"']*)["']`)
	accessibleRef = regexp.MustCompile(`'(:[^']+)'\s*,\s*(?:objectpath\s+)?'(/[^']*)'`)
	unsignedValue = regexp.MustCompile(`\b(\d+)\b`)
)

// parseBusctlString extracts the first quoted string from busctl/gdbus output.
func parseBusctlString(out string) string {
	match := quotedString.FindStringSubmatch(out)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// parseAccessibleRef extracts a (busname, objectpath) accessible reference.
func parseAccessibleRef(out string) (string, string) {
	match := accessibleRef.FindStringSubmatch(out)
	if len(match) < 3 {
		return "", ""
	}
	return match[1], match[2]
}

func parseBusctlUint(out string) uint32 {
	match := unsignedValue.FindStringSubmatch(out)
	if len(match) < 2 {
		return 0
	}
	value, err := strconv.ParseUint(match[1], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(value)
}

func splitRef(ref string) (string, string, bool) {
	parts := strings.SplitN(ref, "::", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
