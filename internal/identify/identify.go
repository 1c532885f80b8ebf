// Package identify maps an ambiguous taskbar element to the concrete process
// that owns it, through an ordered chain of deterministic strategies.
package identify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/knobd/knobd/internal/mapping"
	"github.com/knobd/knobd/internal/uia"
	"github.com/knobd/knobd/internal/wm"
)

// Method names the strategy that produced an identification.
type Method string

const (
	MethodDirect        Method = "direct"
	MethodWindowTitle   Method = "window-title"
	MethodManualMapping Method = "manual-mapping"
)

// Result is one identification outcome. A zero PID means no strategy
// succeeded.
type Result struct {
	PID     uint32
	AppName string
	Method  Method
}

// Success reports whether a process was identified.
func (r Result) Success() bool {
	return r.PID != 0
}

// ProcessTable is the process capability consumed by identification.
type ProcessTable interface {
	Name(pid uint32) (string, error)
	Exists(pid uint32) bool
	PidsOf(name string) []uint32
	Self() uint32
}

// Windows lists top-level windows and resolves compositor handles to pids.
type Windows interface {
	ListWindows(ctx context.Context) ([]wm.Window, error)
	PIDForAddress(ctx context.Context, address string) (uint32, bool)
}

// MappingSource loads the persisted manual mappings.
type MappingSource interface {
	Load() mapping.Mappings
}

// Identifier runs the strategy chain: direct handle/pid lookup, window-title
// matching, then manual mappings. First success wins.
type Identifier struct {
	procs    ProcessTable
	windows  Windows
	mappings MappingSource
	logger   *slog.Logger
}

// New builds an Identifier. A nil logger disables logging.
func New(procs ProcessTable, windows Windows, mappings MappingSource, logger *slog.Logger) *Identifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Identifier{procs: procs, windows: windows, mappings: mappings, logger: logger}
}

// Identify resolves the element to a process id. Each strategy boundary is a
// cancellation checkpoint.
func (i *Identifier) Identify(ctx context.Context, element *uia.Element, extractedName string) (Result, error) {
	if result := i.direct(ctx, element); result.Success() {
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if result := i.byWindowTitle(ctx, extractedName); result.Success() {
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if result := i.byMapping(ctx, extractedName); result.Success() {
		return result, nil
	}

	return Result{}, ctx.Err()
}

// direct reads a pid straight off the element. A compositor window handle is
// preferred and marks the pid explorer-allowed: a shell-owned taskbar button
// legitimately resolves to the shell process on this one path.
func (i *Identifier) direct(ctx context.Context, element *uia.Element) Result {
	if element == nil {
		return Result{}
	}

	var (
		pid           uint32
		allowExplorer bool
	)
	if element.WindowAddress != "" {
		if fromWindow, ok := i.windows.PIDForAddress(ctx, element.WindowAddress); ok {
			pid = fromWindow
			allowExplorer = true
		}
	}
	if pid == 0 && element.HasPID {
		pid = element.PID
		allowExplorer = false
	}

	if pid == 0 || !i.IsValidAppPid(pid, allowExplorer) {
		return Result{}
	}
	return Result{PID: pid, AppName: i.nameOrUnknown(pid), Method: MethodDirect}
}

// byWindowTitle scores every visible, non-hidden, titled window against the
// extracted name and picks the best match, preferring non-minimized windows
// on ties.
func (i *Identifier) byWindowTitle(ctx context.Context, extractedName string) Result {
	if !uia.UsableName(extractedName) {
		return Result{}
	}

	windows, err := i.windows.ListWindows(ctx)
	if err != nil {
		i.logger.Warn("window enumeration failed", "error", err.Error())
		return Result{}
	}

	var (
		bestPID       uint32
		bestScore     int
		bestMinimized bool
	)
	for _, window := range windows {
		if ctx.Err() != nil {
			return Result{}
		}
		if window.Hidden || strings.TrimSpace(window.Title) == "" || window.PID == 0 {
			continue
		}

		score := MatchScore(window.Title, extractedName)
		if score == 0 || score < bestScore {
			continue
		}
		if score == bestScore && !(bestMinimized && !window.Minimized) {
			continue
		}
		if !i.IsValidAppPid(window.PID, true) {
			continue
		}
		bestPID, bestScore, bestMinimized = window.PID, score, window.Minimized
	}

	if bestPID == 0 {
		return Result{}
	}
	return Result{PID: bestPID, AppName: i.nameOrUnknown(bestPID), Method: MethodWindowTitle}
}

// byMapping consults the manual mapping store and returns the first valid
// running process among the stored candidates, in enumeration order.
func (i *Identifier) byMapping(ctx context.Context, extractedName string) Result {
	if !uia.UsableName(extractedName) {
		return Result{}
	}

	candidates, ok := i.mappings.Load().Lookup(extractedName)
	if !ok {
		return Result{}
	}

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return Result{}
		}
		for _, pid := range i.procs.PidsOf(candidate) {
			if !i.IsValidAppPid(pid, false) {
				continue
			}
			return Result{PID: pid, AppName: i.nameOrUnknown(pid), Method: MethodManualMapping}
		}
	}
	return Result{}
}

func (i *Identifier) nameOrUnknown(pid uint32) string {
	name, err := i.procs.Name(pid)
	if err != nil || name == "" {
		return "Unknown"
	}
	return name
}
