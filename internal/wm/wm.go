// Package wm queries top-level windows and monitor geometry from the
// compositor. The production implementation shells out to hyprctl.
package wm

import "context"

// Window is one top-level window as seen by the compositor.
type Window struct {
	Address   string
	Title     string
	PID       uint32
	Hidden    bool
	Minimized bool
}

// Rect is a screen-space rectangle.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Querier is the read-only window/monitor capability consumed by the core.
type Querier interface {
	// ListWindows returns every top-level window, including hidden ones;
	// callers filter on Hidden/Title.
	ListWindows(ctx context.Context) ([]Window, error)
	// WorkAreaAt returns the usable work area of the monitor containing the
	// point, with panel reservations subtracted.
	WorkAreaAt(ctx context.Context, x, y int) (Rect, error)
}
