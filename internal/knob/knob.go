// Package knob owns the lifecycle of on-screen volume controls: at most one
// visible at a time, positioned near the click with edge avoidance, reaped
// when the owning process exits.
package knob

import (
	"context"

	"github.com/knobd/knobd/internal/audio"
	"github.com/knobd/knobd/internal/wm"
)

// Window is one on-screen volume control surface.
type Window interface {
	// ShowAt makes the window visible at the given screen position.
	ShowAt(ctx context.Context, x, y int) error
	// Move repositions an already-shown window.
	Move(ctx context.Context, x, y int) error
	Hide(ctx context.Context) error
	Visible() bool
	// Size reports the rendered dimensions, or (0, 0) when not yet known.
	Size() (width, height int)
	// Close releases the window surface. The bound session is released by
	// the manager, not the window.
	Close()
}

// Factory builds a window bound to one audio session.
type Factory interface {
	New(session audio.Session) (Window, error)
}

// Liveness answers whether a process still exists. Implementations must
// treat permission errors as alive.
type Liveness interface {
	Exists(pid uint32) bool
}

// Placement computes where a control opens relative to the click point.
// Clicks near the top of the work area drop the control below the cursor
// instead of above it, then the position is clamped into the work area.
type Placement struct {
	OffsetX      int
	OffsetY      int
	TopThreshold int
	TopOffsetY   int
}

// At returns the clamped top-left position for a click at (x, y) inside
// area. Bottom/right clamping needs the rendered size and happens separately.
func (p Placement) At(x, y int, area wm.Rect) (int, int) {
	yOffset := p.OffsetY
	if y-area.Y < p.TopThreshold {
		yOffset = p.TopOffsetY
	}

	finalX := max(area.X, x+p.OffsetX)
	finalY := max(area.Y, y+yOffset)
	return finalX, finalY
}

// ClampToArea pulls a position back inside area given the rendered size.
// Returns the adjusted position and whether it changed.
func (p Placement) ClampToArea(x, y, width, height int, area wm.Rect) (int, int, bool) {
	moved := false
	if x+width > area.X+area.Width {
		x = area.X + area.Width - width
		moved = true
	}
	if y+height > area.Y+area.Height {
		y = area.Y + area.Height - height
		moved = true
	}
	return x, y, moved
}
