// Package audio resolves per-process playback sessions on the default output
// device and exposes their volume, mute, and peak controls.
package audio

import (
	"context"
	"fmt"
	"strings"
)

// Session is one audio-controllable per-process stream. Accessors are
// fail-soft: on a backend failure they return a quiet default instead of an
// error. Release must be called exactly once when the session is no longer
// needed.
type Session interface {
	PID() uint32
	DisplayName() string

	Volume() float32
	SetVolume(volume float32) error
	Muted() bool
	SetMute(muted bool) error

	// Peak is the instantaneous output level, 0.0 to 1.0, polled.
	Peak() float32

	Release()
}

// Resolver enumerates active sessions on the default playback device. The
// device handle is re-acquired on every call because the default output can
// change between clicks.
type Resolver interface {
	// SessionForProcess returns the session owned by pid, or nil when the
	// process has no active session.
	SessionForProcess(ctx context.Context, pid uint32) (Session, error)

	// Sessions returns every active session with a known owning pid.
	Sessions(ctx context.Context) ([]Session, error)
}

// ProcessNamer supplies executable names for session display-name fallback.
type ProcessNamer interface {
	Name(pid uint32) (string, error)
}

// Clamp bounds a volume into [0, 1].
func Clamp(volume float32) float32 {
	if volume < 0 {
		return 0
	}
	if volume > 1 {
		return 1
	}
	return volume
}

// resolveDisplayName applies the fallback chain: session-reported name,
// process executable name, then a pid placeholder.
func resolveDisplayName(sessionName, processName string, pid uint32) string {
	if name := strings.TrimSpace(sessionName); name != "" {
		return name
	}
	if name := strings.TrimSpace(processName); name != "" {
		return name
	}
	return fmt.Sprintf("PID: %d", pid)
}
