// Package config resolves, parses, validates, and persists knobd configuration.
package config

// Config is the fully materialized runtime configuration used by knobd.
type Config struct {
	Hotkey          HotkeyConfig
	Knob            KnobConfig
	LaunchAtStartup bool

	// ManualMappings holds encoded "<uiName>|<proc1>;<proc2>" entries.
	// Parsing and merge semantics live in the mapping package.
	ManualMappings []string
}

// HotkeyConfig is the modifier combination that qualifies a right-click.
type HotkeyConfig struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Win   bool
}

// Any reports whether at least one modifier is required. A combination with
// no modifiers never qualifies a click.
func (h HotkeyConfig) Any() bool {
	return h.Ctrl || h.Alt || h.Shift || h.Win
}

// KnobConfig controls on-screen knob placement and metering display.
type KnobConfig struct {
	ShowPeakMeter bool

	// Placement offsets relative to the click point. When the click is within
	// TopThreshold of the work area's top edge, TopOffsetY replaces OffsetY so
	// the knob opens downward instead of clipping off-screen.
	OffsetX      int
	OffsetY      int
	TopThreshold int
	TopOffsetY   int
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Message string
}
