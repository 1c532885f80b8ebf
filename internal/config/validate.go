package config

import "fmt"

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Knob.TopThreshold < 0 {
		return nil, fmt.Errorf("knob.top_threshold must be >= 0")
	}

	if !cfg.Hotkey.Any() {
		warnings = append(warnings, Warning{
			Message: "hotkey has no modifiers enabled; no right-click will ever qualify",
		})
	}

	return warnings, nil
}
