package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// Save persists cfg as indented JSON, creating the parent directory if needed.
// Hand-written comments in an existing file are not preserved.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}

	doc := jsonConfig{
		Hotkey: &jsonHotkey{
			Ctrl:  &cfg.Hotkey.Ctrl,
			Alt:   &cfg.Hotkey.Alt,
			Shift: &cfg.Hotkey.Shift,
			Win:   &cfg.Hotkey.Win,
		},
		Knob: &jsonKnob{
			ShowPeakMeter: &cfg.Knob.ShowPeakMeter,
			OffsetX:       &cfg.Knob.OffsetX,
			OffsetY:       &cfg.Knob.OffsetY,
			TopThreshold:  &cfg.Knob.TopThreshold,
			TopOffsetY:    &cfg.Knob.TopOffsetY,
		},
		LaunchAtStartup: &cfg.LaunchAtStartup,
		ManualMappings:  cfg.ManualMappings,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}
