package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsonConfig struct {
	Hotkey          *jsonHotkey `json:"hotkey"`
	Knob            *jsonKnob   `json:"knob"`
	LaunchAtStartup *bool       `json:"launch_at_startup"`
	ManualMappings  []string    `json:"manual_mappings"`
}

type jsonHotkey struct {
	Ctrl  *bool `json:"ctrl"`
	Alt   *bool `json:"alt"`
	Shift *bool `json:"shift"`
	Win   *bool `json:"win"`
}

type jsonKnob struct {
	ShowPeakMeter *bool `json:"show_peak_meter"`
	OffsetX       *int  `json:"offset_x"`
	OffsetY       *int  `json:"offset_y"`
	TopThreshold  *int  `json:"top_threshold"`
	TopOffsetY    *int  `json:"top_offset_y"`
}

// Parse overlays JSON content (with // line comments tolerated) onto base.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	var overlay jsonConfig
	if err := json.Unmarshal([]byte(stripLineComments(content)), &overlay); err != nil {
		return Config{}, nil, fmt.Errorf("decode config json: %w", err)
	}

	cfg := base
	if overlay.Hotkey != nil {
		applyBool(&cfg.Hotkey.Ctrl, overlay.Hotkey.Ctrl)
		applyBool(&cfg.Hotkey.Alt, overlay.Hotkey.Alt)
		applyBool(&cfg.Hotkey.Shift, overlay.Hotkey.Shift)
		applyBool(&cfg.Hotkey.Win, overlay.Hotkey.Win)
	}
	if overlay.Knob != nil {
		applyBool(&cfg.Knob.ShowPeakMeter, overlay.Knob.ShowPeakMeter)
		applyInt(&cfg.Knob.OffsetX, overlay.Knob.OffsetX)
		applyInt(&cfg.Knob.OffsetY, overlay.Knob.OffsetY)
		applyInt(&cfg.Knob.TopThreshold, overlay.Knob.TopThreshold)
		applyInt(&cfg.Knob.TopOffsetY, overlay.Knob.TopOffsetY)
	}
	applyBool(&cfg.LaunchAtStartup, overlay.LaunchAtStartup)
	if overlay.ManualMappings != nil {
		cfg.ManualMappings = overlay.ManualMappings
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// stripLineComments removes // comments that start a line or follow whitespace.
// It does not attempt to preserve // sequences inside strings beyond requiring
// the comment marker to begin the trimmed remainder of the line.
func stripLineComments(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
