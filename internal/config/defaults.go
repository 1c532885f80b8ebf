package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Hotkey: HotkeyConfig{Ctrl: true},
		Knob: KnobConfig{
			ShowPeakMeter: true,
			OffsetX:       140,
			OffsetY:       -305,
			TopThreshold:  350,
			TopOffsetY:    50,
		},
		LaunchAtStartup: false,
		ManualMappings:  nil,
	}
}
