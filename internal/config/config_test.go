package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrefersExplicit(t *testing.T) {
	path, err := ResolvePath("/tmp/custom.json")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.json", path)
}

func TestResolvePathUsesXDGConfigHome(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "knobd", "config.json"), path)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
}

func TestParseOverlaysOntoDefaults(t *testing.T) {
	content := `{
  // require ctrl+shift
  "hotkey": {"ctrl": true, "shift": true},
  "knob": {"show_peak_meter": false, "offset_y": -200},
  "manual_mappings": ["Spotify Premium|spotify"]
}`

	cfg, warnings, err := Parse(content, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.True(t, cfg.Hotkey.Ctrl)
	require.True(t, cfg.Hotkey.Shift)
	require.False(t, cfg.Hotkey.Alt)
	require.False(t, cfg.Knob.ShowPeakMeter)
	require.Equal(t, -200, cfg.Knob.OffsetY)
	require.Equal(t, 140, cfg.Knob.OffsetX)
	require.Equal(t, []string{"Spotify Premium|spotify"}, cfg.ManualMappings)
}

func TestParseWarnsWhenNoModifierEnabled(t *testing.T) {
	cfg, warnings, err := Parse(`{"hotkey": {"ctrl": false}}`, Default())
	require.NoError(t, err)
	require.False(t, cfg.Hotkey.Any())
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "no modifiers")
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, _, err := Parse(`{"hotkey": `, Default())
	require.ErrorContains(t, err, "decode config json")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knobd", "config.json")

	cfg := Default()
	cfg.Hotkey.Win = true
	cfg.Knob.ShowPeakMeter = false
	cfg.LaunchAtStartup = true
	cfg.ManualMappings = []string{"Spotify Premium|spotify;spotify-helper"}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, cfg, loaded.Config)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
