package startup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSyncInstallsAndRemovesEntry(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.NoError(t, Sync(true, "/usr/local/bin/knobd"))

	enabled, err := Enabled()
	require.NoError(t, err)
	require.True(t, enabled)

	path, err := EntryPath()
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "Exec=/usr/local/bin/knobd run")
	require.Contains(t, string(content), "[Desktop Entry]")

	require.NoError(t, Sync(false, ""))
	enabled, err = Enabled()
	require.NoError(t, err)
	require.False(t, enabled)
}

func TestSyncDisableIsIdempotent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.NoError(t, Sync(false, ""))
	require.NoError(t, Sync(false, ""))
}

func TestSyncEnableRequiresExecPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.Error(t, Sync(true, "   "))
}

func TestEntryPathUsesConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := EntryPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "autostart", "knobd.desktop"), path)
}
