// Package startup manages the XDG autostart entry that launches the daemon
// at session login.
package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const desktopFileName = "knobd.desktop"

const desktopTemplate = `[Desktop Entry]
Type=Application
Name=knobd
Comment=Per-application volume control on taskbar right-click
Exec=%s run
Terminal=false
X-GNOME-Autostart-enabled=true
`

// EntryPath resolves the autostart desktop file location.
func EntryPath() (string, error) {
	configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "autostart", desktopFileName), nil
}

// Sync makes the autostart entry match enabled. execPath is the daemon
// binary the entry launches.
func Sync(enabled bool, execPath string) error {
	path, err := EntryPath()
	if err != nil {
		return err
	}
	if enabled {
		return install(path, execPath)
	}
	return remove(path)
}

// Enabled reports whether an autostart entry is present.
func Enabled() (bool, error) {
	path, err := EntryPath()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat autostart entry: %w", err)
}

func install(path, execPath string) error {
	if strings.TrimSpace(execPath) == "" {
		return errors.New("empty exec path for autostart entry")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure autostart dir: %w", err)
	}
	content := fmt.Sprintf(desktopTemplate, execPath)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write autostart entry: %w", err)
	}
	return nil
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove autostart entry: %w", err)
	}
	return nil
}
