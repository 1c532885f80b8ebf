// Package doctor runs runtime readiness diagnostics for config, desktop
// tools, the accessibility bus, and the audio server.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/knobd/knobd/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// AudioProber verifies the audio server is reachable.
type AudioProber interface {
	Probe(ctx context.Context) error
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, audio AudioProber) Report {
	checks := []Check{}

	configMsg := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMsg = fmt.Sprintf("%q not found, using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMsg})

	checks = append(checks, checkHotkey(cfg.Config.Hotkey))

	checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "wayland")
	}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

	checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))

	checks = append(checks, checkBinary("hyprctl", "window and monitor queries"))
	checks = append(checks, checkBinary("busctl", "accessibility bus discovery"))
	checks = append(checks, checkBinary("gdbus", "accessibility tree walks"))
	checks = append(checks, checkBinary("zenity", "mapping prompts and messages"))
	checks = append(checks, checkBinary("eww", "volume knob rendering"))

	checks = append(checks, checkAudio(ctx, audio))

	return Report{Checks: checks}
}

// checkHotkey surfaces the all-modifiers-off configuration, which disables
// every click.
func checkHotkey(h config.HotkeyConfig) Check {
	if h.Any() {
		return Check{Name: "hotkey", Pass: true, Message: "modifier combination configured"}
	}
	return Check{Name: "hotkey", Pass: false, Message: "no modifiers configured, clicks will never qualify"}
}

// checkEnv validates an environment variable through a caller-supplied
// predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, purpose string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s (%s)", bin, purpose)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, purpose)}
}

// checkAudio connects to the audio server once.
func checkAudio(ctx context.Context, prober AudioProber) Check {
	if prober == nil {
		return Check{Name: "audio", Pass: false, Message: "no audio backend wired"}
	}
	if err := prober.Probe(ctx); err != nil {
		return Check{Name: "audio", Pass: false, Message: err.Error()}
	}
	return Check{Name: "audio", Pass: true, Message: "audio server reachable"}
}
