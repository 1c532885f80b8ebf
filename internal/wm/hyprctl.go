package wm

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// HyprQuerier reads window and monitor state from hyprctl JSON output.
type HyprQuerier struct{}

type hyprClient struct {
	Address   string `json:"address"`
	Title     string `json:"title"`
	PID       int    `json:"pid"`
	Mapped    bool   `json:"mapped"`
	Hidden    bool   `json:"hidden"`
	Workspace struct {
		Name string `json:"name"`
	} `json:"workspace"`
}

type hyprMonitor struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Reserved [4]int `json:"reserved"`
	Focused  bool   `json:"focused"`
}

// ListWindows fetches hyprctl clients and normalizes them to Window values.
func (HyprQuerier) ListWindows(ctx context.Context) ([]Window, error) {
	output, err := runHyprctlJSON(ctx, "clients")
	if err != nil {
		return nil, err
	}
	return parseClients(output)
}

func parseClients(output []byte) ([]Window, error) {
	var clients []hyprClient
	if err := json.Unmarshal(output, &clients); err != nil {
		return nil, fmt.Errorf("decode hyprctl clients json: %w", err)
	}

	windows := make([]Window, 0, len(clients))
	for _, client := range clients {
		if client.PID < 0 {
			continue
		}
		windows = append(windows, Window{
			Address: strings.TrimSpace(client.Address),
			Title:   client.Title,
			PID:     uint32(client.PID),
			// Unmapped clients are present but not rendered, matching the
			// cloaked-window exclusion in title matching.
			Hidden:    client.Hidden || !client.Mapped,
			Minimized: strings.HasPrefix(client.Workspace.Name, "special"),
		})
	}
	return windows, nil
}

// WorkAreaAt resolves the monitor under the point and subtracts reservations.
func (HyprQuerier) WorkAreaAt(ctx context.Context, x, y int) (Rect, error) {
	output, err := runHyprctlJSON(ctx, "monitors")
	if err != nil {
		return Rect{}, err
	}
	return parseWorkArea(output, x, y)
}

func parseWorkArea(output []byte, x, y int) (Rect, error) {
	var monitors []hyprMonitor
	if err := json.Unmarshal(output, &monitors); err != nil {
		return Rect{}, fmt.Errorf("decode hyprctl monitors json: %w", err)
	}
	if len(monitors) == 0 {
		return Rect{}, fmt.Errorf("hyprctl monitors returned no outputs")
	}

	selected := monitors[0]
	found := false
	for _, mon := range monitors {
		full := Rect{X: mon.X, Y: mon.Y, Width: mon.Width, Height: mon.Height}
		if full.Contains(x, y) {
			selected = mon
			found = true
			break
		}
	}
	if !found {
		for _, mon := range monitors {
			if mon.Focused {
				selected = mon
				break
			}
		}
	}

	left, top, right, bottom := selected.Reserved[0], selected.Reserved[1], selected.Reserved[2], selected.Reserved[3]
	return Rect{
		X:      selected.X + left,
		Y:      selected.Y + top,
		Width:  selected.Width - left - right,
		Height: selected.Height - top - bottom,
	}, nil
}

// PIDForAddress maps a compositor window address to its owning pid.
func (q HyprQuerier) PIDForAddress(ctx context.Context, address string) (uint32, bool) {
	address = strings.TrimSpace(address)
	if address == "" {
		return 0, false
	}
	windows, err := q.ListWindows(ctx)
	if err != nil {
		return 0, false
	}
	for _, window := range windows {
		if strings.EqualFold(window.Address, address) && window.PID != 0 {
			return window.PID, true
		}
	}
	return 0, false
}

// runHyprctlJSON executes a JSON-returning hyprctl subcommand.
func runHyprctlJSON(ctx context.Context, target string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "hyprctl", "-j", target)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl -j %s failed: %w", target, err)
		}
		return nil, fmt.Errorf("hyprctl -j %s failed: %w (%s)", target, err, trimmed)
	}
	return out, nil
}
