package knob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/knobd/knobd/internal/audio"
)

// The control surface is one predefined eww window; its widget definition
// ships alongside the daemon. Dimensions match the widget config.
const (
	ewwWindowName = "knobd-knob"
	ewwKnobWidth  = 140
	ewwKnobHeight = 305

	ewwCallTimeout = 2 * time.Second
)

// EwwFactory builds controls rendered by the eww widget daemon.
type EwwFactory struct {
	Bin      string
	ShowPeak bool
	Logger   *slog.Logger
}

func (f *EwwFactory) New(session audio.Session) (Window, error) {
	bin := f.Bin
	if bin == "" {
		bin = "eww"
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ewwWindow{
		bin:      bin,
		session:  session,
		showPeak: f.ShowPeak,
		logger:   logger,
	}, nil
}

type ewwWindow struct {
	bin      string
	session  audio.Session
	showPeak bool
	logger   *slog.Logger

	mu      sync.Mutex
	visible bool
	closed  bool
}

func (w *ewwWindow) ShowAt(ctx context.Context, x, y int) error {
	if err := w.pushState(ctx); err != nil {
		return err
	}
	if err := w.run(ctx, "open", ewwWindowName,
		"--pos", fmt.Sprintf("%dx%d", x, y)); err != nil {
		return err
	}

	w.mu.Lock()
	w.visible = true
	w.mu.Unlock()
	return nil
}

// Move reopens the window at the new position; eww has no move command.
func (w *ewwWindow) Move(ctx context.Context, x, y int) error {
	if err := w.run(ctx, "close", ewwWindowName); err != nil {
		return err
	}
	return w.run(ctx, "open", ewwWindowName,
		"--pos", fmt.Sprintf("%dx%d", x, y))
}

func (w *ewwWindow) Hide(ctx context.Context) error {
	w.mu.Lock()
	wasVisible := w.visible
	w.visible = false
	w.mu.Unlock()

	if !wasVisible {
		return nil
	}
	return w.run(ctx, "close", ewwWindowName)
}

func (w *ewwWindow) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

func (w *ewwWindow) Size() (int, int) {
	return ewwKnobWidth, ewwKnobHeight
}

func (w *ewwWindow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	wasVisible := w.visible
	w.visible = false
	w.mu.Unlock()

	if wasVisible {
		ctx, cancel := context.WithTimeout(context.Background(), ewwCallTimeout)
		defer cancel()
		if err := w.run(ctx, "close", ewwWindowName); err != nil {
			w.logger.Debug("control close failed", "error", err.Error())
		}
	}
}

// pushState publishes the session's current state to the widget's variables
// before the window opens.
func (w *ewwWindow) pushState(ctx context.Context) error {
	updates := []string{
		"knob_pid=" + strconv.FormatUint(uint64(w.session.PID()), 10),
		"knob_name=" + w.session.DisplayName(),
		"knob_volume=" + strconv.FormatFloat(float64(w.session.Volume()), 'f', 3, 32),
		"knob_muted=" + strconv.FormatBool(w.session.Muted()),
		"knob_peak_enabled=" + strconv.FormatBool(w.showPeak),
	}
	return w.run(ctx, append([]string{"update"}, updates...)...)
}

func (w *ewwWindow) run(ctx context.Context, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, ewwCallTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, w.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("eww %s: %w: %s", args[0], err, detail)
		}
		return fmt.Errorf("eww %s: %w", args[0], err)
	}
	return nil
}
