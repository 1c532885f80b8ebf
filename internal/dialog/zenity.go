// Package dialog shells out to zenity for user-facing questions, text
// entry, and message boxes.
package dialog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// zenity exit codes: 0 confirmed, 1 dismissed/declined, 5 timeout.
const exitDismissed = 1

// Zenity runs one dialog per call. Calls block until the user answers or
// ctx is canceled.
type Zenity struct {
	Bin    string
	Logger *slog.Logger
}

func NewZenity(logger *slog.Logger) *Zenity {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Zenity{Bin: "zenity", Logger: logger}
}

// Question shows a yes/no dialog. Dismissing the dialog counts as no.
func (z *Zenity) Question(ctx context.Context, title, text string) (bool, error) {
	_, code, err := z.run(ctx,
		"--question",
		"--title", title,
		"--text", text)
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

// Entry shows a single-line input dialog. ok is false when the user
// dismissed it.
func (z *Zenity) Entry(ctx context.Context, title, text string) (string, bool, error) {
	out, code, err := z.run(ctx,
		"--entry",
		"--title", title,
		"--text", text)
	if err != nil {
		return "", false, err
	}
	if code != 0 {
		return "", false, nil
	}
	return strings.TrimSpace(out), true, nil
}

func (z *Zenity) Info(ctx context.Context, title, text string) error {
	_, _, err := z.run(ctx,
		"--info",
		"--title", title,
		"--text", text)
	return err
}

func (z *Zenity) Error(ctx context.Context, title, text string) error {
	_, _, err := z.run(ctx,
		"--error",
		"--title", title,
		"--text", text)
	return err
}

// run executes zenity and folds the dismissed exit code into a non-error
// result. Any other failure is a real error.
func (z *Zenity) run(ctx context.Context, args ...string) (string, int, error) {
	bin := z.Bin
	if bin == "" {
		bin = "zenity"
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == exitDismissed {
		return stdout.String(), exitDismissed, nil
	}

	detail := strings.TrimSpace(stderr.String())
	if detail != "" {
		return "", 0, fmt.Errorf("zenity %s: %w: %s", args[0], err, detail)
	}
	return "", 0, fmt.Errorf("zenity %s: %w", args[0], err)
}
