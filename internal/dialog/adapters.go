package dialog

import (
	"context"
	"fmt"
	"log/slog"
)

// Surface is the subset of Zenity the adapters need. A test double stands in
// for the real binary.
type Surface interface {
	Question(ctx context.Context, title, text string) (bool, error)
	Entry(ctx context.Context, title, text string) (string, bool, error)
	Info(ctx context.Context, title, text string) error
	Error(ctx context.Context, title, text string) error
}

// MappingUI drives the manual-mapping prompt flow through dialogs.
type MappingUI struct {
	surface Surface
	logger  *slog.Logger
}

func NewMappingUI(surface Surface, logger *slog.Logger) *MappingUI {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MappingUI{surface: surface, logger: logger}
}

func (u *MappingUI) ConfirmMapping(ctx context.Context, uiName string) (bool, error) {
	text := fmt.Sprintf(
		"Could not automatically find an audio process for the clicked item:\n\n%q\n\nDo you want to manually map this name to a running process?",
		uiName)
	return u.surface.Question(ctx, "Manual Mapping Needed", text)
}

func (u *MappingUI) RequestProcess(ctx context.Context, uiName string) (string, bool, error) {
	text := fmt.Sprintf("Process executable name to map %q to:", uiName)
	return u.surface.Entry(ctx, "Add Mapping", text)
}

func (u *MappingUI) MappingSaved(ctx context.Context, uiName, process string) {
	text := fmt.Sprintf(
		"Mapping for process %q saved under %q.\n\nTry the click again.",
		process, uiName)
	if err := u.surface.Info(ctx, "Mapping Saved", text); err != nil {
		u.logger.Debug("mapping saved dialog failed", "error", err.Error())
	}
}

func (u *MappingUI) SaveFailed(ctx context.Context, uiName, process string) {
	text := fmt.Sprintf("Failed to save the mapping of %q to %q.", uiName, process)
	if err := u.surface.Error(ctx, "Save Error", text); err != nil {
		u.logger.Debug("save failed dialog failed", "error", err.Error())
	}
}

// Notifier surfaces pipeline messages as message boxes, swallowing dialog
// failures: a broken dialog binary must not fail the pipeline.
type Notifier struct {
	surface Surface
	logger  *slog.Logger
}

func NewNotifier(surface Surface, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{surface: surface, logger: logger}
}

func (n *Notifier) Info(ctx context.Context, title, text string) {
	if err := n.surface.Info(ctx, title, text); err != nil {
		n.logger.Warn("info dialog failed", "error", err.Error())
	}
}

func (n *Notifier) Error(ctx context.Context, title, text string) {
	if err := n.surface.Error(ctx, title, text); err != nil {
		n.logger.Warn("error dialog failed", "error", err.Error())
	}
}
