package mapping

import (
	"context"
	"log/slog"
)

// UI is the user-interaction surface of the prompt-and-save flow.
type UI interface {
	// ConfirmMapping asks whether the user wants to map uiName manually.
	ConfirmMapping(ctx context.Context, uiName string) (bool, error)
	// RequestProcess collects the process executable name to map uiName to.
	// ok is false when the user dismissed the interaction.
	RequestProcess(ctx context.Context, uiName string) (process string, ok bool, err error)
	// MappingSaved informs the user the mapping is stored.
	MappingSaved(ctx context.Context, uiName, process string)
	// SaveFailed informs the user persistence was rejected or failed.
	SaveFailed(ctx context.Context, uiName, process string)
}

// Prompter drives the identification-failure mapping flow.
type Prompter struct {
	store  *Store
	ui     UI
	logger *slog.Logger
}

// NewPrompter builds a Prompter. A nil logger disables logging.
func NewPrompter(store *Store, ui UI, logger *slog.Logger) *Prompter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Prompter{store: store, ui: ui, logger: logger}
}

// PromptAndSave asks the user to confirm, collects a process name, and
// persists the mapping. Cancellation before any interaction step is a silent
// no-op.
func (p *Prompter) PromptAndSave(ctx context.Context, uiName string) {
	if ctx.Err() != nil {
		return
	}

	confirmed, err := p.ui.ConfirmMapping(ctx, uiName)
	if err != nil || !confirmed {
		return
	}

	if ctx.Err() != nil {
		return
	}
	process, ok, err := p.ui.RequestProcess(ctx, uiName)
	if err != nil || !ok {
		return
	}

	if ctx.Err() != nil {
		return
	}
	if p.store.SaveOrUpdate(uiName, process) {
		p.logger.Info("manual mapping saved", "name", uiName, "process", process)
		p.ui.MappingSaved(ctx, uiName, process)
		return
	}
	p.ui.SaveFailed(ctx, uiName, process)
}
