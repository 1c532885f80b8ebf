// Package pipeline orchestrates one click from admission through element
// lookup, process identification, session resolution, and the final show,
// report, or mapping-prompt step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/knobd/knobd/internal/audio"
	"github.com/knobd/knobd/internal/config"
	"github.com/knobd/knobd/internal/fsm"
	"github.com/knobd/knobd/internal/hook"
	"github.com/knobd/knobd/internal/identify"
	"github.com/knobd/knobd/internal/uia"
	"github.com/knobd/knobd/internal/wm"
)

// Identifier runs the identification strategy chain for one element.
type Identifier interface {
	Identify(ctx context.Context, element *uia.Element, extractedName string) (identify.Result, error)
}

// SessionResolver finds the audio session owned by a process.
type SessionResolver interface {
	SessionForProcess(ctx context.Context, pid uint32) (audio.Session, error)
}

// ControlManager is the on-screen control surface driven by the final stage.
type ControlManager interface {
	ShowForSession(ctx context.Context, x, y int, session audio.Session, area wm.Rect) error
	HideAll(ctx context.Context)
}

// MappingPrompter runs the identification-failure mapping flow.
type MappingPrompter interface {
	PromptAndSave(ctx context.Context, uiName string)
}

// Notifier surfaces user-facing informational and error messages.
type Notifier interface {
	Info(ctx context.Context, title, text string)
	Error(ctx context.Context, title, text string)
}

// WorkArea resolves the usable screen area around a click point.
type WorkArea interface {
	WorkAreaAt(ctx context.Context, x, y int) (wm.Rect, error)
}

// Pipeline processes qualifying clicks one at a time. Admission is a
// single-flight gate: a click arriving while another is in flight is
// rejected, not queued, and admission cancels whatever run context the
// previous click left behind.
type Pipeline struct {
	scanner    uia.Scanner
	identifier Identifier
	sessions   SessionResolver
	controls   ControlManager
	prompter   MappingPrompter
	notify     Notifier
	screens    WorkArea
	hotkey     func() config.HotkeyConfig
	logger     *slog.Logger

	busy atomic.Bool

	mu         sync.Mutex
	state      fsm.State
	cancelPrev context.CancelFunc
}

// New wires a pipeline. hotkey is called per click so config reloads take
// effect without restarting.
func New(
	scanner uia.Scanner,
	identifier Identifier,
	sessions SessionResolver,
	controls ControlManager,
	prompter MappingPrompter,
	notify Notifier,
	screens WorkArea,
	hotkey func() config.HotkeyConfig,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		scanner:    scanner,
		identifier: identifier,
		sessions:   sessions,
		controls:   controls,
		prompter:   prompter,
		notify:     notify,
		screens:    screens,
		hotkey:     hotkey,
		logger:     logger,
		state:      fsm.StateIdle,
	}
}

// State returns the current lifecycle state snapshot.
func (p *Pipeline) State() fsm.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Run consumes click events until ctx is done or the source closes. Each
// qualifying click is handled on its own goroutine; the admission gate keeps
// runs serialized.
func (p *Pipeline) Run(ctx context.Context, events <-chan hook.ClickEvent) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !Qualifies(p.hotkey(), ev) {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.HandleClick(ctx, ev)
			}()
		}
	}
}

// Close cancels any in-flight run.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelPrev != nil {
		p.cancelPrev()
		p.cancelPrev = nil
	}
}

// Qualifies reports whether a click matches the configured modifier combo
// exactly. An all-modifiers-off configuration never qualifies.
func Qualifies(h config.HotkeyConfig, ev hook.ClickEvent) bool {
	if !h.Any() {
		return false
	}
	return ev.Ctrl == h.Ctrl && ev.Alt == h.Alt && ev.Shift == h.Shift && ev.Win == h.Win
}

// HandleClick attempts admission for one qualifying click and runs the full
// resolution pipeline. Returns false when the gate rejected the click.
func (p *Pipeline) HandleClick(ctx context.Context, ev hook.ClickEvent) bool {
	if !p.busy.CompareAndSwap(false, true) {
		p.logger.Debug("click rejected, run in flight", "x", ev.X, "y", ev.Y)
		return false
	}
	defer p.busy.Store(false)

	runCtx := p.admit(ctx)
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	logger.Info("click admitted", "x", ev.X, "y", ev.Y)

	defer p.setState(fsm.StateIdle)
	p.applyEvent(fsm.EventAdmit)

	p.controls.HideAll(runCtx)

	if err := p.run(runCtx, ev, logger); err != nil {
		if canceled(runCtx, err) {
			logger.Info("run canceled")
			return true
		}
		p.applyEvent(fsm.EventFail)
		logger.Error("run failed", "error", err.Error())
		p.notify.Error(runCtx, "Volume Control", fmt.Sprintf("Could not resolve the clicked application: %v", err))
	}
	return true
}

// admit replaces the previous run context, canceling it if still alive.
func (p *Pipeline) admit(ctx context.Context) context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelPrev != nil {
		p.cancelPrev()
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancelPrev = cancel
	return runCtx
}

func (p *Pipeline) run(ctx context.Context, ev hook.ClickEvent, logger *slog.Logger) error {
	element, err := p.resolveElement(ctx, ev, logger)
	if err != nil {
		return err
	}
	if element == nil {
		// Nothing under the click point. Not an error.
		p.applyEvent(fsm.EventNoElement)
		logger.Info("no element at click point")
		return nil
	}
	p.applyEvent(fsm.EventElementFound)

	extracted := uia.ExtractAppName(element.Name)
	logger.Info("element resolved", "name", element.Name, "extracted", extracted)

	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := p.identifier.Identify(ctx, element, extracted)
	if err != nil {
		return err
	}

	if !result.Success() {
		p.applyEvent(fsm.EventProcessUnknown)
		return p.promptMapping(ctx, element, extracted, logger)
	}
	p.applyEvent(fsm.EventProcessFound)
	logger.Info("process identified", "pid", result.PID, "app", result.AppName, "method", string(result.Method))

	if err := ctx.Err(); err != nil {
		return err
	}

	session, err := p.sessions.SessionForProcess(ctx, result.PID)
	if err != nil {
		return err
	}
	if session == nil {
		p.applyEvent(fsm.EventNoSession)
		return p.reportNoSession(ctx, result, logger)
	}
	p.applyEvent(fsm.EventSessionFound)

	return p.showControl(ctx, ev, session, logger)
}

func (p *Pipeline) resolveElement(ctx context.Context, ev hook.ClickEvent, logger *slog.Logger) (*uia.Element, error) {
	element, err := p.scanner.ElementFromPoint(ctx, ev.X, ev.Y)
	if err != nil {
		return nil, err
	}
	if element == nil {
		return nil, nil
	}

	ancestor, err := p.scanner.TaskbarAncestor(ctx, element)
	if err != nil {
		if canceled(ctx, err) {
			return nil, err
		}
		// Fall back to the element actually hit.
		logger.Debug("taskbar ancestor walk failed", "error", err.Error())
		return element, nil
	}
	if ancestor == nil {
		return element, nil
	}
	return ancestor, nil
}

// promptMapping runs the manual-mapping flow with the extracted name when it
// is usable, else the raw accessible name.
func (p *Pipeline) promptMapping(ctx context.Context, element *uia.Element, extracted string, logger *slog.Logger) error {
	nameToMap := extracted
	if !uia.UsableName(nameToMap) {
		nameToMap = element.Name
	}
	if !uia.UsableName(nameToMap) {
		logger.Info("identification failed, no usable name to map")
		p.applyEvent(fsm.EventDone)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info("identification failed, prompting for mapping", "name", nameToMap)
	p.prompter.PromptAndSave(ctx, nameToMap)
	p.applyEvent(fsm.EventDone)
	return nil
}

func (p *Pipeline) reportNoSession(ctx context.Context, result identify.Result, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info("no audio session", "pid", result.PID, "app", result.AppName)
	p.notify.Info(ctx, "Volume Control",
		fmt.Sprintf("%s (PID %d, matched via %s) has no active audio session.",
			result.AppName, result.PID, result.Method))
	p.applyEvent(fsm.EventDone)
	return nil
}

func (p *Pipeline) showControl(ctx context.Context, ev hook.ClickEvent, session audio.Session, logger *slog.Logger) error {
	area, err := p.screens.WorkAreaAt(ctx, ev.X, ev.Y)
	if err != nil {
		session.Release()
		return fmt.Errorf("resolve work area: %w", err)
	}

	// Last cancellation checkpoint before touching the screen.
	if err := ctx.Err(); err != nil {
		session.Release()
		return err
	}

	if err := p.controls.ShowForSession(ctx, ev.X, ev.Y, session, area); err != nil {
		return err
	}
	logger.Info("control shown", "pid", session.PID(), "app", session.DisplayName())
	p.applyEvent(fsm.EventDone)
	return nil
}

func (p *Pipeline) applyEvent(event fsm.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, err := fsm.Transition(p.state, event)
	if err != nil {
		// State drift is a programming error; log it and keep going.
		p.logger.Warn("state transition rejected", "state", string(p.state), "event", string(event))
	}
	p.state = next
}

func (p *Pipeline) setState(state fsm.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

func canceled(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil
}
