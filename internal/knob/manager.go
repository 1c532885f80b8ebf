package knob

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/knobd/knobd/internal/audio"
	"github.com/knobd/knobd/internal/config"
	"github.com/knobd/knobd/internal/wm"
)

const reapInterval = 60 * time.Second

type entry struct {
	window  Window
	session audio.Session
}

// Manager keeps the registry of active controls keyed by owning pid. The
// registry lock covers both the pipeline's show/hide path and the reaper.
type Manager struct {
	factory   Factory
	procs     Liveness
	placement Placement
	logger    *slog.Logger

	mu    sync.Mutex
	knobs map[uint32]entry

	stopReaper context.CancelFunc
	reaperDone chan struct{}
	closeOnce  sync.Once
}

// NewManager builds a manager and starts the background reaper.
func NewManager(factory Factory, procs Liveness, cfg config.KnobConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := &Manager{
		factory: factory,
		procs:   procs,
		placement: Placement{
			OffsetX:      cfg.OffsetX,
			OffsetY:      cfg.OffsetY,
			TopThreshold: cfg.TopThreshold,
			TopOffsetY:   cfg.TopOffsetY,
		},
		logger:     logger,
		knobs:      make(map[uint32]entry),
		reaperDone: make(chan struct{}),
	}

	reaperCtx, cancel := context.WithCancel(context.Background())
	m.stopReaper = cancel
	go m.reapLoop(reaperCtx)
	return m
}

// ShowForSession hides every visible control, then opens one for session
// near the click point. The manager takes ownership of the session; on any
// failure it is released.
func (m *Manager) ShowForSession(ctx context.Context, x, y int, session audio.Session, area wm.Rect) error {
	if session == nil {
		return nil
	}
	pid := session.PID()

	m.HideAll(ctx)

	window, err := m.factory.New(session)
	if err != nil {
		session.Release()
		return fmt.Errorf("create control for pid %d: %w", pid, err)
	}

	m.mu.Lock()
	m.knobs[pid] = entry{window: window, session: session}
	m.mu.Unlock()

	finalX, finalY := m.placement.At(x, y, area)
	if err := window.ShowAt(ctx, finalX, finalY); err != nil {
		m.remove(pid)
		return fmt.Errorf("show control for pid %d: %w", pid, err)
	}

	if width, height := window.Size(); width > 0 && height > 0 {
		if cx, cy, moved := m.placement.ClampToArea(finalX, finalY, width, height, area); moved {
			if err := window.Move(ctx, cx, cy); err != nil {
				m.logger.Debug("control reposition failed", "pid", pid, "error", err.Error())
			}
		}
	}
	return nil
}

// HideAll hides every registered control. Entries leave the registry whether
// or not hiding succeeds.
func (m *Manager) HideAll(ctx context.Context) {
	m.mu.Lock()
	pids := make([]uint32, 0, len(m.knobs))
	for pid := range m.knobs {
		pids = append(pids, pid)
	}
	m.mu.Unlock()

	for _, pid := range pids {
		m.hideAndRemove(ctx, pid)
	}
}

// SessionFor returns the registered session for pid, or nil. Used by the
// control surface's volume and mute callbacks.
func (m *Manager) SessionFor(pid uint32) audio.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.knobs[pid]; ok {
		return e.session
	}
	return nil
}

// Close stops the reaper, force-hides everything, and clears the registry.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.stopReaper()
		<-m.reaperDone

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.HideAll(ctx)
	})
}

func (m *Manager) hideAndRemove(ctx context.Context, pid uint32) {
	m.mu.Lock()
	e, ok := m.knobs[pid]
	m.mu.Unlock()
	if !ok {
		return
	}

	if e.window.Visible() {
		if err := e.window.Hide(ctx); err != nil {
			m.logger.Debug("control hide failed", "pid", pid, "error", err.Error())
		}
	}
	m.remove(pid)
}

func (m *Manager) remove(pid uint32) {
	m.mu.Lock()
	e, ok := m.knobs[pid]
	delete(m.knobs, pid)
	m.mu.Unlock()

	if ok {
		e.window.Close()
		e.session.Release()
	}
}

// reapLoop drops controls whose process has exited. A check failure never
// exits the loop; it just waits for the next tick.
func (m *Manager) reapLoop(ctx context.Context) {
	defer close(m.reaperDone)

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapOnce(ctx)
		}
	}
}

func (m *Manager) reapOnce(ctx context.Context) {
	m.mu.Lock()
	pids := make([]uint32, 0, len(m.knobs))
	for pid := range m.knobs {
		pids = append(pids, pid)
	}
	m.mu.Unlock()

	for _, pid := range pids {
		if ctx.Err() != nil {
			return
		}
		if m.procs.Exists(pid) {
			continue
		}
		m.logger.Info("reaping control for exited process", "pid", pid)
		m.hideAndRemove(ctx, pid)
	}
}
