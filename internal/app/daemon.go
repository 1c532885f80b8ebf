package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/knobd/knobd/internal/audio"
	"github.com/knobd/knobd/internal/config"
	"github.com/knobd/knobd/internal/dialog"
	"github.com/knobd/knobd/internal/fsm"
	"github.com/knobd/knobd/internal/hook"
	"github.com/knobd/knobd/internal/identify"
	"github.com/knobd/knobd/internal/ipc"
	"github.com/knobd/knobd/internal/knob"
	"github.com/knobd/knobd/internal/mapping"
	"github.com/knobd/knobd/internal/pipeline"
	"github.com/knobd/knobd/internal/proc"
	"github.com/knobd/knobd/internal/startup"
	"github.com/knobd/knobd/internal/uia"
	"github.com/knobd/knobd/internal/wm"
)

// configHolder is the live configuration shared by the daemon's components.
// Reload swaps the snapshot in place so readers like the pipeline's hotkey
// callback pick up changes without a restart. It also implements
// mapping.Settings by persisting through the config file.
type configHolder struct {
	mu     sync.RWMutex
	path   string
	cfg    config.Config
	logger *slog.Logger
}

func newConfigHolder(loaded config.Loaded, logger *slog.Logger) *configHolder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &configHolder{path: loaded.Path, cfg: loaded.Config, logger: logger}
}

func (h *configHolder) Snapshot() config.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

func (h *configHolder) Hotkey() config.HotkeyConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg.Hotkey
}

func (h *configHolder) Reload() error {
	loaded, err := config.Load(h.path)
	if err != nil {
		return err
	}
	for _, w := range loaded.Warnings {
		h.logger.Warn("config warning", "message", w.Message)
	}

	h.mu.Lock()
	h.cfg = loaded.Config
	h.mu.Unlock()

	h.logger.Info("config reloaded", "path", loaded.Path)
	return nil
}

func (h *configHolder) ManualMappings() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.cfg.ManualMappings))
	copy(out, h.cfg.ManualMappings)
	return out
}

func (h *configHolder) SetManualMappings(entries []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous := h.cfg.ManualMappings
	h.cfg.ManualMappings = entries
	if err := config.Save(h.path, h.cfg); err != nil {
		h.cfg.ManualMappings = previous
		return err
	}
	return nil
}

func (r Runner) commandRun(ctx context.Context, cfgLoaded config.Loaded, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: knobd daemon already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	holder := newConfigHolder(cfgLoaded, logger)
	cfg := holder.Snapshot()

	if execPath, execErr := os.Executable(); execErr == nil {
		if syncErr := startup.Sync(cfg.LaunchAtStartup, execPath); syncErr != nil {
			logger.Warn("sync autostart entry failed", "error", syncErr.Error())
		}
	}

	procs := proc.New()

	// Both of these are fatal at startup: a daemon that can hear clicks but
	// reach no audio server, or the reverse, can only fail every click.
	resolver := audio.NewPulseResolver(procs, logger)
	if probeErr := resolver.Probe(ctx); probeErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", probeErr)
		logger.Error("audio server unreachable", "error", probeErr.Error())
		return 1
	}

	scanner, err := uia.NewAtspiScanner(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("accessibility bus unavailable", "error", err.Error())
		return 1
	}

	querier := wm.HyprQuerier{}
	store := mapping.NewStore(holder, logger)
	identifier := identify.New(procs, querier, store, logger)

	zen := dialog.NewZenity(logger)
	prompter := mapping.NewPrompter(store, dialog.NewMappingUI(zen, logger), logger)
	notifier := dialog.NewNotifier(zen, logger)

	factory := &knob.EwwFactory{ShowPeak: cfg.Knob.ShowPeakMeter, Logger: logger}
	manager := knob.NewManager(factory, procs, cfg.Knob, logger)
	defer manager.Close()

	pipe := pipeline.New(scanner, identifier, resolver, manager, prompter, notifier, querier, holder.Hotkey, logger)
	defer pipe.Close()

	source := hook.NewGlobalSource(logger)
	defer func() { _ = source.Close() }()

	daemonCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := &daemonHandler{
		pipe:     pipe,
		controls: manager,
		cfg:      holder,
		shutdown: cancel,
		logger:   logger,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(daemonCtx, listener, handler)
	}()

	logger.Info("daemon started", "socket", socketPath)
	fmt.Fprintln(r.Stdout, "knobd daemon started")

	pipe.Run(daemonCtx, source.Events())
	cancel()

	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logger.Info("daemon stopped")
	return 0
}

type statusSource interface {
	State() fsm.State
}

type controlSurface interface {
	HideAll(ctx context.Context)
	SessionFor(pid uint32) audio.Session
}

// daemonHandler serves the control socket while the daemon runs. The
// set-volume and toggle-mute commands are issued by the knob widget itself,
// addressed by the pid the knob was opened for.
type daemonHandler struct {
	pipe     statusSource
	controls controlSurface
	cfg      *configHolder
	shutdown context.CancelFunc
	logger   *slog.Logger
}

func (h *daemonHandler) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	h.logger.Debug("ipc command", "command", req.Command, "args", req.Args)
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: string(h.pipe.State())}
	case ipc.CommandHide:
		h.controls.HideAll(ctx)
		return ipc.Response{OK: true, Message: "volume controls hidden"}
	case ipc.CommandReload:
		if err := h.cfg.Reload(); err != nil {
			return ipc.Response{Error: fmt.Sprintf("reload config: %v", err)}
		}
		return ipc.Response{OK: true, Message: "config reloaded"}
	case ipc.CommandQuit:
		h.shutdown()
		return ipc.Response{OK: true, Message: "stopping"}
	case ipc.CommandSetVolume:
		return h.handleSetVolume(req.Args)
	case ipc.CommandToggleMute:
		return h.handleToggleMute(req.Args)
	default:
		return ipc.Response{Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (h *daemonHandler) handleSetVolume(args []string) ipc.Response {
	if len(args) != 2 {
		return ipc.Response{Error: "set-volume expects <pid> <volume>"}
	}
	session, resp := h.sessionFor(args[0])
	if session == nil {
		return resp
	}
	volume, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return ipc.Response{Error: fmt.Sprintf("invalid volume %q", args[1])}
	}
	if err := session.SetVolume(audio.Clamp(float32(volume))); err != nil {
		return ipc.Response{Error: fmt.Sprintf("set volume: %v", err)}
	}
	return ipc.Response{OK: true}
}

func (h *daemonHandler) handleToggleMute(args []string) ipc.Response {
	if len(args) != 1 {
		return ipc.Response{Error: "toggle-mute expects <pid>"}
	}
	session, resp := h.sessionFor(args[0])
	if session == nil {
		return resp
	}
	if err := session.SetMute(!session.Muted()); err != nil {
		return ipc.Response{Error: fmt.Sprintf("toggle mute: %v", err)}
	}
	return ipc.Response{OK: true}
}

func (h *daemonHandler) sessionFor(rawPid string) (audio.Session, ipc.Response) {
	pid, err := strconv.ParseUint(rawPid, 10, 32)
	if err != nil {
		return nil, ipc.Response{Error: fmt.Sprintf("invalid pid %q", rawPid)}
	}
	session := h.controls.SessionFor(uint32(pid))
	if session == nil {
		return nil, ipc.Response{Error: fmt.Sprintf("no open volume control for pid %d", pid)}
	}
	return session, ipc.Response{}
}
