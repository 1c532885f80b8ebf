// Package app wires the CLI surface to the daemon and client commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/knobd/knobd/internal/audio"
	"github.com/knobd/knobd/internal/cli"
	"github.com/knobd/knobd/internal/config"
	"github.com/knobd/knobd/internal/doctor"
	"github.com/knobd/knobd/internal/ipc"
	"github.com/knobd/knobd/internal/logging"
	"github.com/knobd/knobd/internal/mapping"
	"github.com/knobd/knobd/internal/proc"
	"github.com/knobd/knobd/internal/version"
)

const forwardTimeout = 220 * time.Millisecond

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("knobd"))
		return 2
	}

	if parsed.ShowHelp || parsed.Command == cli.CommandHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("knobd"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, cfgLoaded, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandHide:
		return r.forwardOrFail(ctx, ipc.CommandHide)
	case cli.CommandReload:
		return r.forwardOrFail(ctx, ipc.CommandReload)
	case cli.CommandQuit:
		return r.forwardOrFail(ctx, ipc.CommandQuit)
	case cli.CommandSessions:
		return r.commandSessions(ctx, logger)
	case cli.CommandMappings:
		return r.commandMappings(cfgLoaded, logger)
	case cli.CommandMap:
		return r.commandMap(cfgLoaded, parsed.Args, logger)
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDoctor(ctx context.Context, cfgLoaded config.Loaded, logger *slog.Logger) int {
	resolver := audio.NewPulseResolver(proc.New(), logger)
	report := doctor.Run(ctx, cfgLoaded, resolver)

	okMark := color.New(color.FgGreen).Sprint("OK")
	failMark := color.New(color.FgRed).Sprint("FAIL")
	for _, check := range report.Checks {
		status := okMark
		if !check.Pass {
			status = failMark
		}
		fmt.Fprintf(r.Stdout, "[%s] %s: %s\n", status, check.Name, check.Message)
	}

	if report.OK() {
		return 0
	}
	return 1
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "not running")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: knobd daemon is not running\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandSessions(ctx context.Context, logger *slog.Logger) int {
	resolver := audio.NewPulseResolver(proc.New(), logger)
	sessions, err := resolver.Sessions(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(sessions) == 0 {
		fmt.Fprintln(r.Stdout, "no active audio sessions")
		return 0
	}

	for _, session := range sessions {
		muted := "no"
		if session.Muted() {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"pid=%d | name=%q | volume=%.2f | muted=%s\n",
			session.PID(),
			session.DisplayName(),
			session.Volume(),
			muted,
		)
		session.Release()
	}

	return 0
}

func (r Runner) commandMappings(cfgLoaded config.Loaded, logger *slog.Logger) int {
	store := mapping.NewStore(newConfigHolder(cfgLoaded, logger), logger)
	entries := store.Load().Entries()
	if len(entries) == 0 {
		fmt.Fprintln(r.Stdout, "no manual mappings")
		return 0
	}
	for _, entry := range entries {
		fmt.Fprintf(r.Stdout, "%s -> %s\n", entry.Name, strings.Join(entry.Processes, "; "))
	}
	return 0
}

func (r Runner) commandMap(cfgLoaded config.Loaded, args []string, logger *slog.Logger) int {
	uiName, processName := args[0], args[1]
	store := mapping.NewStore(newConfigHolder(cfgLoaded, logger), logger)
	if !store.SaveOrUpdate(uiName, processName) {
		fmt.Fprintf(r.Stderr, "error: could not save mapping %q -> %q\n", uiName, processName)
		return 1
	}
	fmt.Fprintf(r.Stdout, "mapped %q -> %q\n", uiName, processName)
	return 0
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
