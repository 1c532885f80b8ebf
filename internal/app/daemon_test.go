package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knobd/knobd/internal/audio"
	"github.com/knobd/knobd/internal/config"
	"github.com/knobd/knobd/internal/fsm"
	"github.com/knobd/knobd/internal/ipc"
)

type fakeStatus struct {
	state fsm.State
}

func (f *fakeStatus) State() fsm.State { return f.state }

type fakeControls struct {
	hidden   bool
	sessions map[uint32]audio.Session
}

func (f *fakeControls) HideAll(context.Context) { f.hidden = true }

func (f *fakeControls) SessionFor(pid uint32) audio.Session { return f.sessions[pid] }

type fakeSession struct {
	volume  float32
	muted   bool
	setErr  error
	muteErr error
}

func (f *fakeSession) PID() uint32              { return 4242 }
func (f *fakeSession) DisplayName() string      { return "Firefox" }
func (f *fakeSession) Volume() float32          { return f.volume }
func (f *fakeSession) Muted() bool              { return f.muted }
func (f *fakeSession) Peak() float32            { return 0 }
func (f *fakeSession) Release()                 {}
func (f *fakeSession) SetMute(muted bool) error { f.muted = muted; return f.muteErr }

func (f *fakeSession) SetVolume(v float32) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.volume = v
	return nil
}

func newTestHandler(t *testing.T, controls *fakeControls) (*daemonHandler, *configHolder) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte("{}\n"), 0o600))
	loaded, err := config.Load(configPath)
	require.NoError(t, err)

	holder := newConfigHolder(loaded, slog.New(slog.DiscardHandler))
	handler := &daemonHandler{
		pipe:     &fakeStatus{state: fsm.StateIdle},
		controls: controls,
		cfg:      holder,
		shutdown: func() {},
		logger:   slog.New(slog.DiscardHandler),
	}
	return handler, holder
}

func TestHandlerStatusReportsPipelineState(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeControls{})
	handler.pipe = &fakeStatus{state: fsm.StateShowingControl}

	resp := handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "showing_control", resp.State)
}

func TestHandlerHideHidesAllControls(t *testing.T) {
	controls := &fakeControls{}
	handler, _ := newTestHandler(t, controls)

	resp := handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandHide})
	require.True(t, resp.OK)
	require.True(t, controls.hidden)
}

func TestHandlerQuitInvokesShutdown(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeControls{})
	stopped := false
	handler.shutdown = func() { stopped = true }

	resp := handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandQuit})
	require.True(t, resp.OK)
	require.True(t, stopped)
}

func TestHandlerUnknownCommand(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeControls{})

	resp := handler.Handle(context.Background(), ipc.Request{Command: "explode"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestHandlerSetVolumeClampsAndApplies(t *testing.T) {
	session := &fakeSession{}
	controls := &fakeControls{sessions: map[uint32]audio.Session{4242: session}}
	handler, _ := newTestHandler(t, controls)

	resp := handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandSetVolume, Args: []string{"4242", "1.5"}})
	require.True(t, resp.OK)
	require.InDelta(t, 1.0, session.volume, 0.0001)

	resp = handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandSetVolume, Args: []string{"4242", "0.4"}})
	require.True(t, resp.OK)
	require.InDelta(t, 0.4, session.volume, 0.0001)
}

func TestHandlerSetVolumeRejectsBadArgs(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeControls{})

	resp := handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandSetVolume, Args: []string{"4242"}})
	require.Contains(t, resp.Error, "expects")

	resp = handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandSetVolume, Args: []string{"not-a-pid", "0.5"}})
	require.Contains(t, resp.Error, "invalid pid")

	controls := &fakeControls{sessions: map[uint32]audio.Session{4242: &fakeSession{}}}
	handler, _ = newTestHandler(t, controls)
	resp = handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandSetVolume, Args: []string{"4242", "loud"}})
	require.Contains(t, resp.Error, "invalid volume")
}

func TestHandlerSetVolumeWithoutOpenControl(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeControls{})

	resp := handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandSetVolume, Args: []string{"99", "0.5"}})
	require.Contains(t, resp.Error, "no open volume control")
}

func TestHandlerToggleMuteFlipsState(t *testing.T) {
	session := &fakeSession{muted: false}
	controls := &fakeControls{sessions: map[uint32]audio.Session{4242: session}}
	handler, _ := newTestHandler(t, controls)

	resp := handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandToggleMute, Args: []string{"4242"}})
	require.True(t, resp.OK)
	require.True(t, session.muted)

	resp = handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandToggleMute, Args: []string{"4242"}})
	require.True(t, resp.OK)
	require.False(t, session.muted)
}

func TestHandlerReloadSwapsConfig(t *testing.T) {
	handler, holder := newTestHandler(t, &fakeControls{})
	require.True(t, holder.Hotkey().Ctrl)

	updated := `{"hotkey": {"ctrl": false, "alt": true}}`
	require.NoError(t, os.WriteFile(holder.path, []byte(updated), 0o600))

	resp := handler.Handle(context.Background(), ipc.Request{Command: ipc.CommandReload})
	require.True(t, resp.OK)
	require.False(t, holder.Hotkey().Ctrl)
	require.True(t, holder.Hotkey().Alt)
}

func TestConfigHolderPersistsManualMappings(t *testing.T) {
	_, holder := newTestHandler(t, &fakeControls{})

	require.NoError(t, holder.SetManualMappings([]string{"Firefox|firefox"}))
	require.Equal(t, []string{"Firefox|firefox"}, holder.ManualMappings())

	loaded, err := config.Load(holder.path)
	require.NoError(t, err)
	require.Equal(t, []string{"Firefox|firefox"}, loaded.Config.ManualMappings)
}

func TestConfigHolderRollsBackMappingsOnSaveFailure(t *testing.T) {
	_, holder := newTestHandler(t, &fakeControls{})
	require.NoError(t, holder.SetManualMappings([]string{"Firefox|firefox"}))

	// A config path nested under a regular file makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	holder.path = filepath.Join(blocker, "config.json")

	require.Error(t, holder.SetManualMappings([]string{"Chrome|chrome"}))
	require.Equal(t, []string{"Firefox|firefox"}, holder.ManualMappings())
}

func TestConfigHolderReturnsMappingCopies(t *testing.T) {
	_, holder := newTestHandler(t, &fakeControls{})
	require.NoError(t, holder.SetManualMappings([]string{"Firefox|firefox"}))

	mappings := holder.ManualMappings()
	mappings[0] = "mutated"
	require.Equal(t, []string{"Firefox|firefox"}, holder.ManualMappings())
}
