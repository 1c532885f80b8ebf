package identify

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knobd/knobd/internal/mapping"
	"github.com/knobd/knobd/internal/proc"
	"github.com/knobd/knobd/internal/uia"
	"github.com/knobd/knobd/internal/wm"
)

type fakeProcs struct {
	self   uint32
	names  map[uint32]string
	denied map[uint32]bool
}

func (f *fakeProcs) Name(pid uint32) (string, error) {
	if f.denied[pid] {
		return "", errors.New("permission denied")
	}
	name, ok := f.names[pid]
	if !ok {
		return "", proc.ErrGone
	}
	return name, nil
}

func (f *fakeProcs) Exists(pid uint32) bool {
	return f.names[pid] != "" || f.denied[pid]
}

func (f *fakeProcs) PidsOf(name string) []uint32 {
	var pids []uint32
	for pid, got := range f.names {
		if strings.EqualFold(got, name) {
			pids = append(pids, pid)
		}
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

func (f *fakeProcs) Self() uint32 {
	return f.self
}

type fakeWindows struct {
	windows []wm.Window
	byAddr  map[string]uint32
	listErr error
}

func (f *fakeWindows) ListWindows(context.Context) ([]wm.Window, error) {
	return f.windows, f.listErr
}

func (f *fakeWindows) PIDForAddress(_ context.Context, address string) (uint32, bool) {
	pid, ok := f.byAddr[address]
	return pid, ok
}

type listSettings struct {
	mappings []string
}

func (l *listSettings) ManualMappings() []string           { return l.mappings }
func (l *listSettings) SetManualMappings(m []string) error { l.mappings = m; return nil }

func newIdentifier(procs *fakeProcs, windows *fakeWindows, mappings []string) *Identifier {
	if procs == nil {
		procs = &fakeProcs{self: 1, names: map[uint32]string{}}
	}
	if windows == nil {
		windows = &fakeWindows{}
	}
	store := mapping.NewStore(&listSettings{mappings: mappings}, nil)
	return New(procs, windows, store, nil)
}

func TestMatchScoreLiterals(t *testing.T) {
	tests := []struct {
		title string
		name  string
		want  int
	}{
		{"Notepad", "Notepad", 100},
		{"Notepad - file.txt", "Notepad", 90},
		{"My Notepad App", "Notepad", 70},
		{"Calculator", "Notepad", 0},
		{"Mozilla Firefox", "Firefox", 88},
		{"Release Notes - Mozilla Firefox", "Firefox", 88},
		{"Firefox", "Firefox", 100},
		{"Firefox Nightly", "Firefox", 90},
	}

	for _, tt := range tests {
		t.Run(tt.title+"/"+tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MatchScore(tt.title, tt.name))
		})
	}
}

func TestIsValidAppPid(t *testing.T) {
	procs := &fakeProcs{
		self: 77,
		names: map[uint32]string{
			10: "spotify",
			11: "explorer",
			12: "svchost",
			13: "Explorer.exe",
		},
		denied: map[uint32]bool{20: true},
	}
	id := newIdentifier(procs, nil, nil)

	require.False(t, id.IsValidAppPid(0, true), "pid 0 never valid")
	require.False(t, id.IsValidAppPid(77, true), "own pid never valid")
	require.False(t, id.IsValidAppPid(99, true), "exited process invalid")

	require.True(t, id.IsValidAppPid(10, false))
	require.True(t, id.IsValidAppPid(20, false), "access denied counts as valid")

	require.False(t, id.IsValidAppPid(12, true), "denylisted name invalid even with allowExplorer")
	require.False(t, id.IsValidAppPid(11, false), "explorer invalid without allowExplorer")
	require.True(t, id.IsValidAppPid(11, true), "explorer valid with allowExplorer")
	require.False(t, id.IsValidAppPid(13, false), "denylist ignores .exe suffix and case")
}

func TestIdentifyDirectViaWindowHandle(t *testing.T) {
	procs := &fakeProcs{self: 1, names: map[uint32]string{311: "firefox"}}
	windows := &fakeWindows{byAddr: map[string]uint32{"0xabc": 311}}
	id := newIdentifier(procs, windows, nil)

	result, err := id.Identify(context.Background(), &uia.Element{WindowAddress: "0xabc"}, "")
	require.NoError(t, err)
	require.True(t, result.Success())
	require.Equal(t, uint32(311), result.PID)
	require.Equal(t, "firefox", result.AppName)
	require.Equal(t, MethodDirect, result.Method)
}

func TestIdentifyDirectHandleAllowsExplorer(t *testing.T) {
	procs := &fakeProcs{self: 1, names: map[uint32]string{500: "explorer"}}
	windows := &fakeWindows{byAddr: map[string]uint32{"0xdef": 500}}
	id := newIdentifier(procs, windows, nil)

	result, err := id.Identify(context.Background(), &uia.Element{WindowAddress: "0xdef"}, "")
	require.NoError(t, err)
	require.Equal(t, MethodDirect, result.Method)
	require.Equal(t, uint32(500), result.PID)
}

func TestIdentifyDirectElementPidRejectsExplorer(t *testing.T) {
	procs := &fakeProcs{self: 1, names: map[uint32]string{500: "explorer"}}
	id := newIdentifier(procs, nil, nil)

	result, err := id.Identify(context.Background(), &uia.Element{PID: 500, HasPID: true}, "")
	require.NoError(t, err)
	require.False(t, result.Success())
}

func TestIdentifyWindowTitlePicksBestScore(t *testing.T) {
	procs := &fakeProcs{self: 1, names: map[uint32]string{
		10: "notepad",
		11: "editor",
		12: "other",
	}}
	windows := &fakeWindows{windows: []wm.Window{
		{Title: "My Notepad App", PID: 12},
		{Title: "Notepad - file.txt", PID: 11},
		{Title: "Notepad", PID: 10},
	}}
	id := newIdentifier(procs, windows, nil)

	result, err := id.Identify(context.Background(), &uia.Element{}, "Notepad")
	require.NoError(t, err)
	require.Equal(t, uint32(10), result.PID)
	require.Equal(t, MethodWindowTitle, result.Method)
}

func TestIdentifyWindowTitleTieBreakPrefersNonMinimized(t *testing.T) {
	procs := &fakeProcs{self: 1, names: map[uint32]string{10: "a", 11: "b"}}
	windows := &fakeWindows{windows: []wm.Window{
		{Title: "Notepad", PID: 10, Minimized: true},
		{Title: "Notepad", PID: 11},
	}}
	id := newIdentifier(procs, windows, nil)

	result, err := id.Identify(context.Background(), &uia.Element{}, "Notepad")
	require.NoError(t, err)
	require.Equal(t, uint32(11), result.PID)
}

func TestIdentifyWindowTitleSkipsHiddenAndInvalid(t *testing.T) {
	procs := &fakeProcs{self: 1, names: map[uint32]string{
		10: "svchost",
		11: "notepad",
	}}
	windows := &fakeWindows{windows: []wm.Window{
		{Title: "Notepad", PID: 10},
		{Title: "Notepad", PID: 11, Hidden: true},
		{Title: "", PID: 11},
	}}
	id := newIdentifier(procs, windows, nil)

	result, err := id.Identify(context.Background(), &uia.Element{}, "Notepad")
	require.NoError(t, err)
	require.False(t, result.Success())
}

func TestIdentifyWindowTitleSkippedForUnusableName(t *testing.T) {
	procs := &fakeProcs{self: 1, names: map[uint32]string{10: "notepad"}}
	windows := &fakeWindows{windows: []wm.Window{{Title: "[Error getting name]", PID: 10}}}
	id := newIdentifier(procs, windows, nil)

	result, err := id.Identify(context.Background(), &uia.Element{}, uia.ErrorName)
	require.NoError(t, err)
	require.False(t, result.Success())
}

func TestIdentifyManualMappingEnumerationOrder(t *testing.T) {
	procs := &fakeProcs{self: 1, names: map[uint32]string{
		30: "spotify",
		40: "spotify",
	}}
	id := newIdentifier(procs, nil, []string{"Spotify Premium|spotify"})

	result, err := id.Identify(context.Background(), &uia.Element{}, "Spotify Premium")
	require.NoError(t, err)
	require.Equal(t, uint32(30), result.PID)
	require.Equal(t, MethodManualMapping, result.Method)
}

func TestIdentifyManualMappingTriesCandidatesInOrder(t *testing.T) {
	procs := &fakeProcs{self: 1, names: map[uint32]string{40: "spotify-helper"}}
	id := newIdentifier(procs, nil, []string{"Spotify Premium|spotify;spotify-helper"})

	result, err := id.Identify(context.Background(), &uia.Element{}, "Spotify Premium")
	require.NoError(t, err)
	require.Equal(t, uint32(40), result.PID)
	require.Equal(t, "spotify-helper", result.AppName)
}

func TestIdentifyFailureWhenNothingMatches(t *testing.T) {
	id := newIdentifier(nil, nil, nil)

	result, err := id.Identify(context.Background(), &uia.Element{}, "Spotify Premium")
	require.NoError(t, err)
	require.False(t, result.Success())
	require.Zero(t, result.PID)
}

func TestIdentifyPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := newIdentifier(nil, nil, nil)
	_, err := id.Identify(ctx, &uia.Element{}, "Notepad")
	require.ErrorIs(t, err, context.Canceled)
}
