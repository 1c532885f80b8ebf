package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	questionAnswer bool
	questionErr    error
	entryText      string
	entryOK        bool
	infoErr        error
	errorErr       error

	questions []string
	entries   []string
	infos     []string
	errs      []string
}

func (f *fakeSurface) Question(_ context.Context, title, text string) (bool, error) {
	f.questions = append(f.questions, text)
	return f.questionAnswer, f.questionErr
}

func (f *fakeSurface) Entry(_ context.Context, title, text string) (string, bool, error) {
	f.entries = append(f.entries, text)
	return f.entryText, f.entryOK, nil
}

func (f *fakeSurface) Info(_ context.Context, title, text string) error {
	f.infos = append(f.infos, text)
	return f.infoErr
}

func (f *fakeSurface) Error(_ context.Context, title, text string) error {
	f.errs = append(f.errs, text)
	return f.errorErr
}

func TestMappingUIConfirmMapping(t *testing.T) {
	surface := &fakeSurface{questionAnswer: true}
	ui := NewMappingUI(surface, nil)

	ok, err := ui.ConfirmMapping(context.Background(), "Spotify")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, surface.questions, 1)
	require.Contains(t, surface.questions[0], `"Spotify"`)
}

func TestMappingUIRequestProcess(t *testing.T) {
	surface := &fakeSurface{entryText: "spotify", entryOK: true}
	ui := NewMappingUI(surface, nil)

	process, ok, err := ui.RequestProcess(context.Background(), "Spotify")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "spotify", process)
}

func TestMappingUISavedAndFailedSwallowDialogErrors(t *testing.T) {
	surface := &fakeSurface{infoErr: errors.New("no display"), errorErr: errors.New("no display")}
	ui := NewMappingUI(surface, nil)

	ui.MappingSaved(context.Background(), "Spotify", "spotify")
	ui.SaveFailed(context.Background(), "Spotify", "spotify")
	require.Len(t, surface.infos, 1)
	require.Len(t, surface.errs, 1)
}

func TestNotifierSwallowsDialogFailures(t *testing.T) {
	surface := &fakeSurface{infoErr: errors.New("no display"), errorErr: errors.New("no display")}
	n := NewNotifier(surface, nil)

	n.Info(context.Background(), "Volume Control", "nothing to do")
	n.Error(context.Background(), "Volume Control", "boom")
	require.Equal(t, []string{"nothing to do"}, surface.infos)
	require.Equal(t, []string{"boom"}, surface.errs)
}

func TestZenityMissingBinaryErrors(t *testing.T) {
	z := &Zenity{Bin: "/nonexistent/zenity"}

	_, _, err := z.Entry(context.Background(), "t", "x")
	require.Error(t, err)

	_, err2 := z.Question(context.Background(), "t", "x")
	require.Error(t, err2)

	require.Error(t, z.Info(context.Background(), "t", "x"))
	require.Error(t, z.Error(context.Background(), "t", "x"))
}
