package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

type fakeNamer struct {
	names map[uint32]string
}

func (f *fakeNamer) Name(pid uint32) (string, error) {
	if name, ok := f.names[pid]; ok {
		return name, nil
	}
	return "", errors.New("no such process")
}

func TestClampBounds(t *testing.T) {
	require.Equal(t, float32(0), Clamp(-0.5))
	require.Equal(t, float32(0), Clamp(0))
	require.Equal(t, float32(0.5), Clamp(0.5))
	require.Equal(t, float32(1), Clamp(1))
	require.Equal(t, float32(1), Clamp(1.7))
}

func TestResolveDisplayNamePrefersSessionName(t *testing.T) {
	require.Equal(t, "Spotify", resolveDisplayName("Spotify", "spotify", 4242))
}

func TestResolveDisplayNameFallsBackToProcessName(t *testing.T) {
	require.Equal(t, "spotify", resolveDisplayName("", "spotify", 4242))
	require.Equal(t, "spotify", resolveDisplayName("   ", "spotify", 4242))
}

func TestResolveDisplayNameFallsBackToPID(t *testing.T) {
	require.Equal(t, "PID: 4242", resolveDisplayName("", "", 4242))
}

func TestSinkInputPID(t *testing.T) {
	info := &pulseproto.GetSinkInputInfoReply{
		Properties: pulseproto.PropList{
			procIDProperty: pulseproto.PropListString("4242"),
		},
	}
	require.Equal(t, uint32(4242), sinkInputPID(info))

	require.Equal(t, uint32(0), sinkInputPID(&pulseproto.GetSinkInputInfoReply{
		Properties: pulseproto.PropList{},
	}))

	require.Equal(t, uint32(0), sinkInputPID(&pulseproto.GetSinkInputInfoReply{
		Properties: pulseproto.PropList{
			procIDProperty: pulseproto.PropListString("not-a-pid"),
		},
	}))
}

func TestSinkInputNamePrefersApplicationName(t *testing.T) {
	info := &pulseproto.GetSinkInputInfoReply{
		Properties: pulseproto.PropList{
			"application.name": pulseproto.PropListString("Spotify"),
			"media.name":       pulseproto.PropListString("Playback"),
		},
	}
	require.Equal(t, "Spotify", sinkInputName(info))
}

func TestSinkInputNameFallsBackToMediaName(t *testing.T) {
	info := &pulseproto.GetSinkInputInfoReply{
		Properties: pulseproto.PropList{
			"media.name": pulseproto.PropListString("Playback"),
		},
	}
	require.Equal(t, "Playback", sinkInputName(info))

	require.Equal(t, "", sinkInputName(&pulseproto.GetSinkInputInfoReply{
		Properties: pulseproto.PropList{},
	}))
}

func TestProbeFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	resolver := NewPulseResolver(&fakeNamer{}, nil)
	require.Error(t, resolver.Probe(context.Background()))
}

func TestSessionForProcessZeroPID(t *testing.T) {
	resolver := NewPulseResolver(&fakeNamer{}, nil)

	session, err := resolver.SessionForProcess(context.Background(), 0)
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestSessionForProcessFailSoftWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	resolver := NewPulseResolver(&fakeNamer{}, nil)
	session, err := resolver.SessionForProcess(context.Background(), 4242)
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestSessionsFailSoftWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	resolver := NewPulseResolver(&fakeNamer{}, nil)
	sessions, err := resolver.Sessions(context.Background())
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestReleasedSessionRejectsRequests(t *testing.T) {
	session := &pulseSession{pid: 4242}
	session.Release()

	require.Error(t, session.SetMute(true))
	require.Equal(t, float32(0), session.Volume())
	require.False(t, session.Muted())
}

func TestReleaseIsIdempotent(t *testing.T) {
	session := &pulseSession{pid: 4242}
	session.Release()
	session.Release()
	require.True(t, session.released)
}

func TestSharedClientClosesOnLastRelease(t *testing.T) {
	shared := &sharedClient{refs: 2}
	first := &pulseSession{pid: 1, shared: shared}
	second := &pulseSession{pid: 2, shared: shared}

	first.Release()
	require.Equal(t, 1, shared.refs)
	second.Release()
	require.Equal(t, 0, shared.refs)
}

func TestSinkInputReplyVolumeAndMute(t *testing.T) {
	info := &pulseproto.GetSinkInputInfoReply{
		Muted: true,
		ChannelVolumes: pulseproto.ChannelVolumes{
			uint32(pulseproto.VolumeNorm / 2),
			uint32(pulseproto.VolumeNorm),
		},
	}

	require.True(t, info.Muted)
	require.InDelta(t, 0.75, averageVolume(info.ChannelVolumes), 0.0001)
	require.Equal(t, float32(0), averageVolume(nil))
}

func TestPeakMeterHoldsLoudestSampleAndDecays(t *testing.T) {
	meter := &peakMeter{}

	n, err := meter.consume(encodeSamples(0.1, -0.2))
	require.NoError(t, err)
	require.Equal(t, 8, n)
	_, err = meter.consume(encodeSamples(0.3, -0.8, 0.5))
	require.NoError(t, err)

	require.InDelta(t, 0.8, meter.Poll(), 0.0001)
	require.InDelta(t, 0.8*peakDecay, meter.Poll(), 0.0001)
}

func TestMaxAbsSampleIgnoresTrailingPartialSample(t *testing.T) {
	b := append(encodeSamples(0.25), 0x01, 0x02)
	require.InDelta(t, 0.25, maxAbsSample(b), 0.0001)
	require.Equal(t, float32(0), maxAbsSample(nil))
}

func TestPeakFailsSoftWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	session := &pulseSession{pid: 4242, logger: slog.New(slog.DiscardHandler)}
	require.Equal(t, float32(0), session.Peak())
	require.True(t, session.meterFailed)
}

func TestPeakOnReleasedSessionIsZero(t *testing.T) {
	session := &pulseSession{pid: 4242}
	session.Release()
	require.Equal(t, float32(0), session.Peak())
}

func encodeSamples(samples ...float32) []byte {
	b := make([]byte, 0, len(samples)*4)
	for _, sample := range samples {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(sample))
	}
	return b
}
