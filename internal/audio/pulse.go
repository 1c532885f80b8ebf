package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const procIDProperty = "application.process.id"

// PulseResolver enumerates sink inputs on the PulseAudio server. Every
// resolution opens a fresh client so a changed default device is always
// observed; the connection is handed to the matched session and closed on
// Release.
type PulseResolver struct {
	procs  ProcessNamer
	logger *slog.Logger
}

// NewPulseResolver builds a resolver. A nil logger disables logging.
func NewPulseResolver(procs ProcessNamer, logger *slog.Logger) *PulseResolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PulseResolver{procs: procs, logger: logger}
}

// Probe verifies the audio server is reachable. Surfaced by doctor; fatal
// at daemon startup.
func (r *PulseResolver) Probe(ctx context.Context) error {
	client, err := connect()
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	client.Close()
	return ctx.Err()
}

// SessionForProcess returns the first sink input owned by pid.
func (r *PulseResolver) SessionForProcess(ctx context.Context, pid uint32) (Session, error) {
	if pid == 0 {
		return nil, nil
	}

	client, infos, err := r.listSinkInputs(ctx)
	if err != nil {
		r.logger.Warn("sink input enumeration failed", "error", err.Error())
		return nil, nil
	}

	for _, info := range infos {
		if info == nil || sinkInputPID(info) != pid {
			continue
		}
		return r.newSession(client, info, pid), nil
	}

	client.Close()
	return nil, nil
}

// Sessions returns every sink input with a known owning pid. All returned
// sessions share one connection; releasing each decrements the shared
// refcount and the last release closes it.
func (r *PulseResolver) Sessions(ctx context.Context) ([]Session, error) {
	client, infos, err := r.listSinkInputs(ctx)
	if err != nil {
		r.logger.Warn("sink input enumeration failed", "error", err.Error())
		return nil, nil
	}

	var sessions []Session
	for _, info := range infos {
		if info == nil {
			continue
		}
		pid := sinkInputPID(info)
		if pid == 0 {
			continue
		}
		sessions = append(sessions, r.newSession(client, info, pid))
	}

	if len(sessions) == 0 {
		client.Close()
		return nil, nil
	}

	shared := &sharedClient{client: client, refs: len(sessions)}
	for _, session := range sessions {
		session.(*pulseSession).shared = shared
	}
	return sessions, nil
}

func (r *PulseResolver) listSinkInputs(ctx context.Context) (*pulse.Client, pulseproto.GetSinkInputInfoListReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	client, err := connect()
	if err != nil {
		return nil, nil, fmt.Errorf("connect pulse server: %w", err)
	}

	var infos pulseproto.GetSinkInputInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInputInfoList{}, &infos); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("list sink inputs: %w", err)
	}
	return client, infos, nil
}

func (r *PulseResolver) newSession(client *pulse.Client, info *pulseproto.GetSinkInputInfoReply, pid uint32) *pulseSession {
	processName := ""
	if name, err := r.procs.Name(pid); err == nil {
		processName = name
	}

	return &pulseSession{
		client:      client,
		index:       info.SinkInputIndex,
		pid:         pid,
		displayName: resolveDisplayName(sinkInputName(info), processName, pid),
		logger:      r.logger,
	}
}

func connect() (*pulse.Client, error) {
	return pulse.NewClient(
		pulse.ClientApplicationName("knobd"),
		pulse.ClientApplicationIconName("audio-volume-high"),
	)
}

// sharedClient refcounts one connection across the sessions of a bulk
// enumeration.
type sharedClient struct {
	mu     sync.Mutex
	client *pulse.Client
	refs   int
}

func (s *sharedClient) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs--
	if s.refs == 0 && s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

// pulseSession controls one sink input. All accessors re-query the server so
// external volume changes are observed; failures degrade to quiet defaults.
type pulseSession struct {
	client      *pulse.Client
	index       uint32
	pid         uint32
	displayName string
	logger      *slog.Logger

	shared *sharedClient

	mu          sync.Mutex
	released    bool
	meter       *peakMeter
	meterFailed bool
}

func (s *pulseSession) PID() uint32 {
	return s.pid
}

func (s *pulseSession) DisplayName() string {
	return s.displayName
}

func (s *pulseSession) Volume() float32 {
	info, err := s.query()
	if err != nil {
		return 0
	}
	return averageVolume(info.ChannelVolumes)
}

// averageVolume folds per-channel raw volumes into one normalized level.
func averageVolume(volumes pulseproto.ChannelVolumes) float32 {
	if len(volumes) == 0 {
		return 0
	}
	var total uint64
	for _, v := range volumes {
		total += uint64(v)
	}
	return Clamp(float32(total/uint64(len(volumes))) / float32(pulseproto.VolumeNorm))
}

func (s *pulseSession) SetVolume(volume float32) error {
	volume = Clamp(volume)

	info, err := s.query()
	if err != nil {
		return err
	}

	channels := len(info.ChannelVolumes)
	if channels == 0 {
		channels = 2
	}
	raw := uint32(volume * float32(pulseproto.VolumeNorm))
	volumes := make(pulseproto.ChannelVolumes, channels)
	for i := range volumes {
		volumes[i] = raw
	}

	return s.request(&pulseproto.SetSinkInputVolume{
		SinkInputIndex: s.index,
		ChannelVolumes: volumes,
	})
}

func (s *pulseSession) Muted() bool {
	info, err := s.query()
	if err != nil {
		return false
	}
	return info.Muted
}

func (s *pulseSession) SetMute(muted bool) error {
	return s.request(&pulseproto.SetSinkInputMute{
		SinkInputIndex: s.index,
		Mute:           muted,
	})
}

// Peak reports the loudest recent output level. The meter records the
// default sink's monitor source, started lazily on the first poll; what it
// hears is the whole sink, the closest the server gives without a
// direct-on-input stream. A meter that cannot start degrades to 0.
func (s *pulseSession) Peak() float32 {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return 0
	}
	if s.meter == nil && !s.meterFailed {
		meter, err := newPeakMeter()
		if err != nil {
			s.meterFailed = true
			s.logger.Warn("peak meter unavailable", "pid", s.pid, "error", err.Error())
		} else {
			s.meter = meter
		}
	}
	meter := s.meter
	s.mu.Unlock()

	if meter == nil {
		return 0
	}
	return meter.Poll()
}

func (s *pulseSession) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true

	if s.meter != nil {
		s.meter.Close()
		s.meter = nil
	}

	if s.shared != nil {
		s.shared.release()
		return
	}
	if s.client != nil {
		s.client.Close()
	}
}

func (s *pulseSession) query() (*pulseproto.GetSinkInputInfoReply, error) {
	var info pulseproto.GetSinkInputInfoReply
	if err := s.request(&pulseproto.GetSinkInputInfo{SinkInputIndex: s.index}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *pulseSession) request(req pulseproto.RequestArgs, replies ...pulseproto.Reply) error {
	s.mu.Lock()
	client := s.client
	released := s.released
	s.mu.Unlock()

	if released || client == nil {
		return fmt.Errorf("session for pid %d already released", s.pid)
	}

	var reply pulseproto.Reply
	if len(replies) > 0 {
		reply = replies[0]
	}
	if err := client.RawRequest(req, reply); err != nil {
		s.logger.Debug("sink input request failed", "pid", s.pid, "error", err.Error())
		return err
	}
	return nil
}

func sinkInputPID(info *pulseproto.GetSinkInputInfoReply) uint32 {
	value, ok := info.Properties[procIDProperty]
	if !ok {
		return 0
	}
	pid, err := strconv.ParseUint(value.String(), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(pid)
}

func sinkInputName(info *pulseproto.GetSinkInputInfoReply) string {
	for _, key := range []string{"application.name", "media.name"} {
		if value, ok := info.Properties[key]; ok {
			if name := value.String(); name != "" {
				return name
			}
		}
	}
	return ""
}
