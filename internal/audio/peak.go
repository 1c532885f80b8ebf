package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// 10ms float32 mono fragments at the meter rate.
	peakSampleRate   = 8000
	peakFragmentSize = peakSampleRate * 4 / 100

	// Per-poll falloff so the meter falls back between widget ticks.
	peakDecay = 0.7
)

// peakMeter records the default sink's monitor source and holds the loudest
// sample seen since the previous poll.
type peakMeter struct {
	client *pulse.Client
	stream *pulse.RecordStream

	mu   sync.Mutex
	peak float32
}

func newPeakMeter() (*peakMeter, error) {
	client, err := connect()
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	sink, err := client.DefaultSink()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve default sink: %w", err)
	}

	source, err := client.SourceByID(sink.ID() + ".monitor")
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve sink monitor source: %w", err)
	}

	m := &peakMeter{client: client}
	writer := pulse.NewWriter(writerFunc(m.consume), pulseproto.FormatFloat32LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(peakSampleRate),
		pulse.RecordBufferFragmentSize(peakFragmentSize),
		pulse.RecordMediaName("knobd peak meter"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create monitor record stream: %w", err)
	}

	m.stream = stream
	stream.Start()
	return m, nil
}

func (m *peakMeter) consume(b []byte) (int, error) {
	level := maxAbsSample(b)

	m.mu.Lock()
	if level > m.peak {
		m.peak = level
	}
	m.mu.Unlock()
	return len(b), nil
}

// Poll returns the held peak and decays it so a silent stream ramps down
// instead of freezing at the last loud sample.
func (m *peakMeter) Poll() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	level := Clamp(m.peak)
	m.peak *= peakDecay
	return level
}

func (m *peakMeter) Close() {
	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
	}
	if m.client != nil {
		m.client.Close()
	}
}

// maxAbsSample scans little-endian float32 PCM for the largest magnitude.
func maxAbsSample(b []byte) float32 {
	var max float32
	for i := 0; i+4 <= len(b); i += 4 {
		sample := math.Float32frombits(binary.LittleEndian.Uint32(b[i:]))
		if sample < 0 {
			sample = -sample
		}
		if sample > max {
			max = sample
		}
	}
	return max
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
