package hook

import (
	"log/slog"
	"sync"

	gohook "github.com/robotn/gohook"
)

// libuiohook button numbering: 1 left, 2 right, 3 middle.
const rightButton = 2

// X11 keysyms reported in Event.Rawcode for modifier keys.
const (
	keysymShiftL   = 65505
	keysymShiftR   = 65506
	keysymControlL = 65507
	keysymControlR = 65508
	keysymAltL     = 65513
	keysymAltR     = 65514
	keysymSuperL   = 65515
	keysymSuperR   = 65516
)

// GlobalSource owns the process-wide input hook. Only one may run per
// process.
type GlobalSource struct {
	events chan ClickEvent
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewGlobalSource installs the global hook and starts translating raw input
// into click events.
func NewGlobalSource(logger *slog.Logger) *GlobalSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &GlobalSource{
		events: make(chan ClickEvent, 8),
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.run(gohook.Start())
	return s
}

func (s *GlobalSource) Events() <-chan ClickEvent {
	return s.events
}

// Close uninstalls the hook. The events channel closes once the raw stream
// drains.
func (s *GlobalSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		gohook.End()
	})
	return nil
}

func (s *GlobalSource) run(raw chan gohook.Event) {
	defer close(s.events)

	var mods modifiers
	for ev := range raw {
		click, ok := mods.apply(ev)
		if !ok {
			continue
		}
		select {
		case s.events <- click:
		case <-s.done:
			return
		default:
			// A stalled consumer must not back-pressure the input hook.
			s.logger.Warn("click event dropped", "x", click.X, "y", click.Y)
		}
	}
}

// modifiers tracks held modifier keys across key events. apply folds one raw
// event into the state and reports a ClickEvent on right-button release.
type modifiers struct {
	ctrl  bool
	alt   bool
	shift bool
	win   bool
}

func (m *modifiers) apply(ev gohook.Event) (ClickEvent, bool) {
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		m.set(ev.Rawcode, true)
	case gohook.KeyUp:
		m.set(ev.Rawcode, false)
	case gohook.MouseUp:
		if ev.Button == rightButton {
			return ClickEvent{
				X:     int(ev.X),
				Y:     int(ev.Y),
				Ctrl:  m.ctrl,
				Alt:   m.alt,
				Shift: m.shift,
				Win:   m.win,
			}, true
		}
	}
	return ClickEvent{}, false
}

func (m *modifiers) set(rawcode uint16, down bool) {
	switch rawcode {
	case keysymControlL, keysymControlR:
		m.ctrl = down
	case keysymAltL, keysymAltR:
		m.alt = down
	case keysymShiftL, keysymShiftR:
		m.shift = down
	case keysymSuperL, keysymSuperR:
		m.win = down
	}
}
