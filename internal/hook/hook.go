// Package hook captures global pointer clicks together with the modifier
// keys held at click time.
package hook

// ClickEvent is one right-button release with the modifier state sampled at
// the moment of the click.
type ClickEvent struct {
	X int
	Y int

	Ctrl  bool
	Alt   bool
	Shift bool
	Win   bool
}

// Source delivers click events until Close. The channel is closed when the
// underlying hook stops.
type Source interface {
	Events() <-chan ClickEvent
	Close() error
}
