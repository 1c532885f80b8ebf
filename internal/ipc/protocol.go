// Package ipc carries control commands between the knobd CLI, the control
// widget, and the running daemon over a unix socket. One JSON request line
// per connection, one JSON response line back.
package ipc

// Commands accepted over the control socket. Status, hide, reload, and quit
// come from the CLI; set-volume and toggle-mute come from the knob widget
// with the target pid as the first argument.
const (
	CommandStatus     = "status"
	CommandHide       = "hide"
	CommandReload     = "reload"
	CommandQuit       = "quit"
	CommandSetVolume  = "set-volume"
	CommandToggleMute = "toggle-mute"
)

type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
