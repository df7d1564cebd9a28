// Package ipc carries control commands from short-lived CLI invocations to the
// process that owns the conversation, over a line-delimited JSON unix socket.
package ipc

// Control commands understood by the conversation owner.
const (
	CommandStatus = "status"
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandToggle = "toggle"
)

// Commands lists every control command in help order.
func Commands() []string {
	return []string{CommandStatus, CommandStart, CommandStop, CommandToggle}
}

type Request struct {
	Command string `json:"command"`
}

// Response reports the owner's phase after handling a request.
// Label is the human-readable phase text ("Listening...", "Idle").
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Label   string `json:"label,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
