package agent

// Stream event kinds, the only names a streaming client ever sees.
const (
	EventMeta   = "meta"
	EventStatus = "status"
	EventToken  = "token"
	EventResult = "result"
	EventError  = "error"
	EventDone   = "done"
)

// Lifecycle markers carried by status events.
const (
	StatusPlanning   = "planning"
	StatusActing     = "acting"
	StatusToolStart  = "tool_start"
	StatusToolDone   = "tool_done"
	StatusResponding = "responding"
)

// StreamEvent is one frame of a streamed turn. Data is JSON-serializable
// and shaped per kind: meta carries {"provider": name}, status a lifecycle
// marker (plus the tool name for tool_start/tool_done), token a text
// fragment, result the final turn outcome, error a message, done nothing.
type StreamEvent struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data,omitempty"`
}
