package chat

import "encoding/json"

// Event names on the real-time channel.
const (
	EventUserMessage = "user-message"
	EventAIMessage   = "ai-message"
	EventError       = "error"
	EventDone        = "done"
)

// Envelope frames every websocket message as {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEnvelope is the server-side counterpart of Envelope.
type OutboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
