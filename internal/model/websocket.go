package model

import "encoding/json"

// WebSocket message types
const (
	WSMessageTypePing  = "ping"
	WSMessageTypePong  = "pong"
	WSMessageTypeEvent = "event"
)

// WSMessage represents a generic WebSocket control message
type WSMessage struct {
	Type string `json:"type"`
}

// WSEventMessage relays one summary event to job subscribers. Event holds
// the same JSON object the streaming endpoint sends.
type WSEventMessage struct {
	Type  string          `json:"type"`
	JobID string          `json:"jobId"`
	Event json.RawMessage `json:"event"`
}
