package entity

import (
	"encoding/json"
	"time"
)

// Envelope is the JSON frame exchanged on the signaling websocket. Only the
// fields relevant to a given Type are populated; the SDP and candidate
// payloads are opaque to this service and passed through untouched.
type Envelope struct {
	Type     string   `json:"type"`
	CallID   string   `json:"callId"`
	From     string   `json:"from,omitempty"`
	FromName string   `json:"fromName,omitempty"`
	To       string   `json:"to,omitempty"`
	CallType CallType `json:"callType,omitempty"`

	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`

	SpeakerRole SpeakerRole `json:"speakerRole,omitempty"`
	Text        string      `json:"text,omitempty"`
	Timestamp   time.Time   `json:"timestamp,omitzero"`

	Error string `json:"error,omitempty"`
}
