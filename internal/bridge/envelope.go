package bridge

import (
	"encoding/hex"
	"unicode/utf8"
)

// Message types exchanged with WebSocket clients.
const (
	// Client → bridge
	TypeSend   = "send"   // frame Command and queue it
	TypeRaw    = "raw"    // queue Data verbatim
	TypeStatus = "status" // ask for a status envelope

	// Bridge → client
	TypeData   = "data"   // inbound chunk from the device
	TypeAck    = "ack"    // result of a send or raw request
	TypeError  = "error"  // malformed request
	TypeClosed = "closed" // device connection ended
)

// Request is a client message.
type Request struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Command string `json:"command,omitempty"`
	Data    string `json:"data,omitempty"`
}

// Envelope is a bridge message.
type Envelope struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// data
	Data string `json:"data,omitempty"`
	Hex  string `json:"hex,omitempty"`

	// ack
	Accepted *bool `json:"accepted,omitempty"`

	// status
	Session string `json:"session,omitempty"`
	State   string `json:"state,omitempty"`
	Remote  string `json:"remote,omitempty"`
	Pending *int   `json:"pending,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// dataEnvelope wraps an inbound chunk. Hex always carries the exact bytes;
// Data is set only when the chunk is valid UTF-8.
func dataEnvelope(chunk []byte) Envelope {
	e := Envelope{Type: TypeData, Hex: hex.EncodeToString(chunk)}
	if utf8.Valid(chunk) {
		e.Data = string(chunk)
	}
	return e
}

func ackEnvelope(id string, accepted bool) Envelope {
	return Envelope{Type: TypeAck, ID: id, Accepted: &accepted}
}

func errorEnvelope(id, msg string) Envelope {
	return Envelope{Type: TypeError, ID: id, Error: msg}
}
