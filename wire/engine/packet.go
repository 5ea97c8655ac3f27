// Package engine implements the Engine.IO v4 packet types and the codec
// that turns them to and from wire bytes — the "low-level frame parser"
// spec.md names as an external collaborator, given a concrete shape here so
// the rest of the module has something to compile and test against.
package engine

import "encoding/json"

// Type is an Engine.IO packet type code, per the v4 wire protocol.
type Type byte

const (
	Open    Type = '0'
	Close   Type = '1'
	Ping    Type = '2'
	Pong    Type = '3'
	Message Type = '4'
	Upgrade Type = '5'
	Noop    Type = '6'
)

func (t Type) Valid() bool { return t >= '0' && t <= '6' }

// Packet is a single Engine.IO frame. Binary is non-nil for BinaryData
// frames (sent as a raw WebSocket binary frame, or base64-inlined with a
// leading 'b' marker over polling); Payload carries textual data for
// Message/Ping/Pong.
type Packet struct {
	Type    Type
	Payload string
	Binary  []byte
}

// OpenPayload is the JSON body of an Open packet's Payload field.
type OpenPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
}

// DecodeOpen unmarshals p's payload as an OpenPayload. p.Type must be Open.
func DecodeOpen(p *Packet) (*OpenPayload, error) {
	var out OpenPayload
	if err := json.Unmarshal([]byte(p.Payload), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EncodeOpen renders an OpenPayload into an Open packet's JSON payload.
func EncodeOpen(o *OpenPayload) (*Packet, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return &Packet{Type: Open, Payload: string(b)}, nil
}
