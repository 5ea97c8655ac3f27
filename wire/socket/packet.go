// Package socket implements the Socket.IO v4 packet types and codec: the
// application-layer framing that rides inside Engine.IO Message/BinaryData
// frames.
package socket

import "encoding/json"

// Type is a Socket.IO packet type code.
type Type byte

const (
	Connect      Type = '0'
	Disconnect   Type = '1'
	Event        Type = '2'
	Ack          Type = '3'
	ConnectError Type = '4'
	BinaryEvent  Type = '5'
	BinaryAck    Type = '6'
)

func (t Type) Valid() bool { return t >= '0' && t <= '6' }

func (t Type) IsBinary() bool { return t == BinaryEvent || t == BinaryAck }

// Element is one entry of a binary packet's payload list: either an inline
// JSON value or a placeholder referencing the Nth attachment frame.
type Element struct {
	// IsAttachment distinguishes AttachmentRef(Index) from Json(Value).
	IsAttachment bool
	Index        int
	Value        json.RawMessage

	// Binary is filled in by the caller once the attachment frame named by
	// Index has arrived; it is never touched by (Un)MarshalJSON.
	Binary []byte
}

// Json builds a json-valued Element.
func Json(v json.RawMessage) Element { return Element{Value: v} }

// AttachmentRef builds a placeholder Element pointing at attachment index i.
func AttachmentRef(i int) Element { return Element{IsAttachment: true, Index: i} }

// MarshalJSON renders an attachment placeholder in Socket.IO's
// {"_placeholder":true,"num":N} form, or the raw JSON value otherwise.
func (e Element) MarshalJSON() ([]byte, error) {
	if e.IsAttachment {
		return json.Marshal(struct {
			Placeholder bool `json:"_placeholder"`
			Num         int  `json:"num"`
		}{true, e.Index})
	}
	if len(e.Value) == 0 {
		return []byte("null"), nil
	}
	return e.Value, nil
}

// UnmarshalJSON recognizes the placeholder shape and otherwise stores the
// raw value untouched.
func (e *Element) UnmarshalJSON(data []byte) error {
	var probe struct {
		Placeholder bool `json:"_placeholder"`
		Num         int  `json:"num"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Placeholder {
		e.IsAttachment = true
		e.Index = probe.Num
		return nil
	}
	e.Value = append(json.RawMessage(nil), data...)
	return nil
}

// Packet is a single Socket.IO frame.
type Packet struct {
	Type        Type
	Namespace   string
	AckID       *uint64
	Payload     []Element // used by Event/Ack/BinaryEvent/BinaryAck
	ErrorData   json.RawMessage
	ConnectData json.RawMessage
	NBinary     int // attachment count, for BinaryEvent/BinaryAck
}
