package client

import (
	"encoding/json"

	wsocket "github.com/packetloop/sioclient/wire/socket"
)

// encodeArgs turns user-supplied event arguments into a Socket.IO payload
// and the ordered list of binary attachments pulled out of it. A []byte
// argument becomes an AttachmentRef placeholder; everything else is
// JSON-marshaled in place.
func encodeArgs(args []any) ([]wsocket.Element, [][]byte, error) {
	payload := make([]wsocket.Element, len(args))
	var attachments [][]byte

	for i, a := range args {
		if b, ok := a.([]byte); ok {
			payload[i] = wsocket.AttachmentRef(len(attachments))
			attachments = append(attachments, b)
			continue
		}
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, nil, err
		}
		payload[i] = wsocket.Json(raw)
	}

	return payload, attachments, nil
}

// decodeArgs renders a (possibly binary-reconstructed) payload back into
// plain Go values: []byte for resolved attachments, json.RawMessage for
// everything else, left for the caller to unmarshal into a concrete type.
func decodeArgs(payload []wsocket.Element) []any {
	out := make([]any, len(payload))
	for i, el := range payload {
		if el.IsAttachment {
			out[i] = el.Binary
			continue
		}
		out[i] = el.Value
	}
	return out
}

// binaryReconstructor accumulates the NBinary attachment frames that follow
// a BinaryEvent/BinaryAck packet before it can be dispatched.
type binaryReconstructor struct {
	pkt     *wsocket.Packet
	buffers [][]byte
}

func newBinaryReconstructor(pkt *wsocket.Packet) *binaryReconstructor {
	return &binaryReconstructor{pkt: pkt}
}

// addBinary appends one attachment frame; it returns the completed packet
// once the last expected attachment has arrived.
func (r *binaryReconstructor) addBinary(data []byte) (*wsocket.Packet, bool) {
	r.buffers = append(r.buffers, data)
	if len(r.buffers) < r.pkt.NBinary {
		return nil, false
	}
	for i, el := range r.pkt.Payload {
		if el.IsAttachment && el.Index < len(r.buffers) {
			r.pkt.Payload[i].Binary = r.buffers[el.Index]
		}
	}
	return r.pkt, true
}
