package engine

import (
	"encoding/base64"
	"errors"
	"strings"
)

// recordSeparator is the Engine.IO v4 batch separator used by long-polling
// payloads (replacing the length-prefixed framing of earlier versions).
const recordSeparator = '\x1e'

// EncodePacket renders a single packet as it would appear inside a polling
// batch or, for textual packets, as a WebSocket text frame payload.
func EncodePacket(p *Packet, supportsBinary bool) string {
	if p.Type == Message && p.Binary != nil {
		if supportsBinary {
			// Binary frames travel as a separate WebSocket binary frame;
			// callers send p.Binary directly and never reach here for that
			// case. This branch exists for the base64 polling fallback.
		}
		return "b" + base64.StdEncoding.EncodeToString(p.Binary)
	}
	return string(byte(p.Type)) + p.Payload
}

// DecodePacket parses a single textual frame (one WebSocket text frame, or
// one piece of a polling batch) into a Packet.
func DecodePacket(raw string) (*Packet, error) {
	if raw == "" {
		return nil, errors.New("engine: empty packet")
	}
	if raw[0] == 'b' {
		data, err := base64.StdEncoding.DecodeString(raw[1:])
		if err != nil {
			return nil, err
		}
		return &Packet{Type: Message, Binary: data}, nil
	}

	t := Type(raw[0])
	if !t.Valid() {
		return nil, errors.New("engine: invalid packet type")
	}
	return &Packet{Type: t, Payload: raw[1:]}, nil
}

// EncodePayload batches multiple packets for one HTTP POST body.
func EncodePayload(packets []*Packet, supportsBinary bool) string {
	parts := make([]string, len(packets))
	for i, p := range packets {
		parts[i] = EncodePacket(p, supportsBinary)
	}
	return strings.Join(parts, string(recordSeparator))
}

// DecodePayload splits and decodes one HTTP GET response body into packets.
func DecodePayload(raw string) ([]*Packet, error) {
	if raw == "" {
		return nil, nil
	}
	pieces := strings.Split(raw, string(recordSeparator))
	out := make([]*Packet, 0, len(pieces))
	for _, piece := range pieces {
		p, err := DecodePacket(piece)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
