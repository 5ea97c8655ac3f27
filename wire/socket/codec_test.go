package socket_test

import (
	"encoding/json"
	"testing"

	socket "github.com/packetloop/sioclient/wire/socket"
)

func TestEncodeDecodeEventRoundTrip(t *testing.T) {
	p := &socket.Packet{
		Type:      socket.Event,
		Namespace: "/",
		Payload: []socket.Element{
			socket.Json(json.RawMessage(`"msg"`)),
			socket.Json(json.RawMessage(`"hi"`)),
		},
	}
	text, err := socket.EncodeText(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if text != `2["msg","hi"]` {
		t.Fatalf("got %q", text)
	}

	decoded, err := socket.DecodeText(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != socket.Event || len(decoded.Payload) != 2 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestEncodeDecodeWithNamespaceAndAck(t *testing.T) {
	ackID := uint64(7)
	p := &socket.Packet{
		Type:      socket.Event,
		Namespace: "/admin",
		AckID:     &ackID,
		Payload:   []socket.Element{socket.Json(json.RawMessage(`"ping"`))},
	}
	text, err := socket.EncodeText(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if text != `2/admin,7["ping"]` {
		t.Fatalf("got %q", text)
	}

	decoded, err := socket.DecodeText(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Namespace != "/admin" || decoded.AckID == nil || *decoded.AckID != 7 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestEncodeDecodeBinaryEventPlaceholders(t *testing.T) {
	p := &socket.Packet{
		Type:    socket.BinaryEvent,
		NBinary: 1,
		Payload: []socket.Element{
			socket.Json(json.RawMessage(`"bin"`)),
			socket.AttachmentRef(0),
		},
	}
	text, err := socket.EncodeText(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if text != `51-["bin",{"_placeholder":true,"num":0}]` {
		t.Fatalf("got %q", text)
	}

	decoded, err := socket.DecodeText(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.NBinary != 1 || !decoded.Payload[1].IsAttachment || decoded.Payload[1].Index != 0 {
		t.Fatalf("got %+v", decoded)
	}
}

func TestDecodeConnectWithPayload(t *testing.T) {
	decoded, err := socket.DecodeText(`0{"sid":"abc"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != socket.Connect || string(decoded.ConnectData) != `{"sid":"abc"}` {
		t.Fatalf("got %+v", decoded)
	}
}

func TestDecodeRejectsInvalidType(t *testing.T) {
	if _, err := socket.DecodeText("9garbage"); err == nil {
		t.Fatalf("expected error")
	}
}
