package engine_test

import (
	"testing"

	engine "github.com/packetloop/sioclient/wire/engine"
)

func TestEncodeDecodePacketRoundTrip(t *testing.T) {
	p := &engine.Packet{Type: engine.Message, Payload: "hello"}
	encoded := engine.EncodePacket(p, true)
	decoded, err := engine.DecodePacket(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != engine.Message || decoded.Payload != "hello" {
		t.Fatalf("got %+v", decoded)
	}
}

func TestEncodeDecodePayloadBatch(t *testing.T) {
	packets := []*engine.Packet{
		{Type: engine.Ping},
		{Type: engine.Message, Payload: "2[\"msg\",\"hi\"]"},
	}
	batch := engine.EncodePayload(packets, true)
	decoded, err := engine.DecodePayload(batch)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("got %d packets, want 2", len(decoded))
	}
	if decoded[0].Type != engine.Ping {
		t.Fatalf("first packet type = %v", decoded[0].Type)
	}
	if decoded[1].Payload != "2[\"msg\",\"hi\"]" {
		t.Fatalf("second packet payload = %q", decoded[1].Payload)
	}
}

func TestDecodeOpenPayload(t *testing.T) {
	p := &engine.Packet{Type: engine.Open, Payload: `{"sid":"s1","upgrades":["websocket"],"pingInterval":25000,"pingTimeout":20000}`}
	open, err := engine.DecodeOpen(p)
	if err != nil {
		t.Fatalf("decode open: %v", err)
	}
	if open.SID != "s1" || open.PingInterval != 25000 || open.PingTimeout != 20000 {
		t.Fatalf("got %+v", open)
	}
}

func TestDecodePacketRejectsInvalidType(t *testing.T) {
	if _, err := engine.DecodePacket("9garbage"); err == nil {
		t.Fatalf("expected error for invalid packet type")
	}
}

func TestBase64BinaryPacket(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xff}
	p := &engine.Packet{Type: engine.Message, Binary: raw}
	encoded := engine.EncodePacket(p, false)
	decoded, err := engine.DecodePacket(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded.Binary) != string(raw) {
		t.Fatalf("got %v, want %v", decoded.Binary, raw)
	}
}
