package client

import (
	"encoding/json"
	"testing"

	wsocket "github.com/packetloop/sioclient/wire/socket"
)

func TestEncodeArgsExtractsBinaryAttachments(t *testing.T) {
	payload, attachments, err := encodeArgs([]any{"hello", []byte("binary-data"), 42})
	if err != nil {
		t.Fatalf("encodeArgs: %v", err)
	}
	if len(attachments) != 1 || string(attachments[0]) != "binary-data" {
		t.Fatalf("got attachments %v", attachments)
	}
	if !payload[1].IsAttachment || payload[1].Index != 0 {
		t.Fatalf("got payload[1] = %+v", payload[1])
	}

	var s string
	if err := json.Unmarshal(payload[0].Value, &s); err != nil || s != "hello" {
		t.Fatalf("payload[0] = %s, err %v", payload[0].Value, err)
	}
}

func TestDecodeArgsResolvesAttachmentsAndValues(t *testing.T) {
	raw, _ := json.Marshal("plain")
	payload := []wsocket.Element{
		wsocket.Json(raw),
		{IsAttachment: true, Index: 0, Binary: []byte("resolved")},
	}

	out := decodeArgs(payload)
	if got, ok := out[1].([]byte); !ok || string(got) != "resolved" {
		t.Fatalf("got %v", out[1])
	}
}

func TestBinaryReconstructorCompletesAfterAllAttachments(t *testing.T) {
	pkt := &wsocket.Packet{
		Type:    wsocket.BinaryEvent,
		NBinary: 2,
		Payload: []wsocket.Element{
			wsocket.AttachmentRef(0),
			wsocket.AttachmentRef(1),
		},
	}
	r := newBinaryReconstructor(pkt)

	if _, done := r.addBinary([]byte("first")); done {
		t.Fatal("should not complete after only one attachment")
	}
	done2, complete := r.addBinary([]byte("second"))
	if !complete {
		t.Fatal("expected completion after the second attachment")
	}
	if string(done2.Payload[0].Binary) != "first" || string(done2.Payload[1].Binary) != "second" {
		t.Fatalf("got %+v", done2.Payload)
	}
}
