package sio_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/packetloop/sioclient/client"
	"github.com/packetloop/sioclient/internal/faketest"
	"github.com/packetloop/sioclient/sio"
	wsocket "github.com/packetloop/sioclient/wire/socket"
)

func waitConnect(t *testing.T, s *client.Socket) {
	t.Helper()
	connected := make(chan struct{}, 1)
	s.Once(client.EventConnect, func(...any) { connected <- struct{}{} })
	if s.Connected() {
		return
	}
	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting to connect")
	}
}

func TestConnectEmitsAndReceivesAck(t *testing.T) {
	srv := faketest.New(func(nsp, name string, args []wsocket.Element, ack func(args ...any)) {
		if name != "greet" || len(args) != 1 {
			t.Errorf("unexpected event: %s %v", name, args)
			return
		}
		var who string
		json.Unmarshal(args[0].Value, &who)
		if ack != nil {
			ack("hello, " + who)
		}
	})
	defer srv.Close()

	s, err := sio.Connect(srv.HTTP.URL,
		client.WithMultiplex(false),
		client.WithTransports([]string{"polling"}),
		client.WithUpgrade(false),
	)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()
	waitConnect(t, s)

	replyCh := make(chan string, 1)
	if err := s.Emit("greet", "world", client.AckFunc(func(args []any, err error) {
		if err != nil {
			t.Errorf("ack error: %v", err)
			return
		}
		var reply string
		json.Unmarshal(args[0].(json.RawMessage), &reply)
		replyCh <- reply
	})); err != nil {
		t.Fatalf("emit: %v", err)
	}

	select {
	case reply := <-replyCh:
		if reply != "hello, world" {
			t.Fatalf("got reply %q", reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ack")
	}
}

func TestServerInitiatedEventIsDelivered(t *testing.T) {
	srv := faketest.New(nil)
	defer srv.Close()

	s, err := sio.Connect(srv.HTTP.URL,
		client.WithMultiplex(false),
		client.WithTransports([]string{"polling"}),
		client.WithUpgrade(false),
	)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()
	waitConnect(t, s)

	got := make(chan string, 1)
	s.On("news", func(args ...any) {
		var headline string
		json.Unmarshal(args[0].(json.RawMessage), &headline)
		got <- headline
	})

	srv.Emit("/", "news", "big story")

	select {
	case headline := <-got:
		if headline != "big story" {
			t.Fatalf("got %q", headline)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-initiated event")
	}
}

func TestDisconnectStopsReceivingFurtherEvents(t *testing.T) {
	srv := faketest.New(nil)
	defer srv.Close()

	s, err := sio.Connect(srv.HTTP.URL,
		client.WithMultiplex(false),
		client.WithTransports([]string{"polling"}),
		client.WithUpgrade(false),
	)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitConnect(t, s)

	disconnected := make(chan struct{}, 1)
	s.Once(client.EventDisconnect, func(...any) { disconnected <- struct{}{} })
	s.Disconnect()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect")
	}
	if s.Connected() {
		t.Fatal("expected Connected() to be false after Disconnect")
	}
}
