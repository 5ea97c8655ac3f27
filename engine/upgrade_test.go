package engine

import (
	"testing"
	"time"

	"github.com/packetloop/sioclient/transport"
	wengine "github.com/packetloop/sioclient/wire/engine"
)

func TestEngineUpgradeSwapsToProbedTransport(t *testing.T) {
	restore := stubTransportFactory()
	defer restore()

	e := New(Options{Upgrade: true, Transports: []string{transport.NamePolling, transport.NameWebSocket}})
	polling := newFakeTransport()

	e.mu.Lock()
	e.cur = polling
	e.mu.Unlock()
	e.attachMain(polling)

	upgraded := make(chan string, 1)
	e.On(EventUpgrade, func(args ...any) {
		if name, ok := args[0].(string); ok {
			upgraded <- name
		}
	})

	// Handshake advertises websocket as an upgrade candidate, which drives
	// beginProbe synchronously off onHandshake.
	pkt, err := wengine.EncodeOpen(&wengine.OpenPayload{
		SID:          "abc123",
		Upgrades:     []string{transport.NameWebSocket},
		PingInterval: 25000,
		PingTimeout:  20000,
	})
	if err != nil {
		t.Fatalf("encode open: %v", err)
	}
	e.onPacket(polling, pkt)

	e.mu.Lock()
	pr := e.activeProbe
	e.mu.Unlock()
	if pr == nil {
		t.Fatal("expected an active probe after handshake")
	}
	probed, ok := pr.t.(*fakeTransport)
	if !ok {
		t.Fatalf("unexpected probe transport type %T", pr.t)
	}

	// The probe transport opening triggers a "probe" ping; the server-side
	// fake answers with a matching "probe" pong to complete the handshake.
	probed.Emit(transport.EventPacket, &wengine.Packet{Type: wengine.Pong, Payload: probePayload})

	select {
	case name := <-upgraded:
		if name != transport.NameWebSocket {
			t.Fatalf("upgraded to %q, want %q", name, transport.NameWebSocket)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for upgrade")
	}

	e.mu.Lock()
	cur := e.cur
	e.mu.Unlock()
	if cur != transport.Transport(probed) {
		t.Fatal("current transport was not swapped to the probed one")
	}
	if !e.priorWebsocketSuccess.Load() {
		t.Fatal("expected priorWebsocketSuccess to be recorded")
	}

	sent := probed.sentPackets()
	if len(sent) == 0 || sent[len(sent)-1].Type != wengine.Upgrade {
		t.Fatalf("expected an Upgrade packet sent on the new transport, got %+v", sent)
	}
}

func TestEngineUpgradeErrorOnProbeFailure(t *testing.T) {
	restore := stubTransportFactory()
	defer restore()

	e := New(Options{Upgrade: true, Transports: []string{transport.NamePolling, transport.NameWebSocket}})
	polling := newFakeTransport()

	e.mu.Lock()
	e.cur = polling
	e.mu.Unlock()
	e.attachMain(polling)

	failed := make(chan string, 1)
	e.On(EventUpgradeError, func(args ...any) {
		if name, ok := args[0].(string); ok {
			failed <- name
		}
	})

	pkt, err := wengine.EncodeOpen(&wengine.OpenPayload{
		SID:          "abc123",
		Upgrades:     []string{transport.NameWebSocket},
		PingInterval: 25000,
		PingTimeout:  20000,
	})
	if err != nil {
		t.Fatalf("encode open: %v", err)
	}
	e.onPacket(polling, pkt)

	e.mu.Lock()
	pr := e.activeProbe
	e.mu.Unlock()
	probed := pr.t.(*fakeTransport)
	probed.Close()

	select {
	case name := <-failed:
		if name != transport.NameWebSocket {
			t.Fatalf("failed probe name = %q", name)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for upgradeError")
	}

	e.mu.Lock()
	cur := e.cur
	e.mu.Unlock()
	if cur != transport.Transport(polling) {
		t.Fatal("current transport should remain polling after a failed probe")
	}
}
