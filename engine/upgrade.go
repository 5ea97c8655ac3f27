package engine

import (
	"sync"

	"github.com/packetloop/sioclient/emitter"
	"github.com/packetloop/sioclient/sioerr"
	"github.com/packetloop/sioclient/transport"
	wengine "github.com/packetloop/sioclient/wire/engine"
)

const probePayload = "probe"

// probe tracks one in-flight probe of a candidate transport during the
// upgrade handshake. Only one probe runs at a time per Engine.
type probe struct {
	name      string
	t         transport.Transport
	unsub     []func()
	upgrading bool
	once      sync.Once
}

func (p *probe) teardown() {
	for _, fn := range p.unsub {
		fn()
	}
}

func (p *probe) abort() {
	p.once.Do(func() {
		p.teardown()
		p.t.Close()
	})
}

// beginProbe opens a second, candidate transport alongside the current one
// and exercises the ping/pong "probe" exchange; on success it upgrades the
// main transport to the candidate, per the probe/upgrade handshake.
func (e *Engine) beginProbe(name string) {
	e.mu.Lock()
	if e.activeProbe != nil || e.closed {
		e.mu.Unlock()
		return
	}
	sid := e.id
	e.mu.Unlock()

	engineLog.Debug("probing transport %q", name)
	t := newTransport(name, e.opts.transportOptions(name, map[string]string{"sid": sid}))
	pr := &probe{name: name, t: t}

	e.mu.Lock()
	e.activeProbe = pr
	e.mu.Unlock()

	var onOpen, onPacket, onError, onClose emitter.Listener
	onOpen = func(...any) {
		t.Send([]*wengine.Packet{{Type: wengine.Ping, Payload: probePayload}})
	}
	onPacket = func(args ...any) {
		if len(args) == 0 {
			return
		}
		pkt, ok := args[0].(*wengine.Packet)
		if !ok || pkt.Type != wengine.Pong || pkt.Payload != probePayload {
			return
		}
		e.sched.post(func() { e.completeProbe(pr) })
	}
	onError = func(args ...any) {
		var cause error
		if len(args) > 0 {
			cause, _ = args[0].(error)
		}
		e.sched.post(func() { e.failProbe(pr, cause) })
	}
	onClose = func(...any) {
		e.sched.post(func() { e.failProbe(pr, sioerr.New(sioerr.KindEngine, "probe transport closed", nil, nil)) })
	}

	t.Bus().On(transport.EventOpen, onOpen)
	t.Bus().On(transport.EventPacket, onPacket)
	t.Bus().On(transport.EventError, onError)
	t.Bus().On(transport.EventClose, onClose)
	pr.unsub = []func(){
		func() { t.Bus().Off(transport.EventOpen, onOpen) },
		func() { t.Bus().Off(transport.EventPacket, onPacket) },
		func() { t.Bus().Off(transport.EventError, onError) },
		func() { t.Bus().Off(transport.EventClose, onClose) },
	}

	t.Open()
}

func (e *Engine) failProbe(pr *probe, cause error) {
	e.mu.Lock()
	if e.activeProbe != pr {
		e.mu.Unlock()
		return
	}
	e.activeProbe = nil
	e.mu.Unlock()

	pr.teardown()
	engineLog.Debug("probe %q failed: %v", pr.name, cause)
	e.Emit(EventUpgradeError, pr.name, cause)
}

// completeProbe runs the successful half of the handshake: pause the main
// transport, swap in the probed one, tell the server, then close the old
// transport — all before resuming normal flush traffic.
func (e *Engine) completeProbe(pr *probe) {
	e.mu.Lock()
	if e.activeProbe != pr {
		e.mu.Unlock()
		return
	}
	pr.upgrading = true
	old := e.cur
	e.mu.Unlock()

	e.Emit(EventUpgrading, pr.name)

	old.Pause(func() {
		e.sched.post(func() { e.swapToProbe(pr, old) })
	})
}

func (e *Engine) swapToProbe(pr *probe, old transport.Transport) {
	e.mu.Lock()
	if e.activeProbe != pr {
		e.mu.Unlock()
		// Engine closed or another probe raced in while we paused; leave
		// the probed transport to be cleaned up by its own close path.
		return
	}
	e.activeProbe = nil
	e.mu.Unlock()

	pr.teardown()
	e.detachMain()

	e.mu.Lock()
	e.cur = pr.t
	e.mu.Unlock()
	e.attachMain(pr.t)

	e.writeNow(pr.t, &wengine.Packet{Type: wengine.Upgrade})
	e.priorWebsocketSuccess.Store(pr.name == transport.NameWebSocket)
	engineLog.Debug("upgraded to %q", pr.name)
	e.Emit(EventUpgrade, pr.name)

	old.Close()
	e.flush()
}
