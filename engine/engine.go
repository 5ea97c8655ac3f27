// Package engine implements the Engine.IO v4 session layer: handshake,
// heartbeat, outbound buffering, and the polling-to-websocket probe/upgrade
// handshake, built on top of the transport package's wire-level carriers.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/packetloop/sioclient/emitter"
	"github.com/packetloop/sioclient/log"
	"github.com/packetloop/sioclient/sioerr"
	"github.com/packetloop/sioclient/transport"
	wengine "github.com/packetloop/sioclient/wire/engine"
)

var engineLog = log.New("engine.io-client:engine")

// newTransport constructs a concrete Transport; overridden in tests so the
// Engine state machine can be driven without any real network I/O.
var newTransport = transport.New

// Events emitted by Engine. Unlike Transport's events these describe the
// Engine.IO session, not a single carrier's connectivity.
const (
	EventOpen         emitter.Name = "open"
	EventClose        emitter.Name = "close"
	EventError        emitter.Name = "error"
	EventData         emitter.Name = "data"
	EventPing         emitter.Name = "ping"
	EventPong         emitter.Name = "pong"
	EventHandshake    emitter.Name = "handshake"
	EventUpgrading    emitter.Name = "upgrading"
	EventUpgrade      emitter.Name = "upgrade"
	EventUpgradeError emitter.Name = "upgradeError"
	EventDrain        emitter.Name = "drain"
	EventFlush        emitter.Name = "flush"
)

// Engine owns the current Transport and drives the Engine.IO session state
// machine on top of it. All mutation runs on the serialized scheduler;
// ReadyState is read through an atomic, and the other fields (including the
// session id returned by ID) are guarded by mu.
type Engine struct {
	*emitter.Emitter

	opts  Options
	sched *scheduler

	mu              sync.Mutex
	cur             transport.Transport
	curUnsub        []func()
	id              string
	upgrades        []string
	pingInterval    time.Duration
	pingTimeout     time.Duration
	writeBuffer     []*wengine.Packet
	prevBufferLen   int
	untrackedDrains int
	activeProbe     *probe
	heartbeatTimer  *time.Timer
	closed          bool

	state atomic.Value // transport.State

	priorWebsocketSuccess atomic.Bool
	closeOnce             sync.Once
}

// New constructs an Engine that has not yet opened any transport.
func New(opts Options) *Engine {
	e := &Engine{
		Emitter: emitter.New(),
		opts:    opts.WithDefaults(),
		sched:   newScheduler(),
	}
	e.state.Store(transport.StateInit)
	return e
}

// ID returns the session id assigned by the server's handshake, or "" before
// the handshake completes.
func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// ReadyState reports the Engine's current lifecycle state.
func (e *Engine) ReadyState() transport.State { return e.state.Load().(transport.State) }

func (e *Engine) setState(s transport.State) { e.state.Store(s) }

// Open selects an initial transport (honoring RememberUpgrade) and begins
// connecting.
func (e *Engine) Open() *Engine {
	e.setState(transport.StateOpening)
	name := e.opts.Transports[0]
	if e.opts.RememberUpgrade && e.priorWebsocketSuccess.Load() && contains(e.opts.Transports, transport.NameWebSocket) {
		name = transport.NameWebSocket
	}
	engineLog.Debug("opening with transport %q", name)
	e.sched.post(func() { e.openTransport(name, nil) })
	return e
}

func (e *Engine) openTransport(name string, extraQuery map[string]string) transport.Transport {
	t := newTransport(name, e.opts.transportOptions(name, extraQuery))
	e.mu.Lock()
	e.cur = t
	e.mu.Unlock()
	e.attachMain(t)
	t.Open()
	return t
}

// attachMain subscribes the Engine's main-session handlers to t and records
// the unsubscribe handles so a later transport swap (post-upgrade) can drop
// them cleanly. Transport doesn't expose Off-by-handle, so we rely on the
// emitter's identity-based Off using the exact closures registered here.
func (e *Engine) attachMain(t transport.Transport) {
	onPacket := func(args ...any) {
		if len(args) == 0 {
			return
		}
		pkt, ok := args[0].(*wengine.Packet)
		if !ok {
			return
		}
		e.sched.post(func() { e.onPacket(t, pkt) })
	}
	onDrain := func(args ...any) {
		n := 0
		if len(args) > 0 {
			n, _ = args[0].(int)
		}
		e.sched.post(func() { e.onDrain(t, n) })
	}
	onError := func(args ...any) {
		if len(args) == 0 {
			return
		}
		e.sched.post(func() { e.Emit(EventError, args[0]) })
	}
	onClose := func(args ...any) {
		var cause error
		if len(args) > 0 {
			cause, _ = args[0].(error)
		}
		e.sched.post(func() { e.onTransportClose(t, cause) })
	}

	t.Bus().On(transport.EventPacket, onPacket)
	t.Bus().On(transport.EventDrain, onDrain)
	t.Bus().On(transport.EventError, onError)
	t.Bus().On(transport.EventClose, onClose)

	e.mu.Lock()
	e.curUnsub = []func(){
		func() { t.Bus().Off(transport.EventPacket, emitter.Listener(onPacket)) },
		func() { t.Bus().Off(transport.EventDrain, emitter.Listener(onDrain)) },
		func() { t.Bus().Off(transport.EventError, emitter.Listener(onError)) },
		func() { t.Bus().Off(transport.EventClose, emitter.Listener(onClose)) },
	}
	e.mu.Unlock()
}

func (e *Engine) detachMain() {
	e.mu.Lock()
	unsub := e.curUnsub
	e.curUnsub = nil
	e.mu.Unlock()
	for _, fn := range unsub {
		fn()
	}
}

// onPacket dispatches an inbound Engine.IO frame received from the main
// transport t. Packets arriving on a transport that is mid-probe and not yet
// the main transport are handled separately by the probe state machine.
func (e *Engine) onPacket(t transport.Transport, pkt *wengine.Packet) {
	e.mu.Lock()
	isCurrent := e.cur == t
	e.mu.Unlock()
	if !isCurrent {
		return
	}

	switch pkt.Type {
	case wengine.Open:
		e.onHandshake(t, pkt)
	case wengine.Ping:
		e.Emit(EventPing)
		e.resetHeartbeat()
		e.writeNow(t, &wengine.Packet{Type: wengine.Pong, Payload: pkt.Payload})
	case wengine.Pong:
		e.Emit(EventPong)
	case wengine.Message:
		if pkt.Binary != nil {
			e.Emit(EventData, pkt.Binary)
		} else {
			e.Emit(EventData, pkt.Payload)
		}
	case wengine.Close:
		e.onTransportClose(t, sioerr.New(sioerr.KindEngine, "server requested close", nil, nil))
	case wengine.Noop:
		// A long-poll ended with no data, to let the server free the
		// connection during an upgrade. Nothing to dispatch.
	}
}

func (e *Engine) onHandshake(t transport.Transport, pkt *wengine.Packet) {
	hs, err := wengine.DecodeOpen(pkt)
	if err != nil {
		e.Emit(EventError, sioerr.New(sioerr.KindEngine, "invalid handshake payload", err, nil))
		return
	}

	// The main transport's own Query map is mutated in place (it backs
	// every subsequent poll/post this transport instance makes) so the
	// server can associate them with this session.
	t.Query()["sid"] = hs.SID

	e.mu.Lock()
	e.id = hs.SID
	e.upgrades = e.filterUpgrades(hs.Upgrades)
	e.pingInterval = time.Duration(hs.PingInterval) * time.Millisecond
	e.pingTimeout = time.Duration(hs.PingTimeout) * time.Millisecond
	upgrades := append([]string(nil), e.upgrades...)
	e.mu.Unlock()

	engineLog.Debug("handshake complete, sid=%s upgrades=%v", hs.SID, upgrades)
	e.setState(transport.StateOpen)
	e.resetHeartbeat()
	e.Emit(EventHandshake, hs)
	e.Emit(EventOpen)
	e.flush()

	if e.opts.Upgrade {
		for _, name := range upgrades {
			e.beginProbe(name)
		}
	}
}

// filterUpgrades keeps only server-advertised upgrade candidates that are
// also present in the caller's configured transport list.
func (e *Engine) filterUpgrades(remote []string) []string {
	out := make([]string, 0, len(remote))
	for _, name := range remote {
		if contains(e.opts.Transports, name) {
			out = append(out, name)
		}
	}
	return out
}

// resetHeartbeat (re)arms the self-closing timer: if no Ping arrives within
// pingInterval+pingTimeout of the last one, the connection is presumed dead.
func (e *Engine) resetHeartbeat() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.heartbeatTimer != nil {
		e.heartbeatTimer.Stop()
	}
	if e.pingInterval == 0 {
		return
	}
	d := e.pingInterval + e.pingTimeout
	e.heartbeatTimer = time.AfterFunc(d, func() {
		e.sched.post(func() {
			e.onTransportClose(e.currentTransport(), sioerr.New(sioerr.KindEngine, "ping timeout", nil, nil))
		})
	})
}

func (e *Engine) currentTransport() transport.Transport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur
}

// Send enqueues a textual Message packet for delivery.
func (e *Engine) Send(data string) { e.sched.post(func() { e.enqueue(&wengine.Packet{Type: wengine.Message, Payload: data}) }) }

// SendBinary enqueues a binary Message packet for delivery.
func (e *Engine) SendBinary(data []byte) {
	e.sched.post(func() { e.enqueue(&wengine.Packet{Type: wengine.Message, Binary: data}) })
}

func (e *Engine) enqueue(pkt *wengine.Packet) {
	e.mu.Lock()
	e.writeBuffer = append(e.writeBuffer, pkt)
	e.mu.Unlock()
	e.flush()
}

// writeNow bypasses the buffer for control packets (Pong, Upgrade) that must
// reach the server promptly rather than wait behind queued Messages. Because
// it sends on the same transport that feeds the tracked onDrain handler, the
// resulting drain event is recorded as untracked so onDrain discards it
// instead of mistaking it for progress on the buffered writes.
func (e *Engine) writeNow(t transport.Transport, pkt *wengine.Packet) {
	e.mu.Lock()
	e.untrackedDrains++
	e.mu.Unlock()
	t.Send([]*wengine.Packet{pkt})
}

// flush writes the buffered packets to the current transport if it is
// writable and not mid-upgrade, per the engine.io-client flush algorithm:
// prevBufferLen remembers how much was in flight so onDrain can trim only
// what was actually sent, not packets enqueued while the write was pending.
func (e *Engine) flush() {
	e.mu.Lock()
	if e.activeProbe != nil && e.activeProbe.upgrading {
		e.mu.Unlock()
		return
	}
	t := e.cur
	if t == nil || !t.Writable() || len(e.writeBuffer) == 0 || e.prevBufferLen > 0 {
		e.mu.Unlock()
		return
	}
	packets := append([]*wengine.Packet(nil), e.writeBuffer...)
	e.prevBufferLen = len(packets)
	e.mu.Unlock()

	e.Emit(EventFlush, packets)
	t.Send(packets)
}

// onDrain handles a transport drain(n) event by popping the first n entries
// off the write buffer and decrementing prevBufferLen by n. A drain event
// from an untracked (writeNow) send is discarded rather than applied here,
// since it doesn't correspond to any entry actually pulled from the buffer.
func (e *Engine) onDrain(t transport.Transport, n int) {
	e.mu.Lock()
	if e.cur != t {
		e.mu.Unlock()
		return
	}
	if e.untrackedDrains > 0 {
		e.untrackedDrains--
		e.mu.Unlock()
		return
	}
	if n > len(e.writeBuffer) {
		n = len(e.writeBuffer)
	}
	e.writeBuffer = e.writeBuffer[n:]
	if n > e.prevBufferLen {
		e.prevBufferLen = 0
	} else {
		e.prevBufferLen -= n
	}
	empty := len(e.writeBuffer) == 0
	flushMore := len(e.writeBuffer) > e.prevBufferLen
	e.mu.Unlock()

	if empty {
		e.Emit(EventDrain)
	} else if flushMore {
		e.flush()
	}
}

func (e *Engine) onTransportClose(t transport.Transport, cause error) {
	e.mu.Lock()
	if e.cur != t || e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.heartbeatTimer != nil {
		e.heartbeatTimer.Stop()
	}
	probe := e.activeProbe
	e.activeProbe = nil
	e.writeBuffer = nil
	e.prevBufferLen = 0
	e.untrackedDrains = 0
	e.mu.Unlock()

	if probe != nil {
		probe.abort()
	}
	e.detachMain()
	e.setState(transport.StateClosed)
	engineLog.Debug("closed: %v", cause)
	e.Emit(EventClose, cause)
}

// Close gracefully shuts the Engine down. Valid only while OPENING or OPEN;
// a buffered write in flight is allowed to drain first, and an in-progress
// upgrade is allowed to resolve (upgrade or upgradeError) before the actual
// force-close runs, matching the engine.io-client close algorithm.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.sched.post(e.beginClose)
	})
}

func (e *Engine) beginClose() {
	switch e.ReadyState() {
	case transport.StateOpening, transport.StateOpen:
	default:
		return
	}

	e.mu.Lock()
	writePending := len(e.writeBuffer) > 0
	upgrading := e.activeProbe != nil && e.activeProbe.upgrading
	e.mu.Unlock()

	if writePending {
		e.Once(EventDrain, func(...any) { e.sched.post(e.beginClose) })
		return
	}
	if upgrading {
		var onResolved emitter.Listener
		onResolved = func(...any) {
			e.Off(EventUpgrade, onResolved)
			e.Off(EventUpgradeError, onResolved)
			e.sched.post(e.beginClose)
		}
		e.On(EventUpgrade, onResolved)
		e.On(EventUpgradeError, onResolved)
		return
	}

	e.forceClose()
}

// forceClose performs the unconditional close: abort any in-flight probe,
// close the current transport (its own close event finishes teardown via
// onTransportClose), or, if the Engine never opened a transport at all,
// tear down directly.
func (e *Engine) forceClose() {
	e.mu.Lock()
	t := e.cur
	probe := e.activeProbe
	e.activeProbe = nil
	e.mu.Unlock()

	if probe != nil {
		probe.abort()
	}
	if t != nil {
		t.Close()
		return
	}

	e.mu.Lock()
	already := e.closed
	e.closed = true
	e.writeBuffer = nil
	e.prevBufferLen = 0
	e.untrackedDrains = 0
	e.mu.Unlock()
	if already {
		return
	}
	if e.heartbeatTimer != nil {
		e.heartbeatTimer.Stop()
	}
	e.setState(transport.StateClosed)
	e.Emit(EventClose, nil)
}
