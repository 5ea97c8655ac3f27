// Package transport implements the Engine.IO transport abstraction and its
// two concrete variants, long-polling and WebSocket.
package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/packetloop/sioclient/emitter"
	"github.com/packetloop/sioclient/urlutil"
	wengine "github.com/packetloop/sioclient/wire/engine"
)

// State is a Transport's lifecycle state.
type State string

const (
	StateInit    State = "init"
	StateOpening State = "opening"
	StateOpen    State = "open"
	StateClosing State = "closing"
	StateClosed  State = "closed"
	StatePausing State = "pausing" // polling only, transient
	StatePaused  State = "paused"  // polling only
)

// Event names emitted by every Transport.
const (
	EventOpen            emitter.Name = "open"
	EventClose           emitter.Name = "close"
	EventPacket          emitter.Name = "packet"
	EventDrain           emitter.Name = "drain"
	EventError           emitter.Name = "error"
	EventPollComplete    emitter.Name = "pollComplete"
	EventRequestHeaders  emitter.Name = "requestHeaders"
	EventResponseHeaders emitter.Name = "responseHeaders"
)

// Transport is the common interface for polling and websocket carriers of
// Engine.IO frames.
type Transport interface {
	Bus() *emitter.Emitter
	Name() string
	Open() Transport
	Close() Transport
	Send(packets []*wengine.Packet)
	Pause(onPause func())

	ReadyState() State
	Writable() bool
	Query() map[string]string
}

// implOps is what a concrete transport must provide for base to drive the
// shared state machine, expressed as a plain interface rather than a mutable
// override field.
type implOps interface {
	DoOpen()
	DoClose()
	Write([]*wengine.Packet)
}

// base implements the state machine and URI construction shared by every
// concrete transport; concrete types embed *base and set impl to themselves.
type base struct {
	*emitter.Emitter

	impl implOps

	opts       Options
	readyState atomic.Value // State
	writable   atomic.Bool
}

func newBase(opts Options) *base {
	b := &base{Emitter: emitter.New(), opts: opts.WithDefaults()}
	b.readyState.Store(StateInit)
	return b
}

// Bus exposes the transport's Emitter for external subscription.
func (b *base) Bus() *emitter.Emitter { return b.Emitter }

func (b *base) setState(s State)   { b.readyState.Store(s) }
func (b *base) ReadyState() State  { return b.readyState.Load().(State) }
func (b *base) Writable() bool     { return b.writable.Load() }
func (b *base) setWritable(w bool) { b.writable.Store(w) }

func (b *base) Query() map[string]string { return b.opts.Query }

// open transitions to Opening and delegates to the concrete DoOpen.
func (b *base) open() {
	b.setState(StateOpening)
	b.impl.DoOpen()
}

// close transitions a live transport through DoClose/onClose.
func (b *base) close() {
	switch b.ReadyState() {
	case StateOpening, StateOpen:
		b.impl.DoClose()
		b.onClose(nil)
	}
}

func (b *base) onOpen() {
	b.setState(StateOpen)
	b.setWritable(true)
	b.Emit(EventOpen)
}

func (b *base) onPacket(p *wengine.Packet) { b.Emit(EventPacket, p) }

func (b *base) onClose(err error) {
	b.setState(StateClosed)
	b.Emit(EventClose, err)
}

func (b *base) onError(reason string, cause error, ctx context.Context) {
	if cause == nil {
		cause = fmt.Errorf("no further detail")
	}
	b.Emit(EventError, fmt.Errorf("%s: %w", reason, cause))
}

// send forwards packets to the concrete Write implementation. Calling it
// while the transport isn't open is a programmer error, not a runtime
// condition to recover from — the Engine only sends on a transport that has
// opened (its buffered writes are also gated on Writable()), so reaching
// here otherwise means that invariant was violated upstream.
func (b *base) send(packets []*wengine.Packet) {
	if b.ReadyState() != StateOpen {
		panic(fmt.Sprintf("transport: send called in state %q, not open", b.ReadyState()))
	}
	b.impl.Write(packets)
}

// buildURI implements spec.md §4.3's uri() algorithm.
func buildURI(opts Options, scheme string, extraQuery map[string]string, now func() time.Time) string {
	host := urlutil.BracketIPv6(opts.Hostname)

	hostport := host
	defaultPort := "80"
	if scheme == "https" || scheme == "wss" {
		defaultPort = "443"
	}
	if opts.Port != "" && opts.Port != defaultPort {
		hostport = host + ":" + opts.Port
	}

	merged := make(map[string]string, len(opts.Query)+len(extraQuery)+1)
	for k, v := range opts.Query {
		merged[k] = v
	}
	for k, v := range extraQuery {
		merged[k] = v
	}
	if opts.TimestampRequests {
		merged[opts.TimestampParam] = strconv.FormatInt(now().UnixMilli(), 36)
	}

	qs := urlutil.Encode(merged)
	uri := scheme + "://" + hostport + opts.Path
	if qs != "" {
		uri += "?" + qs
	}
	return uri
}
