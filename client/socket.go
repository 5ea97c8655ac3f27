package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/packetloop/sioclient/emitter"
	"github.com/packetloop/sioclient/log"
	wsocket "github.com/packetloop/sioclient/wire/socket"
)

var socketLog = log.New("socket.io-client:socket")

// Events emitted by a namespace Socket, delivered through On/Once like any
// application event.
const (
	EventConnect      emitter.Name = "connect"
	EventConnecting   emitter.Name = "connecting"
	EventDisconnect   emitter.Name = "disconnect"
	EventConnectError emitter.Name = "connect_error"
)

var reservedEventNames = map[string]bool{
	"connect": true, "connect_error": true, "disconnect": true,
	"disconnecting": true, "newListener": true, "removeListener": true,
}

// Socket is one Socket.IO namespace multiplexed over a Manager's Engine.IO
// session. On/Once/Off register listeners for both the framework events
// above and application events the server emits; Emit sends an application
// event to the server.
type Socket struct {
	bus *emitter.Emitter

	mgr *Manager
	nsp string

	mu          sync.Mutex
	auth        any
	id          string
	connected   bool
	wantConnect bool
	sendBuffer  []queuedPacket
	acks        *ackTable
	ackTimeout  time.Duration
}

type queuedPacket struct {
	pkt         *wsocket.Packet
	attachments [][]byte
}

func newSocket(mgr *Manager, nsp string, auth any) *Socket {
	s := &Socket{
		bus:         emitter.New(),
		mgr:         mgr,
		nsp:         nsp,
		auth:        auth,
		wantConnect: true,
		acks:        newAckTable(),
		ackTimeout:  mgr.opts.Timeout,
	}
	s.acks.onExpire = s.dropQueuedAck
	return s
}

// dropQueuedAck removes any still-queued send-buffer entry carrying ackID, so
// a packet whose ack already timed out is never sent once the namespace
// reconnects.
func (s *Socket) dropQueuedAck(ackID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sendBuffer[:0]
	for _, q := range s.sendBuffer {
		if q.pkt.AckID != nil && *q.pkt.AckID == ackID {
			continue
		}
		kept = append(kept, q)
	}
	s.sendBuffer = kept
}

// On registers a persistent listener for evt (a framework event like
// EventConnect, or an application event name the server emits).
func (s *Socket) On(evt emitter.Name, fn emitter.Listener) *Socket { s.bus.On(evt, fn); return s }

// Once registers a listener invoked at most once.
func (s *Socket) Once(evt emitter.Name, fn emitter.Listener) *Socket {
	s.bus.Once(evt, fn)
	return s
}

// Off removes listeners; see emitter.Emitter.Off for the argument forms.
func (s *Socket) Off(args ...any) *Socket { s.bus.Off(args...); return s }

// ID returns the server-assigned socket id for this namespace, valid once
// Connected returns true.
func (s *Socket) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Connected reports whether this namespace has an active Connect handshake.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connect (re)enables auto-connect for this namespace and opens the
// underlying Manager if it isn't already connecting.
func (s *Socket) Connect() *Socket {
	s.mu.Lock()
	s.wantConnect = true
	s.mu.Unlock()

	s.mgr.Open()
	if s.mgr.engineOpen() {
		s.onManagerOpen()
	}
	return s
}

// onManagerOpen sends this namespace's Connect packet once the Manager's
// Engine is open; called both on first connect and after every reconnect.
func (s *Socket) onManagerOpen() {
	s.mu.Lock()
	want := s.wantConnect
	already := s.connected
	s.mu.Unlock()
	if !want || already {
		return
	}

	var connectData json.RawMessage
	if s.auth != nil {
		if raw, err := json.Marshal(s.auth); err == nil {
			connectData = raw
		}
	}

	s.bus.Emit(EventConnecting)
	_ = s.mgr.send(&wsocket.Packet{Type: wsocket.Connect, Namespace: s.nsp, ConnectData: connectData}, nil)
}

// onPacket dispatches one decoded Socket.IO frame addressed to this
// namespace.
func (s *Socket) onPacket(pkt *wsocket.Packet) {
	switch pkt.Type {
	case wsocket.Connect:
		s.onConnect(pkt)
	case wsocket.Disconnect:
		s.onDisconnect(errors.New("io server disconnect"))
	case wsocket.ConnectError:
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		s.bus.Emit(EventConnectError, decodeConnectError(pkt.ErrorData))
	case wsocket.Event, wsocket.BinaryEvent:
		s.onEvent(pkt)
	case wsocket.Ack, wsocket.BinaryAck:
		if pkt.AckID != nil {
			s.acks.resolve(*pkt.AckID, decodeArgs(pkt.Payload))
		}
	}
}

func decodeConnectError(raw json.RawMessage) error {
	if len(raw) == 0 {
		return errors.New("connect error")
	}
	return errors.New(string(raw))
}

func (s *Socket) onConnect(pkt *wsocket.Packet) {
	var hs struct {
		SID string `json:"sid"`
	}
	if len(pkt.ConnectData) > 0 {
		_ = json.Unmarshal(pkt.ConnectData, &hs)
	}

	s.mu.Lock()
	s.id = hs.SID
	s.connected = true
	buffered := s.sendBuffer
	s.sendBuffer = nil
	s.mu.Unlock()

	socketLog.Debug("namespace %q connected, sid=%s", s.nsp, hs.SID)
	s.bus.Emit(EventConnect)

	for _, q := range buffered {
		_ = s.mgr.send(q.pkt, q.attachments)
	}
}

func (s *Socket) onEvent(pkt *wsocket.Packet) {
	if len(pkt.Payload) == 0 {
		return
	}
	var name string
	if err := json.Unmarshal(pkt.Payload[0].Value, &name); err != nil {
		socketLog.Warn("event packet with non-string name: %v", err)
		return
	}

	args := decodeArgs(pkt.Payload[1:])
	if pkt.AckID != nil {
		id := *pkt.AckID
		args = append(args, AckFunc(func(replyArgs []any, _ error) {
			s.sendAck(id, replyArgs)
		}))
	}
	s.bus.Emit(emitter.Name(name), args...)
}

func (s *Socket) sendAck(id uint64, args []any) {
	payload, attachments, err := encodeArgs(args)
	if err != nil {
		socketLog.Warn("encoding ack reply: %v", err)
		return
	}
	t := wsocket.Ack
	nbin := 0
	if len(attachments) > 0 {
		t = wsocket.BinaryAck
		nbin = len(attachments)
	}
	_ = s.mgr.send(&wsocket.Packet{Type: t, Namespace: s.nsp, AckID: &id, Payload: payload, NBinary: nbin}, attachments)
}

// onDisconnect marks this namespace disconnected and fails any pending acks;
// called both when the server sends Disconnect and when the Manager's Engine
// itself closes.
func (s *Socket) onDisconnect(cause error) {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	s.acks.cancelAll(errors.New("client: socket disconnected"))

	if wasConnected {
		s.bus.Emit(EventDisconnect, cause)
	}
}

// Emit sends an event with the given arguments to the server, queuing it if
// this namespace hasn't completed its Connect handshake yet. A trailing
// AckFunc argument registers a server acknowledgement callback, which fails
// with an error if no reply arrives within the Manager's Timeout option; use
// EmitWithTimeout to choose a different bound.
func (s *Socket) Emit(event string, args ...any) error {
	return s.emit(event, args, 0)
}

// EmitWithTimeout behaves like Emit but fails the trailing AckFunc (if any)
// with an error after timeout elapses without a server response.
func (s *Socket) EmitWithTimeout(event string, timeout time.Duration, args ...any) error {
	return s.emit(event, args, timeout)
}

func (s *Socket) emit(event string, args []any, timeout time.Duration) error {
	if reservedEventNames[event] {
		return fmt.Errorf("client: %q is a reserved event name", event)
	}

	var ack AckFunc
	if n := len(args); n > 0 {
		if fn, ok := args[n-1].(AckFunc); ok {
			ack = fn
			args = args[:n-1]
		}
	}

	name, _ := json.Marshal(event)
	payload, attachments, err := encodeArgs(args)
	if err != nil {
		return err
	}
	payload = append([]wsocket.Element{wsocket.Json(name)}, payload...)

	pkt := &wsocket.Packet{Type: wsocket.Event, Namespace: s.nsp, Payload: payload}
	if len(attachments) > 0 {
		pkt.Type = wsocket.BinaryEvent
		pkt.NBinary = len(attachments)
	}

	if ack != nil {
		if timeout == 0 {
			timeout = s.ackTimeout
		}
		id := s.acks.register(ack, timeout)
		pkt.AckID = &id
	}

	s.mu.Lock()
	if !s.connected {
		s.sendBuffer = append(s.sendBuffer, queuedPacket{pkt: pkt, attachments: attachments})
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.mgr.send(pkt, attachments)
}

// Disconnect closes this namespace: a Disconnect packet is sent if
// connected, local state is cleared, and auto-reconnect for this namespace
// is suspended until Connect is called again.
func (s *Socket) Disconnect() *Socket {
	s.mu.Lock()
	s.wantConnect = false
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	if wasConnected {
		_ = s.mgr.send(&wsocket.Packet{Type: wsocket.Disconnect, Namespace: s.nsp}, nil)
	}
	s.acks.cancelAll(errors.New("client: socket disconnected"))
	if wasConnected {
		s.bus.Emit(EventDisconnect, "io client disconnect")
	}
	return s
}
