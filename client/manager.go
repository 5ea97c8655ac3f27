package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/packetloop/sioclient/backoff"
	"github.com/packetloop/sioclient/emitter"
	"github.com/packetloop/sioclient/engine"
	"github.com/packetloop/sioclient/log"
	"github.com/packetloop/sioclient/transport"
	"github.com/packetloop/sioclient/urlutil"
	wsocket "github.com/packetloop/sioclient/wire/socket"
)

var managerLog = log.New("socket.io-client:manager")

// Events emitted by a Manager: connection lifecycle and reconnection
// progress, distinct from the per-namespace Socket events.
const (
	EventOpen             emitter.Name = "open"
	EventClose            emitter.Name = "close"
	EventError            emitter.Name = "error"
	EventReconnect        emitter.Name = "reconnect"
	EventReconnectAttempt emitter.Name = "reconnect_attempt"
	EventReconnectError   emitter.Name = "reconnect_error"
	EventReconnectFailed  emitter.Name = "reconnect_failed"
)

// Manager owns a single Engine.IO session and multiplexes Socket.IO
// namespaces on top of it, driving reconnection with a jittered backoff.
type Manager struct {
	*emitter.Emitter

	opts   Options
	parsed *urlutil.Parsed

	logger *log.Logger

	mu            sync.Mutex
	eng           *engine.Engine
	backoff       *backoff.Backoff
	sockets       map[string]*Socket
	pendingBinary *binaryReconstructor
	skipReconnect bool
	attempts      int
	reconTimer    *time.Timer
}

// NewManager parses uri and returns a Manager that has not yet opened any
// connection; Open (or the first Socket's auto-connect) starts it.
func NewManager(uri string, opts Options) (*Manager, error) {
	opts = opts.WithDefaults()

	parsed, err := urlutil.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("client: parsing %q: %w", uri, err)
	}

	b := backoff.New(
		float64(opts.ReconnDelay.Milliseconds()),
		float64(opts.ReconnDelayMax.Milliseconds()),
		2,
	)
	if err := b.SetJitter(opts.RandomizationFactor); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = managerLog
	}

	return &Manager{
		Emitter: emitter.New(),
		opts:    opts,
		parsed:  parsed,
		backoff: b,
		logger:  logger,
		sockets: make(map[string]*Socket),
	}, nil
}

// Origin is the cache key an entry surface uses to find a Manager to share
// across Sockets opened against the same scheme://host:port.
func (m *Manager) Origin() string { return urlutil.Origin(m.parsed.Secure, m.parsed.Hostname, m.parsed.Port) }

// HasNamespace reports whether nsp already has a registered Socket on this
// Manager, without creating one. Used by the entry surface's multiplex rule
// to decide whether a new Connect to an already-open namespace must get its
// own Manager instead of sharing this one.
func (m *Manager) HasNamespace(nsp string) bool {
	if nsp == "" {
		nsp = "/"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sockets[nsp]
	return ok
}

// Socket returns the namespace Socket for nsp, creating it (but not
// necessarily connecting it) on first use.
func (m *Manager) Socket(nsp string, auth any) *Socket {
	if nsp == "" {
		nsp = "/"
	}

	m.mu.Lock()
	if s, ok := m.sockets[nsp]; ok {
		m.mu.Unlock()
		return s
	}
	s := newSocket(m, nsp, auth)
	m.sockets[nsp] = s
	m.mu.Unlock()
	return s
}

// Open starts (or restarts) the underlying Engine if it is not already
// connecting or connected.
func (m *Manager) Open() {
	m.mu.Lock()
	if m.eng != nil {
		switch m.eng.ReadyState() {
		case transport.StateOpen, transport.StateOpening:
			m.mu.Unlock()
			return
		}
	}
	m.skipReconnect = false
	eng := engine.New(m.engineOptions())
	m.eng = eng
	m.mu.Unlock()

	m.wireEngine(eng)
	if !m.armOpenTimeout(eng) {
		return
	}
	eng.Open()
}

// armOpenTimeout races opts.Timeout against eng's open/error events: if
// neither fires in time, it tears down the open subscription, closes eng,
// and reports a timeout error. A non-positive timeout fires immediately and
// armOpenTimeout returns false, so the caller never calls eng.Open.
func (m *Manager) armOpenTimeout(eng *engine.Engine) bool {
	var timer *time.Timer
	var onOpen, onErr emitter.Listener

	cancel := func() {
		if timer != nil {
			timer.Stop()
		}
		eng.Off(engine.EventOpen, onOpen)
		eng.Off(engine.EventError, onErr)
	}
	onOpen = func(...any) { cancel() }
	onErr = func(...any) { cancel() }
	eng.On(engine.EventOpen, onOpen)
	eng.On(engine.EventError, onErr)

	fire := func() {
		cancel()
		eng.Close()
		m.Emit(EventError, errors.New("client: open timeout"))
	}

	if m.opts.Timeout <= 0 {
		fire()
		return false
	}
	timer = time.AfterFunc(m.opts.Timeout, fire)
	return true
}

func (m *Manager) engineOptions() engine.Options {
	return engine.Options{
		Secure:            m.parsed.Secure,
		Hostname:          m.parsed.Hostname,
		Port:              m.parsed.Port,
		Path:              m.opts.Path,
		Query:             mergeQuery(m.parsed.Query, m.opts.Query),
		ExtraHeaders:      m.opts.ExtraHeaders,
		TrustAllCerts:     m.opts.TrustAllCerts,
		ForceBase64:       m.opts.ForceBase64,
		RequestTimeout:    m.opts.RequestTimeout,
		Jar:               m.opts.Jar,
		Transports:        m.opts.Transports,
		Upgrade:           m.opts.Upgrade,
		RememberUpgrade:   true,
		HTTPClientFactory: m.opts.HTTPClientFactory,
	}.WithDefaults()
}

func mergeQuery(base, overlay map[string]string) map[string]string {
	q := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		q[k] = v
	}
	for k, v := range overlay {
		q[k] = v
	}
	return q
}

func (m *Manager) wireEngine(eng *engine.Engine) {
	eng.On(engine.EventOpen, func(...any) {
		m.logger.Debug("engine open")
		m.backoff.Reset()
		m.attempts = 0
		m.Emit(EventOpen)
		m.flushNamespaceConnects()
	})
	eng.On(engine.EventData, func(args ...any) {
		if len(args) == 0 {
			return
		}
		m.onEngineData(args[0])
	})
	eng.On(engine.EventError, func(args ...any) {
		var cause error
		if len(args) > 0 {
			cause, _ = args[0].(error)
		}
		m.Emit(EventError, cause)
	})
	eng.On(engine.EventClose, func(args ...any) {
		var cause error
		if len(args) > 0 {
			cause, _ = args[0].(error)
		}
		m.onEngineClose(cause)
	})
}

func (m *Manager) flushNamespaceConnects() {
	m.mu.Lock()
	sockets := make([]*Socket, 0, len(m.sockets))
	for _, s := range m.sockets {
		sockets = append(sockets, s)
	}
	m.mu.Unlock()

	for _, s := range sockets {
		s.onManagerOpen()
	}
}

// onEngineData handles one inbound Engine.IO Message payload: a textual
// Socket.IO frame, or a binary attachment continuing a pending
// BinaryEvent/BinaryAck reconstruction.
func (m *Manager) onEngineData(data any) {
	switch v := data.(type) {
	case []byte:
		m.mu.Lock()
		recon := m.pendingBinary
		m.mu.Unlock()
		if recon == nil {
			m.logger.Warn("unexpected binary frame with no pending reconstruction")
			return
		}
		pkt, done := recon.addBinary(v)
		if !done {
			return
		}
		m.mu.Lock()
		m.pendingBinary = nil
		m.mu.Unlock()
		m.dispatch(pkt)

	case string:
		pkt, err := wsocket.DecodeText(v)
		if err != nil {
			m.Emit(EventError, fmt.Errorf("client: decoding packet: %w", err))
			return
		}
		if pkt.Type.IsBinary() && pkt.NBinary > 0 {
			m.mu.Lock()
			m.pendingBinary = newBinaryReconstructor(pkt)
			m.mu.Unlock()
			return
		}
		m.dispatch(pkt)
	}
}

func (m *Manager) dispatch(pkt *wsocket.Packet) {
	m.mu.Lock()
	s := m.sockets[pkt.Namespace]
	m.mu.Unlock()
	if s == nil {
		m.logger.Debug("dropping packet for unknown namespace %q", pkt.Namespace)
		return
	}
	s.onPacket(pkt)
}

func (m *Manager) onEngineClose(cause error) {
	m.mu.Lock()
	sockets := make([]*Socket, 0, len(m.sockets))
	for _, s := range m.sockets {
		sockets = append(sockets, s)
	}
	skip := m.skipReconnect
	m.mu.Unlock()

	for _, s := range sockets {
		s.onDisconnect(cause)
	}
	m.Emit(EventClose, cause)

	if skip || !m.opts.Reconnection {
		return
	}
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.skipReconnect {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempt := m.attempts
	if m.opts.ReconnAttempts > 0 && attempt > m.opts.ReconnAttempts {
		m.mu.Unlock()
		m.Emit(EventReconnectFailed)
		return
	}
	delay := time.Duration(m.backoff.Duration()) * time.Millisecond
	m.mu.Unlock()

	m.Emit(EventReconnectAttempt, attempt)
	m.logger.Debug("reconnecting in %s (attempt %d)", delay, attempt)

	m.mu.Lock()
	m.reconTimer = time.AfterFunc(delay, m.tryReconnect)
	m.mu.Unlock()
}

func (m *Manager) tryReconnect() {
	m.mu.Lock()
	if m.skipReconnect {
		m.mu.Unlock()
		return
	}
	eng := engine.New(m.engineOptions())
	m.eng = eng
	attempt := m.attempts
	m.mu.Unlock()

	m.wireEngine(eng)

	var onOpen, onErr emitter.Listener
	onOpen = func(...any) {
		eng.Off(engine.EventOpen, onOpen)
		eng.Off(engine.EventError, onErr)
		m.Emit(EventReconnect, attempt)
	}
	onErr = func(args ...any) {
		eng.Off(engine.EventOpen, onOpen)
		eng.Off(engine.EventError, onErr)
		var cause error
		if len(args) > 0 {
			cause, _ = args[0].(error)
		}
		m.Emit(EventReconnectError, cause)
		m.scheduleReconnect()
	}
	eng.On(engine.EventOpen, onOpen)
	eng.On(engine.EventError, onErr)
	if !m.armOpenTimeout(eng) {
		return
	}
	eng.Open()
}

// engineOpen reports whether the current Engine is in the OPEN state.
func (m *Manager) engineOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eng != nil && m.eng.ReadyState() == transport.StateOpen
}

// send encodes and writes one Socket.IO packet plus its binary attachments
// (if any) to the current Engine. It errors if there is no Engine or the
// current one is closed.
func (m *Manager) send(pkt *wsocket.Packet, attachments [][]byte) error {
	text, err := wsocket.EncodeText(pkt)
	if err != nil {
		return err
	}

	m.mu.Lock()
	eng := m.eng
	m.mu.Unlock()
	if eng == nil || m.ReadyStateClosed() {
		return errors.New("client: manager is not connected")
	}

	eng.Send(text)
	for _, a := range attachments {
		eng.SendBinary(a)
	}
	return nil
}

// ReadyStateClosed reports whether the Manager currently has no usable
// Engine (never opened, or closed without a reconnect yet scheduled).
func (m *Manager) ReadyStateClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eng == nil || m.eng.ReadyState() == transport.StateClosed
}

// Close shuts the Manager and its Engine down and cancels any pending
// reconnection attempt.
func (m *Manager) Close() {
	m.mu.Lock()
	m.skipReconnect = true
	if m.reconTimer != nil {
		m.reconTimer.Stop()
	}
	eng := m.eng
	m.mu.Unlock()

	if eng != nil {
		eng.Close()
	}
}
