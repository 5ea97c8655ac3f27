// Package faketest implements a minimal in-process Engine.IO/Socket.IO
// server for exercising the client against real HTTP, without a browser or
// a real Socket.IO server on the other end. It speaks long-polling only
// (no WebSocket upgrade, no binary attachments) — enough to drive the
// handshake, namespace connect, event, and acknowledgement paths end to
// end; the probe/upgrade state machine is covered by the engine package's
// white-box transport-double tests, and binary attachments by the client
// package's own tests.
package faketest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	wengine "github.com/packetloop/sioclient/wire/engine"
	wsocket "github.com/packetloop/sioclient/wire/socket"
)

// EventHandler handles one decoded application event sent by the client to
// namespace nsp. Calling ack sends a reply if the client registered one.
type EventHandler func(nsp, name string, args []wsocket.Element, ack func(args ...any))

// Server is a fake Engine.IO/Socket.IO endpoint backed by httptest.Server.
type Server struct {
	HTTP *httptest.Server

	PingInterval time.Duration
	PingTimeout  time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	nextID   int

	onEvent EventHandler
}

type session struct {
	mu      sync.Mutex
	outbox  []*wengine.Packet
	notify  chan struct{}
	nsConns map[string]bool
}

func newSession() *session {
	return &session{notify: make(chan struct{}, 1), nsConns: make(map[string]bool)}
}

func (s *session) enqueue(p *wengine.Packet) {
	s.mu.Lock()
	s.outbox = append(s.outbox, p)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *session) drain() []*wengine.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outbox
	s.outbox = nil
	return out
}

// New starts a fake server. onEvent may be nil if the test never expects the
// client to emit events.
func New(onEvent EventHandler) *Server {
	srv := &Server{
		PingInterval: 25 * time.Second,
		PingTimeout:  20 * time.Second,
		sessions:     make(map[string]*session),
		onEvent:      onEvent,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/socket.io/", srv.handle)
	srv.HTTP = httptest.NewServer(mux)
	return srv
}

// Close shuts the underlying httptest.Server down.
func (s *Server) Close() { s.HTTP.Close() }

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		s.handshake(w)
		return
	}

	sess := s.sessionFor(sid)
	if sess == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	select {
	case <-sess.notify:
	case <-time.After(50 * time.Millisecond):
	case <-r.Context().Done():
		return
	}

	packets := sess.drain()
	writeBatch(w, packets)
}

func (s *Server) handshake(w http.ResponseWriter) {
	s.mu.Lock()
	s.nextID++
	sid := "fake-sid-" + strconv.Itoa(s.nextID)
	sess := newSession()
	s.sessions[sid] = sess
	s.mu.Unlock()

	payload, err := wengine.EncodeOpen(&wengine.OpenPayload{
		SID:          sid,
		Upgrades:     nil,
		PingInterval: int(s.PingInterval.Milliseconds()),
		PingTimeout:  int(s.PingTimeout.Milliseconds()),
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeBatch(w, []*wengine.Packet{payload})
}

func (s *Server) sessionFor(sid string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sid]
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	sess := s.sessionFor(sid)
	if sess == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	packets, err := wengine.DecodePayload(string(body))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, p := range packets {
		if p.Type != wengine.Message {
			continue
		}
		s.dispatch(sess, p.Payload)
	}

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "ok")
}

func (s *Server) dispatch(sess *session, text string) {
	pkt, err := wsocket.DecodeText(text)
	if err != nil {
		return
	}

	switch pkt.Type {
	case wsocket.Connect:
		sess.mu.Lock()
		sess.nsConns[pkt.Namespace] = true
		sess.mu.Unlock()
		s.reply(sess, pkt.Namespace)

	case wsocket.Disconnect:
		sess.mu.Lock()
		delete(sess.nsConns, pkt.Namespace)
		sess.mu.Unlock()

	case wsocket.Event:
		if s.onEvent == nil || len(pkt.Payload) == 0 {
			return
		}
		var name string
		if err := json.Unmarshal(pkt.Payload[0].Value, &name); err != nil {
			return
		}
		args := pkt.Payload[1:]
		var ack func(args ...any)
		if pkt.AckID != nil {
			id := *pkt.AckID
			ack = func(replyArgs ...any) { s.sendAck(sess, pkt.Namespace, id, replyArgs) }
		}
		s.onEvent(pkt.Namespace, name, args, ack)
	}
}

func (s *Server) reply(sess *session, nsp string) {
	connData, _ := json.Marshal(struct {
		SID string `json:"sid"`
	}{SID: nsp + "-connected"})

	text, err := wsocket.EncodeText(&wsocket.Packet{Type: wsocket.Connect, Namespace: nsp, ConnectData: connData})
	if err != nil {
		return
	}
	sess.enqueue(&wengine.Packet{Type: wengine.Message, Payload: text})
}

// Emit pushes a server-initiated event to every session connected to nsp.
func (s *Server) Emit(nsp, name string, args ...any) {
	payload := make([]wsocket.Element, 0, len(args)+1)
	nameRaw, _ := json.Marshal(name)
	payload = append(payload, wsocket.Json(nameRaw))
	for _, a := range args {
		raw, _ := json.Marshal(a)
		payload = append(payload, wsocket.Json(raw))
	}

	text, err := wsocket.EncodeText(&wsocket.Packet{Type: wsocket.Event, Namespace: nsp, Payload: payload})
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.mu.Lock()
		connected := sess.nsConns[nsp]
		sess.mu.Unlock()
		if connected {
			sess.enqueue(&wengine.Packet{Type: wengine.Message, Payload: text})
		}
	}
}

func (s *Server) sendAck(sess *session, nsp string, id uint64, args []any) {
	payload := make([]wsocket.Element, 0, len(args))
	for _, a := range args {
		raw, _ := json.Marshal(a)
		payload = append(payload, wsocket.Json(raw))
	}

	text, err := wsocket.EncodeText(&wsocket.Packet{Type: wsocket.Ack, Namespace: nsp, AckID: &id, Payload: payload})
	if err != nil {
		return
	}
	sess.enqueue(&wengine.Packet{Type: wengine.Message, Payload: text})
}

func writeBatch(w http.ResponseWriter, packets []*wengine.Packet) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	fmt.Fprint(w, wengine.EncodePayload(packets, true))
}
