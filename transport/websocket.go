package transport

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/packetloop/sioclient/log"
	"github.com/packetloop/sioclient/sioerr"
	wengine "github.com/packetloop/sioclient/wire/engine"
)

var websocketLog = log.New("engine.io-client:websocket")

// WebSocket implements the WebSocket Engine.IO transport: spec.md §4.5.
type WebSocket struct {
	*base

	conn *websocket.Conn
	now  func() time.Time
}

// NewWebSocket constructs a WebSocket transport from opts.
func NewWebSocket(opts Options) *WebSocket {
	w := &WebSocket{base: newBase(opts), now: time.Now}
	w.impl = w
	return w
}

func (w *WebSocket) Name() string { return "websocket" }

func (w *WebSocket) Open() Transport {
	w.open()
	return w
}

func (w *WebSocket) Close() Transport {
	w.close()
	return w
}

func (w *WebSocket) Send(packets []*wengine.Packet) { w.send(packets) }

// Pause is a no-op for WebSocket, per spec.md §4.5.
func (w *WebSocket) Pause(onPause func()) {}

func (w *WebSocket) DoOpen() {
	dialer := &websocket.Dialer{
		HandshakeTimeout: w.opts.RequestTimeout,
	}
	if w.opts.TrustAllCerts {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	headers := http.Header{}
	for k, vs := range w.opts.ExtraHeaders {
		for _, v := range vs {
			headers.Add(k, v)
		}
	}

	scheme := "ws"
	if w.opts.Secure {
		scheme = "wss"
	}
	uri := buildURI(w.opts, scheme, nil, w.now)

	conn, resp, err := dialer.Dial(uri, headers)
	if err != nil {
		w.onError("websocket error", err, nil)
		return
	}
	w.conn = conn
	if resp != nil {
		w.Emit(EventResponseHeaders, resp.Header)
	}
	w.onOpen()

	go w.readLoop()
}

func (w *WebSocket) readLoop() {
	for {
		msgType, data, err := w.conn.ReadMessage()
		if err != nil {
			break
		}

		switch msgType {
		case websocket.TextMessage:
			pkt, derr := wengine.DecodePacket(string(data))
			if derr != nil {
				w.onError("decode error", derr, nil)
				continue
			}
			w.onPacket(pkt)
		case websocket.BinaryMessage:
			w.onPacket(&wengine.Packet{Type: wengine.Message, Binary: data})
		case websocket.CloseMessage:
			w.onClose(nil)
			return
		}
	}
	w.onClose(sioerr.New(sioerr.KindTransport, "websocket connection closed", nil, nil))
}

func (w *WebSocket) DoClose() {
	if w.conn != nil {
		_ = w.conn.Close()
	}
}

func (w *WebSocket) Write(packets []*wengine.Packet) {
	w.setWritable(false)
	for _, p := range packets {
		var err error
		if p.Type == wengine.Message && p.Binary != nil {
			err = w.conn.WriteMessage(websocket.BinaryMessage, p.Binary)
		} else {
			err = w.conn.WriteMessage(websocket.TextMessage, []byte(wengine.EncodePacket(p, true)))
		}
		if err != nil {
			w.onError("write error", err, nil)
			return
		}
	}
	w.setWritable(true)
	w.Emit(EventDrain, len(packets))
}
