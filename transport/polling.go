package transport

import (
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/packetloop/sioclient/httpclient"
	"github.com/packetloop/sioclient/log"
	"github.com/packetloop/sioclient/sioerr"
	wengine "github.com/packetloop/sioclient/wire/engine"
)

var pollingLog = log.New("engine.io-client:polling")

// Polling implements the HTTP long-polling Engine.IO transport: spec.md
// §4.4.
type Polling struct {
	*base

	client   *httpclient.Client
	polling  atomic.Bool
	forceB64 bool

	now func() time.Time
}

// NewPolling constructs a Polling transport from opts.
func NewPolling(opts Options) *Polling {
	p := &Polling{
		base: newBase(opts),
		now:  time.Now,
	}
	p.impl = p
	clientOpts := httpclient.Options{
		Timeout:       p.opts.RequestTimeout,
		TrustAllCerts: p.opts.TrustAllCerts,
		Jar:           p.opts.Jar,
	}
	if f := p.opts.HTTPClientFactory; f != nil {
		p.client = f(clientOpts)
	} else {
		p.client = httpclient.New(clientOpts)
	}
	return p
}

func (p *Polling) Name() string { return "polling" }

func (p *Polling) Open() Transport {
	p.open()
	return p
}

func (p *Polling) Close() Transport {
	p.close()
	return p
}

func (p *Polling) Send(packets []*wengine.Packet) { p.send(packets) }

// Pause implements spec.md §4.4's pause algorithm: wait for any in-flight
// poll and/or drain before invoking onPause.
func (p *Polling) Pause(onPause func()) {
	p.setState(StatePausing)

	pause := func() {
		pollingLog.Debug("paused")
		p.setState(StatePaused)
		onPause()
	}

	isPolling := p.polling.Load()
	isWritable := p.Writable()

	if !isPolling && isWritable {
		pause()
		return
	}

	var remaining atomic.Int32
	if isPolling {
		remaining.Add(1)
		p.Once(EventPollComplete, func(...any) {
			if remaining.Add(-1) == 0 {
				pause()
			}
		})
	}
	if !isWritable {
		remaining.Add(1)
		p.Once(EventDrain, func(...any) {
			if remaining.Add(-1) == 0 {
				pause()
			}
		})
	}
}

func (p *Polling) DoOpen() { p.poll() }

func (p *Polling) poll() {
	pollingLog.Debug("polling")
	p.polling.Store(true)
	p.Emit("poll")
	go p.doPoll()
}

func (p *Polling) DoClose() {
	defer p.client.Close()

	writeClose := func(...any) {
		pollingLog.Debug("writing close packet")
		p.Write([]*wengine.Packet{{Type: wengine.Close}})
	}

	if p.ReadyState() == StateOpen {
		writeClose()
	} else {
		// The write is registered for EventOpen, but base.close marks the
		// transport closed straight after DoClose, and onData only calls
		// onOpen while opening or closing, so no Close packet is sent for a
		// close requested before the handshake completes.
		p.Once(EventOpen, writeClose)
	}
}

func (p *Polling) Write(packets []*wengine.Packet) {
	p.setWritable(false)
	go p.write(packets)
}

func (p *Polling) write(packets []*wengine.Packet) {
	batch := wengine.EncodePayload(packets, !p.opts.ForceBase64)
	if err := p.doWrite(batch); err != nil {
		p.onError("fetch write error", err, nil)
		return
	}
	p.setWritable(true)
	p.Emit(EventDrain, len(packets))
}

func (p *Polling) doWrite(batch string) error {
	headers := http.Header{}
	for k, vs := range p.opts.ExtraHeaders {
		for _, v := range vs {
			headers.Add(k, v)
		}
	}
	headers.Set("Content-Type", "text/plain;charset=UTF-8")

	resp, err := p.client.Post(p.uri(), headers, strings.NewReader(batch))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !resp.Ok() {
		return sioerr.New(sioerr.KindTransport, "non-2xx response to polling POST", nil, nil)
	}
	return nil
}

func (p *Polling) doPoll() {
	headers := http.Header{"Accept": []string{"*/*"}}
	for k, vs := range p.opts.ExtraHeaders {
		for _, v := range vs {
			headers.Add(k, v)
		}
	}

	resp, err := p.client.Get(p.uri(), headers)
	if err != nil {
		p.onError("fetch read error", err, nil)
		return
	}
	defer resp.Body.Close()

	if !resp.Ok() {
		p.onError("fetch read error", sioerr.New(sioerr.KindTransport, "non-2xx response", nil, nil), nil)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.onError("fetch read error", err, nil)
		return
	}

	p.onData(string(body))
}

// onData decodes a polling batch and processes each packet, per spec.md
// §4.4.
func (p *Polling) onData(data string) {
	packets, err := wengine.DecodePayload(data)
	if err != nil {
		p.onError("decode error", err, nil)
		return
	}

	for _, pkt := range packets {
		state := p.ReadyState()
		if (state == StateOpening || state == StateClosing) && pkt.Type == wengine.Open {
			p.onOpen()
			state = p.ReadyState()
		}
		if pkt.Type == wengine.Close {
			p.onClose(sioerr.New(sioerr.KindTransport, "transport closed by the server", nil, nil))
			return
		}
		p.onPacket(pkt)
	}

	if state := p.ReadyState(); state != StateClosed {
		p.polling.Store(false)
		p.Emit(EventPollComplete)
		if p.ReadyState() == StateOpen {
			p.poll()
		} else {
			pollingLog.Debug("ignoring poll - transport state %q", state)
		}
	}
}

func (p *Polling) uri() string {
	scheme := "http"
	if p.opts.Secure {
		scheme = "https"
	}

	extra := map[string]string{}
	if !p.SupportsBinary() && p.opts.Query["sid"] == "" {
		extra["b64"] = "1"
	}

	return buildURI(p.opts, scheme, extra, p.now)
}

// SupportsBinary reports whether this transport can carry raw binary
// frames (it cannot — polling always base64-inlines binary data).
func (p *Polling) SupportsBinary() bool { return false }
