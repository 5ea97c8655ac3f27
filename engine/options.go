package engine

import (
	"net/http"
	"time"

	"github.com/packetloop/sioclient/httpclient"
	"github.com/packetloop/sioclient/transport"
)

// Options configures an Engine, per spec.md §4.6.
type Options struct {
	Secure            bool
	Hostname          string
	Port              string
	Path              string
	Query             map[string]string
	ExtraHeaders      http.Header
	TrustAllCerts     bool
	ForceBase64       bool
	RequestTimeout    time.Duration
	Jar               http.CookieJar

	// HTTPClientFactory is forwarded to the polling transport; see
	// transport.Options.HTTPClientFactory.
	HTTPClientFactory func(httpclient.Options) *httpclient.Client

	// Transports lists candidate transport names in preference order.
	Transports []string
	// Upgrade enables the polling-to-websocket probe/upgrade handshake.
	Upgrade bool
	// RememberUpgrade opens directly on websocket next time, if the prior
	// connection from this Engine instance successfully upgraded.
	RememberUpgrade bool
}

// WithDefaults fills zero-valued fields with spec-mandated defaults.
func (o Options) WithDefaults() Options {
	if o.Path == "" {
		o.Path = "/engine.io/"
	}
	if len(o.Transports) == 0 {
		o.Transports = []string{transport.NamePolling, transport.NameWebSocket}
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 20 * time.Second
	}
	return o
}

// eioProtocolVersion is the Engine.IO wire protocol version this client
// speaks, sent as the EIO query parameter on every transport request.
const eioProtocolVersion = "4"

func (o Options) transportOptions(name string, extraQuery map[string]string) transport.Options {
	q := make(map[string]string, len(o.Query)+len(extraQuery)+2)
	for k, v := range o.Query {
		q[k] = v
	}
	for k, v := range extraQuery {
		q[k] = v
	}
	q["EIO"] = eioProtocolVersion
	q["transport"] = name
	return transport.Options{
		Secure:            o.Secure,
		Hostname:          o.Hostname,
		Port:              o.Port,
		Path:              o.Path,
		Query:             q,
		ExtraHeaders:      o.ExtraHeaders,
		TrustAllCerts:     o.TrustAllCerts,
		ForceBase64:       o.ForceBase64,
		RequestTimeout:    o.RequestTimeout,
		Jar:               o.Jar,
		HTTPClientFactory: o.HTTPClientFactory,
	}.WithDefaults()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
