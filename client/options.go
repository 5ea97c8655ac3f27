// Package client implements the Socket.IO v4 client: the Manager that owns
// one Engine.IO session and its reconnection loop, and the namespace Socket
// multiplexed on top of it.
package client

import (
	"net/http"
	"time"

	"github.com/packetloop/sioclient/httpclient"
	"github.com/packetloop/sioclient/log"
)

// Options configures both the Manager (engine/transport/reconnection) and
// any Socket opened through it (auth payload). Multiplex and Reconnection
// both default to true, which the zero value can't represent directly; use
// WithMultiplex/WithReconnection to turn either off explicitly.
type Options struct {
	// Transport-level.
	Path           string
	Query          map[string]string
	ExtraHeaders   http.Header
	TrustAllCerts  bool
	ForceBase64    bool
	RequestTimeout time.Duration
	Jar            http.CookieJar
	Transports     []string
	Upgrade        bool

	// Manager-level.
	ForceNew            bool
	Multiplex           bool
	Reconnection        bool
	ReconnAttempts      int // 0 means unlimited
	ReconnDelay         time.Duration
	ReconnDelayMax      time.Duration
	RandomizationFactor float64
	Timeout             time.Duration

	// Namespace-level.
	Auth any

	Logger *log.Logger

	// HTTPClientFactory overrides how the polling transport builds its HTTP
	// client, e.g. to inject an instrumented or test-double client.
	HTTPClientFactory func(httpclient.Options) *httpclient.Client

	multiplexSet    bool
	reconnectionSet bool
}

// WithDefaults fills the zero value with Socket.IO's documented defaults.
func (o Options) WithDefaults() Options {
	if o.Path == "" {
		o.Path = "/socket.io/"
	}
	if o.Transports == nil {
		o.Transports = []string{"polling", "websocket"}
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 20 * time.Second
	}
	if !o.multiplexSet {
		o.Multiplex = true
	}
	if !o.reconnectionSet {
		o.Reconnection = true
	}
	if o.ReconnDelay == 0 {
		o.ReconnDelay = 1 * time.Second
	}
	if o.ReconnDelayMax == 0 {
		o.ReconnDelayMax = 5 * time.Second
	}
	if o.RandomizationFactor == 0 {
		o.RandomizationFactor = 0.5
	}
	if o.Timeout == 0 {
		o.Timeout = 20 * time.Second
	}
	return o
}

// Option mutates an Options value; used by the sio entry surface's variadic
// configuration, mirroring Socket.IO's opts-object constructor.
type Option func(*Options)

func WithPath(p string) Option              { return func(o *Options) { o.Path = p } }
func WithQuery(q map[string]string) Option  { return func(o *Options) { o.Query = q } }
func WithExtraHeaders(h http.Header) Option { return func(o *Options) { o.ExtraHeaders = h } }
func WithTrustAllCerts(b bool) Option       { return func(o *Options) { o.TrustAllCerts = b } }
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) { o.RequestTimeout = d }
}
func WithJar(j http.CookieJar) Option   { return func(o *Options) { o.Jar = j } }
func WithTransports(ts []string) Option { return func(o *Options) { o.Transports = ts } }
func WithUpgrade(b bool) Option         { return func(o *Options) { o.Upgrade = b } }
func WithForceNew(b bool) Option        { return func(o *Options) { o.ForceNew = b } }
func WithMultiplex(b bool) Option {
	return func(o *Options) { o.Multiplex = b; o.multiplexSet = true }
}
func WithReconnection(b bool) Option {
	return func(o *Options) { o.Reconnection = b; o.reconnectionSet = true }
}
func WithReconnectionAttempts(n int) Option { return func(o *Options) { o.ReconnAttempts = n } }
func WithReconnectionDelay(d time.Duration) Option {
	return func(o *Options) { o.ReconnDelay = d }
}
func WithReconnectionDelayMax(d time.Duration) Option {
	return func(o *Options) { o.ReconnDelayMax = d }
}
func WithRandomizationFactor(f float64) Option {
	return func(o *Options) { o.RandomizationFactor = f }
}
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithAuth(v any) Option              { return func(o *Options) { o.Auth = v } }
func WithLogger(l *log.Logger) Option    { return func(o *Options) { o.Logger = l } }
func WithHTTPClientFactory(f func(httpclient.Options) *httpclient.Client) Option {
	return func(o *Options) { o.HTTPClientFactory = f }
}
