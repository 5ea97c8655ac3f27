package transport

import (
	"net/http"
	"time"

	"github.com/packetloop/sioclient/httpclient"
)

// Options configures a Transport, per spec.md §3's "Transport options".
type Options struct {
	Secure            bool
	Hostname          string
	Port              string
	Path              string
	TimestampRequests bool
	TimestampParam    string // default "t"
	Query             map[string]string
	ExtraHeaders      http.Header
	TrustAllCerts     bool
	ForceBase64       bool
	RequestTimeout    time.Duration
	Jar               http.CookieJar

	// HTTPClientFactory overrides how the polling transport builds its HTTP
	// client; nil uses httpclient.New directly. Lets an entry surface swap
	// in an instrumented or test-double client.
	HTTPClientFactory func(httpclient.Options) *httpclient.Client
}

// WithDefaults fills zero-valued fields with their spec-mandated defaults.
func (o Options) WithDefaults() Options {
	if o.Path == "" {
		o.Path = "/engine.io/"
	}
	if o.TimestampParam == "" {
		o.TimestampParam = "t"
	}
	if o.Query == nil {
		o.Query = map[string]string{}
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 20 * time.Second
	}
	return o
}
