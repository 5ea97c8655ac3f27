// Package httpclient wraps resty.dev/v3 into the minimal GET/POST surface
// the polling transport needs: a shared cookie jar (sticky-session
// support), a configurable timeout, and a decompressing round-tripper for
// brotli/zstd-compressed long-polling responses.
package httpclient

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"resty.dev/v3"
)

// Client is a thin GET/POST wrapper around a resty client, scoped to one
// polling transport instance.
type Client struct {
	rc *resty.Client
}

// Options configures a new Client.
type Options struct {
	Timeout       time.Duration
	TrustAllCerts bool
	Jar           http.CookieJar
	// RoundTripper overrides the transport entirely; when nil a
	// decompressing transport is built from TrustAllCerts.
	RoundTripper http.RoundTripper
}

// New builds a Client from opts.
func New(opts Options) *Client {
	rc := resty.New()

	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}

	jar := opts.Jar
	if jar == nil {
		jar, _ = cookiejar.New(nil)
	}
	rc.SetCookieJar(jar)

	rt := opts.RoundTripper
	if rt == nil {
		rt = newDecompressingTransport(opts.TrustAllCerts)
	}
	rc.SetTransport(rt)

	return &Client{rc: rc}
}

// Response is the subset of a resty response the polling transport needs.
type Response struct {
	StatusCode int
	Body       io.ReadCloser
}

// Ok reports whether the response's status code indicates success.
func (r *Response) Ok() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Get issues a GET request with the given headers.
func (c *Client) Get(url string, headers http.Header) (*Response, error) {
	req := c.rc.R().SetDoNotParseResponse(true)
	applyHeaders(req, headers)
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body}, nil
}

// Post issues a POST request with the given headers and body.
func (c *Client) Post(url string, headers http.Header, body io.Reader) (*Response, error) {
	req := c.rc.R().SetDoNotParseResponse(true).SetBody(body)
	applyHeaders(req, headers)
	resp, err := req.Post(url)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body}, nil
}

// Close releases the underlying resty client's idle connections.
func (c *Client) Close() { c.rc.Close() }

func applyHeaders(req *resty.Request, headers http.Header) {
	for k, vs := range headers {
		for _, v := range vs {
			req.SetHeader(k, v)
		}
	}
}

func tlsConfig(trustAll bool) *tls.Config {
	if !trustAll {
		return nil
	}
	return &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via TrustAllCerts
}
