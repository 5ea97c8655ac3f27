package httpclient

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// decompressingTransport wraps http.Transport to additionally decode
// Content-Encoding: br and Content-Encoding: zstd bodies — net/http's
// built-in transport only auto-decompresses gzip.
type decompressingTransport struct {
	base *http.Transport
}

func newDecompressingTransport(trustAllCerts bool) http.RoundTripper {
	base := &http.Transport{}
	if cfg := tlsConfig(trustAllCerts); cfg != nil {
		base.TLSClientConfig = cfg
	}
	return &decompressingTransport{base: base}
}

func (t *decompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	switch resp.Header.Get("Content-Encoding") {
	case "br":
		resp.Body = &brotliReadCloser{body: resp.Body, r: brotli.NewReader(resp.Body)}
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
	case "zstd":
		zr, zerr := zstd.NewReader(resp.Body)
		if zerr != nil {
			resp.Body.Close()
			return nil, zerr
		}
		resp.Body = &zstdReadCloser{body: resp.Body, r: zr}
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
	}

	return resp, nil
}

type brotliReadCloser struct {
	body io.ReadCloser
	r    *brotli.Reader
}

func (b *brotliReadCloser) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *brotliReadCloser) Close() error                { return b.body.Close() }

type zstdReadCloser struct {
	body io.ReadCloser
	r    *zstd.Decoder
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.r.Read(p) }
func (z *zstdReadCloser) Close() error {
	z.r.Close()
	return z.body.Close()
}
