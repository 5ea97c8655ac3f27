package transport

import (
	"strings"
	"testing"
	"time"
)

func TestBuildURIDefaultPortOmitted(t *testing.T) {
	opts := Options{Hostname: "example.com", Port: "443", Path: "/engine.io/", Secure: true}.WithDefaults()
	uri := buildURI(opts, "https", nil, time.Now)
	if uri != "https://example.com/engine.io/" {
		t.Fatalf("got %q", uri)
	}
}

func TestBuildURINonDefaultPortIncluded(t *testing.T) {
	opts := Options{Hostname: "example.com", Port: "3000", Path: "/engine.io/"}.WithDefaults()
	uri := buildURI(opts, "http", nil, time.Now)
	if uri != "http://example.com:3000/engine.io/" {
		t.Fatalf("got %q", uri)
	}
}

func TestBuildURIWrapsIPv6(t *testing.T) {
	opts := Options{Hostname: "::1", Port: "80", Path: "/engine.io/"}.WithDefaults()
	uri := buildURI(opts, "http", nil, time.Now)
	if !strings.HasPrefix(uri, "http://[::1]") {
		t.Fatalf("got %q", uri)
	}
}

func TestBuildURIAddsTimestampParam(t *testing.T) {
	opts := Options{Hostname: "example.com", Port: "80", Path: "/engine.io/", TimestampRequests: true, TimestampParam: "t"}.WithDefaults()
	fixed := func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	uri := buildURI(opts, "http", nil, fixed)
	if !strings.Contains(uri, "t=") {
		t.Fatalf("expected timestamp param in %q", uri)
	}
}

func TestBuildURIMergesExtraQuery(t *testing.T) {
	opts := Options{Hostname: "example.com", Port: "80", Path: "/engine.io/", Query: map[string]string{"EIO": "4"}}.WithDefaults()
	uri := buildURI(opts, "http", map[string]string{"transport": "polling"}, time.Now)
	if !strings.Contains(uri, "EIO=4") || !strings.Contains(uri, "transport=polling") {
		t.Fatalf("got %q", uri)
	}
}
