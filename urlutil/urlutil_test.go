package urlutil_test

import (
	"testing"

	"github.com/packetloop/sioclient/urlutil"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []map[string]string{
		{"EIO": "4", "transport": "websocket"},
		{"t": "abc", "weird key": "weird value!"},
		{"unicode": "héllo wörld"},
	}
	for _, m := range cases {
		encoded := urlutil.Encode(m)
		decoded, err := urlutil.Decode(encoded)
		if err != nil {
			t.Fatalf("decode(%q): %v", encoded, err)
		}
		if len(decoded) != len(m) {
			t.Fatalf("round trip mismatch: got %v, want %v", decoded, m)
		}
		for k, v := range m {
			if decoded[k] != v {
				t.Fatalf("round trip mismatch for %q: got %q, want %q", k, decoded[k], v)
			}
		}
	}
}

func TestDecodeSkipsEmptyKeys(t *testing.T) {
	m, err := urlutil.Decode("=novalue&a=1")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := m[""]; ok {
		t.Fatalf("expected empty key to be skipped")
	}
	if m["a"] != "1" {
		t.Fatalf("expected a=1, got %v", m)
	}
}

func TestDecodeRejectsMalformedEscape(t *testing.T) {
	if _, err := urlutil.Decode("a=%zz"); err == nil {
		t.Fatalf("expected error for malformed percent escape")
	}
}

func TestDecodePlusIsSpace(t *testing.T) {
	m, err := urlutil.Decode("q=hello+world")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["q"] != "hello world" {
		t.Fatalf("got %q, want %q", m["q"], "hello world")
	}
}

func TestParseDefaultsPortAndNamespace(t *testing.T) {
	p, err := urlutil.Parse("http://example.com:3000/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Port != "3000" || p.Namespace != "/" {
		t.Fatalf("got port=%q namespace=%q", p.Port, p.Namespace)
	}

	p2, err := urlutil.Parse("https://example.com/admin")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p2.Port != "443" || p2.Namespace != "/admin" {
		t.Fatalf("got port=%q namespace=%q", p2.Port, p2.Namespace)
	}
}

func TestBracketIPv6(t *testing.T) {
	if got := urlutil.BracketIPv6("::1"); got != "[::1]" {
		t.Fatalf("got %q", got)
	}
	if got := urlutil.BracketIPv6("example.com"); got != "example.com" {
		t.Fatalf("got %q", got)
	}
}
