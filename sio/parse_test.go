package sio_test

import (
	"testing"

	"github.com/packetloop/sioclient/urlutil"
)

// Pins the namespace-defaulting decision: an empty or "/" path means the
// default namespace, anything else is taken verbatim.
func TestNamespaceDefaulting(t *testing.T) {
	cases := []struct {
		uri  string
		want string
	}{
		{"http://example.com", "/"},
		{"http://example.com/", "/"},
		{"http://example.com/admin", "/admin"},
		{"http://example.com:3000/chat", "/chat"},
	}

	for _, c := range cases {
		p, err := urlutil.Parse(c.uri)
		if err != nil {
			t.Fatalf("parse(%q): %v", c.uri, err)
		}
		if p.Namespace != c.want {
			t.Fatalf("parse(%q).Namespace = %q, want %q", c.uri, p.Namespace, c.want)
		}
	}
}
