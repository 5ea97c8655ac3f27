// Package urlutil provides the query-string codec, connection-URI parsing,
// and host/origin helpers shared by the Transport, Manager, and entry-glue
// layers.
package urlutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// isUnreserved reports whether b is in the RFC 3986 unreserved character
// set, which percent encoding must leave untouched.
func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '!' || b == '~' || b == '*' || b == '\'' || b == '(' || b == ')':
		return true
	}
	return false
}

// EncodeComponent percent-encodes s per RFC 3986's unreserved set. Non-ASCII
// runes are encoded as consecutive UTF-8 percent-triplets.
func EncodeComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// DecodeComponent reverses EncodeComponent, additionally treating '+' as a
// space (form-encoding compatibility) and rejecting malformed %HH escapes.
func DecodeComponent(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 >= len(s) {
				return "", errors.New("urlutil: truncated percent-escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("urlutil: invalid percent-escape %q: %w", s[i:i+3], err)
			}
			b.WriteByte(byte(v))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// Encode renders m as "k1=v1&k2=v2..." with percent-encoded keys/values, in
// deterministic (sorted key) order.
func Encode(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, EncodeComponent(k)+"="+EncodeComponent(m[k]))
	}
	return strings.Join(parts, "&")
}

// Decode parses a query string of the form produced by Encode. Empty keys
// are skipped; malformed percent-escapes fail the whole decode.
func Decode(qs string) (map[string]string, error) {
	out := make(map[string]string)
	if qs == "" {
		return out, nil
	}
	for _, piece := range strings.Split(qs, "&") {
		if piece == "" {
			continue
		}
		kv := strings.SplitN(piece, "=", 2)
		key, err := DecodeComponent(kv[0])
		if err != nil {
			return nil, err
		}
		if key == "" {
			continue
		}
		var val string
		if len(kv) == 2 {
			val, err = DecodeComponent(kv[1])
			if err != nil {
				return nil, err
			}
		}
		out[key] = val
	}
	return out, nil
}

// Parsed holds the pieces of a client-supplied connection URI. An empty or
// root path defaults to the root namespace "/".
type Parsed struct {
	Secure   bool
	Hostname string
	Port     string
	Path     string
	Query    map[string]string
	// Namespace is the Socket.IO namespace implied by the URI's path,
	// defaulting to "/" when the path is empty or exactly "/".
	Namespace string
}

// Parse parses uri, defaulting scheme-appropriate ports and the namespace.
func Parse(uri string) (*Parsed, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}

	secure := u.Scheme == "https" || u.Scheme == "wss"
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if secure {
			port = "443"
		} else {
			port = "80"
		}
	}

	q := make(map[string]string, len(u.Query()))
	for k, v := range u.Query() {
		if len(v) > 0 {
			q[k] = v[len(v)-1]
		}
	}

	ns := u.Path
	if ns == "" || ns == "/" {
		ns = "/"
	}

	return &Parsed{
		Secure:    secure,
		Hostname:  host,
		Port:      port,
		Path:      u.Path,
		Query:     q,
		Namespace: ns,
	}, nil
}

// HostAndPort joins hostname and port the way net.JoinHostPort does, but
// only appending the port when it differs from the scheme default.
func HostAndPort(hostname, port string, secure bool) string {
	defaultPort := "80"
	if secure {
		defaultPort = "443"
	}
	if port == "" || port == defaultPort {
		return BracketIPv6(hostname)
	}
	return net.JoinHostPort(hostname, port)
}

// BracketIPv6 wraps hostname in [...] if it looks like an IPv6 literal.
func BracketIPv6(hostname string) string {
	if strings.Contains(hostname, ":") {
		return "[" + hostname + "]"
	}
	return hostname
}

// Origin returns the manager cache key ("scheme://host[:port]") for the
// given host and port; the port is left out when it is the scheme default.
func Origin(secure bool, hostname, port string) string {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, HostAndPort(hostname, port, secure))
}
