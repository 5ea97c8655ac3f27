// Package sio is the entry surface: Connect builds (or reuses) a Manager for
// a connection URI and returns the namespace Socket it implies.
package sio

import (
	"fmt"
	"sync"

	"github.com/packetloop/sioclient/client"
	"github.com/packetloop/sioclient/urlutil"
)

// cache holds one Manager per origin, shared across Connect calls against
// the same scheme://host:port unless ForceNew or Multiplex=false says
// otherwise.
var cache = struct {
	mu       sync.Mutex
	managers map[string]*client.Manager
}{managers: make(map[string]*client.Manager)}

// Connect parses uri, resolves a Manager (new or shared per the
// forceNew/multiplex rule below), and returns the namespace Socket it names,
// connecting it.
//
// A Manager is reused for this origin unless ForceNew is set, Multiplex is
// explicitly disabled, or the cached Manager for this origin already has a
// Socket registered for the requested namespace — that last case gets its
// own standalone Manager too, rather than handing back a Socket some other
// caller is already using.
func Connect(uri string, opts ...client.Option) (*client.Socket, error) {
	var o client.Options
	for _, opt := range opts {
		opt(&o)
	}
	o = o.WithDefaults()

	parsed, err := urlutil.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("sio: %w", err)
	}
	origin := urlutil.Origin(parsed.Secure, parsed.Hostname, parsed.Port)

	mgr, err := managerFor(origin, uri, parsed.Namespace, o)
	if err != nil {
		return nil, err
	}

	s := mgr.Socket(parsed.Namespace, o.Auth)
	s.Connect()
	return s, nil
}

// managerFor returns the shared Manager for origin, creating one if this is
// the first Connect to it, the caller opted out of sharing, or the shared
// Manager already owns a Socket for nsp. In that last case a fresh,
// uncached Manager is returned so the existing shared Manager (and whatever
// else is using it) is left untouched.
func managerFor(origin, uri, nsp string, o client.Options) (*client.Manager, error) {
	cache.mu.Lock()
	existing, ok := cache.managers[origin]
	cache.mu.Unlock()

	if !o.ForceNew && o.Multiplex && ok && !existing.HasNamespace(nsp) {
		return existing, nil
	}

	mgr, err := client.NewManager(uri, o)
	if err != nil {
		return nil, fmt.Errorf("sio: %w", err)
	}

	if o.ForceNew || !o.Multiplex {
		return mgr, nil
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	switch existing, ok := cache.managers[origin]; {
	case !ok:
		cache.managers[origin] = mgr
		return mgr, nil
	case existing.HasNamespace(nsp):
		return mgr, nil
	default:
		return existing, nil
	}
}
