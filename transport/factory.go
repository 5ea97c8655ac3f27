package transport

// Names of the two supported concrete transports.
const (
	NamePolling   = "polling"
	NameWebSocket = "websocket"
)

// New constructs a Transport by name ("polling" or "websocket"). Other
// transport names (webtransport, etc.) are an explicit Non-goal — see
// spec.md §1 and DESIGN.md.
func New(name string, opts Options) Transport {
	switch name {
	case NameWebSocket:
		return NewWebSocket(opts)
	default:
		return NewPolling(opts)
	}
}
