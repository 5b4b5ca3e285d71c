// Package transport defines the message exchange layer used by hessian2
// clients and servers. A transport moves opaque payloads between a caller
// and a handler bound to an endpoint path; encoding is left to the layers
// above it.
package transport

// Mode selects the role a transport is dialed or closed for.
type Mode uint8

// The supported transport modes.
const (
	ModeServer Mode = iota
	ModeClient
)

func (m Mode) String() string {
	switch m {
	case ModeServer:
		return "server"
	case ModeClient:
		return "client"
	}
	return "unknown"
}

// A Handler responds to a request delivered by a transport.
//
// Process must update res with either a payload or an error.
type Handler interface {
	Process(req ImmutableMessage, res Message)
}

// The HandlerFunc type is an adapter to allow the use of ordinary functions
// as transport handlers.
type HandlerFunc func(req ImmutableMessage, res Message)

// Process calls f(req, res).
func (f HandlerFunc) Process(req ImmutableMessage, res Message) {
	f(req, res)
}

// Provider is implemented by transports.
//
// Dial and Close are reference counted per mode: a transport shared by
// several clients stays connected until each of them has closed it. Closing
// a transport that is not dialed in the given mode returns
// ErrTransportClosed.
//
// Bind and Unbind manage the handlers that serve an endpoint path (the path
// component of the endpoint URL) and may be called at any time.
//
// Request sends a message to msg.Endpoint() and returns a channel that
// receives exactly one response.
type Provider interface {
	Dial(mode Mode) error
	Close(mode Mode) error
	Bind(path string, handler Handler) error
	Unbind(path string)
	Request(msg Message) <-chan ImmutableMessage
}

// ProviderFactory returns a transport instance.
type ProviderFactory func() Provider
