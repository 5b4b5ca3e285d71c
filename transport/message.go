package transport

import (
	"io"
	"net/url"
	"strings"
)

// Well-known message headers (canonical form).
const (
	// HeaderFault is set to "true" on responses whose payload encodes a
	// Hessian fault rather than a reply.
	HeaderFault = "Hessian-Fault"

	// HeaderContentType carries the media type of the payload.
	HeaderContentType = "Content-Type"

	// HeaderAuthorization carries request credentials.
	HeaderAuthorization = "Authorization"
)

// ImmutableMessage defines an interface for a read-only message.
type ImmutableMessage interface {
	// Messages are pooled; close them once they are no longer needed.
	io.Closer

	// ID returns a UUID for this message.
	ID() string

	// Endpoint returns the endpoint URL (client side) or path (server side)
	// the message is addressed to.
	Endpoint() string

	// Headers returns the header values associated with the message.
	Headers() map[string]string

	// Payload returns the message body or the error carried instead of it.
	Payload() ([]byte, error)
}

// Message is a message whose contents can be modified by its owner.
type Message interface {
	ImmutableMessage

	// SetEndpoint sets the message destination.
	SetEndpoint(endpoint string)

	// SetPayload sets the message body or an error.
	SetPayload(payload []byte, err error)

	// SetHeader sets a header value. Header names are canonicalized using
	// http.CanonicalHeaderKey.
	SetHeader(name, value string)

	// SetHeaders calls SetHeader for every entry of headers.
	SetHeaders(headers map[string]string)
}

// EndpointPath returns the path component of an endpoint. Endpoints can be
// absolute URLs ("http://host:8080/echo") or bare paths ("echo", "/echo").
// The result always starts with a "/".
func EndpointPath(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Path
	}
	return "/" + strings.TrimLeft(endpoint, "/")
}

// IsFault reports whether msg carries a Hessian fault.
func IsFault(msg ImmutableMessage) bool {
	return msg.Headers()[HeaderFault] == "true"
}
