package transport

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
)

var msgPool = sync.Pool{
	New: func() interface{} {
		return &GenericMessage{}
	},
}

// GenericMessage implements both Message and ImmutableMessage. Transports use
// it as the message type they hand out to clients and handlers.
type GenericMessage struct {
	IDField       string
	EndpointField string
	HeadersField  map[string]string
	PayloadField  []byte
	ErrField      error
}

// ID returns a UUID for this message.
func (m *GenericMessage) ID() string {
	return m.IDField
}

// Close returns the message to the pool.
func (m *GenericMessage) Close() error {
	msgPool.Put(m)
	return nil
}

// Endpoint returns the message destination.
func (m *GenericMessage) Endpoint() string {
	return m.EndpointField
}

// SetEndpoint sets the message destination.
func (m *GenericMessage) SetEndpoint(endpoint string) {
	m.EndpointField = endpoint
}

// Headers returns the message headers.
func (m *GenericMessage) Headers() map[string]string {
	return m.HeadersField
}

// SetHeader sets a header value using the canonical form of name.
func (m *GenericMessage) SetHeader(name, value string) {
	m.HeadersField[http.CanonicalHeaderKey(name)] = value
}

// SetHeaders sets a batch of header values.
func (m *GenericMessage) SetHeaders(values map[string]string) {
	for k, v := range values {
		m.SetHeader(k, v)
	}
}

// Payload returns the message body or error.
func (m *GenericMessage) Payload() ([]byte, error) {
	return m.PayloadField, m.ErrField
}

// SetPayload sets the message body or error.
func (m *GenericMessage) SetPayload(payload []byte, err error) {
	m.PayloadField = payload
	m.ErrField = err
}

// MakeGenericMessage fetches a message from the pool and assigns it a new ID.
func MakeGenericMessage() *GenericMessage {
	m := msgPool.Get().(*GenericMessage)
	m.IDField = GenerateID()
	m.EndpointField = ""
	m.HeadersField = make(map[string]string)
	m.PayloadField = nil
	m.ErrField = nil
	return m
}

// GenerateID returns a random UUID suitable for a message ID.
func GenerateID() string {
	return uuid.New().String()
}
