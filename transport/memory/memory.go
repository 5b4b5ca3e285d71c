// Package memory provides an in-process transport. Requests are dispatched
// to the bound handlers on their own goroutine which makes the transport a
// convenient stand-in for real transports in tests.
package memory

import (
	"fmt"
	"sync"

	"github.com/achilleasa/hessian2/transport"
)

var (
	_ transport.Provider = &Transport{}

	singletonMutex    sync.Mutex
	singletonInstance *Transport
)

// Transport implements an in-memory transport. Bindings are keyed by the
// path component of the request endpoint so "http://any-host/echo" and
// "/echo" reach the same handler.
type Transport struct {
	rwMutex  sync.RWMutex
	refCount int
	bindings map[string]transport.Handler
}

// New creates a new in-memory transport instance.
func New() *Transport {
	return &Transport{
		bindings: make(map[string]transport.Handler),
	}
}

// Dial connects the transport. The in-memory transport does not distinguish
// between modes; every call increments a shared reference count.
func (t *Transport) Dial(_ transport.Mode) error {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	t.refCount++
	return nil
}

// Close decrements the reference count of the transport.
func (t *Transport) Close(_ transport.Mode) error {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	if t.refCount == 0 {
		return transport.ErrTransportClosed
	}
	t.refCount--
	return nil
}

// Bind registers handler for requests to path.
func (t *Transport) Bind(path string, handler transport.Handler) error {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	path = transport.EndpointPath(path)
	if _, exists := t.bindings[path]; exists {
		return fmt.Errorf("binding %q already defined", path)
	}
	t.bindings[path] = handler
	return nil
}

// Unbind removes the handler bound to path. Unbinding an unknown path has no
// effect.
func (t *Transport) Unbind(path string) {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	delete(t.bindings, transport.EndpointPath(path))
}

// Request delivers msg to the handler bound to its endpoint path.
func (t *Transport) Request(msg transport.Message) <-chan transport.ImmutableMessage {
	resChan := make(chan transport.ImmutableMessage, 1)

	go func() {
		res := transport.MakeGenericMessage()
		res.EndpointField = msg.Endpoint()

		t.rwMutex.RLock()
		dialed := t.refCount > 0
		handler := t.bindings[transport.EndpointPath(msg.Endpoint())]
		t.rwMutex.RUnlock()

		switch {
		case !dialed:
			res.SetPayload(nil, transport.ErrTransportClosed)
		case handler == nil:
			res.SetPayload(nil, transport.ErrNotFound)
		default:
			handler.Process(msg, res)
		}

		resChan <- res
		close(resChan)
	}()

	return resChan
}

// Factory returns a new in-memory transport.
func Factory() transport.Provider {
	return New()
}

// SingletonFactory returns a process-wide in-memory transport so that
// clients and servers created with it can reach each other.
func SingletonFactory() transport.Provider {
	singletonMutex.Lock()
	defer singletonMutex.Unlock()

	if singletonInstance == nil {
		singletonInstance = New()
	}
	return singletonInstance
}
