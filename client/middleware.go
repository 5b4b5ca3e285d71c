package client

import (
	"context"
	"sync"

	"github.com/achilleasa/hessian2/transport"
)

// Middleware is implemented by objects that can be injected into a client's
// outgoing call flow.
//
// Pre is invoked before the request message is handed to the transport. It
// may modify the request (headers, endpoint) or return a derived context. A
// nil context keeps the current one. Returning an error aborts the call; the
// Post hooks of the middleware that already ran are still invoked.
//
// Post is invoked in reverse order once a response arrives or the call is
// aborted.
//
// Request and response messages are recycled by the client; middleware must
// not retain them after Post returns.
type Middleware interface {
	Pre(ctx context.Context, req transport.Message) (context.Context, error)
	Post(ctx context.Context, req, res transport.ImmutableMessage)
}

// MiddlewareFactory returns a Middleware for a client bound to endpoint.
type MiddlewareFactory func(endpoint string) Middleware

var (
	globalMiddlewareMutex     sync.Mutex
	globalMiddlewareFactories []MiddlewareFactory
)

// RegisterGlobalMiddlewareFactories appends one or more factories to the
// global set of middleware that is instantiated by every client created
// afterwards. Nil factories are ignored.
func RegisterGlobalMiddlewareFactories(factories ...MiddlewareFactory) {
	globalMiddlewareMutex.Lock()
	defer globalMiddlewareMutex.Unlock()

	for _, factory := range factories {
		if factory != nil {
			globalMiddlewareFactories = append(globalMiddlewareFactories, factory)
		}
	}
}

// ClearGlobalMiddlewareFactories clears the global middleware list.
func ClearGlobalMiddlewareFactories() {
	globalMiddlewareMutex.Lock()
	defer globalMiddlewareMutex.Unlock()

	globalMiddlewareFactories = nil
}

func globalFactories() []MiddlewareFactory {
	globalMiddlewareMutex.Lock()
	defer globalMiddlewareMutex.Unlock()

	return append([]MiddlewareFactory(nil), globalMiddlewareFactories...)
}
