package server

import (
	"context"
	"sync"

	"github.com/achilleasa/hessian2/transport"
)

// A MiddlewareFactory generates a Middleware which wraps another middleware
// forming a middleware chain.
//
// After applying its logic the returned middleware is expected to invoke the
// next middleware in the chain. It may also return without invoking next,
// which prevents the rest of the chain and the service handler from running.
type MiddlewareFactory func(next Middleware) Middleware

// Middleware is implemented by objects that can be injected into the
// processing of incoming calls before the service handler is invoked. The
// decoded call is available through CallFromContext.
//
// Middleware that rejects a call should store a payload error or a fault in
// res. It is not valid to access req or modify res after Handle returns.
type Middleware interface {
	Handle(ctx context.Context, req transport.ImmutableMessage, res transport.Message)
}

// The MiddlewareFunc type is an adapter to allow the use of ordinary
// functions as middleware.
type MiddlewareFunc func(ctx context.Context, req transport.ImmutableMessage, res transport.Message)

// Handle calls f(ctx, req, res).
func (f MiddlewareFunc) Handle(ctx context.Context, req transport.ImmutableMessage, res transport.Message) {
	f(ctx, req, res)
}

var (
	globalMiddlewareMutex     sync.Mutex
	globalMiddlewareFactories []MiddlewareFactory
)

// RegisterGlobalMiddleware appends one or more factories to the global set
// of middleware that wraps the handlers of servers created afterwards.
func RegisterGlobalMiddleware(factories ...MiddlewareFactory) {
	globalMiddlewareMutex.Lock()
	defer globalMiddlewareMutex.Unlock()

	globalMiddlewareFactories = append(globalMiddlewareFactories, factories...)
}

// ClearGlobalMiddleware clears the list of global middleware.
func ClearGlobalMiddleware() {
	globalMiddlewareMutex.Lock()
	defer globalMiddlewareMutex.Unlock()

	globalMiddlewareFactories = nil
}

// buildChain wraps the service handler with the server middleware followed
// by the global middleware. Given global factories [g1, g2] and server
// factories [f1, f2] the chain is g1(g2(f1(f2(handler)))). Nil factories
// are skipped.
func (s *Server) buildChain() Middleware {
	globalMiddlewareMutex.Lock()
	factories := append(append([]MiddlewareFactory(nil), globalMiddlewareFactories...), s.factories...)
	globalMiddlewareMutex.Unlock()

	var chain Middleware = MiddlewareFunc(s.invoke)
	for index := len(factories) - 1; index >= 0; index-- {
		if factories[index] == nil {
			continue
		}
		chain = factories[index](chain)
	}
	return chain
}
