package server

import (
	"github.com/rs/zerolog"

	"github.com/achilleasa/hessian2/transport"
)

// Option applies a configuration option to a server instance.
type Option func(s *Server) error

// WithTransport configures the server to use a specific transport instead
// of the default transport.
func WithTransport(transport transport.Provider) Option {
	return func(s *Server) error {
		s.transport = transport
		return nil
	}
}

// WithPanicHandler configures the server to use a user-defined panic handler.
func WithPanicHandler(handler PanicHandler) Option {
	return func(s *Server) error {
		s.panicHandler = handler
		return nil
	}
}

// WithMiddleware appends server-specific middleware. It runs after any
// globally registered middleware.
func WithMiddleware(factories ...MiddlewareFactory) Option {
	return func(s *Server) error {
		s.factories = append(s.factories, factories...)
		return nil
	}
}

// WithLogger sets the logger used by the server and its default panic
// handler.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}
