// Package server implements a Hessian RPC server.
package server

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/achilleasa/hessian2"
	"github.com/achilleasa/hessian2/encoding/hessian"
	"github.com/achilleasa/hessian2/transport"
)

// Fault codes used for failures detected by the server itself.
const (
	ProtocolFaultCode     = "ProtocolException"
	NoSuchMethodFaultCode = "NoSuchMethodException"
)

type ctxKey int

const (
	ctxKeyPath ctxKey = iota
	ctxKeyCall
)

var (
	errServeAlreadyCalled = errors.New("server is already listening for incoming requests")
	errMissingHandler     = errors.New("server handler cannot be nil")
)

// Handler is implemented by services exposed through a server.
//
// Invoke runs method with the decoded call arguments. The returned value is
// sent back in a reply envelope; errors are sent back as faults. Errors that
// implement hessian.FaultCoder choose the fault code, all others are
// reported as hessian.GenericFaultCode.
type Handler interface {
	Invoke(ctx context.Context, method string, args []interface{}) (interface{}, error)
}

// The HandlerFunc type is an adapter to allow the use of ordinary functions
// as service handlers.
type HandlerFunc func(ctx context.Context, method string, args []interface{}) (interface{}, error)

// Invoke calls f(ctx, method, args).
func (f HandlerFunc) Invoke(ctx context.Context, method string, args []interface{}) (interface{}, error) {
	return f(ctx, method, args)
}

// A PanicHandler is invoked by the server when a panic is recovered while
// processing an incoming call.
type PanicHandler func(error)

// Server exposes a Handler at an endpoint path of a transport.
//
// Unless overridden with the WithTransport option, the server uses
// hessian2.DefaultTransportFactory to obtain a transport. Panics raised
// while a call is processed are recovered, reported to the panic handler
// and returned to the caller as faults.
type Server struct {
	mutex sync.Mutex

	path         string
	handler      Handler
	transport    transport.Provider
	panicHandler PanicHandler
	logger       zerolog.Logger

	factories []MiddlewareFactory
	chain     Middleware

	doneChan chan struct{}
}

// New creates a server exposing handler at path and applies any supplied
// options.
func New(path string, handler Handler, options ...Option) (*Server, error) {
	if handler == nil {
		return nil, errMissingHandler
	}

	s := &Server{
		path:    transport.EndpointPath(path),
		handler: handler,
		logger:  log.Logger,
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.setDefaults()
	s.chain = s.buildChain()

	return s, nil
}

// Path returns the endpoint path served by the server.
func (s *Server) Path() string {
	return s.path
}

// Listen binds the server to its transport and serves incoming calls.
//
// Calls to Listen block until Close is invoked.
func (s *Server) Listen() error {
	s.mutex.Lock()

	if s.doneChan != nil {
		s.mutex.Unlock()
		return errServeAlreadyCalled
	}

	if err := s.transport.Bind(s.path, s); err != nil {
		s.mutex.Unlock()
		return err
	}

	if err := s.transport.Dial(transport.ModeServer); err != nil {
		s.transport.Unbind(s.path)
		s.mutex.Unlock()
		return err
	}

	s.doneChan = make(chan struct{})
	s.mutex.Unlock()

	s.logger.Info().Str("path", s.path).Msg("server_listen")

	// Wait for a stop signal
	<-s.doneChan

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.transport.Unbind(s.path)
	s.transport.Close(transport.ModeServer)
	s.logger.Info().Str("path", s.path).Msg("server_close")

	// Ack the close request
	s.doneChan <- struct{}{}
	return nil
}

// Close shuts down a listening server and unblocks Listen. Calling Close on
// a server that is not listening has no effect.
func (s *Server) Close() {
	s.mutex.Lock()
	if s.doneChan == nil {
		s.mutex.Unlock()
		return
	}

	s.doneChan <- struct{}{}
	s.mutex.Unlock()

	<-s.doneChan

	s.mutex.Lock()
	defer s.mutex.Unlock()
	close(s.doneChan)
	s.doneChan = nil
}

// Process implements transport.Handler. It decodes the call envelope in req,
// runs it through the middleware chain and the service handler and stores a
// reply or fault envelope in res.
func (s *Server) Process(req transport.ImmutableMessage, res transport.Message) {
	defer func() {
		if r := recover(); r != nil {
			var err error
			switch errVal := r.(type) {
			case error:
				err = errVal
			default:
				err = errors.New(fmt.Sprint(errVal))
			}
			s.panicHandler(err)
			s.writeFault(res, fmt.Errorf("recovered from panic: %w", err))
		}
	}()

	payload, err := req.Payload()
	if err != nil {
		s.writeFault(res, err)
		return
	}

	call, err := hessian.DecodeCall(payload)
	if err != nil {
		s.writeFault(res, &hessian.Fault{Code: ProtocolFaultCode, Message: err.Error()})
		return
	}

	ctx := context.WithValue(context.Background(), ctxKeyPath, s.path)
	ctx = context.WithValue(ctx, ctxKeyCall, call)
	s.chain.Handle(ctx, req, res)
}

// invoke is the innermost middleware of every chain.
func (s *Server) invoke(ctx context.Context, _ transport.ImmutableMessage, res transport.Message) {
	call, _ := ctx.Value(ctxKeyCall).(*hessian.Call)

	reply, err := s.handler.Invoke(ctx, call.Method, call.Args)
	if err != nil {
		s.writeFault(res, err)
		return
	}

	data, err := hessian.EncodeReply(reply)
	if err != nil {
		s.writeFault(res, err)
		return
	}

	res.SetPayload(data, nil)
}

// writeFault stores a fault envelope describing err in res.
func (s *Server) writeFault(res transport.Message, err error) {
	data, encErr := hessian.EncodeError(err)
	if encErr != nil {
		// The fault detail could not be encoded; drop it.
		code := hessian.GenericFaultCode
		var coder hessian.FaultCoder
		if errors.As(err, &coder) && coder.FaultCode() != "" {
			code = coder.FaultCode()
		}
		data, _ = hessian.EncodeFault(code, err.Error(), nil)
	}

	s.logger.Debug().Str("path", s.path).Err(err).Msg("hessian_fault")

	res.SetHeader(transport.HeaderFault, "true")
	res.SetHeader(transport.HeaderContentType, hessian.ContentType)
	res.SetPayload(data, nil)
}

func (s *Server) setDefaults() {
	if s.transport == nil {
		s.transport = hessian2.DefaultTransportFactory()
	}

	if s.panicHandler == nil {
		s.panicHandler = s.defaultPanicHandler
	}
}

// defaultPanicHandler logs the recovered error together with the stack of
// the panicking goroutine.
func (s *Server) defaultPanicHandler(err error) {
	stackBuf := make([]byte, 4096)
	n := runtime.Stack(stackBuf, false)

	s.logger.Error().
		Str("path", s.path).
		Err(err).
		Str("stack", string(stackBuf[:n])).
		Msg("recovered from panic")
}

// PathFromContext returns the endpoint path of the server processing the
// call associated with ctx.
func PathFromContext(ctx context.Context) string {
	path, _ := ctx.Value(ctxKeyPath).(string)
	return path
}

// CallFromContext returns the decoded call associated with ctx.
func CallFromContext(ctx context.Context) *hessian.Call {
	call, _ := ctx.Value(ctxKeyCall).(*hessian.Call)
	return call
}
