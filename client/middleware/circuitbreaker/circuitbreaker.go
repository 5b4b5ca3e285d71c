// Package circuitbreaker provides client middleware that stops calling a
// failing service for a while.
//
// The breaker is a state machine with three states:
//
//   - Closed. Calls pass through and errors listed in TripErrors are
//     counted. Once TripThreshold errors accumulate the breaker opens.
//   - Open. Calls fail immediately with the configured error. After the
//     cool-off period the next call moves the breaker to half-open.
//   - HalfOpen. Calls pass through as probes. ResetThreshold consecutive
//     successes close the breaker again; any failure reopens it.
//
// Remote faults are responses, not transport failures, and never trip the
// breaker.
package circuitbreaker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/achilleasa/hessian2/client"
	"github.com/achilleasa/hessian2/config/flag"
	"github.com/achilleasa/hessian2/transport"
)

// State represents the circuit-breaker state.
type State int8

// The possible circuit-breaker states.
const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// SingletonFactory returns a middleware factory whose clients all share a
// single breaker.
func SingletonFactory(cfg Config) client.MiddlewareFactory {
	var (
		once sync.Once
		cb   *circuitBreaker
	)
	return func(endpoint string) client.Middleware {
		once.Do(func() { cb = newCircuitBreaker(endpoint, cfg) })
		return cb
	}
}

// Factory returns a middleware factory that creates a new breaker for each
// client.
func Factory(cfg Config) client.MiddlewareFactory {
	return func(endpoint string) client.Middleware {
		return newCircuitBreaker(endpoint, cfg)
	}
}

var _ client.Middleware = (*circuitBreaker)(nil)

type circuitBreaker struct {
	endpoint        string
	logger          zerolog.Logger
	openError       error
	tripErrors      []error
	tripThreshold   *flag.Uint32Flag
	resetThreshold  *flag.Uint32Flag
	coolOffPeriod   *flag.DurationFlag
	stateChangeChan chan<- State

	mutex            sync.Mutex
	curState         State
	trippedAt        time.Time
	trackedErrors    uint32
	trackedSuccesses uint32
}

func newCircuitBreaker(endpoint string, cfg Config) *circuitBreaker {
	cb := &circuitBreaker{
		endpoint:        endpoint,
		logger:          log.Logger,
		tripErrors:      cfg.GetTripErrors(),
		openError:       cfg.GetOpenError(),
		tripThreshold:   cfg.GetTripThreshold(),
		resetThreshold:  cfg.GetResetThreshold(),
		coolOffPeriod:   cfg.GetCoolOffPeriod(),
		stateChangeChan: cfg.GetStateChangeChan(),
	}

	if logger := cfg.GetLogger(); logger != nil {
		cb.logger = *logger
	}
	if !cb.tripThreshold.HasValue() {
		cb.tripThreshold.Set(DefaultTripThreshold)
	}
	if !cb.resetThreshold.HasValue() {
		cb.resetThreshold.Set(DefaultResetThreshold)
	}
	if !cb.coolOffPeriod.HasValue() || cb.coolOffPeriod.Get() <= 0 {
		cb.coolOffPeriod.Set(DefaultCoolOffPeriod)
	}
	if cb.openError == nil {
		cb.openError = transport.ErrServiceUnavailable
	}
	if cb.tripErrors == nil {
		cb.tripErrors = DefaultTripErrors
	}

	return cb
}

// Pre fails the call while the breaker is open and the cool-off period has
// not elapsed yet.
func (cb *circuitBreaker) Pre(ctx context.Context, _ transport.Message) (context.Context, error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.curState == Open {
		if time.Since(cb.trippedAt) < cb.coolOffPeriod.Get() {
			return ctx, cb.openError
		}

		cb.trackedSuccesses = 0
		cb.setState(HalfOpen)
	}

	return ctx, nil
}

// Post tracks the call outcome.
func (cb *circuitBreaker) Post(_ context.Context, _, res transport.ImmutableMessage) {
	_, err := res.Payload()

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch {
	case cb.curState == Closed && cb.trackError(err):
		cb.trackedErrors++
		if cb.trackedErrors < cb.tripThreshold.Get() {
			return
		}
		cb.trippedAt = time.Now()
		cb.setState(Open)
	case cb.curState == HalfOpen && err != nil:
		cb.trippedAt = time.Now()
		cb.setState(Open)
	case cb.curState == HalfOpen && err == nil:
		cb.trackedSuccesses++
		if cb.trackedSuccesses < cb.resetThreshold.Get() {
			return
		}
		cb.trackedErrors = 0
		cb.setState(Closed)
	}
}

// setState must be called while holding the mutex.
func (cb *circuitBreaker) setState(state State) {
	prevState := cb.curState
	cb.curState = state

	ev := cb.logger.Info()
	if state == Open {
		ev = cb.logger.Warn()
	}
	ev.Str("endpoint", cb.endpoint).
		Stringer("from", prevState).
		Stringer("to", state).
		Msg("circuit_breaker")

	if cb.stateChangeChan != nil {
		select {
		case cb.stateChangeChan <- state:
		default:
		}
	}
}

// trackError reports whether err counts towards tripping the breaker.
func (cb *circuitBreaker) trackError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	for _, tripErr := range cb.tripErrors {
		if errors.Is(err, tripErr) || strings.Contains(errMsg, strings.ToLower(tripErr.Error())) {
			return true
		}
	}
	return false
}
