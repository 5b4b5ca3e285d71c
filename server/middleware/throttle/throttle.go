// Package throttle provides server middleware that limits the number of
// calls processed concurrently using a token pool.
//
// Calls block until a token can be acquired or the acquisition timeout
// expires. In the latter case the call fails with transport.ErrTimeout.
package throttle

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/achilleasa/hessian2/config/flag"
	"github.com/achilleasa/hessian2/server"
	"github.com/achilleasa/hessian2/transport"
)

// Values overwritten by tests
var setFinalizer = runtime.SetFinalizer

// SingletonFactory returns a middleware factory whose middleware instances
// all share a single token pool.
func SingletonFactory(cfg Config) server.MiddlewareFactory {
	l := newLimiter(cfg)
	return l.wrap
}

// Factory returns a middleware factory that gives each server its own token
// pool.
func Factory(cfg Config) server.MiddlewareFactory {
	return func(next server.Middleware) server.Middleware {
		return newLimiter(cfg).wrap(next)
	}
}

// FromConfig returns a middleware factory with a shared token pool sized by
// the "server/maxconcurrent" and "server/timeout" keys of the global store.
func FromConfig() server.MiddlewareFactory {
	return SingletonFactory(&DynamicConfig{})
}

// tokenPool is replaced as a whole when the concurrency limit changes; calls
// return their token to the pool they took it from. A nil tokens channel
// means no limit.
type tokenPool struct {
	tokens chan struct{}
}

type limiter struct {
	maxConcurrent *flag.Uint32Flag
	timeout       *flag.DurationFlag
	pool          *atomic.Value
	doneChan      chan struct{}
}

func newLimiter(cfg Config) *limiter {
	l := &limiter{
		maxConcurrent: cfg.GetMaxConcurrent(),
		timeout:       cfg.GetTimeout(),
		pool:          &atomic.Value{},
		doneChan:      make(chan struct{}),
	}

	if !l.maxConcurrent.HasValue() {
		l.maxConcurrent.Set(0)
	}
	if !l.timeout.HasValue() {
		l.timeout.Set(DefaultTimeout)
	}

	resize(l.pool, l.maxConcurrent.Get())
	go watchLimit(l.maxConcurrent, l.pool, l.doneChan)
	setFinalizer(l, func(l *limiter) { close(l.doneChan) })

	return l
}

// watchLimit swaps the token pool whenever the concurrency limit changes. It
// must not reference the limiter so that the finalizer can stop it.
func watchLimit(maxConcurrent *flag.Uint32Flag, pool *atomic.Value, doneChan chan struct{}) {
	for {
		select {
		case <-doneChan:
			maxConcurrent.CancelDynamicUpdates()
			return
		case <-maxConcurrent.ChangeChan():
			resize(pool, maxConcurrent.Get())
		}
	}
}

func resize(pool *atomic.Value, maxConcurrent uint32) {
	p := pool.Load()
	if p != nil && cap(p.(*tokenPool).tokens) == int(maxConcurrent) {
		return
	}
	pool.Store(&tokenPool{tokens: genTokens(int(maxConcurrent))})
}

// genTokens returns a channel holding count tokens or nil when count is 0.
func genTokens(count int) chan struct{} {
	if count <= 0 {
		return nil
	}
	tokens := make(chan struct{}, count)
	for i := 0; i < count; i++ {
		tokens <- struct{}{}
	}
	return tokens
}

func (l *limiter) wrap(next server.Middleware) server.Middleware {
	return server.MiddlewareFunc(func(ctx context.Context, req transport.ImmutableMessage, res transport.Message) {
		p := l.pool.Load().(*tokenPool)
		if p.tokens == nil {
			next.Handle(ctx, req, res)
			return
		}

		if acquire(ctx, p.tokens, l.timeout.Get()) {
			// Make sure we return the token even if next.Handle panics
			defer func() { p.tokens <- struct{}{} }()
			next.Handle(ctx, req, res)
			return
		}

		log.Debug().
			Str("path", server.PathFromContext(ctx)).
			Int("max_concurrent", cap(p.tokens)).
			Msg("throttle_reject")
		res.SetPayload(nil, transport.ErrTimeout)
	})
}

func acquire(ctx context.Context, tokens chan struct{}, timeout time.Duration) bool {
	select {
	case <-tokens:
		return true
	default:
	}

	if timeout <= 0 {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-tokens:
		return true
	case <-timer.C:
	case <-ctx.Done():
	}
	return false
}
