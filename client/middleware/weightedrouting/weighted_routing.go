// Package weightedrouting provides client middleware that spreads calls
// across a set of service endpoints according to weights held in the
// configuration store.
//
// Weights are read from the keys under "weighted_router/$name" and can be
// changed at runtime by any store provider, which makes the middleware
// suitable for blue-green deployments and canary releases.
package weightedrouting

import (
	"context"
	"math/rand"
	"net/url"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/achilleasa/hessian2/client"
	"github.com/achilleasa/hessian2/config"
	"github.com/achilleasa/hessian2/config/flag"
	"github.com/achilleasa/hessian2/transport"
)

// Values overwritten by tests
var (
	setFinalizer = runtime.SetFinalizer
	randFloat32  = rand.Float32
	cfgStore     = &config.Store
)

// Factory returns a middleware factory for the routing group name. targets
// maps target names to endpoint URLs; each key under
// "weighted_router/$name" names a target and holds its weight (0 to 1.0).
// Weights should add up to 1.0.
//
// For example, to send 30% of the traffic for group "billing" to the canary
// host and the rest to the stable one:
//
//	targets: {"stable": "http://billing-v1:8080", "canary": "http://billing-v2:8080"}
//	weighted_router/billing/stable -> "0.7"
//	weighted_router/billing/canary -> "0.3"
//
// Targets without a path keep the path of the client endpoint. Targets
// must use a scheme served by the client's transport. Calls that fall outside
// the configured weights keep their original endpoint.
func Factory(name string, targets map[string]string) client.MiddlewareFactory {
	parsed := make(map[string]*url.URL, len(targets))
	for target, rawURL := range targets {
		u, err := url.Parse(rawURL)
		if err != nil {
			log.Warn().Str("group", name).Str("target", target).Err(err).Msg("weighted_router: ignoring target")
			continue
		}
		parsed[target] = u
	}

	return func(_ string) client.Middleware {
		return newRouter(name, parsed)
	}
}

type route struct {
	target   *url.URL
	weight   float32
	fullPath bool
}

// router is a client middleware that rewrites the endpoint of outgoing calls
// using a routing table built from a dynamic map flag.
type router struct {
	name    string
	targets map[string]*url.URL

	mutex  sync.RWMutex
	routes []route

	weightCfg *flag.MapFlag
	doneChan  chan struct{}
}

func newRouter(name string, targets map[string]*url.URL) *router {
	wr := &router{
		name:      name,
		targets:   targets,
		weightCfg: flag.NewMap(cfgStore, "weighted_router/"+name),
		doneChan:  make(chan struct{}),
	}

	wr.updateWeights()
	wr.spawnChangeMonitor()
	setFinalizer(wr, func(wr *router) { close(wr.doneChan) })

	return wr
}

func (wr *router) spawnChangeMonitor() {
	go func() {
		for {
			select {
			case <-wr.doneChan:
				wr.weightCfg.CancelDynamicUpdates()
				return
			case <-wr.weightCfg.ChangeChan():
				wr.updateWeights()
			}
		}
	}()
}

// updateWeights rebuilds the routing table. Routes are ordered by target
// name so that a given random sample always selects the same target.
func (wr *router) updateWeights() {
	var cfg map[string]string
	if wr.weightCfg.HasValue() {
		cfg = wr.weightCfg.Get()
	}

	names := make([]string, 0, len(cfg))
	for target := range cfg {
		names = append(names, target)
	}
	sort.Strings(names)

	routes := make([]route, 0, len(names))
	for _, target := range names {
		u, known := wr.targets[target]
		if !known {
			continue
		}
		weight, err := strconv.ParseFloat(cfg[target], 32)
		if err != nil || weight <= 0 {
			continue
		}
		routes = append(routes, route{
			target:   u,
			weight:   float32(weight),
			fullPath: u.Path != "" && u.Path != "/",
		})
	}

	wr.mutex.Lock()
	wr.routes = routes
	wr.mutex.Unlock()
}

// Pre points the request at a randomly selected target.
func (wr *router) Pre(ctx context.Context, req transport.Message) (context.Context, error) {
	prob := randFloat32()

	wr.mutex.RLock()
	defer wr.mutex.RUnlock()

	var probIntegral float32
	for _, r := range wr.routes {
		probIntegral += r.weight
		if prob < probIntegral {
			req.SetEndpoint(r.endpointFor(req.Endpoint()))
			break
		}
	}

	return ctx, nil
}

// Post is a no-op.
func (wr *router) Post(_ context.Context, _, _ transport.ImmutableMessage) {
}

func (r route) endpointFor(endpoint string) string {
	if r.fullPath {
		return r.target.String()
	}

	u := *r.target
	if orig, err := url.Parse(endpoint); err == nil {
		u.Path, u.RawPath = orig.Path, orig.RawPath
		u.RawQuery = orig.RawQuery
	}
	return u.String()
}
