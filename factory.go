// Package hessian2 maps endpoint URL schemes to the transports used by
// clients and servers.
package hessian2

import (
	"sort"
	"strings"
	"sync"

	"github.com/achilleasa/hessian2/transport"
	"github.com/achilleasa/hessian2/transport/amqp"
	"github.com/achilleasa/hessian2/transport/http"
	"github.com/achilleasa/hessian2/transport/memory"
)

var (
	// DefaultTransportFactory returns the transport used by servers that
	// are not configured with one. It is set to return the shared HTTP
	// transport instance.
	DefaultTransportFactory transport.ProviderFactory

	schemeMutex     sync.RWMutex
	schemeFactories = make(map[string]transport.ProviderFactory)
)

// RegisterTransport associates an endpoint URL scheme with a transport
// factory. Registering a scheme twice replaces the earlier factory.
func RegisterTransport(scheme string, factory transport.ProviderFactory) {
	schemeMutex.Lock()
	defer schemeMutex.Unlock()

	schemeFactories[strings.ToLower(scheme)] = factory
}

// TransportFor returns the transport factory registered for scheme.
func TransportFor(scheme string) (transport.ProviderFactory, bool) {
	schemeMutex.RLock()
	defer schemeMutex.RUnlock()

	factory, exists := schemeFactories[strings.ToLower(scheme)]
	return factory, exists
}

// Schemes returns the sorted list of registered endpoint URL schemes.
func Schemes() []string {
	schemeMutex.RLock()
	defer schemeMutex.RUnlock()

	schemes := make([]string, 0, len(schemeFactories))
	for scheme := range schemeFactories {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

func init() {
	DefaultTransportFactory = http.SingletonFactory

	RegisterTransport("http", http.SingletonFactory)
	RegisterTransport("https", http.SingletonFactory)
	RegisterTransport("amqp", amqp.SingletonFactory)
	RegisterTransport("memory", memory.SingletonFactory)
}
