// Package encoding defines interfaces shared by other packages that are used by
// hessian2 servers, clients and tools to encode and decode values into a
// byte-level format suitable for transmitting over a transport.
//
// Codec implementations register themselves by name when their package is
// imported so that tools can select them at runtime.
package encoding

import (
	"errors"
	"sort"
	"sync"
)

// ErrUnknownCodec is returned by Lookup for names that no codec registered.
var ErrUnknownCodec = errors.New("unknown codec")

// Marshaler is the interface implemented by objects that can produce a byte
// representation of another object.
type Marshaler func(interface{}) ([]byte, error)

// Unmarshaler is the interface implemented by objects that can unmarshal a byte
// representation of an object into an object instance.
type Unmarshaler func([]byte, interface{}) error

// Codec is implemented by objects that can produce marshalers and unmarshalers
// for a given object type.
//
// Name returns the name the codec is registered under.
//
// ContentType returns the media type of the codec output.
//
// Marshaler returns a Marshaler implementation that can marshal instances of a
// particular type into a byte slice.
//
// Unmarshaler returns a Unmarshaler implementation that can unmarshal instances
// of a particular type from a byte slice.
type Codec interface {
	Name() string
	ContentType() string
	Marshaler() Marshaler
	Unmarshaler() Unmarshaler
}

var (
	registryMutex sync.RWMutex
	registry      = make(map[string]func() Codec)
)

// Register makes a codec factory available under the name of the codec it
// returns. Registering the same name twice replaces the earlier factory.
func Register(factory func() Codec) {
	name := factory().Name()

	registryMutex.Lock()
	registry[name] = factory
	registryMutex.Unlock()
}

// Lookup returns a new instance of the named codec.
func Lookup(name string) (Codec, error) {
	registryMutex.RLock()
	factory, exists := registry[name]
	registryMutex.RUnlock()

	if !exists {
		return nil, ErrUnknownCodec
	}
	return factory(), nil
}

// Names returns the sorted names of all registered codecs.
func Names() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
