package flag

import (
	"reflect"

	"github.com/achilleasa/hessian2/config/store"
)

// MapFlag is a thread-safe flag holding every value below a configuration
// path, keyed by the path relative to it.
type MapFlag struct {
	flagImpl
}

// NewMap creates a map flag. When cfgPath is not empty the flag follows the
// subtree rooted at that key in s until CancelDynamicUpdates is called.
func NewMap(s *store.Store, cfgPath string) *MapFlag {
	f := &MapFlag{}
	f.checkEquality = reflect.DeepEqual
	f.init(s, f.mapCfgValue, cfgPath)
	return f
}

// Get returns the flag value, blocking until one is available.
func (f *MapFlag) Get() map[string]string {
	return f.get().(map[string]string)
}

// Set updates the flag value.
func (f *MapFlag) Set(val map[string]string) {
	f.set(val)
}

func (f *MapFlag) mapCfgValue(cfg map[string]string) (interface{}, error) {
	return cfg, nil
}
