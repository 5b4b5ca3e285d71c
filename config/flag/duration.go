package flag

import (
	"time"

	"github.com/achilleasa/hessian2/config/store"
)

// DurationFlag is a thread-safe time.Duration flag. Configuration values use
// the time.ParseDuration syntax ("250ms", "5s").
type DurationFlag struct {
	flagImpl
}

// NewDuration creates a duration flag. When cfgPath is not empty the flag
// follows that key in s until CancelDynamicUpdates is called.
func NewDuration(s *store.Store, cfgPath string) *DurationFlag {
	f := &DurationFlag{}
	f.init(s, f.mapCfgValue, cfgPath)
	return f
}

// Get returns the flag value, blocking until one is available.
func (f *DurationFlag) Get() time.Duration {
	return f.get().(time.Duration)
}

// Set updates the flag value.
func (f *DurationFlag) Set(val time.Duration) {
	f.set(val)
}

func (f *DurationFlag) mapCfgValue(cfg map[string]string) (interface{}, error) {
	return time.ParseDuration(firstMapElement(cfg))
}
