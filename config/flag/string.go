package flag

import "github.com/achilleasa/hessian2/config/store"

// StringFlag is a thread-safe string flag.
type StringFlag struct {
	flagImpl
}

// NewString creates a string flag. When cfgPath is not empty the flag follows
// that key in s until CancelDynamicUpdates is called.
func NewString(s *store.Store, cfgPath string) *StringFlag {
	f := &StringFlag{}
	f.init(s, f.mapCfgValue, cfgPath)
	return f
}

// Get returns the flag value, blocking until one is available.
func (f *StringFlag) Get() string {
	return f.get().(string)
}

// Set updates the flag value.
func (f *StringFlag) Set(val string) {
	f.set(val)
}

func (f *StringFlag) mapCfgValue(cfg map[string]string) (interface{}, error) {
	return firstMapElement(cfg), nil
}
