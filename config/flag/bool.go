package flag

import (
	"errors"
	"strings"

	"github.com/achilleasa/hessian2/config/store"
)

var errNotBoolean = errors.New("not a boolean value")

// BoolFlag is a thread-safe boolean flag. Configuration values "true" and "1"
// map to true and "false" and "0" map to false, ignoring case.
type BoolFlag struct {
	flagImpl
}

// NewBool creates a bool flag. When cfgPath is not empty the flag follows that
// key in s until CancelDynamicUpdates is called.
func NewBool(s *store.Store, cfgPath string) *BoolFlag {
	f := &BoolFlag{}
	f.init(s, f.mapCfgValue, cfgPath)
	return f
}

// Get returns the flag value, blocking until one is available.
func (f *BoolFlag) Get() bool {
	return f.get().(bool)
}

// Set updates the flag value.
func (f *BoolFlag) Set(val bool) {
	f.set(val)
}

func (f *BoolFlag) mapCfgValue(cfg map[string]string) (interface{}, error) {
	switch strings.ToLower(strings.TrimSpace(firstMapElement(cfg))) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return nil, errNotBoolean
	}
}
