package flag

import (
	"strconv"

	"github.com/achilleasa/hessian2/config/store"
)

// Float32Flag is a thread-safe float32 flag.
type Float32Flag struct {
	flagImpl
}

// NewFloat32 creates a float32 flag. When cfgPath is not empty the flag
// follows that key in s until CancelDynamicUpdates is called.
func NewFloat32(s *store.Store, cfgPath string) *Float32Flag {
	f := &Float32Flag{}
	f.init(s, f.mapCfgValue, cfgPath)
	return f
}

// Get returns the flag value, blocking until one is available.
func (f *Float32Flag) Get() float32 {
	return f.get().(float32)
}

// Set updates the flag value.
func (f *Float32Flag) Set(val float32) {
	f.set(val)
}

func (f *Float32Flag) mapCfgValue(cfg map[string]string) (interface{}, error) {
	v, err := strconv.ParseFloat(firstMapElement(cfg), 32)
	if err != nil {
		return nil, err
	}
	return float32(v), nil
}

// Float64Flag is a thread-safe float64 flag.
type Float64Flag struct {
	flagImpl
}

// NewFloat64 creates a float64 flag. When cfgPath is not empty the flag
// follows that key in s until CancelDynamicUpdates is called.
func NewFloat64(s *store.Store, cfgPath string) *Float64Flag {
	f := &Float64Flag{}
	f.init(s, f.mapCfgValue, cfgPath)
	return f
}

// Get returns the flag value, blocking until one is available.
func (f *Float64Flag) Get() float64 {
	return f.get().(float64)
}

// Set updates the flag value.
func (f *Float64Flag) Set(val float64) {
	f.set(val)
}

func (f *Float64Flag) mapCfgValue(cfg map[string]string) (interface{}, error) {
	return strconv.ParseFloat(firstMapElement(cfg), 64)
}
