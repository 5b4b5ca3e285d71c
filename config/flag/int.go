package flag

import (
	"strconv"

	"github.com/achilleasa/hessian2/config/store"
)

// Uint32Flag is a thread-safe uint32 flag.
type Uint32Flag struct {
	flagImpl
}

// NewUint32 creates a uint32 flag. When cfgPath is not empty the flag follows
// that key in s until CancelDynamicUpdates is called.
func NewUint32(s *store.Store, cfgPath string) *Uint32Flag {
	f := &Uint32Flag{}
	f.init(s, f.mapCfgValue, cfgPath)
	return f
}

// Get returns the flag value, blocking until one is available.
func (f *Uint32Flag) Get() uint32 {
	return f.get().(uint32)
}

// Set updates the flag value.
func (f *Uint32Flag) Set(val uint32) {
	f.set(val)
}

func (f *Uint32Flag) mapCfgValue(cfg map[string]string) (interface{}, error) {
	v, err := strconv.ParseUint(firstMapElement(cfg), 10, 32)
	if err != nil {
		return nil, err
	}
	return uint32(v), nil
}

// Int32Flag is a thread-safe int32 flag.
type Int32Flag struct {
	flagImpl
}

// NewInt32 creates an int32 flag. When cfgPath is not empty the flag follows
// that key in s until CancelDynamicUpdates is called.
func NewInt32(s *store.Store, cfgPath string) *Int32Flag {
	f := &Int32Flag{}
	f.init(s, f.mapCfgValue, cfgPath)
	return f
}

// Get returns the flag value, blocking until one is available.
func (f *Int32Flag) Get() int32 {
	return f.get().(int32)
}

// Set updates the flag value.
func (f *Int32Flag) Set(val int32) {
	f.set(val)
}

func (f *Int32Flag) mapCfgValue(cfg map[string]string) (interface{}, error) {
	v, err := strconv.ParseInt(firstMapElement(cfg), 10, 32)
	if err != nil {
		return nil, err
	}
	return int32(v), nil
}

// Uint64Flag is a thread-safe uint64 flag.
type Uint64Flag struct {
	flagImpl
}

// NewUint64 creates a uint64 flag. When cfgPath is not empty the flag follows
// that key in s until CancelDynamicUpdates is called.
func NewUint64(s *store.Store, cfgPath string) *Uint64Flag {
	f := &Uint64Flag{}
	f.init(s, f.mapCfgValue, cfgPath)
	return f
}

// Get returns the flag value, blocking until one is available.
func (f *Uint64Flag) Get() uint64 {
	return f.get().(uint64)
}

// Set updates the flag value.
func (f *Uint64Flag) Set(val uint64) {
	f.set(val)
}

func (f *Uint64Flag) mapCfgValue(cfg map[string]string) (interface{}, error) {
	return strconv.ParseUint(firstMapElement(cfg), 10, 64)
}

// Int64Flag is a thread-safe int64 flag.
type Int64Flag struct {
	flagImpl
}

// NewInt64 creates an int64 flag. When cfgPath is not empty the flag follows
// that key in s until CancelDynamicUpdates is called.
func NewInt64(s *store.Store, cfgPath string) *Int64Flag {
	f := &Int64Flag{}
	f.init(s, f.mapCfgValue, cfgPath)
	return f
}

// Get returns the flag value, blocking until one is available.
func (f *Int64Flag) Get() int64 {
	return f.get().(int64)
}

// Set updates the flag value.
func (f *Int64Flag) Set(val int64) {
	f.set(val)
}

func (f *Int64Flag) mapCfgValue(cfg map[string]string) (interface{}, error) {
	return strconv.ParseInt(firstMapElement(cfg), 10, 64)
}
