package circuitbreaker

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/achilleasa/hessian2/config"
	"github.com/achilleasa/hessian2/config/flag"
	"github.com/achilleasa/hessian2/config/store"
	"github.com/achilleasa/hessian2/transport"
)

var (
	// DefaultTripErrors is used when a configuration does not list any trip
	// errors. Timeouts, unavailable services and recovered server panics
	// count towards tripping the breaker.
	DefaultTripErrors = []error{
		transport.ErrServiceUnavailable,
		transport.ErrTimeout,
		errors.New("recovered from panic"),
	}

	// DefaultCoolOffPeriod is used when a configuration does not provide a
	// positive cool-off period.
	DefaultCoolOffPeriod = 1 * time.Second
)

// Thresholds used when a configuration leaves them undefined.
const (
	DefaultTripThreshold  uint32 = 5
	DefaultResetThreshold uint32 = 1
)

// Config is implemented by objects that can be passed to the breaker
// factories.
//
// GetOpenError returns the error that aborts calls while the breaker is
// open. GetTripErrors lists the errors that count towards tripping it.
// GetTripThreshold and GetResetThreshold return the number of tracked errors
// that open the breaker and the number of half-open successes that close it.
// GetCoolOffPeriod returns the time an open breaker waits before probing.
// GetStateChangeChan returns an optional channel receiving state changes
// and GetLogger an optional logger for them.
type Config interface {
	GetOpenError() error
	GetTripErrors() []error
	GetTripThreshold() *flag.Uint32Flag
	GetCoolOffPeriod() *flag.DurationFlag
	GetResetThreshold() *flag.Uint32Flag
	GetStateChangeChan() chan<- State
	GetLogger() *zerolog.Logger
}

// StaticConfig defines a fixed breaker configuration. Zero thresholds and
// periods select the package defaults.
type StaticConfig struct {
	// The error returned while the breaker is open. Defaults to
	// transport.ErrServiceUnavailable.
	OpenError error

	// Errors that count towards tripping the breaker. A response error
	// matches when errors.Is succeeds or when its message contains the
	// message of a trip error (case-insensitive). Defaults to
	// DefaultTripErrors.
	TripErrors []error

	TripThreshold  uint32
	ResetThreshold uint32
	CoolOffPeriod  time.Duration

	// Receives the new state on every transition. Writes are non-blocking;
	// state changes are dropped when nobody is listening.
	StateChangeChan chan<- State

	Logger *zerolog.Logger
}

func (c *StaticConfig) GetOpenError() error { return c.OpenError }

func (c *StaticConfig) GetTripErrors() []error { return c.TripErrors }

func (c *StaticConfig) GetTripThreshold() *flag.Uint32Flag {
	return staticUint32(c.TripThreshold)
}

func (c *StaticConfig) GetCoolOffPeriod() *flag.DurationFlag {
	f := flag.NewDuration(nil, "")
	if c.CoolOffPeriod > 0 {
		f.Set(c.CoolOffPeriod)
	}
	return f
}

func (c *StaticConfig) GetResetThreshold() *flag.Uint32Flag {
	return staticUint32(c.ResetThreshold)
}

func (c *StaticConfig) GetStateChangeChan() chan<- State { return c.StateChangeChan }

func (c *StaticConfig) GetLogger() *zerolog.Logger { return c.Logger }

func staticUint32(val uint32) *flag.Uint32Flag {
	f := flag.NewUint32(nil, "")
	if val != 0 {
		f.Set(val)
	}
	return f
}

// DynamicConfig defines a breaker configuration whose thresholds follow keys
// in a configuration store. The keys live under ConfigPath:
//
//	trip_threshold   (uint32)
//	reset_threshold  (uint32)
//	cool_off_period  (duration, e.g. "1500ms")
//
// Missing keys select the package defaults until they are set.
type DynamicConfig struct {
	// The store to use. Defaults to the global config.Store.
	store *store.Store

	OpenError       error
	TripErrors      []error
	StateChangeChan chan<- State
	Logger          *zerolog.Logger

	ConfigPath string
}

func (c *DynamicConfig) GetOpenError() error { return c.OpenError }

func (c *DynamicConfig) GetTripErrors() []error { return c.TripErrors }

func (c *DynamicConfig) GetTripThreshold() *flag.Uint32Flag {
	return flag.NewUint32(c.getStore(), c.configPath("trip_threshold"))
}

func (c *DynamicConfig) GetCoolOffPeriod() *flag.DurationFlag {
	return flag.NewDuration(c.getStore(), c.configPath("cool_off_period"))
}

func (c *DynamicConfig) GetResetThreshold() *flag.Uint32Flag {
	return flag.NewUint32(c.getStore(), c.configPath("reset_threshold"))
}

func (c *DynamicConfig) GetStateChangeChan() chan<- State { return c.StateChangeChan }

func (c *DynamicConfig) GetLogger() *zerolog.Logger { return c.Logger }

func (c *DynamicConfig) getStore() *store.Store {
	if c.store == nil {
		return &config.Store
	}
	return c.store
}

func (c *DynamicConfig) configPath(key string) string {
	return strings.TrimSuffix(c.ConfigPath, "/") + "/" + key
}
