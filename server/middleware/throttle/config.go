package throttle

import (
	"strings"
	"time"

	"github.com/achilleasa/hessian2/config"
	"github.com/achilleasa/hessian2/config/flag"
	"github.com/achilleasa/hessian2/config/store"
)

// DefaultTimeout is used when a configuration does not define a token
// acquisition timeout.
const DefaultTimeout = time.Second

// Config is implemented by objects that can be passed to the throttle
// factories. A zero concurrency limit disables throttling; a zero timeout
// rejects calls as soon as the pool is exhausted.
type Config interface {
	GetMaxConcurrent() *flag.Uint32Flag
	GetTimeout() *flag.DurationFlag
}

// StaticConfig defines a fixed throttle configuration.
type StaticConfig struct {
	MaxConcurrent uint32
	Timeout       time.Duration
}

func (c *StaticConfig) GetMaxConcurrent() *flag.Uint32Flag {
	f := flag.NewUint32(nil, "")
	f.Set(c.MaxConcurrent)
	return f
}

func (c *StaticConfig) GetTimeout() *flag.DurationFlag {
	f := flag.NewDuration(nil, "")
	f.Set(c.Timeout)
	return f
}

// DynamicConfig defines a throttle configuration that follows the
// "maxconcurrent" and "timeout" keys below ConfigPath ("server" when empty).
// Changing the limit swaps the token pool; calls already holding a token are
// not affected.
type DynamicConfig struct {
	// The store to use. Defaults to the global config.Store.
	store *store.Store

	ConfigPath string
}

func (c *DynamicConfig) GetMaxConcurrent() *flag.Uint32Flag {
	return flag.NewUint32(c.getStore(), c.configPath("maxconcurrent"))
}

func (c *DynamicConfig) GetTimeout() *flag.DurationFlag {
	return flag.NewDuration(c.getStore(), c.configPath("timeout"))
}

func (c *DynamicConfig) getStore() *store.Store {
	if c.store == nil {
		return &config.Store
	}
	return c.store
}

func (c *DynamicConfig) configPath(key string) string {
	prefix := c.ConfigPath
	if prefix == "" {
		prefix = "server"
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

func init() {
	config.SetDefaults("server", map[string]string{
		"maxconcurrent": "0",
		"timeout":       DefaultTimeout.String(),
	})
}
