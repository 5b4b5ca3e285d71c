// Package config exposes the global configuration store used by the
// transports, clients and servers together with helpers for creating flags
// bound to it.
package config

import (
	"github.com/achilleasa/hessian2/config/provider"
	"github.com/achilleasa/hessian2/config/store"
)

// Store is the global configuration store. Environment variables are
// registered as a value provider on start-up.
var Store store.Store

// SetDefaults writes default values for the keys below path. Defaults use
// version 0 so any value provider or explicit SetKey call overrides them.
func SetDefaults(path string, cfg map[string]string) error {
	_, err := Store.SetKeys(0, path, cfg)
	return err
}

// LoadFile registers the TOML file at path as a value provider of the global
// store. Values from the file override environment variables.
func LoadFile(path string) (*provider.TOMLFile, error) {
	p, err := provider.NewTOMLFile(path)
	if err != nil {
		return nil, err
	}
	Store.RegisterValueProvider(p)
	return p, nil
}

func init() {
	Store.RegisterValueProvider(provider.NewEnvVars())
}
