// Package provider contains configuration value providers that can be
// attached to a store.Store.
package provider

import (
	"os"
	"regexp"
	"strings"
)

var invalidCharRegex = regexp.MustCompile(`[\s\-/.]`)

// EnvVars serves configuration values from the process environment.
//
// A configuration path is mapped to an environment variable name by upper
// casing it and replacing separators with underscores, so the path
// "transport/http" matches variables such as TRANSPORT_HTTP_PORT=8080 which
// yields the entry {"port": "8080"}. Any remaining underscores in the variable
// name become path separators ("TLS_STRICT" yields "tls/strict").
//
// A variable named exactly after the path (TRANSPORT_HTTP_PORT for the path
// "transport/http/port") yields a single entry keyed by the last path segment.
type EnvVars struct{}

// NewEnvVars creates a new EnvVars provider.
func NewEnvVars() *EnvVars {
	return &EnvVars{}
}

// Get returns the environment variables that match path.
func (p *EnvVars) Get(path string) map[string]string {
	name := strings.Trim(strings.ToUpper(invalidCharRegex.ReplaceAllString(path, "_")), "_")
	if name == "" {
		return nil
	}
	prefix := name + "_"

	var cfg map[string]string
	for _, envvar := range os.Environ() {
		tokens := strings.SplitN(envvar, "=", 2)
		if len(tokens) != 2 {
			continue
		}

		var key string
		switch {
		case tokens[0] == name:
			segments := strings.Split(strings.Trim(path, "/"), "/")
			key = segments[len(segments)-1]
		case strings.HasPrefix(tokens[0], prefix):
			key = strings.Replace(strings.ToLower(strings.TrimPrefix(tokens[0], prefix)), "_", "/", -1)
		default:
			continue
		}

		if cfg == nil {
			cfg = make(map[string]string)
		}
		cfg[key] = tokens[1]
	}

	return cfg
}

// Watch is a no-op; the environment is only read once per query.
func (p *EnvVars) Watch(path string, update func(string, map[string]string)) func() {
	return func() {}
}
