package client

import (
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/achilleasa/hessian2/transport"
	"github.com/achilleasa/hessian2/transport/http"
)

// Option applies a configuration option to a client instance.
type Option func(c *Client) error

// Proxy describes an HTTP proxy for client requests.
type Proxy struct {
	Host     string
	Port     int
	User     string
	Password string
}

// URL returns the proxy URL.
func (p Proxy) URL() *url.URL {
	u := &url.URL{
		Scheme: "http",
		Host:   p.Host,
	}
	if p.Port != 0 {
		u.Host = fmt.Sprintf("%s:%d", p.Host, p.Port)
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	return u
}

// WithTransport configures the client to use a specific transport instead of
// the transport registered for the endpoint URL scheme.
func WithTransport(tr transport.Provider) Option {
	return func(c *Client) error {
		c.transport = tr
		return nil
	}
}

// WithBasicAuth sends HTTP basic credentials with every call.
func WithBasicAuth(user, password string) Option {
	return func(c *Client) error {
		c.headers[transport.HeaderAuthorization] = basicAuth(user, password)
		return nil
	}
}

// WithProxy routes calls through an HTTP proxy. The client gets a dedicated
// HTTP transport; the option cannot be combined with WithTransport.
func WithProxy(proxy Proxy) Option {
	return func(c *Client) error {
		if proxy.Host == "" {
			return errMissingProxyHost
		}
		c.transport = http.New(http.WithProxy(proxy.URL()), http.WithLogger(c.logger))
		return nil
	}
}

// WithMiddleware appends client-specific middleware. It runs after any
// globally registered middleware. Nil factories are ignored.
func WithMiddleware(factories ...MiddlewareFactory) Option {
	return func(c *Client) error {
		for _, factory := range factories {
			if factory != nil {
				c.factories = append(c.factories, factory)
			}
		}
		return nil
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithHeader sets a header that is sent with every call.
func WithHeader(name, value string) Option {
	return func(c *Client) error {
		c.headers[name] = value
		return nil
	}
}
