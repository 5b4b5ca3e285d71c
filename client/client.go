// Package client implements a Hessian RPC client.
package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/achilleasa/hessian2"
	"github.com/achilleasa/hessian2/encoding/hessian"
	"github.com/achilleasa/hessian2/transport"
)

var (
	// ErrUnsupportedScheme is returned by New for endpoint URLs whose scheme
	// has no registered transport.
	ErrUnsupportedScheme = errors.New("unsupported endpoint URL scheme")

	errMissingProxyHost = errors.New("proxy host must be specified")
)

// Client calls the methods of a remote Hessian service.
//
// Unless overridden with the WithTransport option, the client uses the
// transport registered for the scheme of its endpoint URL (see
// hessian2.RegisterTransport).
type Client struct {
	endpoint  string
	transport transport.Provider
	headers   map[string]string
	logger    zerolog.Logger

	factories  []MiddlewareFactory
	middleware []Middleware
}

// New creates a client for the service at rawURL, applies any supplied
// options and dials its transport.
func New(rawURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	factory, supported := hessian2.TransportFor(u.Scheme)
	if !supported {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	c := &Client{
		endpoint: rawURL,
		headers:  make(map[string]string),
		logger:   log.Logger,
	}

	for _, opt := range options {
		if err = opt(c); err != nil {
			return nil, err
		}
	}

	if c.transport == nil {
		c.transport = factory()
	}
	if err = c.transport.Dial(transport.ModeClient); err != nil {
		return nil, err
	}

	for _, factory := range append(globalFactories(), c.factories...) {
		if m := factory(rawURL); m != nil {
			c.middleware = append(c.middleware, m)
		}
	}

	return c, nil
}

// Endpoint returns the URL of the remote service.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close releases the client's transport.
func (c *Client) Close() error {
	return c.transport.Close(transport.ModeClient)
}

// Call invokes method with args and returns the decoded reply. Remote
// faults are returned as *hessian.Fault errors.
//
// Calls block until a response arrives or ctx is done. In the latter case
// Call fails with transport.ErrTimeout; the remote side may still execute
// the call.
func (c *Client) Call(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	var reply interface{}
	err := c.do(ctx, method, args, func(payload []byte) (err error) {
		reply, err = hessian.DecodeReply(payload)
		return err
	})
	return reply, err
}

// CallInto invokes method and stores the decoded reply in the value pointed
// to by reply using the conversions of hessian.Assign.
func (c *Client) CallInto(ctx context.Context, method string, reply interface{}, args ...interface{}) error {
	v, err := c.Call(ctx, method, args...)
	if err != nil {
		return err
	}
	return hessian.Assign(v, reply)
}

// CallShape invokes method and rehydrates the reply as a record laid out
// by shape.
func (c *Client) CallShape(ctx context.Context, method string, shape *hessian.Shape, args ...interface{}) (*hessian.Record, error) {
	var rec *hessian.Record
	err := c.do(ctx, method, args, func(payload []byte) (err error) {
		rec, err = hessian.ParseShape(payload, shape)
		return err
	})
	return rec, err
}

// do sends a call envelope through the middleware chain and the transport
// and passes the response payload to decode.
func (c *Client) do(ctx context.Context, method string, args []interface{}, decode func([]byte) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	defer func() {
		c.logger.Debug().
			Str("endpoint", c.endpoint).
			Str("method", method).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("hessian_call")
	}()

	body, err := hessian.EncodeCall(method, args...)
	if err != nil {
		return err
	}

	req := transport.MakeGenericMessage()
	defer req.Close()
	req.SetEndpoint(c.endpoint)
	req.SetHeaders(c.headers)
	req.SetHeader(transport.HeaderContentType, hessian.ContentType)
	req.SetPayload(body, nil)

	var res transport.ImmutableMessage
	var ran int
	for ; ran < len(c.middleware); ran++ {
		newCtx, preErr := c.middleware[ran].Pre(ctx, req)
		if newCtx != nil {
			ctx = newCtx
		}
		if preErr != nil {
			res = errorResponse(req, preErr)
			break
		}
	}

	if res == nil {
		select {
		case <-ctx.Done():
			res = errorResponse(req, transport.ErrTimeout)
		case res = <-c.transport.Request(req):
		}
	}
	defer res.Close()

	for i := ran - 1; i >= 0; i-- {
		c.middleware[i].Post(ctx, req, res)
	}

	payload, err := res.Payload()
	if err != nil {
		return err
	}
	return decode(payload)
}

func errorResponse(req transport.ImmutableMessage, err error) transport.ImmutableMessage {
	res := transport.MakeGenericMessage()
	res.EndpointField = req.Endpoint()
	res.ErrField = err
	return res
}

func basicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}
