package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/achilleasa/hessian2/encoding/hessian"
	"github.com/achilleasa/hessian2/transport"
	"github.com/achilleasa/hessian2/transport/memory"
)

const testEndpoint = "memory://calc/calc"

type point struct {
	X int `hessian:"x"`
	Y int `hessian:"y"`
}

// calcHandler is a transport handler that serves a tiny calculator service.
func calcHandler(t *testing.T) transport.Handler {
	return transport.HandlerFunc(func(req transport.ImmutableMessage, res transport.Message) {
		payload, _ := req.Payload()
		call, err := hessian.DecodeCall(payload)
		if err != nil {
			t.Errorf("decoding call: %v", err)
			res.SetPayload(nil, err)
			return
		}

		var reply interface{}
		switch call.Method {
		case "add":
			var sum int64
			for _, arg := range call.Args {
				var n int64
				hessian.Assign(arg, &n)
				sum += n
			}
			reply = sum
		case "point":
			reply = map[string]interface{}{"x": call.Args[0], "y": call.Args[1]}
		case "auth":
			reply = req.Headers()[transport.HeaderAuthorization]
		case "contentType":
			reply = req.Headers()[transport.HeaderContentType]
		case "slow":
			time.Sleep(100 * time.Millisecond)
		case "fail":
			data, _ := hessian.EncodeFault("ServiceException", "boom", nil)
			res.SetHeader(transport.HeaderFault, "true")
			res.SetPayload(data, nil)
			return
		default:
			res.SetPayload(nil, transport.ErrNotFound)
			return
		}

		data, err := hessian.EncodeReply(reply)
		res.SetPayload(data, err)
	})
}

func newCalcTransport(t *testing.T) *memory.Transport {
	tr := memory.New()
	tr.Dial(transport.ModeServer)
	if err := tr.Bind("/calc", calcHandler(t)); err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestNewErrors(t *testing.T) {
	_, err := New("ftp://example.com/calc")
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected error %v; got %v", ErrUnsupportedScheme, err)
	}

	if _, err = New("://missing-scheme"); err == nil {
		t.Fatal("expected an error for an invalid URL")
	}

	expError := errors.New("option error")
	_, err = New(testEndpoint, func(_ *Client) error { return expError })
	if err != expError {
		t.Fatalf("expected error %v; got %v", expError, err)
	}

	_, err = New(testEndpoint, WithTransport(&failingTransport{}))
	if err != transport.ErrTransportAlreadyDialed {
		t.Fatalf("expected dial error %v; got %v", transport.ErrTransportAlreadyDialed, err)
	}

	if _, err = New("http://localhost/calc", WithProxy(Proxy{Port: 3128})); err != errMissingProxyHost {
		t.Fatalf("expected error %v; got %v", errMissingProxyHost, err)
	}
}

func TestProxyURL(t *testing.T) {
	specs := []struct {
		proxy Proxy
		exp   string
	}{
		{Proxy{Host: "proxy"}, "http://proxy"},
		{Proxy{Host: "proxy", Port: 3128}, "http://proxy:3128"},
		{Proxy{Host: "proxy", Port: 3128, User: "u", Password: "p"}, "http://u:p@proxy:3128"},
	}

	for specIndex, spec := range specs {
		if got := spec.proxy.URL().String(); got != spec.exp {
			t.Errorf("[spec %d] expected proxy URL %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestCall(t *testing.T) {
	tr := newCalcTransport(t)
	defer tr.Close(transport.ModeServer)

	c, err := New(testEndpoint, WithTransport(tr), WithBasicAuth("user", "pass"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.Endpoint() != testEndpoint {
		t.Fatalf("expected endpoint %q; got %q", testEndpoint, c.Endpoint())
	}

	reply, err := c.Call(context.Background(), "add", 1, 2, int64(39))
	if err != nil {
		t.Fatal(err)
	}
	if reply != int32(42) {
		t.Errorf("expected reply int32(42); got %v (%T)", reply, reply)
	}

	var sum int
	if err = c.CallInto(context.Background(), "add", &sum, 20, 22); err != nil {
		t.Fatal(err)
	}
	if sum != 42 {
		t.Errorf("expected sum 42; got %d", sum)
	}

	var p point
	if err = c.CallInto(context.Background(), "point", &p, 3, 4); err != nil {
		t.Fatal(err)
	}
	if p.X != 3 || p.Y != 4 {
		t.Errorf("expected point {3 4}; got %+v", p)
	}

	rec, err := c.CallShape(context.Background(), "point", hessian.NewShape("Point", "y", "x"), 5, 6)
	if err != nil {
		t.Fatal(err)
	}
	if y, _ := rec.Get("y"); fmt.Sprint(y) != "6" {
		t.Errorf("expected record field y to be 6; got %v", y)
	}

	if reply, _ = c.Call(context.Background(), "auth"); reply != "Basic dXNlcjpwYXNz" {
		t.Errorf("expected basic auth header; got %v", reply)
	}
	if reply, _ = c.Call(context.Background(), "contentType"); reply != hessian.ContentType {
		t.Errorf("expected content type %q; got %v", hessian.ContentType, reply)
	}

	// nil contexts are accepted
	if _, err = c.Call(nil, "add"); err != nil { //nolint:staticcheck
		t.Fatal(err)
	}
}

func TestCallErrors(t *testing.T) {
	tr := newCalcTransport(t)

	c, err := New(testEndpoint, WithTransport(tr))
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Call(context.Background(), "fail")
	var fault *hessian.Fault
	if !errors.As(err, &fault) {
		t.Fatalf("expected a fault; got %v", err)
	}
	if fault.Code != "ServiceException" || fault.Message != "boom" {
		t.Fatalf("unexpected fault %+v", fault)
	}

	if _, err = c.Call(context.Background(), "unknown"); err != transport.ErrNotFound {
		t.Fatalf("expected error %v; got %v", transport.ErrNotFound, err)
	}

	if _, err = c.Call(context.Background(), "add", make(chan int)); err == nil {
		t.Fatal("expected an encoding error for unsupported argument types")
	}

	var p point
	if err = c.CallInto(context.Background(), "auth", &p); err == nil {
		t.Fatal("expected an assignment error")
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancelFn()
	if _, err = c.Call(ctx, "slow"); err != transport.ErrTimeout {
		t.Fatalf("expected error %v; got %v", transport.ErrTimeout, err)
	}

	c.Close()
	tr.Close(transport.ModeServer)
	if _, err = c.Call(context.Background(), "add"); err != transport.ErrTransportClosed {
		t.Fatalf("expected error %v; got %v", transport.ErrTransportClosed, err)
	}
}

func TestMiddlewareChain(t *testing.T) {
	defer ClearGlobalMiddlewareFactories()
	ClearGlobalMiddlewareFactories()

	tr := newCalcTransport(t)
	defer tr.Close(transport.ModeServer)

	logChan := make(chan string, 16)

	RegisterGlobalMiddlewareFactories(
		nil,
		testMiddlewareFactory("global middleware 0", logChan, false, nil),
	)
	RegisterGlobalMiddlewareFactories(
		testMiddlewareFactory("global middleware 1", logChan, true, nil),
	)

	c, err := New(
		testEndpoint,
		WithTransport(tr),
		WithMiddleware(
			testMiddlewareFactory("local middleware 0", logChan, false, nil),
			nil,
		),
		WithMiddleware(nil),
		WithMiddleware(
			testMiddlewareFactory("local middleware 1", logChan, true, nil),
		),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if len(c.middleware) != 4 {
		t.Fatalf("expected 4 middleware instances; got %d", len(c.middleware))
	}
	if m := c.middleware[0].(*testMiddleware); m.endpoint != testEndpoint {
		t.Fatalf("expected middleware factory to receive endpoint %q; got %q", testEndpoint, m.endpoint)
	}

	expLog := []string{
		"pre global middleware 0",
		"pre global middleware 1",
		"pre local middleware 0",
		"pre local middleware 1",
		"post local middleware 1",
		"post local middleware 0",
		"post global middleware 1",
		"post global middleware 0",
	}

	if _, err = c.Call(context.Background(), "add", 1); err != nil {
		t.Fatal(err)
	}
	expectLog(t, logChan, expLog)

	// Middleware still runs when the call times out
	ctx, cancelFn := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancelFn()
	if _, err = c.Call(ctx, "slow"); err != transport.ErrTimeout {
		t.Fatalf("expected error %v; got %v", transport.ErrTimeout, err)
	}
	expectLog(t, logChan, expLog)
}

func TestMiddlewareThatAbortsCall(t *testing.T) {
	tr := newCalcTransport(t)
	defer tr.Close(transport.ModeServer)

	logChan := make(chan string, 8)
	c, err := New(
		testEndpoint,
		WithTransport(tr),
		WithMiddleware(
			testMiddlewareFactory("local middleware 0", logChan, false, nil),
			testMiddlewareFactory("local middleware 1", logChan, false, transport.ErrNotAuthorized),
			testMiddlewareFactory("local middleware 2", logChan, true, nil),
		),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err = c.Call(context.Background(), "add"); err != transport.ErrNotAuthorized {
		t.Fatalf("expected error %v; got %v", transport.ErrNotAuthorized, err)
	}

	expectLog(t, logChan, []string{
		"pre local middleware 0",
		"pre local middleware 1",
		"post local middleware 0",
	})
}

func TestMiddlewareCanRewriteRequests(t *testing.T) {
	tr := newCalcTransport(t)
	defer tr.Close(transport.ModeServer)

	rewrite := MiddlewareFactory(func(_ string) Middleware {
		return middlewareFuncs{
			pre: func(ctx context.Context, req transport.Message) (context.Context, error) {
				req.SetEndpoint("memory://calc/calc")
				req.SetHeader(transport.HeaderAuthorization, "Bearer token")
				return ctx, nil
			},
		}
	})

	c, err := New("memory://calc/elsewhere", WithTransport(tr), WithMiddleware(rewrite))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	reply, err := c.Call(context.Background(), "auth")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Bearer token" {
		t.Fatalf("expected rewritten auth header; got %v", reply)
	}
}

func expectLog(t *testing.T, logChan chan string, expLog []string) {
	t.Helper()
	for index, expEntry := range expLog {
		select {
		case entry := <-logChan:
			if entry != expEntry {
				t.Fatalf("[entry %d] expected log entry to be %q; got %q", index, expEntry, entry)
			}
		case <-time.After(time.Second):
			t.Fatalf("[entry %d] timeout waiting for log entry %q", index, expEntry)
		}
	}
}

type ctxKey string

type testMiddleware struct {
	endpoint     string
	name         string
	logChan      chan string
	returnNilCtx bool
	returnErr    error
}

func testMiddlewareFactory(name string, logChan chan string, returnNilCtx bool, returnErr error) MiddlewareFactory {
	return func(endpoint string) Middleware {
		return &testMiddleware{
			endpoint:     endpoint,
			name:         name,
			logChan:      logChan,
			returnNilCtx: returnNilCtx,
			returnErr:    returnErr,
		}
	}
}

func (m *testMiddleware) Pre(ctx context.Context, _ transport.Message) (context.Context, error) {
	m.logChan <- "pre " + m.name
	if m.returnNilCtx {
		return nil, m.returnErr
	}
	return context.WithValue(ctx, ctxKey(m.name), m.name), m.returnErr
}

func (m *testMiddleware) Post(ctx context.Context, _, _ transport.ImmutableMessage) {
	m.logChan <- "post " + m.name
	if m.returnNilCtx {
		return
	}
	if val, _ := ctx.Value(ctxKey(m.name)).(string); val != m.name {
		panic(fmt.Sprintf("expected ctx value %q; got %q", m.name, val))
	}
}

type middlewareFuncs struct {
	pre func(ctx context.Context, req transport.Message) (context.Context, error)
}

func (m middlewareFuncs) Pre(ctx context.Context, req transport.Message) (context.Context, error) {
	return m.pre(ctx, req)
}

func (m middlewareFuncs) Post(_ context.Context, _, _ transport.ImmutableMessage) {}

type failingTransport struct{}

func (tr *failingTransport) Dial(_ transport.Mode) error {
	return transport.ErrTransportAlreadyDialed
}

func (tr *failingTransport) Close(_ transport.Mode) error { return nil }

func (tr *failingTransport) Bind(_ string, _ transport.Handler) error { return nil }

func (tr *failingTransport) Unbind(_ string) {}

func (tr *failingTransport) Request(_ transport.Message) <-chan transport.ImmutableMessage {
	return nil
}
