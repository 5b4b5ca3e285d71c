package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/achilleasa/hessian2/client"
	"github.com/achilleasa/hessian2/encoding/hessian"
	"github.com/achilleasa/hessian2/transport"
	transporthttp "github.com/achilleasa/hessian2/transport/http"
	"github.com/achilleasa/hessian2/transport/memory"
)

type codedError struct{}

func (codedError) Error() string     { return "account locked" }
func (codedError) FaultCode() string { return "SecurityException" }

// greeter returns a service used by most tests in this file.
func greeter() Methods {
	return Methods{
		"greet": func(_ context.Context, args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("expected 1 argument; got %d", len(args))
			}
			return fmt.Sprintf("hello %v", args[0]), nil
		},
		"locked": func(_ context.Context, _ []interface{}) (interface{}, error) {
			return nil, codedError{}
		},
		"unencodable": func(_ context.Context, _ []interface{}) (interface{}, error) {
			return make(chan int), nil
		},
	}
}

func process(t *testing.T, srv *Server, payload []byte, payloadErr error) transport.Message {
	t.Helper()

	req := transport.MakeGenericMessage()
	defer req.Close()
	req.SetPayload(payload, payloadErr)

	res := transport.MakeGenericMessage()
	srv.Process(req, res)
	return res
}

func encodeCall(t *testing.T, method string, args ...interface{}) []byte {
	t.Helper()
	data, err := hessian.EncodeCall(method, args...)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func expectFault(t *testing.T, res transport.ImmutableMessage, expCode, expMessage string) {
	t.Helper()

	if !transport.IsFault(res) {
		t.Fatal("expected response to be marked as a fault")
	}
	payload, err := res.Payload()
	if err != nil {
		t.Fatal(err)
	}
	_, err = hessian.DecodeReply(payload)
	fault, isFault := err.(*hessian.Fault)
	if !isFault {
		t.Fatalf("expected a *hessian.Fault; got %v", err)
	}
	if fault.Code != expCode || fault.Message != expMessage {
		t.Fatalf("expected fault %s/%q; got %s/%q", expCode, expMessage, fault.Code, fault.Message)
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New("greeter", nil); err != errMissingHandler {
		t.Fatalf("expected error %v; got %v", errMissingHandler, err)
	}

	expError := errors.New("option error")
	opt := func(_ *Server) error { return expError }
	if _, err := New("greeter", greeter(), opt); err != expError {
		t.Fatalf("expected to get error %v; got %v", expError, err)
	}

	srv, err := New("greeter", greeter(), WithTransport(memory.New()))
	if err != nil {
		t.Fatal(err)
	}
	if srv.Path() != "/greeter" {
		t.Fatalf("expected server path to be %q; got %q", "/greeter", srv.Path())
	}
}

func TestMiddlewareChain(t *testing.T) {
	var log []string
	genMiddleware := func(name string) MiddlewareFactory {
		return func(next Middleware) Middleware {
			return MiddlewareFunc(func(ctx context.Context, req transport.ImmutableMessage, res transport.Message) {
				log = append(log, fmt.Sprintf("enter %s %s", name, CallFromContext(ctx).Method))
				next.Handle(ctx, req, res)
				log = append(log, fmt.Sprintf("exit %s", name))
			})
		}
	}

	defer ClearGlobalMiddleware()
	ClearGlobalMiddleware()
	RegisterGlobalMiddleware(nil, genMiddleware("global 1"), genMiddleware("global 2"))

	handler := HandlerFunc(func(ctx context.Context, method string, args []interface{}) (interface{}, error) {
		if path := PathFromContext(ctx); path != "/greeter" {
			t.Errorf("expected server to inject path %q in ctx; got %q", "/greeter", path)
		}
		log = append(log, "call handler")
		return greeter().Invoke(ctx, method, args)
	})

	srv, err := New(
		"greeter",
		handler,
		WithTransport(memory.New()),
		WithMiddleware(genMiddleware("1"), nil, genMiddleware("2")),
		WithMiddleware(genMiddleware("3")),
	)
	if err != nil {
		t.Fatal(err)
	}

	res := process(t, srv, encodeCall(t, "greet", "tester"), nil)
	defer res.Close()

	expLog := []string{
		"enter global 1 greet",
		"enter global 2 greet",
		"enter 1 greet",
		"enter 2 greet",
		"enter 3 greet",
		"call handler",
		"exit 3",
		"exit 2",
		"exit 1",
		"exit global 2",
		"exit global 1",
	}
	if !reflect.DeepEqual(log, expLog) {
		t.Fatalf("expected log entries to be:\n%v\n\ngot:\n%v", expLog, log)
	}

	payload, err := res.Payload()
	if err != nil {
		t.Fatal(err)
	}
	reply, err := hessian.DecodeReply(payload)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "hello tester" {
		t.Fatalf("expected reply %q; got %v", "hello tester", reply)
	}
	if transport.IsFault(res) {
		t.Fatal("expected reply not to be marked as a fault")
	}
}

func TestMiddlewareThatRejectsCalls(t *testing.T) {
	invoked := false
	srv, err := New(
		"greeter",
		HandlerFunc(func(_ context.Context, _ string, _ []interface{}) (interface{}, error) {
			invoked = true
			return nil, nil
		}),
		WithTransport(memory.New()),
		WithMiddleware(func(_ Middleware) Middleware {
			return MiddlewareFunc(func(_ context.Context, _ transport.ImmutableMessage, res transport.Message) {
				res.SetPayload(nil, transport.ErrNotAuthorized)
			})
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	res := process(t, srv, encodeCall(t, "greet"), nil)
	defer res.Close()

	if _, err = res.Payload(); err != transport.ErrNotAuthorized {
		t.Fatalf("expected error %v; got %v", transport.ErrNotAuthorized, err)
	}
	if invoked {
		t.Fatal("expected handler not to be invoked")
	}
}

func TestFaults(t *testing.T) {
	srv, err := New("greeter", greeter(), WithTransport(memory.New()))
	if err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		payload    []byte
		payloadErr error
		expCode    string
		expMessage string
	}{
		{
			payload:    encodeCall(t, "greet"),
			expCode:    hessian.GenericFaultCode,
			expMessage: "expected 1 argument; got 0",
		},
		{
			payload:    encodeCall(t, "locked"),
			expCode:    "SecurityException",
			expMessage: "account locked",
		},
		{
			payload:    encodeCall(t, "missing"),
			expCode:    NoSuchMethodFaultCode,
			expMessage: `service has no method named "missing"`,
		},
		{
			payload: encodeCall(t, "unencodable"),
			expCode: hessian.GenericFaultCode,
		},
		{
			payload: []byte{'X', 0x01},
			expCode: ProtocolFaultCode,
		},
		{
			payloadErr: transport.ErrServiceUnavailable,
			expCode:    hessian.GenericFaultCode,
			expMessage: transport.ErrServiceUnavailable.Error(),
		},
	}

	for specIndex, spec := range specs {
		res := process(t, srv, spec.payload, spec.payloadErr)

		payload, _ := res.Payload()
		_, err := hessian.DecodeReply(payload)
		fault, isFault := err.(*hessian.Fault)
		switch {
		case !isFault:
			t.Errorf("[spec %d] expected a fault; got %v", specIndex, err)
		case fault.Code != spec.expCode:
			t.Errorf("[spec %d] expected fault code %q; got %q", specIndex, spec.expCode, fault.Code)
		case spec.expMessage != "" && fault.Message != spec.expMessage:
			t.Errorf("[spec %d] expected fault message %q; got %q", specIndex, spec.expMessage, fault.Message)
		case !transport.IsFault(res):
			t.Errorf("[spec %d] expected response to be marked as a fault", specIndex)
		}
		res.Close()
	}
}

func TestPanicHandling(t *testing.T) {
	panicErr := errors.New("panic with error")
	panicStr := "panic with string"

	var mutex sync.Mutex
	var recovered []error
	panicHandler := func(err error) {
		mutex.Lock()
		recovered = append(recovered, err)
		mutex.Unlock()
	}

	srv, err := New(
		"greeter",
		Methods{
			"str": func(_ context.Context, _ []interface{}) (interface{}, error) { panic(panicStr) },
			"err": func(_ context.Context, _ []interface{}) (interface{}, error) { panic(panicErr) },
		},
		WithTransport(memory.New()),
		WithPanicHandler(panicHandler),
	)
	if err != nil {
		t.Fatal(err)
	}

	res := process(t, srv, encodeCall(t, "str"), nil)
	expectFault(t, res, hessian.GenericFaultCode, "recovered from panic: "+panicStr)
	res.Close()

	res = process(t, srv, encodeCall(t, "err"), nil)
	expectFault(t, res, hessian.GenericFaultCode, "recovered from panic: "+panicErr.Error())
	res.Close()

	if len(recovered) != 2 {
		t.Fatalf("expected panic handler to be invoked twice; got %d", len(recovered))
	}
	if recovered[0].Error() != panicStr {
		t.Fatalf("expected error to be %q; got %v", panicStr, recovered[0])
	}
	if recovered[1] != panicErr {
		t.Fatalf("expected error to be %v; got %v", panicErr, recovered[1])
	}
}

func TestDefaultPanicHandler(t *testing.T) {
	var buf bytes.Buffer
	srv, err := New("greeter", greeter(), WithTransport(memory.New()), WithLogger(zerolog.New(&buf)))
	if err != nil {
		t.Fatal(err)
	}

	srv.panicHandler(errors.New("some error"))

	out := buf.String()
	for _, exp := range []string{`"level":"error"`, `"error":"some error"`, `"message":"recovered from panic"`, `"stack":"goroutine`} {
		if !strings.Contains(out, exp) {
			t.Fatalf("expected panic handler output to contain %q; got %s", exp, out)
		}
	}
}

func TestServer(t *testing.T) {
	tr := memory.New()
	srv, err := New("greeter", greeter(), WithTransport(tr))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	// Closing a server that is not listening is a no-op
	srv.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Listen(); err != nil {
			t.Error(err)
		}
	}()

	<-time.After(100 * time.Millisecond)

	c, err := client.New("memory://greeter/greeter", client.WithTransport(tr))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var greeting string
	if err = c.CallInto(context.Background(), "greet", &greeting, "tester"); err != nil {
		t.Fatal(err)
	}
	if greeting != "hello tester" {
		t.Fatalf("expected greeting %q; got %q", "hello tester", greeting)
	}

	_, err = c.Call(context.Background(), "locked")
	if err == nil || err.Error() != "SecurityException - account locked" {
		t.Fatalf("expected fault %q; got %v", "SecurityException - account locked", err)
	}

	// Calling Listen a second time should return an error
	if err = srv.Listen(); err != errServeAlreadyCalled {
		t.Fatalf("expected second call to Listen to return %v; got %v", errServeAlreadyCalled, err)
	}

	// Signal server to exit
	srv.Close()
	wg.Wait()

	// The path is no longer bound
	if _, err = c.Call(context.Background(), "greet", "tester"); err != transport.ErrNotFound {
		t.Fatalf("expected error %v after closing the server; got %v", transport.ErrNotFound, err)
	}
}

func TestListenErrors(t *testing.T) {
	tr := memory.New()
	tr.Bind("/greeter", transport.HandlerFunc(func(_ transport.ImmutableMessage, _ transport.Message) {}))

	srv, err := New("greeter", greeter(), WithTransport(tr))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	err = srv.Listen()
	expErrorMsg := `binding "/greeter" already defined`
	if err == nil || err.Error() != expErrorMsg {
		t.Fatalf("expected error %q; got %v", expErrorMsg, err)
	}

	failing := &testTransportThatFailsDialing{}
	srv.transport = failing
	if err = srv.Listen(); err != transport.ErrTransportAlreadyDialed {
		t.Fatalf("expected error %v; got %v", transport.ErrTransportAlreadyDialed, err)
	}
	if failing.unbound != "/greeter" {
		t.Fatalf("expected failed Listen to unbind %q; got %q", "/greeter", failing.unbound)
	}
}

func TestHTTPHandler(t *testing.T) {
	if _, err := NewHTTPHandler(nil); err != errMissingHandler {
		t.Fatalf("expected error %v; got %v", errMissingHandler, err)
	}

	handler, err := NewHTTPHandler(
		greeter(),
		WithMiddleware(func(next Middleware) Middleware {
			return MiddlewareFunc(func(ctx context.Context, req transport.ImmutableMessage, res transport.Message) {
				if req.Headers()["X-Api-Key"] != "secret" {
					res.SetPayload(nil, transport.ErrNotAuthorized)
					return
				}
				res.SetHeader("X-Served-By", "greeter")
				next.Handle(ctx, req, res)
			})
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(handler)
	defer ts.Close()

	// GET requests are rejected
	httpRes, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(httpRes.Body)
	httpRes.Body.Close()
	if httpRes.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d; got %d", http.StatusMethodNotAllowed, httpRes.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "post me" {
		t.Fatalf("expected body %q; got %q", "post me", body)
	}

	post := func(apiKey string, payload []byte) (*http.Response, []byte) {
		httpReq, _ := http.NewRequest(http.MethodPost, ts.URL+"/greeter", bytes.NewReader(payload))
		httpReq.Header.Set("X-Api-Key", apiKey)
		httpRes, err := http.DefaultClient.Do(httpReq)
		if err != nil {
			t.Fatal(err)
		}
		defer httpRes.Body.Close()
		body, _ := io.ReadAll(httpRes.Body)
		return httpRes, body
	}

	httpRes, body = post("secret", encodeCall(t, "greet", "tester"))
	if httpRes.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d; got %d", http.StatusOK, httpRes.StatusCode)
	}
	if ct := httpRes.Header.Get("Content-Type"); ct != hessian.ContentType {
		t.Fatalf("expected content type %q; got %q", hessian.ContentType, ct)
	}
	if by := httpRes.Header.Get("X-Served-By"); by != "greeter" {
		t.Fatalf("expected middleware headers to be relayed; got %q", by)
	}
	if reply, err := hessian.DecodeReply(body); err != nil || reply != "hello tester" {
		t.Fatalf("expected reply %q; got %v, %v", "hello tester", reply, err)
	}

	httpRes, body = post("secret", encodeCall(t, "missing"))
	if httpRes.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status %d; got %d", http.StatusInternalServerError, httpRes.StatusCode)
	}
	if httpRes.Header.Get(transport.HeaderFault) != "" {
		t.Fatal("expected the fault marker header not to be sent")
	}
	if _, err = hessian.DecodeReply(body); err == nil || !strings.HasPrefix(err.Error(), NoSuchMethodFaultCode) {
		t.Fatalf("expected a %s fault; got %v", NoSuchMethodFaultCode, err)
	}

	httpRes, body = post("wrong", encodeCall(t, "greet", "tester"))
	if httpRes.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status %d; got %d", http.StatusInternalServerError, httpRes.StatusCode)
	}
	if _, err = hessian.DecodeReply(body); err == nil || err.Error() != transport.ErrNotAuthorized.Error() {
		t.Fatalf("expected fault %q; got %v", transport.ErrNotAuthorized.Error(), err)
	}
}

func TestClientServerOverHTTP(t *testing.T) {
	handler, err := NewHTTPHandler(greeter())
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(handler)
	defer ts.Close()

	c, err := client.New(ts.URL+"/greeter", client.WithTransport(transporthttp.New()))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	reply, err := c.Call(context.Background(), "greet", []interface{}{"a", int32(1)})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "hello [a 1]" {
		t.Fatalf("expected reply %q; got %v", "hello [a 1]", reply)
	}

	_, err = c.Call(context.Background(), "locked")
	var fault *hessian.Fault
	if !errors.As(err, &fault) || fault.Code != "SecurityException" {
		t.Fatalf("expected a SecurityException fault; got %v", err)
	}
}

type testTransportThatFailsDialing struct {
	unbound string
}

func (tr *testTransportThatFailsDialing) Dial(_ transport.Mode) error {
	return transport.ErrTransportAlreadyDialed
}

func (tr *testTransportThatFailsDialing) Close(_ transport.Mode) error {
	return nil
}

func (tr *testTransportThatFailsDialing) Bind(_ string, _ transport.Handler) error {
	return nil
}

func (tr *testTransportThatFailsDialing) Unbind(path string) {
	tr.unbound = path
}

func (tr *testTransportThatFailsDialing) Request(_ transport.Message) <-chan transport.ImmutableMessage {
	return nil
}
