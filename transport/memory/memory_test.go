package memory

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/achilleasa/hessian2/transport"
)

func newMessage(endpoint string, payload []byte) transport.Message {
	m := transport.MakeGenericMessage()
	m.SetEndpoint(endpoint)
	m.SetPayload(payload, nil)
	return m
}

func TestInMemoryErrors(t *testing.T) {
	tr := New()

	noop := transport.HandlerFunc(func(_ transport.ImmutableMessage, _ transport.Message) {})
	if err := tr.Bind("/echo", noop); err != nil {
		t.Fatal(err)
	}
	err := tr.Bind("http://localhost/echo", noop)
	expError := `binding "/echo" already defined`
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get error %q; got %v", expError, err)
	}

	// Requests before dialing
	res := <-tr.Request(newMessage("/echo", nil))
	if _, err = res.Payload(); err != transport.ErrTransportClosed {
		t.Fatalf("expected err %v; got %v", transport.ErrTransportClosed, err)
	}

	if err = tr.Dial(transport.ModeClient); err != nil {
		t.Fatal(err)
	}

	res = <-tr.Request(newMessage("/unknown", nil))
	if _, err = res.Payload(); err != transport.ErrNotFound {
		t.Fatalf("expected err %v; got %v", transport.ErrNotFound, err)
	}

	if err = tr.Close(transport.ModeClient); err != nil {
		t.Fatal(err)
	}
	if err = tr.Close(transport.ModeClient); err != transport.ErrTransportClosed {
		t.Fatalf("expected err %v; got %v", transport.ErrTransportClosed, err)
	}
}

func TestClosedTransportInRequestGoRoutine(t *testing.T) {
	tr := New()
	tr.Dial(transport.ModeServer)

	// Hold the lock so that the request goroutine blocks
	tr.rwMutex.Lock()
	resChan := tr.Request(newMessage("/echo", nil))

	<-time.After(100 * time.Millisecond)
	tr.refCount = 0
	tr.rwMutex.Unlock()

	res := <-resChan
	if _, err := res.Payload(); err != transport.ErrTransportClosed {
		t.Fatalf("expected err %v; got %v", transport.ErrTransportClosed, err)
	}
}

func TestFactories(t *testing.T) {
	if SingletonFactory() != SingletonFactory() {
		t.Fatalf("expected singleton factory to return the same instance")
	}
	if Factory() == Factory() {
		t.Fatalf("expected factory to return different instances")
	}
}

func TestInMemoryRPC(t *testing.T) {
	tr := New()
	tr.Dial(transport.ModeServer)
	defer tr.Close(transport.ModeServer)

	expHeaders := map[string]string{
		"Authorization": "Basic dXNlcjpwYXNz",
		"Content-Type":  "application/binary",
	}

	err := tr.Bind("echo", transport.HandlerFunc(func(req transport.ImmutableMessage, res transport.Message) {
		if !reflect.DeepEqual(req.Headers(), expHeaders) {
			t.Errorf("header mismatch; expected %v; got %v", expHeaders, req.Headers())
		}
		payload, err := req.Payload()
		if err != nil {
			t.Error(err)
		}
		res.SetHeader(transport.HeaderFault, "true")
		res.SetPayload(append([]byte("re: "), payload...), nil)
	}))
	if err != nil {
		t.Fatal(err)
	}

	req := newMessage("http://example.com/echo", []byte("hello"))
	defer req.Close()
	req.SetHeaders(map[string]string{"authorization": "Basic dXNlcjpwYXNz", "content-type": "application/binary"})

	res := <-tr.Request(req)
	payload, err := res.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "re: hello" {
		t.Errorf("expected payload to be %q; got %q", "re: hello", string(payload))
	}
	if !transport.IsFault(res) {
		t.Errorf("expected response headers to be relayed; got %v", res.Headers())
	}
	if res.Endpoint() != req.Endpoint() {
		t.Errorf("expected response endpoint %q; got %q", req.Endpoint(), res.Endpoint())
	}
	res.Close()

	// Unbinding twice has no effect; later requests fail with ErrNotFound
	tr.Unbind("/echo")
	tr.Unbind("/echo")

	res = <-tr.Request(req)
	if _, err = res.Payload(); err != transport.ErrNotFound {
		t.Errorf("expected to get ErrNotFound after unbinding; got %v", err)
	}
}

func BenchmarkInMemory100Workers(b *testing.B) {
	tr := New()
	tr.Dial(transport.ModeClient)
	defer tr.Close(transport.ModeClient)

	payload := []byte("payload")
	tr.Bind("/bench", transport.HandlerFunc(func(_ transport.ImmutableMessage, res transport.Message) {
		res.SetPayload(payload, nil)
	}))

	workers := 100
	msgPerWorker := b.N/workers + 1

	var wg sync.WaitGroup
	wg.Add(workers)
	b.ResetTimer()
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < msgPerWorker; j++ {
				msg := newMessage("/bench", payload)
				res := <-tr.Request(msg)
				if _, err := res.Payload(); err != nil {
					b.Error(err)
				}
				res.Close()
				msg.Close()
			}
		}()
	}
	wg.Wait()
}
