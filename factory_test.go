package hessian2

import (
	"reflect"
	"testing"

	"github.com/achilleasa/hessian2/transport"
	"github.com/achilleasa/hessian2/transport/memory"
)

func TestTransportRegistry(t *testing.T) {
	expSchemes := []string{"amqp", "http", "https", "memory"}
	if schemes := Schemes(); !reflect.DeepEqual(schemes, expSchemes) {
		t.Fatalf("expected registered schemes to be %v; got %v", expSchemes, schemes)
	}

	factory, exists := TransportFor("HTTPS")
	if !exists || factory == nil {
		t.Fatal("expected scheme lookup to be case-insensitive")
	}

	if _, exists = TransportFor("ftp"); exists {
		t.Fatal("expected lookup of an unknown scheme to fail")
	}

	RegisterTransport("test", func() transport.Provider { return memory.New() })
	defer func() {
		schemeMutex.Lock()
		delete(schemeFactories, "test")
		schemeMutex.Unlock()
	}()

	if factory, exists = TransportFor("test"); !exists {
		t.Fatal("expected registered scheme to be found")
	}
	if _, isMemory := factory().(*memory.Transport); !isMemory {
		t.Fatal("expected factory to return a memory transport")
	}
}

func TestDefaults(t *testing.T) {
	if DefaultTransportFactory == nil {
		t.Fatal("expected default transport factory to be set")
	}
	factory, _ := TransportFor("http")
	if reflect.ValueOf(factory).Pointer() != reflect.ValueOf(DefaultTransportFactory).Pointer() {
		t.Fatal("expected the default transport to be the http transport")
	}
}
