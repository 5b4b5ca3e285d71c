package encoding

import (
	"reflect"
	"testing"
)

type testCodec struct {
	name string
}

func (c *testCodec) Name() string        { return c.name }
func (c *testCodec) ContentType() string { return "application/x-" + c.name }
func (c *testCodec) Marshaler() Marshaler {
	return func(v interface{}) ([]byte, error) { return []byte(c.name), nil }
}
func (c *testCodec) Unmarshaler() Unmarshaler {
	return func(data []byte, target interface{}) error { return nil }
}

func TestRegistry(t *testing.T) {
	Register(func() Codec { return &testCodec{name: "zz-test"} })
	Register(func() Codec { return &testCodec{name: "aa-test"} })

	codec, err := Lookup("zz-test")
	if err != nil {
		t.Fatal(err)
	}
	if codec.ContentType() != "application/x-zz-test" {
		t.Fatalf("expected content type to be %q; got %q", "application/x-zz-test", codec.ContentType())
	}

	data, _ := codec.Marshaler()(nil)
	if string(data) != "zz-test" {
		t.Fatalf("expected marshaler of the registered codec to be returned; got %q", data)
	}

	expNames := []string{"aa-test", "zz-test"}
	if names := Names(); !reflect.DeepEqual(names, expNames) {
		t.Fatalf("expected names to be %v; got %v", expNames, names)
	}

	_, err = Lookup("missing")
	if err != ErrUnknownCodec {
		t.Fatalf("expected to get ErrUnknownCodec; got %v", err)
	}
}
