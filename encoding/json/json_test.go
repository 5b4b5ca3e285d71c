package json

import (
	"reflect"
	"testing"
	"time"

	"github.com/achilleasa/hessian2/encoding"
	"github.com/achilleasa/hessian2/encoding/hessian"
)

func TestTranscodeHessianValue(t *testing.T) {
	data, err := hessian.Codec().Marshaler()(map[string]interface{}{
		"when": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		"ids":  map[int]string{1: "one"},
		"raw":  []byte("hi"),
	})
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := hessian.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := hessian.Plain(decoded)
	if err != nil {
		t.Fatal(err)
	}

	out, err := Codec().Marshaler()(plain)
	if err != nil {
		t.Fatal(err)
	}

	exp := `{"ids":{"1":"one"},"raw":"aGk=","when":"2024-01-02T03:04:05Z"}`
	if string(out) != exp {
		t.Fatalf("expected marshaled data to be %q; got %q", exp, string(out))
	}
}

func TestUnmarshalIntoAny(t *testing.T) {
	var target interface{}
	if err := Codec().Unmarshaler()([]byte(`{"method":"add","args":[1,2]}`), &target); err != nil {
		t.Fatal(err)
	}

	exp := map[string]interface{}{
		"method": "add",
		"args":   []interface{}{1.0, 2.0},
	}
	if !reflect.DeepEqual(target, exp) {
		t.Fatalf("expected unmarshaled value to be:\n%#+v\n\ngot:\n%#+v", exp, target)
	}
}

func TestRegistered(t *testing.T) {
	codec, err := encoding.Lookup("json")
	if err != nil {
		t.Fatal(err)
	}
	if codec.ContentType() != "application/json" {
		t.Fatalf("expected content type to be application/json; got %q", codec.ContentType())
	}
}
