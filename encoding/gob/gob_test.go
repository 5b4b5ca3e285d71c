package gob

import (
	"reflect"
	"testing"

	"github.com/achilleasa/hessian2/encoding/hessian"
)

func TestTranscodeHessianCall(t *testing.T) {
	data, err := hessian.EncodeCall("echo", "hello", true)
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

	codec := Codec()
	out, err := codec.Marshaler()(plain)
	if err != nil {
		t.Fatal(err)
	}

	var target map[string]interface{}
	if err = codec.Unmarshaler()(out, &target); err != nil {
		t.Fatal(err)
	}

	exp := map[string]interface{}{
		"method": "echo",
		"args":   []interface{}{"hello", true},
	}
	if !reflect.DeepEqual(target, exp) {
		t.Fatalf("expected unmarshaled value to be:\n%#+v\n\ngot:\n%#+v", exp, target)
	}
}

func TestCodecPlainValues(t *testing.T) {
	value := map[string]interface{}{
		"name":  "monkey",
		"age":   int64(3),
		"items": []interface{}{"banana", 1.5},
	}

	codec := Codec()
	data, err := codec.Marshaler()(value)
	if err != nil {
		t.Fatal(err)
	}

	var target map[string]interface{}
	if err = codec.Unmarshaler()(data, &target); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(value, target) {
		t.Fatalf("expected unmarshaled value to be:\n%#+v\n\ngot:\n%#+v", value, target)
	}
}
