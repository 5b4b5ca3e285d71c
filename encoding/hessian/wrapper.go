package hessian

import (
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
)

// ClassWrapper encodes a map, struct or a slice of them as Hessian objects
// of an explicitly named class instead of deriving the class from the Go
// type. Slices are written as a typed list named "[" + Class whose elements
// share a single class definition.
type ClassWrapper struct {
	Class string
	Value interface{}
}

// WrapClass returns a ClassWrapper for v. A leading "[" in class is
// accepted for slice values and ignored when naming the class itself.
func WrapClass(class string, v interface{}) *ClassWrapper {
	return &ClassWrapper{Class: class, Value: v}
}

// TypeWrapper forces the wire encoding of a value. Scalar tags select the
// numeric width or binary form; slices become typed lists whose elements are
// encoded with the element tag and maps become typed maps.
//
// Recognised tags: "long" ("L", "Long"), "int" ("I", "Integer"), "binary"
// ("B", "b"), "double" ("D", "Double"), "string" ("S", "String") and
// "boolean" ("T", "Boolean"). A leading "[" is accepted for slice values.
type TypeWrapper struct {
	Type  string
	Value interface{}
}

// WrapType returns a TypeWrapper for v.
func WrapType(typ string, v interface{}) *TypeWrapper {
	return &TypeWrapper{Type: typ, Value: v}
}

// StructWrapper writes values as positional records laid out by Shape: each
// record becomes an untyped list holding its field values in shape order.
// With Multi set the value must be a slice and every element is written as
// a record (nil elements stay null).
type StructWrapper struct {
	Shape *Shape
	Multi bool
	Value interface{}
}

// WrapStruct wraps a single record source: a map, struct, *Object or nil.
func WrapStruct(shape *Shape, v interface{}) (*StructWrapper, error) {
	if shape == nil {
		return nil, ErrMissingShape
	}
	return &StructWrapper{Shape: shape, Value: v}, nil
}

// WrapStructs wraps a slice of record sources.
func WrapStructs(shape *Shape, v interface{}) (*StructWrapper, error) {
	if shape == nil {
		return nil, ErrMissingShape
	}
	if v != nil {
		switch reflect.ValueOf(v).Kind() {
		case reflect.Slice, reflect.Array:
		default:
			return nil, ErrNotSlice
		}
	}
	return &StructWrapper{Shape: shape, Multi: true, Value: v}, nil
}

type wireType int

const (
	wireOther wireType = iota
	wireLong
	wireInt
	wireBinary
	wireDouble
	wireString
	wireBool
)

func parseWireType(tag string) wireType {
	switch tag {
	case "L", "Long", "long":
		return wireLong
	case "I", "Integer", "int":
		return wireInt
	case "B", "b", "binary":
		return wireBinary
	case "D", "Double", "double":
		return wireDouble
	case "S", "String", "string":
		return wireString
	case "T", "Boolean", "boolean":
		return wireBool
	}
	return wireOther
}

// listTypes splits a type tag into the typed list name and the element tag.
func listTypes(tag string) (listType, elemType string) {
	if strings.HasPrefix(tag, "[") {
		return tag, strings.TrimLeft(tag, "[")
	}
	return "[" + tag, tag
}

// toInt64 converts integral numbers, integral floats, big integers and
// numeric strings.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil || !n.IsInt64() {
			return 0, false
		}
		return n.Int64(), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
		return f, err == nil
	}
	return 0, false
}

func toBytes(v interface{}) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return rv.Bytes(), true
	}
	return nil, false
}
