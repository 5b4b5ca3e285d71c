package hessian

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrProtocol is wrapped by every error reported for a malformed byte stream.
	ErrProtocol = errors.New("hessian: protocol violation")

	// ErrMissingShape is returned when a StructWrapper or a shaped decode is
	// requested without a shape descriptor.
	ErrMissingShape = errors.New("hessian: struct wrapper requires a shape")

	// ErrNotSlice is returned when a multi-record StructWrapper wraps a value
	// that is neither nil nor a slice or array.
	ErrNotSlice = errors.New("hessian: multi-record struct wrapper requires a slice value")

	errTruncated      = errors.New("unexpected end of data")
	errNotACall       = errors.New("stream does not contain a call envelope")
	errNilTarget      = errors.New("hessian: unmarshal target must be a non-nil pointer")
	errInvalidUTF8    = errors.New("invalid utf-8 sequence")
	errNotAnInteger   = errors.New("expected an integer")
	errNotAString     = errors.New("expected a string")
	errNegativeLength = errors.New("negative length")
)

// ProtocolError describes a byte stream that violates the Hessian 2.0
// grammar. Offset is the position of the offending byte.
type ProtocolError struct {
	Offset int
	Tag    byte
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("hessian: protocol violation at offset %d (tag 0x%02x): %v", e.Offset, e.Tag, e.Err)
}

// Unwrap allows errors.Is(err, ErrProtocol) checks.
func (e *ProtocolError) Unwrap() []error {
	return []error{ErrProtocol, e.Err}
}

// TypeError is returned when a value cannot be represented by the wire type
// it was declared with.
type TypeError struct {
	Type  string
	Value interface{}
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("hessian: value %v (%T) cannot be encoded as %q", e.Value, e.Value, e.Type)
}

// ClassConflictError is returned when a struct is written as an instance of
// a class whose definition in the message lacks one of its fields. This
// happens when Go types from different packages share a type name; give
// them distinct classes with ClassNamer.
type ClassConflictError struct {
	Class string
	Type  reflect.Type
	Field string
}

func (e *ClassConflictError) Error() string {
	return fmt.Sprintf("hessian: class %q has no field %q required by %s", e.Class, e.Field, e.Type)
}

// UnsupportedTypeError is returned when the encoder meets a Go type that has
// no Hessian representation, such as a channel or a function.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return "hessian: unsupported type " + e.Type.String()
}

// UnmarshalTypeError describes a decoded value that cannot be assigned to
// the Go value passed to Unmarshal.
type UnmarshalTypeError struct {
	Value interface{}
	Type  reflect.Type
}

func (e *UnmarshalTypeError) Error() string {
	return fmt.Sprintf("hessian: cannot unmarshal %T into Go value of type %s", e.Value, e.Type)
}
