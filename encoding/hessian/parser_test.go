package hessian

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCompactForms(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want interface{}
	}{
		{"int direct", []byte{0x80}, int32(-16)},
		{"int byte", []byte{0xc7, 0xef}, int32(-17)},
		{"int short", []byte{0xd0, 0x00, 0x00}, int32(-0x40000)},
		{"int full", []byte{'I', 0x80, 0x00, 0x00, 0x00}, int32(-0x80000000)},
		{"long direct", []byte{0xd8}, int64(-8)},
		{"long byte", []byte{0xf7, 0xf7}, int64(-9)},
		{"long short", []byte{0x38, 0x00, 0x00}, int64(-0x40000)},
		{"long int", []byte{0x59, 0xff, 0xff, 0xff, 0xff}, int64(-1)},
		{"double byte", []byte{0x5d, 0x80}, -128.0},
		{"double short", []byte{0x5e, 0x80, 0x00}, -32768.0},
		{"double mill", []byte{0x5f, 0x00, 0x00, 0x09, 0xc4}, 2.5},
		{"date minute", []byte{0x4b, 0x00, 0xe3, 0x83, 0x8f}, time.Date(1998, 5, 8, 9, 51, 0, 0, time.UTC)},
		{"string short", append([]byte{0x30, 0x03}, "abc"...), "abc"},
		{"binary short", []byte{0x34, 0x02, 0xaa, 0xbb}, []byte{0xaa, 0xbb}},
		{"typed list", []byte{0x72, 0x04, '[', 'i', 'n', 't', 0x90, 0x91}, []interface{}{int32(0), int32(1)}},
		{"typed fixed list", []byte{'V', 0x04, '[', 'i', 'n', 't', 0x92, 0x90, 0x91}, []interface{}{int32(0), int32(1)}},
		{"variable list", []byte{'U', 0x04, '[', 'i', 'n', 't', 0x90, 0x91, 'Z'}, []interface{}{int32(0), int32(1)}},
		{"variable untyped list", []byte{'W', 0x90, 'Z'}, []interface{}{int32(0)}},
		{"typed map", []byte{'M', 0x03, 'f', 'o', 'o', 0x91, 0x01, 'a', 'Z'}, map[interface{}]interface{}{int32(1): "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.data)
			require.NoError(t, err)
			require.Equal(t, tt.want, v)
		})
	}
}

func TestParseChunks(t *testing.T) {
	data := []byte{'R', 0x00, 0x02, 'a', 'b', 0x01, 'c'}
	v, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	data = []byte{'A', 0x00, 0x01, 0x01, 0x21, 0x02}
	v, err = Parse(data)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, v)
}

func TestParseTypeReferences(t *testing.T) {
	data := []byte{
		0x7a,
		0x71, 0x04, '[', 'i', 'n', 't', 0x90,
		0x71, 0x90, 0x91,
	}
	v, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, []interface{}{[]interface{}{int32(0)}, []interface{}{int32(1)}}, v)
}

func TestParseObjectIndex(t *testing.T) {
	data := cat(
		'C', 0x01, "A", 0x90,
		'O', 0x90,
	)
	v, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, &Object{Class: "A", Fields: []Field{}}, v)
}

func TestParseMultipleValues(t *testing.T) {
	v, err := Parse([]byte{0x91, 0x92})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int32(1), int32(2)}, v)

	v, err = Parse([]byte{0x91, 'z', 0x92})
	require.NoError(t, err)
	require.Equal(t, int32(1), v)

	v, err = Parse(nil)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestParseProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"unknown tag", []byte{0x40}},
		{"truncated int", []byte{'I', 0x00}},
		{"truncated string", []byte{0x03, 'a'}},
		{"invalid utf-8", []byte{0x01, 0xff}},
		{"reference out of range", []byte{0x51, 0x90}},
		{"chunk followed by another tag", []byte{'R', 0x00, 0x01, 'a', 0x90}},
		{"binary chunk followed by another tag", []byte{'A', 0x00, 0x01, 0x01, 0x01, 'a'}},
		{"undefined class", []byte{0x60}},
		{"unterminated map", []byte{'H', 0x91}},
		{"unterminated variable list", []byte{'W', 0x91}},
		{"unknown type index", []byte{0x71, 0x95, 0x90}},
		{"negative list length", []byte{'X', 0x8f}},
		{"list longer than input", []byte{'X', 'I', 0x10, 0x00, 0x00, 0x00}},
		{"unhashable map key", []byte{'H', 0x78, 0x90, 'Z'}},
		{"stray map end", []byte{'Z'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrProtocol), "expected a protocol error; got %v", err)

			var protoErr *ProtocolError
			require.ErrorAs(t, err, &protoErr)
		})
	}
}

func TestParseNestingLimit(t *testing.T) {
	data := make([]byte, maxDepth+2)
	for i := range data {
		data[i] = 0x79
	}
	_, err := Parse(data)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestParseChainedClassDefinitions(t *testing.T) {
	const count = 1 << 20
	data := make([]byte, 0, 3*count+1)
	for i := 0; i < count; i++ {
		data = append(data, 'C', 0x00, 0x90)
	}
	data = append(data, 'N')

	v, err := Parse(data)
	require.NoError(t, err)
	require.Nil(t, v)

	_, err = Parse(data[:3*count])
	require.Error(t, err)
}

func TestParseFalseFollowedByMap(t *testing.T) {
	enc := NewEncoder()
	require.NoError(t, enc.Encode(false))
	require.NoError(t, enc.Encode(map[string]string{"code": "x"}))

	v, err := Parse(enc.Bytes())
	require.NoError(t, err)
	require.Equal(t, []interface{}{false, map[interface{}]interface{}{"code": "x"}}, v)

	// A leading fault is still reported.
	_, err = Parse(cat('F', 'H', 0x04, "code", 0x01, "x", 'Z'))
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.Equal(t, "x", fault.Code)
}

func TestParseShape(t *testing.T) {
	shape := NewShape("Monkey", "name", "age")

	rec, err := ParseShape(cat(0x7a, 0x07, "Gorilla", 0x9a), shape)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"Gorilla", int32(10)}, rec.Values)

	rec, err = ParseShape(cat('H', 0x03, "age", 0x9a, 0x04, "name", 0x07, "Gorilla", 'Z'), shape)
	require.NoError(t, err)
	name, _ := rec.Get("name")
	require.Equal(t, "Gorilla", name)
	require.Equal(t, map[string]interface{}{"name": "Gorilla", "age": int32(10)}, rec.Map())

	rec, err = ParseShape(cat(0x79, 0x07, "Gorilla"), shape)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"Gorilla", nil}, rec.Values)

	rec, err = ParseShape([]byte{'N'}, shape)
	require.NoError(t, err)
	require.Nil(t, rec)

	_, err = ParseShape([]byte{0x91}, shape)
	var typeErr *UnmarshalTypeError
	require.ErrorAs(t, err, &typeErr)

	_, err = ParseShape([]byte{'N'}, nil)
	require.ErrorIs(t, err, ErrMissingShape)
}

func TestParseShapes(t *testing.T) {
	shape := NewShape("Monkey", "name", "age")

	records, err := ParseShapes(cat(0x7a, 0x7a, 0x07, "Gorilla", 0x9a, 'N'), shape)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, []interface{}{"Gorilla", int32(10)}, records[0].Values)
	require.Nil(t, records[1])

	records, err = ParseShapes([]byte{'N'}, shape)
	require.NoError(t, err)
	require.Nil(t, records)
}

func TestDecoderStream(t *testing.T) {
	enc := NewEncoder()
	require.NoError(t, enc.Encode("a"))
	require.NoError(t, enc.Encode(map[string]int{"k": 1}))

	dec := NewDecoder(enc.Bytes())
	var values []interface{}
	for dec.More() {
		v, err := dec.Decode()
		require.NoError(t, err)
		values = append(values, v)
	}
	require.Equal(t, []interface{}{"a", map[interface{}]interface{}{"k": int32(1)}}, values)
	require.Equal(t, len(enc.Bytes()), dec.Offset())
}
