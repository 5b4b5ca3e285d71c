package hessian

import (
	"math/big"
	"reflect"
	"time"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	bigIntType = reflect.TypeOf((*big.Int)(nil))
)

// Unmarshal decodes data and stores the result in the value pointed to by
// target.
//
// Decoded values are converted to the target type: integers and doubles to
// any numeric kind that can hold them, lists to slices and arrays, maps to
// maps, and maps, objects and records to structs by field name. A list
// assigned to a struct fills its fields positionally.
func Unmarshal(data []byte, target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errNilTarget
	}

	v, err := Parse(data)
	if err != nil {
		return err
	}
	return assign(rv.Elem(), v, 0)
}

// Assign stores a previously decoded value in the value pointed to by
// target, applying the same conversions as Unmarshal.
func Assign(v interface{}, target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errNilTarget
	}
	return assign(rv.Elem(), v, 0)
}

func assign(dst reflect.Value, src interface{}, depth int) error {
	if depth > maxDepth {
		return errTooDeep
	}
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	sv := reflect.ValueOf(src)
	if dst.Kind() == reflect.Interface {
		if !sv.Type().AssignableTo(dst.Type()) {
			return &UnmarshalTypeError{Value: src, Type: dst.Type()}
		}
		dst.Set(sv)
		return nil
	}
	if sv.Type().AssignableTo(dst.Type()) && dst.Kind() != reflect.Struct {
		dst.Set(sv)
		return nil
	}

	mismatch := &UnmarshalTypeError{Value: src, Type: dst.Type()}
	switch dst.Type() {
	case timeType:
		t, ok := src.(time.Time)
		if !ok {
			return mismatch
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	case bigIntType:
		n, ok := toInt64(src)
		if !ok {
			return mismatch
		}
		dst.Set(reflect.ValueOf(big.NewInt(n)))
		return nil
	}

	switch dst.Kind() {
	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return assign(dst.Elem(), src, depth+1)

	case reflect.Bool:
		b, ok := src.(bool)
		if !ok {
			return mismatch
		}
		dst.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if _, isString := src.(string); isString {
			return mismatch
		}
		n, ok := toInt64(src)
		if !ok || dst.OverflowInt(n) {
			return mismatch
		}
		dst.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if _, isString := src.(string); isString {
			return mismatch
		}
		n, ok := toInt64(src)
		if !ok || n < 0 || dst.OverflowUint(uint64(n)) {
			return mismatch
		}
		dst.SetUint(uint64(n))

	case reflect.Float32, reflect.Float64:
		if _, isString := src.(string); isString {
			return mismatch
		}
		f, ok := toFloat64(src)
		if !ok || dst.OverflowFloat(f) {
			return mismatch
		}
		dst.SetFloat(f)

	case reflect.String:
		switch s := src.(type) {
		case string:
			dst.SetString(s)
		case []byte:
			dst.SetString(string(s))
		default:
			return mismatch
		}

	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			b, ok := toBytes(src)
			if !ok {
				return mismatch
			}
			dst.SetBytes(append([]byte(nil), b...))
			return nil
		}
		list, ok := listOf(src)
		if !ok {
			return mismatch
		}
		out := reflect.MakeSlice(dst.Type(), len(list), len(list))
		for i, item := range list {
			if err := assign(out.Index(i), item, depth+1); err != nil {
				return err
			}
		}
		dst.Set(out)

	case reflect.Array:
		list, ok := listOf(src)
		if !ok {
			return mismatch
		}
		for i := 0; i < dst.Len(); i++ {
			var item interface{}
			if i < len(list) {
				item = list[i]
			}
			if err := assign(dst.Index(i), item, depth+1); err != nil {
				return err
			}
		}

	case reflect.Map:
		return assignMap(dst, src, depth)

	case reflect.Struct:
		return assignStruct(dst, src, depth)

	default:
		return mismatch
	}
	return nil
}

func listOf(src interface{}) ([]interface{}, bool) {
	switch v := src.(type) {
	case []interface{}:
		return v, true
	case *Record:
		return v.Values, true
	}
	return nil, false
}

// entriesOf returns the key/value pairs of a decoded map, object or record.
func entriesOf(src interface{}) (map[interface{}]interface{}, bool) {
	switch v := src.(type) {
	case map[interface{}]interface{}:
		return v, true
	case *Object:
		m := make(map[interface{}]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			m[f.Name] = f.Value
		}
		return m, true
	case *Record:
		m := make(map[interface{}]interface{}, len(v.Shape.Fields))
		for k, val := range v.Map() {
			m[k] = val
		}
		return m, true
	}
	return nil, false
}

func assignMap(dst reflect.Value, src interface{}, depth int) error {
	entries, ok := entriesOf(src)
	if !ok {
		return &UnmarshalTypeError{Value: src, Type: dst.Type()}
	}

	t := dst.Type()
	out := reflect.MakeMapWithSize(t, len(entries))
	for k, v := range entries {
		key := reflect.New(t.Key()).Elem()
		if err := assign(key, k, depth+1); err != nil {
			return err
		}
		val := reflect.New(t.Elem()).Elem()
		if err := assign(val, v, depth+1); err != nil {
			return err
		}
		out.SetMapIndex(key, val)
	}
	dst.Set(out)
	return nil
}

func assignStruct(dst reflect.Value, src interface{}, depth int) error {
	info := structInfoOf(dst.Type())

	if list, ok := listOf(src); ok {
		if _, isRecord := src.(*Record); !isRecord {
			for i, f := range info.fields {
				if i >= len(list) {
					break
				}
				if err := assign(fieldByIndex(dst, f.index), list[i], depth+1); err != nil {
					return err
				}
			}
			return nil
		}
	}

	entries, ok := entriesOf(src)
	if !ok {
		return &UnmarshalTypeError{Value: src, Type: dst.Type()}
	}
	for _, f := range info.fields {
		v, found := entries[f.name]
		if !found {
			continue
		}
		if err := assign(fieldByIndex(dst, f.index), v, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// fieldByIndex walks an index path, allocating nil embedded pointers.
func fieldByIndex(v reflect.Value, index []int) reflect.Value {
	for i, idx := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(idx)
	}
	return v
}
