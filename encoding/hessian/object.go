package hessian

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Field is a named value of an Object.
type Field struct {
	Name  string
	Value interface{}
}

// Object is the decoded form of a Hessian object: a class name and the
// field values in class-definition order. Objects can be encoded again and
// keep their class name and field order.
type Object struct {
	Class  string
	Fields []Field
}

// Get returns the value of the named field.
func (o *Object) Get(name string) (interface{}, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of the named field or appends it.
func (o *Object) Set(name string, value interface{}) {
	for i := range o.Fields {
		if o.Fields[i].Name == name {
			o.Fields[i].Value = value
			return
		}
	}
	o.Fields = append(o.Fields, Field{Name: name, Value: value})
}

func (o *Object) fieldNames() []string {
	names := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		names[i] = f.Name
	}
	return names
}

// ClassNamer is implemented by Go types that choose the wire class name used
// when they are encoded as objects. Types that do not implement it are
// written with their bare Go type name, so same-named types from different
// packages need it to appear in one message.
type ClassNamer interface {
	HessianClass() string
}

// Shape describes the positional layout of a structured record.
type Shape struct {
	Name   string
	Fields []string
}

// NewShape returns a shape with the given field order.
func NewShape(name string, fields ...string) *Shape {
	return &Shape{Name: name, Fields: fields}
}

// ShapeOf derives a shape from a struct value, a pointer to one or a
// reflect.Type. Field names follow the same rules as object encoding.
func ShapeOf(v interface{}) (*Shape, error) {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("hessian: cannot derive a shape from %v", t)
	}

	info := structInfoOf(t)
	return &Shape{Name: info.class, Fields: info.names()}, nil
}

func (s *Shape) indexOf(name string) int {
	for i, f := range s.Fields {
		if f == name {
			return i
		}
	}
	return -1
}

// Record is a value rehydrated with a Shape. Values holds one entry per
// shape field; fields missing on the wire are nil.
type Record struct {
	Shape  *Shape
	Values []interface{}
}

// Get returns the value of the named field.
func (r *Record) Get(name string) (interface{}, bool) {
	idx := r.Shape.indexOf(name)
	if idx < 0 || idx >= len(r.Values) {
		return nil, false
	}
	return r.Values[idx], true
}

// Map returns the record contents keyed by field name.
func (r *Record) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Shape.Fields))
	for i, name := range r.Shape.Fields {
		if i < len(r.Values) {
			m[name] = r.Values[i]
		} else {
			m[name] = nil
		}
	}
	return m
}

type structField struct {
	name  string
	index []int
}

type structInfo struct {
	class  string
	fields []structField
}

func (s *structInfo) names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

func (s *structInfo) field(name string) (structField, bool) {
	for _, f := range s.fields {
		if f.name == name {
			return f, true
		}
	}
	return structField{}, false
}

var (
	structCache    sync.Map
	classNamerType = reflect.TypeOf((*ClassNamer)(nil)).Elem()
)

// structInfoOf returns the cached field layout of a struct type.
func structInfoOf(t reflect.Type) *structInfo {
	if cached, ok := structCache.Load(t); ok {
		return cached.(*structInfo)
	}

	info := &structInfo{class: t.Name()}
	if info.class == "" {
		info.class = t.String()
	}
	if t.Implements(classNamerType) {
		info.class = reflect.Zero(t).Interface().(ClassNamer).HessianClass()
	} else if reflect.PtrTo(t).Implements(classNamerType) {
		info.class = reflect.New(t).Interface().(ClassNamer).HessianClass()
	}
	info.fields = collectFields(t, nil)

	actual, _ := structCache.LoadOrStore(t, info)
	return actual.(*structInfo)
}

func collectFields(t reflect.Type, prefix []int) []structField {
	var fields []structField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("hessian")
		if tag == "-" {
			continue
		}

		index := make([]int, len(prefix)+1)
		copy(index, prefix)
		index[len(prefix)] = i

		if sf.Anonymous && tag == "" && sf.Type.Kind() == reflect.Struct {
			fields = append(fields, collectFields(sf.Type, index)...)
			continue
		}
		if sf.PkgPath != "" {
			continue
		}

		name := tag
		if idx := strings.IndexByte(tag, ','); idx >= 0 {
			name = tag[:idx]
		}
		if name == "" {
			name = lowerFirst(sf.Name)
		}
		fields = append(fields, structField{name: name, index: index})
	}
	return fields
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

// className returns the wire class name of a struct, *Object or *Record.
func className(v reflect.Value) string {
	switch obj := v.Interface().(type) {
	case *Object:
		return obj.Class
	case *Record:
		return obj.Shape.Name
	}
	v = reflect.Indirect(v)
	return structInfoOf(v.Type()).class
}

// fieldNames lists the field names a value exposes when it is encoded as an
// object. String-keyed maps list their keys in sorted order.
func fieldNames(v reflect.Value) ([]string, error) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		switch obj := v.Interface().(type) {
		case *Object:
			return obj.fieldNames(), nil
		case *Record:
			return obj.Shape.Fields, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return structInfoOf(v.Type()).names(), nil
	case reflect.Map:
		names := make([]string, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key()
			if key.Kind() == reflect.Interface {
				key = key.Elem()
			}
			if key.Kind() != reflect.String {
				return nil, &TypeError{Type: "object", Value: v.Interface()}
			}
			names = append(names, key.String())
		}
		sort.Strings(names)
		return names, nil
	}
	return nil, &TypeError{Type: "object", Value: v.Interface()}
}

// fieldValue looks up a named field of a map, struct, *Object or *Record.
// The boolean result is false when the value does not carry the field.
func fieldValue(v reflect.Value, name string) (interface{}, bool) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, false
		}
		switch obj := v.Interface().(type) {
		case *Object:
			return obj.Get(name)
		case *Record:
			return obj.Get(name)
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		f, ok := structInfoOf(v.Type()).field(name)
		if !ok {
			return nil, false
		}
		fv, err := v.FieldByIndexErr(f.index)
		if err != nil {
			return nil, false
		}
		return fv.Interface(), true
	case reflect.Map:
		keyType := v.Type().Key()
		var key reflect.Value
		switch {
		case keyType.Kind() == reflect.String:
			key = reflect.ValueOf(name).Convert(keyType)
		case keyType.Kind() == reflect.Interface:
			key = reflect.ValueOf(name)
		default:
			return nil, false
		}
		mv := v.MapIndex(key)
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	}
	return nil, false
}
