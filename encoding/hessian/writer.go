package hessian

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// maxDepth bounds the nesting of composites handled by the encoder, the
// parser and Unmarshal.
const maxDepth = 4096

var errTooDeep = errors.New("composite nesting exceeds maximum depth")

// Encoder serializes Go values into a Hessian 2.0 byte stream. The reference,
// class and type tables of an encoder are shared by every value written to
// it, so all values encoded with one Encoder form a single message.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	buf     []byte
	refs    *refTracker
	classes *classTable
	types   *typeTable
	depth   int
}

// NewEncoder returns an encoder with empty per-message tables.
func NewEncoder() *Encoder {
	return &Encoder{
		refs:    newRefTracker(),
		classes: newClassTable(),
		types:   newTypeTable(),
	}
}

// Encode appends the encoding of v. If encoding fails the buffer is left
// as it was before the call.
func (e *Encoder) Encode(v interface{}) error {
	mark, refs, classes, types := len(e.buf), e.refs.count, len(e.classes.defs), len(e.types.names)
	if err := e.writeValue(v); err != nil {
		e.buf = e.buf[:mark]
		e.refs.truncate(refs)
		e.classes.truncate(classes)
		e.types.truncate(types)
		e.depth = 0
		return err
	}
	return nil
}

// Bytes returns the encoded message.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Reset clears the buffer and starts a new message.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.refs = newRefTracker()
	e.classes = newClassTable()
	e.types = newTypeTable()
	e.depth = 0
}

// Marshal returns the Hessian encoding of v as a standalone message.
func Marshal(v interface{}) ([]byte, error) {
	e := NewEncoder()
	if err := e.writeValue(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

func (e *Encoder) writeValue(v interface{}) error {
	switch val := v.(type) {
	case nil:
		e.writeNull()
		return nil
	case *StructWrapper:
		return e.writeStructWrapper(val)
	case StructWrapper:
		return e.writeStructWrapper(&val)
	case *ClassWrapper:
		return e.writeClassWrapper(val)
	case ClassWrapper:
		return e.writeClassWrapper(&val)
	case *TypeWrapper:
		return e.writeTypeWrapper(val)
	case TypeWrapper:
		return e.writeTypeWrapper(&val)
	case bool:
		e.writeBool(val)
		return nil
	case time.Time:
		e.writeDate(val)
		return nil
	case float64:
		e.writeDouble(val)
		return nil
	case float32:
		e.writeDouble(float64(val))
		return nil
	case int:
		e.writeInteger(int64(val))
		return nil
	case int32:
		e.writeInteger(int64(val))
		return nil
	case int64:
		e.writeInteger(val)
		return nil
	case []byte:
		e.writeBinary(val)
		return nil
	case *big.Int:
		if val == nil {
			e.writeNull()
			return nil
		}
		return e.writeBigInt(val)
	case string:
		return e.writeStringValue(val)
	}
	return e.writeReflect(reflect.ValueOf(v))
}

// writeReflect handles named types, composites and structs.
func (e *Encoder) writeReflect(rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Bool:
		e.writeBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.writeInteger(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return e.writeBigInt(new(big.Int).SetUint64(u))
		}
		e.writeInteger(int64(u))
	case reflect.Float32, reflect.Float64:
		e.writeDouble(rv.Float())
	case reflect.String:
		return e.writeStringValue(rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			e.writeNull()
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			e.writeBinary(rv.Bytes())
			return nil
		}
		return e.writeList(rv, "")
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			e.writeBinary(b)
			return nil
		}
		return e.writeList(rv, "")
	case reflect.Map:
		if rv.IsNil() {
			e.writeNull()
			return nil
		}
		return e.writeMap(rv, "")
	case reflect.Interface:
		if rv.IsNil() {
			e.writeNull()
			return nil
		}
		return e.writeValue(rv.Elem().Interface())
	case reflect.Ptr:
		if rv.IsNil() {
			e.writeNull()
			return nil
		}
		switch obj := rv.Interface().(type) {
		case *Object:
			return e.writeObject(rv, obj.Class)
		case *Record:
			if obj.Shape == nil {
				return ErrMissingShape
			}
			return e.writeRecord(obj.Shape, rv)
		case *time.Time:
			e.writeDate(*obj)
			return nil
		}
		if rv.Elem().Kind() == reflect.Struct {
			return e.writeObject(rv, className(rv))
		}
		return e.writeValue(rv.Elem().Interface())
	case reflect.Struct:
		if t, ok := rv.Interface().(time.Time); ok {
			e.writeDate(t)
			return nil
		}
		return e.writeObject(rv, className(rv))
	default:
		return &UnsupportedTypeError{Type: rv.Type()}
	}
	return nil
}

func (e *Encoder) enter() error {
	e.depth++
	if e.depth > maxDepth {
		return errTooDeep
	}
	return nil
}

func (e *Encoder) leave() {
	e.depth--
}

func (e *Encoder) writeNull() {
	e.buf = append(e.buf, bcNull)
}

func (e *Encoder) writeBool(v bool) {
	if v {
		e.buf = append(e.buf, bcTrue)
	} else {
		e.buf = append(e.buf, bcFalse)
	}
}

// writeInteger writes a native integer: the int cascade while the value
// fits in 32 bits, the full 8-byte long form otherwise.
func (e *Encoder) writeInteger(v int64) {
	if v >= int32Min && v <= int32Max {
		e.writeInt(int32(v))
		return
	}
	e.buf = append(e.buf, bcLong)
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
}

func (e *Encoder) writeInt(v int32) {
	switch {
	case v >= intDirectMin && v <= intDirectMax:
		e.buf = append(e.buf, byte(int32(bcIntZero)+v))
	case v >= intByteMin && v <= intByteMax:
		e.buf = append(e.buf, byte(int32(bcIntByteZero)+v>>8), byte(v))
	case v >= intShortMin && v <= intShortMax:
		e.buf = append(e.buf, byte(int32(bcIntShortZero)+v>>16), byte(v>>8), byte(v))
	default:
		e.buf = append(e.buf, bcInt)
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
	}
}

func (e *Encoder) writeLong(v int64) {
	switch {
	case v >= longDirectMin && v <= longDirectMax:
		e.buf = append(e.buf, byte(int64(bcLongZero)+v))
	case v >= longByteMin && v <= longByteMax:
		e.buf = append(e.buf, byte(int64(bcLongByteZero)+v>>8), byte(v))
	case v >= longShortMin && v <= longShortMax:
		e.buf = append(e.buf, byte(int64(bcLongShortZero)+v>>16), byte(v>>8), byte(v))
	case v >= int32Min && v <= int32Max:
		e.buf = append(e.buf, bcLongInt)
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(int32(v)))
	default:
		e.buf = append(e.buf, bcLong)
		e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
	}
}

// writeBigInt writes integers that overflowed the native width. They keep
// the long encoding: 4-byte form inside the int32 range, 8 bytes otherwise.
func (e *Encoder) writeBigInt(v *big.Int) error {
	if !v.IsInt64() {
		return &TypeError{Type: "long", Value: v}
	}
	n := v.Int64()
	if n >= int32Min && n <= int32Max {
		e.buf = append(e.buf, bcLongInt)
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(int32(n)))
		return nil
	}
	e.buf = append(e.buf, bcLong)
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(n))
	return nil
}

func (e *Encoder) writeDouble(v float64) {
	switch {
	case math.IsInf(v, 0) || math.IsNaN(v) || (v == 0 && math.Signbit(v)):
		e.writeFullDouble(v)
		return
	case v == 0:
		e.buf = append(e.buf, bcDoubleZero)
		return
	case v == 1:
		e.buf = append(e.buf, bcDoubleOne)
		return
	}

	if v == math.Trunc(v) {
		if v >= math.MinInt8 && v <= math.MaxInt8 {
			e.buf = append(e.buf, bcDoubleByte, byte(int8(v)))
			return
		}
		if v >= math.MinInt16 && v <= math.MaxInt16 {
			s := int16(v)
			e.buf = append(e.buf, bcDoubleShort, byte(s>>8), byte(s))
			return
		}
	}

	if mills, ok := exactMills(v); ok {
		e.buf = append(e.buf, bcDoubleMill)
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(mills))
		return
	}
	e.writeFullDouble(v)
}

func (e *Encoder) writeFullDouble(v float64) {
	e.buf = append(e.buf, bcDouble)
	e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(v))
}

// exactMills reports whether v*1000 is an integer in the int32 range
// without any rounding, so that mills/1000 reproduces v bit for bit.
func exactMills(v float64) (int32, bool) {
	p := v * 1000
	if p != math.Trunc(p) || p < int32Min || p > int32Max {
		return 0, false
	}
	if math.FMA(v, 1000, -p) != 0 {
		return 0, false
	}
	return int32(p), true
}

// writeDate uses the minute form for values on a whole UTC minute. Zones
// with second offsets make the local clock a poor guide.
func (e *Encoder) writeDate(t time.Time) {
	if u := t.UTC(); u.Second() == 0 && u.Nanosecond() == 0 {
		minutes := t.Unix() / 60
		if minutes >= int32Min && minutes <= int32Max {
			e.buf = append(e.buf, bcDateMinute)
			e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(int32(minutes)))
			return
		}
	}
	e.buf = append(e.buf, bcDate)
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(t.UnixMilli()))
}

// writeStringValue writes a string value. Invalid UTF-8 cannot be
// represented and is rejected.
func (e *Encoder) writeStringValue(s string) error {
	if !utf8.ValidString(s) {
		return &TypeError{Type: "string", Value: s}
	}
	e.writeString(s)
	return nil
}

// writeString writes names and fault text; invalid UTF-8 is replaced with
// U+FFFD. It splits s into segments of at most chunkSize code points.
// Segment lengths count code points, not bytes.
func (e *Encoder) writeString(s string) {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}

	n := utf8.RuneCountInString(s)
	for n > chunkSize {
		off := 0
		for i := 0; i < chunkSize; i++ {
			_, size := utf8.DecodeRuneInString(s[off:])
			off += size
		}
		e.buf = append(e.buf, bcStringChunk, byte(chunkSize>>8), byte(chunkSize&0xff))
		e.buf = append(e.buf, s[:off]...)
		s = s[off:]
		n -= chunkSize
	}

	switch {
	case n <= stringDirectMax:
		e.buf = append(e.buf, bcStringDirect+byte(n))
	case n <= stringShortMax:
		e.buf = append(e.buf, bcStringShort+byte(n>>8), byte(n))
	default:
		e.buf = append(e.buf, bcString, byte(n>>8), byte(n))
	}
	e.buf = append(e.buf, s...)
}

func (e *Encoder) writeBinary(b []byte) {
	for len(b) > chunkSize {
		e.buf = append(e.buf, bcBinaryChunk, byte(chunkSize>>8), byte(chunkSize&0xff))
		e.buf = append(e.buf, b[:chunkSize]...)
		b = b[chunkSize:]
	}

	n := len(b)
	switch {
	case n <= binaryDirectMax:
		e.buf = append(e.buf, bcBinaryDirect+byte(n))
	case n <= binaryShortMax:
		e.buf = append(e.buf, bcBinaryShort+byte(n>>8), byte(n))
	default:
		e.buf = append(e.buf, bcBinary, byte(n>>8), byte(n))
	}
	e.buf = append(e.buf, b...)
}

func (e *Encoder) writeRef(idx int) {
	e.buf = append(e.buf, bcRef)
	e.writeInt(int32(idx))
}

// writeType writes a list or map type name, or its index when the name was
// already written in this message.
func (e *Encoder) writeType(name string) {
	if idx, ok := e.types.lookup(name); ok {
		e.writeInt(int32(idx))
		return
	}
	e.types.add(name)
	e.writeString(name)
}

func (e *Encoder) writeListHeader(n int, typeName string) {
	switch {
	case typeName == "" && n <= listDirectMax:
		e.buf = append(e.buf, bcListDirectUntyped+byte(n))
	case typeName == "":
		e.buf = append(e.buf, bcListFixedUntyped)
		e.writeInt(int32(n))
	case n <= listDirectMax:
		e.buf = append(e.buf, bcListDirect+byte(n))
		e.writeType(typeName)
	default:
		e.buf = append(e.buf, bcListFixed)
		e.writeType(typeName)
		e.writeInt(int32(n))
	}
}

// writeList writes a slice or array. The list claims its reference slot
// before any element is written.
func (e *Encoder) writeList(rv reflect.Value, typeName string) error {
	if idx, ok := e.refs.lookup(rv); ok {
		e.writeRef(idx)
		return nil
	}
	e.refs.register(rv)

	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	n := rv.Len()
	e.writeListHeader(n, typeName)
	for i := 0; i < n; i++ {
		if err := e.writeValue(rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// writeMap writes a map as a flat key/value sequence. Keys are sorted by
// their printed form so that equal maps produce equal bytes.
func (e *Encoder) writeMap(rv reflect.Value, typeName string) error {
	if idx, ok := e.refs.lookup(rv); ok {
		e.writeRef(idx)
		return nil
	}
	e.refs.register(rv)

	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if typeName == "" {
		e.buf = append(e.buf, bcMapUntyped)
	} else {
		e.buf = append(e.buf, bcMap)
		e.writeType(typeName)
	}

	for _, key := range sortedKeys(rv) {
		if err := e.writeValue(key.Interface()); err != nil {
			return err
		}
		if err := e.writeValue(rv.MapIndex(key).Interface()); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, bcEnd)
	return nil
}

func sortedKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	if len(keys) < 2 {
		return keys
	}
	printed := make([]string, len(keys))
	for i, k := range keys {
		printed[i] = fmt.Sprint(k.Interface())
	}
	sort.Sort(keySorter{keys: keys, printed: printed})
	return keys
}

type keySorter struct {
	keys    []reflect.Value
	printed []string
}

func (s keySorter) Len() int           { return len(s.keys) }
func (s keySorter) Less(i, j int) bool { return s.printed[i] < s.printed[j] }
func (s keySorter) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	s.printed[i], s.printed[j] = s.printed[j], s.printed[i]
}

// classFor returns the definition for class, writing it when this is the
// first instance of the class in the message.
func (e *Encoder) classFor(class string, fields func() ([]string, error)) (*classDef, error) {
	if def, ok := e.classes.lookup(class); ok {
		return def, nil
	}
	names, err := fields()
	if err != nil {
		return nil, err
	}

	def := e.classes.define(class, names)
	e.buf = append(e.buf, bcClassDef)
	e.writeString(class)
	e.writeInt(int32(len(names)))
	for _, name := range names {
		e.writeString(name)
	}
	return def, nil
}

func (e *Encoder) writeInstanceTag(def *classDef) {
	if def.index <= objectDirectMax {
		e.buf = append(e.buf, bcObjectDirect+byte(def.index))
		return
	}
	e.buf = append(e.buf, bcObject)
	e.writeInt(int32(def.index))
}

// writeObject writes a struct, pointer to struct, *Object or string-keyed
// map as an instance of class. Fields missing from the value are written
// as null so every instance matches the arity of its class definition.
func (e *Encoder) writeObject(rv reflect.Value, class string) error {
	if idx, ok := e.refs.lookup(rv); ok {
		e.writeRef(idx)
		return nil
	}

	def, err := e.classFor(class, func() ([]string, error) { return fieldNames(rv) })
	if err != nil {
		return err
	}
	if err = def.checkStruct(rv); err != nil {
		return err
	}
	e.refs.register(rv)

	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	e.writeInstanceTag(def)
	for _, name := range def.fields {
		val, found := fieldValue(rv, name)
		if !found {
			e.writeNull()
			continue
		}
		if err := e.writeValue(val); err != nil {
			return err
		}
	}
	return nil
}

// checkStruct rejects a struct whose fields are not all listed by the
// class definition; those fields could not be written.
func (d *classDef) checkStruct(rv reflect.Value) error {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		switch rv.Interface().(type) {
		case *Object, *Record:
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	t := rv.Type()
	if d.checked[t] {
		return nil
	}
	for _, name := range structInfoOf(t).names() {
		if !d.hasField(name) {
			return &ClassConflictError{Class: d.name, Type: t, Field: name}
		}
	}
	if d.checked == nil {
		d.checked = make(map[reflect.Type]bool)
	}
	d.checked[t] = true
	return nil
}

func isList(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

func isNilValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func indirectInterface(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv
}

// writeClassWrapper writes the wrapped value as instances of an explicit
// class. A slice becomes a typed list whose elements share one definition
// built from the fields of the first non-nil element.
func (e *Encoder) writeClassWrapper(w *ClassWrapper) error {
	if w == nil || w.Value == nil {
		e.writeNull()
		return nil
	}
	rv := indirectInterface(reflect.ValueOf(w.Value))
	if isNilValue(rv) {
		e.writeNull()
		return nil
	}
	class := strings.TrimLeft(w.Class, "[")

	if !isList(rv) {
		return e.writeObject(rv, class)
	}

	if idx, ok := e.refs.lookup(rv); ok {
		e.writeRef(idx)
		return nil
	}
	e.refs.register(rv)

	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	n := rv.Len()
	e.writeListHeader(n, "["+class)
	for i := 0; i < n; i++ {
		elem := indirectInterface(rv.Index(i))
		if isNilValue(elem) {
			e.writeNull()
			continue
		}
		if err := e.writeObject(elem, class); err != nil {
			return err
		}
	}
	return nil
}

// writeTypeWrapper forces the encoding selected by the wrapper's type tag.
func (e *Encoder) writeTypeWrapper(w *TypeWrapper) error {
	if w == nil || w.Value == nil {
		e.writeNull()
		return nil
	}
	rv := indirectInterface(reflect.ValueOf(w.Value))
	if isNilValue(rv) {
		e.writeNull()
		return nil
	}

	listValue := isList(rv)
	if listValue && !strings.HasPrefix(w.Type, "[") && parseWireType(w.Type) == wireBinary && rv.Type().Elem().Kind() == reflect.Uint8 {
		listValue = false
	}

	switch {
	case listValue:
		if idx, ok := e.refs.lookup(rv); ok {
			e.writeRef(idx)
			return nil
		}
		e.refs.register(rv)

		if err := e.enter(); err != nil {
			return err
		}
		defer e.leave()

		listType, elemType := listTypes(w.Type)
		n := rv.Len()
		e.writeListHeader(n, listType)
		for i := 0; i < n; i++ {
			if err := e.writeTyped(elemType, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case rv.Kind() == reflect.Map:
		return e.writeMap(rv, w.Type)
	}
	return e.writeTyped(w.Type, w.Value)
}

// writeTyped writes a single value with the encoding named by tag.
func (e *Encoder) writeTyped(tag string, v interface{}) error {
	rv := indirectInterface(reflect.ValueOf(v))
	if isNilValue(rv) {
		e.writeNull()
		return nil
	}
	v = rv.Interface()

	switch parseWireType(tag) {
	case wireLong:
		n, ok := toInt64(v)
		if !ok {
			return &TypeError{Type: tag, Value: v}
		}
		e.writeLong(n)
	case wireInt:
		n, ok := toInt64(v)
		if !ok || n < int32Min || n > int32Max {
			return &TypeError{Type: tag, Value: v}
		}
		e.writeInt(int32(n))
	case wireBinary:
		b, ok := toBytes(v)
		if !ok {
			return &TypeError{Type: tag, Value: v}
		}
		e.writeBinary(b)
	case wireDouble:
		f, ok := toFloat64(v)
		if !ok {
			return &TypeError{Type: tag, Value: v}
		}
		e.writeDouble(f)
	case wireString:
		if rv.Kind() != reflect.String {
			return &TypeError{Type: tag, Value: v}
		}
		if err := e.writeStringValue(rv.String()); err != nil {
			return err
		}
	case wireBool:
		if rv.Kind() != reflect.Bool {
			return &TypeError{Type: tag, Value: v}
		}
		e.writeBool(rv.Bool())
	default:
		if rv.Kind() == reflect.Map {
			return e.writeMap(rv, tag)
		}
		return e.writeValue(v)
	}
	return nil
}

// writeStructWrapper writes one record, or a list of records when the
// wrapper is multi-valued.
func (e *Encoder) writeStructWrapper(w *StructWrapper) error {
	if w == nil {
		e.writeNull()
		return nil
	}
	if w.Shape == nil {
		return ErrMissingShape
	}
	rv := indirectInterface(reflect.ValueOf(w.Value))
	if isNilValue(rv) {
		e.writeNull()
		return nil
	}
	if !w.Multi {
		return e.writeRecord(w.Shape, rv)
	}
	if !isList(rv) {
		return ErrNotSlice
	}

	if idx, ok := e.refs.lookup(rv); ok {
		e.writeRef(idx)
		return nil
	}
	e.refs.register(rv)

	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	n := rv.Len()
	e.writeListHeader(n, "")
	for i := 0; i < n; i++ {
		elem := indirectInterface(rv.Index(i))
		if isNilValue(elem) {
			e.writeNull()
			continue
		}
		if err := e.writeRecord(w.Shape, elem); err != nil {
			return err
		}
	}
	return nil
}

// writeRecord writes the fields of rv named by shape as an untyped list.
// A slice source is taken as already positional.
func (e *Encoder) writeRecord(shape *Shape, rv reflect.Value) error {
	if idx, ok := e.refs.lookup(rv); ok {
		e.writeRef(idx)
		return nil
	}
	e.refs.register(rv)

	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	n := len(shape.Fields)
	e.writeListHeader(n, "")

	if isList(rv) && !(rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8) {
		for i := 0; i < n; i++ {
			if i >= rv.Len() {
				e.writeNull()
				continue
			}
			if err := e.writeValue(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range shape.Fields {
		val, found := fieldValue(rv, name)
		if !found {
			e.writeNull()
			continue
		}
		if err := e.writeValue(val); err != nil {
			return err
		}
	}
	return nil
}
