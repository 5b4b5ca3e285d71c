package hessian

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"
)

// Decoder reads Hessian 2.0 values from a byte slice. Like the encoder, a
// decoder keeps one set of reference, class and type tables for the whole
// stream.
type Decoder struct {
	data    []byte
	pos     int
	refs    valueTable
	classes *classTable
	types   *typeTable
	depth   int
}

// NewDecoder returns a decoder positioned at the start of data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{
		data:    data,
		classes: newClassTable(),
		types:   newTypeTable(),
	}
}

// More reports whether another top-level item follows. A terminator byte
// ends the stream.
func (d *Decoder) More() bool {
	return d.pos < len(d.data) && d.data[d.pos] != bcTerminator
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int {
	return d.pos
}

// Decode reads the next top-level item. Call envelopes decode to *Call and
// reply envelopes to the carried value. A fault envelope, or a bare fault
// at the start of the stream, is returned as a *Fault error. Elsewhere 'F'
// is the boolean false.
func (d *Decoder) Decode() (interface{}, error) {
	if d.hasEnvelopeHeader() {
		d.pos += 3
		return d.readEnvelope()
	}
	if d.pos == 0 && d.atFault() {
		d.pos++
		return nil, d.readFault()
	}
	return d.readValue()
}

// Parse decodes every top-level item in data. A single item is returned
// as is, several are returned as a []interface{} and an empty stream
// yields nil. A fault is returned as a *Fault error.
func Parse(data []byte) (interface{}, error) {
	d := NewDecoder(data)
	var items []interface{}
	for d.More() {
		v, err := d.Decode()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}

	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return items[0], nil
	}
	return items, nil
}

// ParseShape decodes a single record laid out by shape. A null value
// yields a nil record.
func ParseShape(data []byte, shape *Shape) (*Record, error) {
	if shape == nil {
		return nil, ErrMissingShape
	}
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return coerceRecord(v, shape)
}

// ParseShapes decodes a list of records laid out by shape. Null elements
// stay nil.
func ParseShapes(data []byte, shape *Shape) ([]*Record, error) {
	if shape == nil {
		return nil, ErrMissingShape
	}
	v, err := Parse(data)
	if err != nil || v == nil {
		return nil, err
	}

	list, ok := v.([]interface{})
	if !ok {
		return nil, &UnmarshalTypeError{Value: v, Type: reflect.TypeOf([]*Record(nil))}
	}
	records := make([]*Record, len(list))
	for i, item := range list {
		if records[i], err = coerceRecord(item, shape); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// coerceRecord maps a decoded value onto shape: lists positionally, maps
// and objects by field name.
func coerceRecord(v interface{}, shape *Shape) (*Record, error) {
	rec := &Record{Shape: shape, Values: make([]interface{}, len(shape.Fields))}
	switch src := v.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		copy(rec.Values, src)
	case map[interface{}]interface{}:
		for i, name := range shape.Fields {
			rec.Values[i] = src[name]
		}
	case *Object:
		for i, name := range shape.Fields {
			rec.Values[i], _ = src.Get(name)
		}
	case *Record:
		for i, name := range shape.Fields {
			rec.Values[i], _ = src.Get(name)
		}
	default:
		return nil, &UnmarshalTypeError{Value: v, Type: reflect.TypeOf(rec)}
	}
	return rec, nil
}

func (d *Decoder) hasEnvelopeHeader() bool {
	return d.pos+2 < len(d.data) &&
		d.data[d.pos] == bcHeader &&
		d.data[d.pos+1] == versionMajor &&
		d.data[d.pos+2] == versionMinor
}

// atFault reports whether the stream continues with a fault. 'F' also
// encodes false, so it only starts a fault when a map follows; callers
// check it only where a fault may appear.
func (d *Decoder) atFault() bool {
	if d.pos+1 >= len(d.data) || d.data[d.pos] != bcFault {
		return false
	}
	next := d.data[d.pos+1]
	return next == bcMapUntyped || next == bcMap
}

func (d *Decoder) readEnvelope() (interface{}, error) {
	start := d.pos
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch tag {
	case bcCall:
		return d.readCall()
	case bcReply:
		if d.atFault() {
			d.pos++
			return nil, d.readFault()
		}
		return d.readValue()
	case bcFault:
		return nil, d.readFault()
	}
	return nil, d.protocolError(start, tag, errNotACall)
}

func (d *Decoder) readCall() (*Call, error) {
	method, err := d.readStringValue()
	if err != nil {
		return nil, err
	}
	argc, err := d.readLength()
	if err != nil {
		return nil, err
	}

	call := &Call{Method: method, Args: make([]interface{}, 0, argc)}
	for i := 0; i < argc; i++ {
		arg, err := d.readValue()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	return call, nil
}

// readFault reads the map that follows a fault tag.
func (d *Decoder) readFault() error {
	start := d.pos
	v, err := d.readValue()
	if err != nil {
		return err
	}
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return d.protocolError(start, bcFault, errors.New("fault body is not a map"))
	}

	f := &Fault{Detail: m["detail"]}
	f.Code, _ = m["code"].(string)
	f.Message, _ = m["message"].(string)
	return f
}

func (d *Decoder) protocolError(offset int, tag byte, err error) error {
	return &ProtocolError{Offset: offset, Tag: tag, Err: err}
}

func (d *Decoder) readByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, d.protocolError(d.pos, 0, errTruncated)
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) peek() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, d.protocolError(d.pos, 0, errTruncated)
	}
	return d.data[d.pos], nil
}

func (d *Decoder) next(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, d.protocolError(d.pos, 0, errTruncated)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) readUint16() (int, error) {
	b, err := d.next(2)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(b)), nil
}

func (d *Decoder) readInt32() (int32, error) {
	b, err := d.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (d *Decoder) readInt64() (int64, error) {
	b, err := d.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (d *Decoder) enter(offset int, tag byte) error {
	d.depth++
	if d.depth > maxDepth {
		return d.protocolError(offset, tag, errTooDeep)
	}
	return nil
}

func (d *Decoder) leave() {
	d.depth--
}

// readValue decodes one value starting at the current position.
func (d *Decoder) readValue() (interface{}, error) {
	start := d.pos
	tag, err := d.readByte()
	if err != nil {
		return nil, err
	}

	// Class definitions prefix the value that uses them.
	for tag == bcClassDef {
		if err := d.readClassDef(); err != nil {
			return nil, err
		}
		start = d.pos
		if tag, err = d.readByte(); err != nil {
			return nil, err
		}
	}

	switch {
	case tag == bcNull:
		return nil, nil
	case tag == bcTrue:
		return true, nil
	case tag == bcFalse:
		return false, nil

	case tag >= 0x80 && tag <= 0xbf:
		return int32(tag) - int32(bcIntZero), nil
	case tag >= 0xc0 && tag <= 0xcf:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return (int32(tag)-int32(bcIntByteZero))<<8 | int32(b), nil
	case tag >= 0xd0 && tag <= 0xd7:
		b, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return (int32(tag)-int32(bcIntShortZero))<<16 | int32(b), nil
	case tag == bcInt:
		return d.readInt32()

	case tag >= 0xd8 && tag <= 0xef:
		return int64(tag) - int64(bcLongZero), nil
	case tag >= 0xf0:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return (int64(tag)-int64(bcLongByteZero))<<8 | int64(b), nil
	case tag >= 0x38 && tag <= 0x3f:
		b, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return (int64(tag)-int64(bcLongShortZero))<<16 | int64(b), nil
	case tag == bcLongInt:
		n, err := d.readInt32()
		return int64(n), err
	case tag == bcLong:
		return d.readInt64()

	case tag == bcDoubleZero:
		return 0.0, nil
	case tag == bcDoubleOne:
		return 1.0, nil
	case tag == bcDoubleByte:
		b, err := d.readByte()
		return float64(int8(b)), err
	case tag == bcDoubleShort:
		b, err := d.readUint16()
		return float64(int16(b)), err
	case tag == bcDoubleMill:
		n, err := d.readInt32()
		return float64(n) / 1000, err
	case tag == bcDouble:
		n, err := d.readInt64()
		return math.Float64frombits(uint64(n)), err

	case tag == bcDate:
		ms, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case tag == bcDateMinute:
		minutes, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		return time.Unix(int64(minutes)*60, 0).UTC(), nil

	case tag <= 0x1f, tag >= 0x30 && tag <= 0x33, tag == bcString, tag == bcStringChunk:
		return d.readString(tag)
	case tag >= 0x20 && tag <= 0x2f, tag >= 0x34 && tag <= 0x37, tag == bcBinary, tag == bcBinaryChunk:
		return d.readBinary(tag)

	case tag >= bcListDirect && tag <= 0x7f, tag == bcListFixed, tag == bcListFixedUntyped,
		tag == bcListVariable, tag == bcListVariableUntyped:
		if err := d.enter(start, tag); err != nil {
			return nil, err
		}
		defer d.leave()
		return d.readList(tag)
	case tag == bcMapUntyped, tag == bcMap:
		if err := d.enter(start, tag); err != nil {
			return nil, err
		}
		defer d.leave()
		return d.readMap(tag)

	case tag >= bcObjectDirect && tag <= 0x6f, tag == bcObject:
		if err := d.enter(start, tag); err != nil {
			return nil, err
		}
		defer d.leave()
		return d.readObject(tag)

	case tag == bcRef:
		idx, err := d.readLength()
		if err != nil {
			return nil, err
		}
		v, ok := d.refs.get(idx)
		if !ok {
			return nil, d.protocolError(start, tag, errors.New("reference to an unknown value"))
		}
		return v, nil
	}

	return nil, d.protocolError(start, tag, errors.New("unknown tag"))
}

// readInteger reads a value that must be an int or a long.
func (d *Decoder) readInteger() (int64, error) {
	start := d.pos
	v, err := d.readValue()
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return 0, d.protocolError(start, d.data[start], errNotAnInteger)
}

// readLength reads a non-negative integer: a length, a count or a table
// index.
func (d *Decoder) readLength() (int, error) {
	start := d.pos
	n, err := d.readInteger()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > int64(len(d.data)) {
		return 0, d.protocolError(start, d.data[start], errNegativeLength)
	}
	return int(n), nil
}

func (d *Decoder) readStringValue() (string, error) {
	start := d.pos
	tag, err := d.readByte()
	if err != nil {
		return "", err
	}
	switch {
	case tag <= 0x1f, tag >= 0x30 && tag <= 0x33, tag == bcString, tag == bcStringChunk:
		return d.readString(tag)
	}
	return "", d.protocolError(start, tag, errNotAString)
}

// readString reassembles a possibly chunked string whose first segment
// tag has already been consumed.
func (d *Decoder) readString(tag byte) (string, error) {
	var sb strings.Builder
	for {
		start := d.pos - 1
		var (
			n     int
			final = true
			err   error
		)

		switch {
		case tag <= 0x1f:
			n = int(tag)
		case tag >= 0x30 && tag <= 0x33:
			var b byte
			b, err = d.readByte()
			n = int(tag-bcStringShort)<<8 | int(b)
		case tag == bcString:
			n, err = d.readUint16()
		case tag == bcStringChunk:
			n, err = d.readUint16()
			final = false
		default:
			return "", d.protocolError(start, tag, errNotAString)
		}
		if err != nil {
			return "", err
		}
		if err = d.readRunes(&sb, n); err != nil {
			return "", err
		}
		if final {
			return sb.String(), nil
		}
		if tag, err = d.readByte(); err != nil {
			return "", err
		}
	}
}

// readRunes copies n UTF-8 encoded code points.
func (d *Decoder) readRunes(sb *strings.Builder, n int) error {
	start := d.pos
	for i := 0; i < n; i++ {
		if d.pos >= len(d.data) {
			return d.protocolError(d.pos, 0, errTruncated)
		}
		r, size := utf8.DecodeRune(d.data[d.pos:])
		if r == utf8.RuneError && size <= 1 {
			return d.protocolError(d.pos, d.data[d.pos], errInvalidUTF8)
		}
		d.pos += size
	}
	sb.Write(d.data[start:d.pos])
	return nil
}

// readBinary reassembles a possibly chunked binary value whose first
// segment tag has already been consumed.
func (d *Decoder) readBinary(tag byte) ([]byte, error) {
	out := []byte{}
	for {
		start := d.pos - 1
		var (
			n     int
			final = true
			err   error
		)

		switch {
		case tag >= 0x20 && tag <= 0x2f:
			n = int(tag - bcBinaryDirect)
		case tag >= 0x34 && tag <= 0x37:
			var b byte
			b, err = d.readByte()
			n = int(tag-bcBinaryShort)<<8 | int(b)
		case tag == bcBinary:
			n, err = d.readUint16()
		case tag == bcBinaryChunk:
			n, err = d.readUint16()
			final = false
		default:
			return nil, d.protocolError(start, tag, errors.New("expected a binary segment"))
		}
		if err != nil {
			return nil, err
		}

		chunk, err := d.next(n)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if final {
			return out, nil
		}
		if tag, err = d.readByte(); err != nil {
			return nil, err
		}
	}
}

// readType reads a list or map type: a string on first use, otherwise an
// index into the type table.
func (d *Decoder) readType() (string, error) {
	start := d.pos
	tag, err := d.peek()
	if err != nil {
		return "", err
	}
	if tag <= 0x1f || (tag >= 0x30 && tag <= 0x33) || tag == bcString || tag == bcStringChunk {
		name, err := d.readStringValue()
		if err != nil {
			return "", err
		}
		d.types.add(name)
		return name, nil
	}

	idx, err := d.readLength()
	if err != nil {
		return "", err
	}
	name, ok := d.types.get(idx)
	if !ok {
		return "", d.protocolError(start, tag, errors.New("reference to an unknown type"))
	}
	return name, nil
}

func (d *Decoder) readList(tag byte) (interface{}, error) {
	var (
		n     int
		fixed = true
		err   error
	)

	switch {
	case tag >= bcListDirect && tag < bcListDirectUntyped:
		n = int(tag - bcListDirect)
		_, err = d.readType()
	case tag >= bcListDirectUntyped && tag <= 0x7f:
		n = int(tag - bcListDirectUntyped)
	case tag == bcListFixed:
		if _, err = d.readType(); err == nil {
			n, err = d.readLength()
		}
	case tag == bcListFixedUntyped:
		n, err = d.readLength()
	case tag == bcListVariable:
		_, err = d.readType()
		fixed = false
	case tag == bcListVariableUntyped:
		fixed = false
	}
	if err != nil {
		return nil, err
	}

	if fixed {
		if n > len(d.data)-d.pos {
			return nil, d.protocolError(d.pos, tag, errTruncated)
		}
		list := make([]interface{}, n)
		d.refs.push(list)
		for i := range list {
			if list[i], err = d.readValue(); err != nil {
				return nil, err
			}
		}
		return list, nil
	}

	list := []interface{}{}
	idx := d.refs.push(list)
	for {
		next, err := d.peek()
		if err != nil {
			return nil, err
		}
		if next == bcEnd {
			d.pos++
			break
		}
		item, err := d.readValue()
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	d.refs.set(idx, list)
	return list, nil
}

func (d *Decoder) readMap(tag byte) (interface{}, error) {
	if tag == bcMap {
		if _, err := d.readType(); err != nil {
			return nil, err
		}
	}

	m := make(map[interface{}]interface{})
	d.refs.push(m)
	for {
		next, err := d.peek()
		if err != nil {
			return nil, err
		}
		if next == bcEnd {
			d.pos++
			return m, nil
		}

		keyStart := d.pos
		key, err := d.readValue()
		if err != nil {
			return nil, err
		}
		if b, ok := key.([]byte); ok {
			key = string(b)
		}
		if key != nil && !reflect.TypeOf(key).Comparable() {
			return nil, d.protocolError(keyStart, d.data[keyStart], errors.New("map key is not hashable"))
		}

		val, err := d.readValue()
		if err != nil {
			return nil, err
		}
		m[key] = val
	}
}

func (d *Decoder) readClassDef() error {
	name, err := d.readStringValue()
	if err != nil {
		return err
	}
	n, err := d.readLength()
	if err != nil {
		return err
	}

	fields := make([]string, n)
	for i := range fields {
		if fields[i], err = d.readStringValue(); err != nil {
			return err
		}
	}
	d.classes.define(name, fields)
	return nil
}

func (d *Decoder) readObject(tag byte) (interface{}, error) {
	start := d.pos - 1
	idx := int(tag - bcObjectDirect)
	if tag == bcObject {
		var err error
		if idx, err = d.readLength(); err != nil {
			return nil, err
		}
	}

	def, ok := d.classes.get(idx)
	if !ok {
		return nil, d.protocolError(start, tag, errors.New("instance of an undefined class"))
	}

	obj := &Object{Class: def.name, Fields: make([]Field, len(def.fields))}
	d.refs.push(obj)
	for i, name := range def.fields {
		v, err := d.readValue()
		if err != nil {
			return nil, err
		}
		obj.Fields[i] = Field{Name: name, Value: v}
	}
	return obj, nil
}
