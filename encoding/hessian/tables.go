package hessian

import "reflect"

// refKey identifies a composite Go value for the duration of one encode
// call. Slices sharing a backing array but differing in length are
// distinct values, hence the length component.
type refKey struct {
	typ    reflect.Type
	ptr    uintptr
	length int
}

// identityOf returns the identity of maps, non-empty slices and pointers.
// Values without identity (structs and arrays passed by value, empty
// slices) are always emitted in full.
func identityOf(v reflect.Value) (refKey, bool) {
	switch v.Kind() {
	case reflect.Map, reflect.Ptr:
		if v.IsNil() {
			return refKey{}, false
		}
		return refKey{typ: v.Type(), ptr: v.Pointer()}, true
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return refKey{}, false
		}
		return refKey{typ: v.Type(), ptr: v.Pointer(), length: v.Len()}, true
	}
	return refKey{}, false
}

// refTracker assigns emission indices to the composites written by an
// encoder. Every list, map and object occupies exactly one slot, whether or
// not it has an identity, so that the indices line up with the slots the
// parser allocates.
type refTracker struct {
	ids   map[refKey]int
	count int
}

func newRefTracker() *refTracker {
	return &refTracker{ids: make(map[refKey]int)}
}

func (t *refTracker) lookup(v reflect.Value) (int, bool) {
	key, ok := identityOf(v)
	if !ok {
		return 0, false
	}
	idx, found := t.ids[key]
	return idx, found
}

// register claims the next slot for v. It must be called before any child
// of v is written.
func (t *refTracker) register(v reflect.Value) int {
	idx := t.count
	t.count++
	if key, ok := identityOf(v); ok {
		t.ids[key] = idx
	}
	return idx
}

// classDef is a class definition: a wire class name and its ordered field
// names.
type classDef struct {
	index  int
	name   string
	fields []string

	// struct types already verified against fields
	checked map[reflect.Type]bool
}

func (d *classDef) hasField(name string) bool {
	for _, f := range d.fields {
		if f == name {
			return true
		}
	}
	return false
}

// classTable tracks the class definitions already emitted in a message.
// Definitions are keyed by class name; later instances of a class are
// written with the field list of its first definition.
type classTable struct {
	byName map[string]*classDef
	defs   []*classDef
}

func newClassTable() *classTable {
	return &classTable{byName: make(map[string]*classDef)}
}

func (t *classTable) lookup(name string) (*classDef, bool) {
	def, ok := t.byName[name]
	return def, ok
}

func (t *classTable) define(name string, fields []string) *classDef {
	def := &classDef{index: len(t.defs), name: name, fields: fields}
	t.byName[name] = def
	t.defs = append(t.defs, def)
	return def
}

// get returns the definition registered at idx; used by the parser.
func (t *classTable) get(idx int) (*classDef, bool) {
	if idx < 0 || idx >= len(t.defs) {
		return nil, false
	}
	return t.defs[idx], true
}

// typeTable tracks the type names of typed lists and maps. A name is
// written as a string on first use and as its index afterwards.
type typeTable struct {
	byName map[string]int
	names  []string
}

func newTypeTable() *typeTable {
	return &typeTable{byName: make(map[string]int)}
}

func (t *typeTable) lookup(name string) (int, bool) {
	idx, ok := t.byName[name]
	return idx, ok
}

func (t *typeTable) add(name string) int {
	idx := len(t.names)
	t.byName[name] = idx
	t.names = append(t.names, name)
	return idx
}

func (t *typeTable) get(idx int) (string, bool) {
	if idx < 0 || idx >= len(t.names) {
		return "", false
	}
	return t.names[idx], true
}

// valueTable holds the composites decoded so far in a message, indexed by
// their emission order.
type valueTable struct {
	values []interface{}
}

// push reserves the next slot and stores v in it.
func (t *valueTable) push(v interface{}) int {
	t.values = append(t.values, v)
	return len(t.values) - 1
}

// set replaces the placeholder stored at idx once a composite whose Go
// representation changes while it is filled (variable length lists) is
// complete.
func (t *valueTable) set(idx int, v interface{}) {
	t.values[idx] = v
}

func (t *valueTable) get(idx int) (interface{}, bool) {
	if idx < 0 || idx >= len(t.values) {
		return nil, false
	}
	return t.values[idx], true
}

// truncate forgets every slot claimed at or after n.
func (t *refTracker) truncate(n int) {
	for key, idx := range t.ids {
		if idx >= n {
			delete(t.ids, key)
		}
	}
	t.count = n
}

func (t *classTable) truncate(n int) {
	for _, def := range t.defs[n:] {
		if t.byName[def.name] == def {
			delete(t.byName, def.name)
		}
	}
	t.defs = t.defs[:n]
}

func (t *typeTable) truncate(n int) {
	for _, name := range t.names[n:] {
		delete(t.byName, name)
	}
	t.names = t.names[:n]
}
