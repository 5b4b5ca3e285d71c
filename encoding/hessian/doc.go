// Package hessian implements the Hessian 2.0 binary serialization format and
// its call, reply and fault envelopes.
//
// Marshal picks the most compact encoding for every value. Integers that fit
// in 32 bits use the int forms and larger ones the 8-byte long form; floats
// use the shortest double form that reproduces the value exactly. Maps,
// slices and pointers are tracked by identity so that shared and cyclic
// graphs are written once and referenced afterwards. Structs are written as
// objects whose class definition is emitted once per message.
//
// The wrapper types adjust the encoding of a value:
//
//	hessian.Marshal(hessian.WrapType("long", 1))             // 0xe1
//	hessian.Marshal(hessian.WrapClass("example.Monkey", m))   // object of class example.Monkey
//	w, _ := hessian.WrapStruct(hessian.NewShape("Monkey", "name", "age"), m)
//	hessian.Marshal(w)                                        // positional record
//
// Parse decodes a stream into a tree of nil, bool, int32, int64, float64,
// time.Time, string, []byte, []interface{}, map[interface{}]interface{} and
// *Object values. Unmarshal decodes into a Go value instead.
package hessian
