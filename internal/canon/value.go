// Package canon provides a tagged JSON value model, a canonical byte encoding
// whose output is invariant to object key order, and a content hash over that
// encoding. Runs are deduplicated and tamper-checked by these hashes, so the
// encoding must stay byte-stable across processes and releases.
package canon

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"

	"github.com/rotisserie/eris"
)

// Kind discriminates the JSON value variants.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a JSON-like value: null, bool, number, string, array, or
// string-keyed object. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array value. Element order is semantically meaningful and
// is preserved by the canonical encoding.
func Array(elems ...Value) Value { return Value{kind: KindArray, arr: elems} }

// Object returns an object value over the given fields. Key insertion order
// carries no meaning; the canonical encoding sorts keys.
func Object(fields map[string]Value) Value { return Value{kind: KindObject, obj: fields} }

// Kind reports the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload. ok is false for non-bool values.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the numeric payload. ok is false for non-number values.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

// AsString returns the string payload. ok is false for non-string values.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsArray returns the array elements. ok is false for non-array values.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// AsObject returns the object fields. ok is false for non-object values.
func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// At walks an object path and returns the value at it. Any missing segment or
// non-object intermediate yields null, which propagates "absent" without
// panicking on loosely-shaped deal bags.
func (v Value) At(path ...string) Value {
	cur := v
	for _, key := range path {
		obj, ok := cur.AsObject()
		if !ok {
			return Null()
		}
		next, ok := obj[key]
		if !ok {
			return Null()
		}
		cur = next
	}
	return cur
}

// NumberAt returns the finite number at the given object path.
// ok is false when the path is absent or not a finite number.
func (v Value) NumberAt(path ...string) (float64, bool) {
	n, ok := v.At(path...).AsNumber()
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// StringAt returns the non-empty string at the given object path.
func (v Value) StringAt(path ...string) (string, bool) {
	s, ok := v.At(path...).AsString()
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// BoolAt returns the boolean at the given object path. String "true"/"false"
// leaves are accepted because imported deal bags frequently carry them.
func (v Value) BoolAt(path ...string) (bool, bool) {
	leaf := v.At(path...)
	if b, ok := leaf.AsBool(); ok {
		return b, true
	}
	switch s, _ := leaf.AsString(); s {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// Interface converts v back into plain Go values (nil, bool, float64, string,
// []any, map[string]any) for JSON marshaling at the persistence boundary.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts a Go value into a Value. Supported inputs are nil, bool,
// all integer and float kinds, json.Number, string, []any and []Value,
// map[string]any and map[string]Value, and nested combinations thereof.
// Cyclic structures and unsupported types are a fatal encoding error, never a
// silent skip.
func FromAny(v any) (Value, error) {
	return fromAny(v, map[uintptr]bool{})
}

func fromAny(v any, seen map[uintptr]bool) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return number(x)
	case float32:
		return number(float64(x))
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		n, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return Null(), eris.Wrapf(err, "canon: parse number %q", x.String())
		}
		return number(n)
	case []Value:
		return Array(x...), nil
	case map[string]Value:
		return Object(x), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if err := enter(rv, seen); err != nil {
				return Null(), err
			}
			defer leave(rv, seen)
		}
		elems := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e, err := fromAny(rv.Index(i).Interface(), seen)
			if err != nil {
				return Null(), err
			}
			elems[i] = e
		}
		return Array(elems...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Null(), eris.Errorf("canon: unsupported map key type %s", rv.Type().Key())
		}
		if err := enter(rv, seen); err != nil {
			return Null(), err
		}
		defer leave(rv, seen)
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			f, err := fromAny(iter.Value().Interface(), seen)
			if err != nil {
				return Null(), err
			}
			fields[iter.Key().String()] = f
		}
		return Object(fields), nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromAny(rv.Elem().Interface(), seen)
	case reflect.Struct:
		// Structs go through their JSON shape so tags and omitempty apply;
		// encoding/json rejects cycles on this path.
		data, err := json.Marshal(v)
		if err != nil {
			return Null(), eris.Wrapf(err, "canon: encode struct %T", v)
		}
		return Decode(data)
	}

	return Null(), eris.Errorf("canon: unsupported type %T", v)
}

func number(n float64) (Value, error) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Null(), eris.New("canon: non-finite number")
	}
	return Number(n), nil
}

func enter(rv reflect.Value, seen map[uintptr]bool) error {
	p := rv.Pointer()
	if p == 0 {
		return nil
	}
	if seen[p] {
		return eris.New("canon: cyclic value")
	}
	seen[p] = true
	return nil
}

func leave(rv reflect.Value, seen map[uintptr]bool) {
	if p := rv.Pointer(); p != 0 {
		delete(seen, p)
	}
}

// Decode parses JSON bytes into a Value, preserving full numeric precision
// through json.Number.
func Decode(data []byte) (Value, error) {
	var raw any
	dec := json.NewDecoder(bytesReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Null(), eris.Wrap(err, "canon: decode json")
	}
	return FromAny(raw)
}
