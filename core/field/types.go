package field

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/artpar/typedwire/core/wireerr"
)

// Type is anything a field can be declared as: a scalar type or a message type.
type Type interface {
	// TypeName is the qualified name of the type.
	TypeName() string

	// Zero builds the zero value of the type in wire form.
	Zero() any

	// Coerce converts v to the canonical wire form of the type.
	Coerce(v any) (any, error)
}

// Resolver looks up types declared by qualified name.
type Resolver interface {
	Lookup(name string) (Type, bool)
}

// ScalarKind identifies the wire shape of a scalar type.
type ScalarKind uint8

const (
	KindBool ScalarKind = iota + 1
	KindInt
	KindFloat
	KindString
	KindBytes
)

// Scalar is a built-in wire type. Integers are carried as int64, floats as
// float64, bytes as []byte.
type Scalar struct {
	name string
	kind ScalarKind
	bits int
}

var (
	Bool    = &Scalar{name: "bool", kind: KindBool}
	Int32   = &Scalar{name: "int32", kind: KindInt, bits: 32}
	Int64   = &Scalar{name: "int64", kind: KindInt, bits: 64}
	Float32 = &Scalar{name: "float32", kind: KindFloat, bits: 32}
	Float64 = &Scalar{name: "float64", kind: KindFloat, bits: 64}
	String  = &Scalar{name: "string", kind: KindString}
	Bytes   = &Scalar{name: "bytes", kind: KindBytes}

	// Aliases.
	Int    = Int64
	Number = Float64
)

var scalarsByName = map[string]*Scalar{
	"bool":    Bool,
	"boolean": Bool,
	"int32":   Int32,
	"int64":   Int64,
	"int":     Int64,
	"integer": Int64,
	"float32": Float32,
	"float64": Float64,
	"float":   Float64,
	"number":  Float64,
	"string":  String,
	"str":     String,
	"bytes":   Bytes,
}

// ScalarByName returns the scalar type with the given name or alias.
func ScalarByName(name string) (*Scalar, bool) {
	s, ok := scalarsByName[name]
	return s, ok
}

// TypeName returns the scalar name.
func (s *Scalar) TypeName() string { return s.name }

// Kind returns the wire shape of the scalar.
func (s *Scalar) Kind() ScalarKind { return s.kind }

// Zero returns the scalar zero value. The value is the same on every call
// except for bytes, which returns a fresh empty slice.
func (s *Scalar) Zero() any {
	switch s.kind {
	case KindBool:
		return false
	case KindInt:
		return int64(0)
	case KindFloat:
		return float64(0)
	case KindString:
		return ""
	case KindBytes:
		return []byte{}
	}
	return nil
}

func (s *Scalar) String() string { return s.name }

// Coerce converts any Go value of a compatible kind to the scalar's wire form.
func (s *Scalar) Coerce(v any) (any, error) {
	switch s.kind {
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindInt:
		n, ok := toInt64(v)
		if !ok {
			break
		}
		if s.bits == 32 && (n < math.MinInt32 || n > math.MaxInt32) {
			return nil, fmt.Errorf("%w: %d overflows %s", wireerr.ErrIncompatible, n, s.name)
		}
		return n, nil
	case KindFloat:
		f, ok := toFloat64(v)
		if !ok {
			break
		}
		if s.bits == 32 && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return nil, fmt.Errorf("%w: %g overflows %s", wireerr.ErrIncompatible, f, s.name)
		}
		return f, nil
	case KindString:
		if str, ok := v.(string); ok {
			return str, nil
		}
	case KindBytes:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
	}
	return nil, fmt.Errorf("%w: %T is not %s", wireerr.ErrIncompatible, v, s.name)
}

// IsInteger reports whether v is an integral number: a Go integer, a
// json.Number without fraction or exponent, or an integral float64.
func IsInteger(v any) bool {
	_, ok := toInt64(v)
	return ok
}

// IsNumber reports whether v is any number.
func IsNumber(v any) bool {
	_, ok := toFloat64(v)
	return ok
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintToInt64(n)
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) <= 1<<53 {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

func uintToInt64(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// typeString names a declared type for diagnostics.
func typeString(t Type, ref string) string {
	if t != nil {
		return t.TypeName()
	}
	return fmt.Sprintf("%q", ref)
}

// isNil reports whether v is nil or a nil pointer, map, slice or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
