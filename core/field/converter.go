package field

import (
	"fmt"
	"reflect"
)

// Converter maps between a wire type and a native Go type.
//
// Both directions are pure. For every wire value w produced by Format,
// Format(Resolve(w)) equals w, and Resolve(Format(n)) is equivalent to n.
type Converter interface {
	// Wire is the type stored in messages and sent on the wire.
	Wire() Type

	// Native is the Go type handed to and returned from attribute access.
	Native() reflect.Type

	// Resolve converts a wire value to its native form.
	Resolve(wire any) (any, error)

	// Format converts a native value to its wire form.
	Format(native any) (any, error)
}

// ConverterField is a field stored in the converter's wire type and
// accessed in its native type.
type ConverterField struct {
	Field

	converter Converter
}

// NewConverter declares a field backed by c.
func NewConverter(c Converter, opts ...Option) *ConverterField {
	if c == nil {
		panic("field: NewConverter with nil converter")
	}
	return &ConverterField{
		Field:     Field{base: base{settings: newSettings(opts)}, typ: c.Wire()},
		converter: c,
	}
}

// Converter returns the converter backing the field.
func (f *ConverterField) Converter() Converter { return f.converter }

// Coerce formats a native value into the wire type.
func (f *ConverterField) Coerce(v any) (any, error) {
	w, err := f.converter.Format(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name(), err)
	}
	return f.Field.Wire(w)
}

// Native resolves a stored wire value into the native type.
func (f *ConverterField) Native(w any) (any, error) {
	n, err := f.converter.Resolve(w)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name(), err)
	}
	return n, nil
}

// Equal reports whether other is backed by the same converter with the same options.
func (f *ConverterField) Equal(other Descriptor) bool {
	o, ok := other.(*ConverterField)
	if !ok {
		return false
	}
	return sameConverter(f.converter, o.converter) && f.sameSettings(&o.base)
}

func (f *ConverterField) String() string {
	name := f.Name()
	native := f.converter.Native()
	if name != "" {
		return fmt.Sprintf("<ConverterField %s:%s>", name, native)
	}
	return fmt.Sprintf("<ConverterField %s>", native)
}

func sameConverter(a, b Converter) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if reflect.ValueOf(a).Comparable() {
		return a == b
	}
	return a.Wire() == b.Wire() && a.Native() == b.Native()
}
