// Package message defines message types and their instances.
//
// A message type is an immutable, ordered table of field descriptors built
// once by a Builder. Fields of base types come first, in the order the bases
// declare them; a field declared again by the new type replaces the
// inherited one in place.
//
// A message instance stores one wire value per set field. Reads and writes
// come in two styles:
//
//   - mapping style: Get fails with wireerr.ErrNotSet for an unset field and
//     Put stores a wire value.
//   - attribute style: Value returns the native value, falling back to the
//     field default, and Set converts a native value to wire form first.
package message

import (
	"fmt"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/wireerr"
)

// Type is a message type. It implements field.Type so fields can hold
// nested messages.
type Type struct {
	name   string
	bases  []*Type
	fields []field.Descriptor
	byName map[string]int
	byWire map[string]int
}

// TypeName returns the qualified type name.
func (t *Type) TypeName() string { return t.name }

func (t *Type) String() string { return t.name }

// Bases returns the direct base types.
func (t *Type) Bases() []*Type {
	out := make([]*Type, len(t.bases))
	copy(out, t.bases)
	return out
}

// Fields returns the field table in declaration order.
func (t *Type) Fields() []field.Descriptor {
	out := make([]field.Descriptor, len(t.fields))
	copy(out, t.fields)
	return out
}

// NumFields returns the number of declared fields.
func (t *Type) NumFields() int { return len(t.fields) }

// Field returns the field declared under an attribute name.
func (t *Type) Field(name string) (field.Descriptor, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.fields[i], true
}

// FieldByWireName returns the field travelling under a wire key.
func (t *Type) FieldByWireName(key string) (field.Descriptor, bool) {
	i, ok := t.byWire[key]
	if !ok {
		return nil, false
	}
	return t.fields[i], true
}

// IsA reports whether t is other or derives from it.
func (t *Type) IsA(other *Type) bool {
	if t == other {
		return true
	}
	for _, b := range t.bases {
		if b.IsA(other) {
			return true
		}
	}
	return false
}

// Zero returns a new empty instance.
func (t *Type) Zero() any { return t.Empty() }

// Empty returns a new instance with no field set.
func (t *Type) Empty() *Message {
	return &Message{typ: t, values: make(map[string]any)}
}

// Coerce accepts instances of t or of a type derived from t.
func (t *Type) Coerce(v any) (any, error) {
	m, ok := v.(*Message)
	if !ok || m == nil {
		return nil, fmt.Errorf("%w: %T is not a %s message", wireerr.ErrIncompatible, v, t.name)
	}
	if !m.typ.IsA(t) {
		return nil, fmt.Errorf("%w: %s is not a %s message", wireerr.ErrIncompatible, m.typ.name, t.name)
	}
	return m, nil
}

// New builds an instance from positional arguments bound to fields in
// declaration order. Each value is assigned attribute style.
func (t *Type) New(positional ...any) (*Message, error) {
	return t.NewWith(positional, nil)
}

// NewWith builds an instance from positional and keyword arguments. A field
// given both ways is rejected with wireerr.ErrAmbiguousArgument.
func (t *Type) NewWith(positional []any, keyword map[string]any) (*Message, error) {
	if len(positional) > len(t.fields) {
		return nil, fmt.Errorf("%s takes %d positional arguments, %d given", t.name, len(t.fields), len(positional))
	}

	for name := range keyword {
		if _, ok := t.byName[name]; !ok {
			return nil, fmt.Errorf("%s: %w %q", t.name, wireerr.ErrUnknownField, name)
		}
	}

	m := t.Empty()
	for i, v := range positional {
		name := t.fields[i].Name()
		if _, dup := keyword[name]; dup {
			return nil, fmt.Errorf("%s: %w: %q", t.name, wireerr.ErrAmbiguousArgument, name)
		}
		if err := m.Set(name, v); err != nil {
			return nil, err
		}
	}
	for _, d := range t.fields {
		v, ok := keyword[d.Name()]
		if !ok {
			continue
		}
		if err := m.Set(d.Name(), v); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is like New but panics on error. It is meant for declarations
// and tests.
func (t *Type) MustNew(positional ...any) *Message {
	m, err := t.New(positional...)
	if err != nil {
		panic(err)
	}
	return m
}
