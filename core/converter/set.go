package converter

import (
	"reflect"

	"github.com/artpar/typedwire/core/field"
)

// Set is an ordered sequence of named converters. Lookups return the first
// match, so earlier converters shadow later ones for the same native type.
type Set struct {
	entries []entry
}

type entry struct {
	name      string
	converter field.Converter
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// Defaults returns the built-in converters in their standard order.
func Defaults() *Set {
	return NewSet().
		Add("nullable_string", NullableString).
		Add("nullable_integer", NullableInteger).
		Add("nullable_number", NullableNumber).
		Add("nullable_boolean", NullableBoolean).
		Add("datetime", DateTime).
		Add("date", DateOnly)
}

// Add appends c under name.
func (s *Set) Add(name string, c field.Converter) *Set {
	s.entries = append(s.entries, entry{name: name, converter: c})
	return s
}

// Len returns the number of converters.
func (s *Set) Len() int { return len(s.entries) }

// Names returns the converter names in order.
func (s *Set) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// Lookup returns the first converter whose native type is native.
func (s *Set) Lookup(native reflect.Type) (field.Converter, bool) {
	for _, e := range s.entries {
		if e.converter.Native() == native {
			return e.converter, true
		}
	}
	return nil, false
}

// Named returns the first converter registered under name.
func (s *Set) Named(name string) (field.Converter, bool) {
	for _, e := range s.entries {
		if e.name == name {
			return e.converter, true
		}
	}
	return nil, false
}

// Install registers every converter with d in order and returns how many
// native types were new to d.
func (s *Set) Install(d *field.Deriver) int {
	n := 0
	for _, e := range s.entries {
		if d.RegisterConverter(e.converter) {
			n++
		}
	}
	return n
}
