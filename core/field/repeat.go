package field

import (
	"fmt"
	"reflect"

	"github.com/artpar/typedwire/core/wireerr"
)

// RepeatField is a slot holding an ordered sequence. Items describes each element.
type RepeatField struct {
	base

	items Descriptor
}

// NewRepeat declares a repeated field over items.
func NewRepeat(items Descriptor, opts ...Option) *RepeatField {
	if items == nil {
		panic("field: NewRepeat with nil items")
	}
	return &RepeatField{base: base{settings: newSettings(opts)}, items: items}
}

// Repeat declares a repeated field. items may be a Descriptor (used as-is),
// a Type (wrapped in a plain field) or a qualified type name (wrapped in a
// forward reference). Any other argument panics, as a declaration error.
func Repeat(items any, opts ...Option) *RepeatField {
	return NewRepeat(normalize("Repeat", items), opts...)
}

// Items returns the element descriptor.
func (f *RepeatField) Items() Descriptor { return f.items }

// BindResolver passes r down to the element descriptor.
func (f *RepeatField) BindResolver(r Resolver) { f.items.BindResolver(r) }

// ResolveTypes resolves the element descriptor.
func (f *RepeatField) ResolveTypes() error { return f.items.ResolveTypes() }

// Default returns the explicit default or a new empty sequence.
func (f *RepeatField) Default() any {
	if v, ok := f.explicitDefault(); ok {
		return v
	}
	return []any{}
}

// Coerce converts any Go slice to []any, coercing every item.
func (f *RepeatField) Coerce(v any) (any, error) {
	return f.each(v, f.items.Coerce)
}

// Wire canonicalizes a sequence of wire values.
func (f *RepeatField) Wire(v any) (any, error) {
	return f.each(v, f.items.Wire)
}

// Native returns a copy of the sequence with every item in native form.
func (f *RepeatField) Native(w any) (any, error) {
	if w == nil {
		return nil, nil
	}
	seq, ok := w.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: field %q holds %T, not a sequence", wireerr.ErrIncompatible, f.Name(), w)
	}
	out := make([]any, len(seq))
	for i, item := range seq {
		n, err := f.items.Native(item)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (f *RepeatField) each(v any, conv func(any) (any, error)) (any, error) {
	if v == nil {
		return nil, nil
	}
	if seq, ok := v.([]any); ok {
		out := make([]any, len(seq))
		for i, item := range seq {
			w, err := conv(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = w
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: field %q expects a sequence, got %T", wireerr.ErrIncompatible, f.Name(), v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		w, err := conv(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = w
	}
	return out, nil
}

// Equal compares element descriptors, names and options.
func (f *RepeatField) Equal(other Descriptor) bool {
	o, ok := other.(*RepeatField)
	if !ok {
		return false
	}
	return f.items.Equal(o.items) && f.Name() == o.Name() && f.sameSettings(&o.base)
}

func (f *RepeatField) String() string {
	return fmt.Sprintf("<RepeatField %s %s>", f.Name(), f.items)
}

// MapField is a slot holding a mapping from string keys to values.
type MapField struct {
	base

	values Descriptor
}

// NewMap declares a map field whose values are described by values.
func NewMap(values Descriptor, opts ...Option) *MapField {
	if values == nil {
		panic("field: NewMap with nil values")
	}
	return &MapField{base: base{settings: newSettings(opts)}, values: values}
}

// Map declares a map field, normalizing values like Repeat does.
func Map(values any, opts ...Option) *MapField {
	return NewMap(normalize("Map", values), opts...)
}

// Keys returns the key type, which is always String.
func (f *MapField) Keys() *Scalar { return String }

// Values returns the value descriptor.
func (f *MapField) Values() Descriptor { return f.values }

// BindResolver passes r down to the value descriptor.
func (f *MapField) BindResolver(r Resolver) { f.values.BindResolver(r) }

// ResolveTypes resolves the value descriptor.
func (f *MapField) ResolveTypes() error { return f.values.ResolveTypes() }

// Default returns the explicit default or a new empty map.
func (f *MapField) Default() any {
	if v, ok := f.explicitDefault(); ok {
		return v
	}
	return map[string]any{}
}

// Coerce converts any Go map with string keys to map[string]any.
func (f *MapField) Coerce(v any) (any, error) {
	return f.each(v, f.values.Coerce)
}

// Wire canonicalizes a mapping of wire values.
func (f *MapField) Wire(v any) (any, error) {
	return f.each(v, f.values.Wire)
}

// Native returns a copy of the mapping with every value in native form.
func (f *MapField) Native(w any) (any, error) {
	if w == nil {
		return nil, nil
	}
	m, ok := w.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: field %q holds %T, not a mapping", wireerr.ErrIncompatible, f.Name(), w)
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		n, err := f.values.Native(v)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, nil
}

func (f *MapField) each(v any, conv func(any) (any, error)) (any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, item := range m {
			w, err := conv(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = w
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: field %q expects a string-keyed mapping, got %T", wireerr.ErrIncompatible, f.Name(), v)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		w, err := conv(iter.Value().Interface())
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = w
	}
	return out, nil
}

// Equal compares value descriptors, names and options.
func (f *MapField) Equal(other Descriptor) bool {
	o, ok := other.(*MapField)
	if !ok {
		return false
	}
	return f.values.Equal(o.values) && f.Name() == o.Name() && f.sameSettings(&o.base)
}

func (f *MapField) String() string {
	return fmt.Sprintf("<MapField %s %s>", f.Name(), f.values)
}

func normalize(helper string, x any) Descriptor {
	switch v := x.(type) {
	case Descriptor:
		return v
	case Type:
		return New(v)
	case string:
		if s, ok := ScalarByName(v); ok {
			return New(s)
		}
		return NewRef(v)
	default:
		panic(fmt.Sprintf("field: %s(%T): expected a Descriptor, a Type or a type name", helper, x))
	}
}
