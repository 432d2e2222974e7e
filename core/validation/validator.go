// Package validation checks messages against the schema bounds of their
// fields and checks decoded wire values against the shape of a message type.
//
// Both validators stop at the first violation and report where it occurred.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/wireerr"
)

// MessageValidator enforces field schemas on message instances of one type.
type MessageValidator struct {
	typ *message.Type
}

// NewMessageValidator returns a validator for instances of t and of types
// derived from t.
func NewMessageValidator(t *message.Type) *MessageValidator {
	return &MessageValidator{typ: t}
}

// Validate returns the first violated bound as a *wireerr.ValidationError.
// Stored fields are visited in declaration order; unset fields are skipped.
func (v *MessageValidator) Validate(m *message.Message) error {
	if m == nil {
		return &wireerr.ValidationError{Message: "None is not a " + v.typ.TypeName()}
	}
	if !m.Type().IsA(v.typ) {
		return fmt.Errorf("%w: %s is not a %s message", wireerr.ErrIncompatible, m.Type().TypeName(), v.typ.TypeName())
	}
	return withWirePath(m.Type(), validateMessage(m, nil))
}

// Validate checks m against the schemas of its own type.
func Validate(m *message.Message) error {
	if m == nil {
		return nil
	}
	return withWirePath(m.Type(), validateMessage(m, nil))
}

func withWirePath(t *message.Type, err error) error {
	if verr, ok := err.(*wireerr.ValidationError); ok {
		verr.WirePath = WirePath(t, verr.Path)
	}
	return err
}

// WirePath translates a path of attribute names rooted at t into the same
// path over wire keys. Sequence indexes and mapping keys are kept. Steps
// past a point the type does not describe are copied unchanged.
func WirePath(t *message.Type, path wireerr.Path) wireerr.Path {
	out := make(wireerr.Path, 0, len(path))
	var d field.Descriptor
	for i, step := range path {
		switch {
		case t != nil:
			name, _ := step.(string)
			f, ok := t.Field(name)
			if !ok {
				return append(out, path[i:]...)
			}
			out = append(out, f.WireName())
			d, t = f, nil
		case d != nil:
			switch f := d.(type) {
			case *field.RepeatField:
				d = f.Items()
			case *field.MapField:
				d = f.Values()
			default:
				return append(out, path[i:]...)
			}
			out = append(out, step)
		default:
			return append(out, path[i:]...)
		}
		// a descriptor holding a message continues with that type's fields
		if tf, ok := d.(typed); ok {
			if ft, err := tf.Type(); err == nil {
				if mt, ok := ft.(*message.Type); ok {
					t, d = mt, nil
				}
			}
		}
	}
	return out
}

func validateMessage(m *message.Message, path wireerr.Path) error {
	for _, name := range m.Fields() {
		d, _ := m.Type().Field(name)
		w, _ := m.Get(name)
		if err := validateField(d, w, path.Append(name)); err != nil {
			return err
		}
	}
	return nil
}

func validateField(d field.Descriptor, w any, path wireerr.Path) error {
	if w == nil {
		return nil
	}
	schema := d.Schema()

	switch f := d.(type) {
	case *field.RepeatField:
		seq, _ := w.([]any)
		if err := checkItems(schema, w, len(seq), path); err != nil {
			return err
		}
		for i, item := range seq {
			if err := validateItem(f.Items(), schema, item, path.Append(i)); err != nil {
				return err
			}
		}
		return nil

	case *field.MapField:
		m, _ := w.(map[string]any)
		if err := checkItems(schema, w, len(m), path); err != nil {
			return err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := validateItem(f.Values(), schema, m[k], path.Append(k)); err != nil {
				return err
			}
		}
		return nil
	}

	return validateValue(schema, w, path)
}

// validateItem applies the container's schema to one element, then the
// element descriptor's own schema when it has one.
func validateItem(d field.Descriptor, container *field.Schema, w any, path wireerr.Path) error {
	if w == nil {
		return nil
	}
	if err := validateValue(container, w, path); err != nil {
		return err
	}
	switch d.(type) {
	case *field.RepeatField, *field.MapField:
		return validateField(d, w, path)
	}
	if d.Schema() != nil {
		return validateValue(d.Schema(), w, path)
	}
	return nil
}

func validateValue(schema *field.Schema, w any, path wireerr.Path) error {
	if nested, ok := w.(*message.Message); ok {
		return validateMessage(nested, path)
	}
	if schema == nil {
		return nil
	}

	n, measurable := length(w)
	if measurable {
		if schema.MinLength > 0 && n < schema.MinLength {
			return &wireerr.ValidationError{Message: Repr(w) + " is too short", Path: path}
		}
		if schema.MaxLength > 0 && n > schema.MaxLength {
			return &wireerr.ValidationError{Message: Repr(w) + " is too long", Path: path}
		}
	}

	if s, ok := w.(string); ok && schema.Pattern != "" {
		re, err := compile(schema.Pattern)
		if err != nil {
			return err
		}
		if !re.MatchString(s) {
			return &wireerr.ValidationError{
				Message: fmt.Sprintf("%s does not match %s", Repr(w), Repr(schema.Pattern)),
				Path:    path,
			}
		}
	}
	return nil
}

func checkItems(schema *field.Schema, w any, n int, path wireerr.Path) error {
	if schema == nil {
		return nil
	}
	if schema.MinItems > 0 && n < schema.MinItems {
		return &wireerr.ValidationError{Message: Repr(w) + " is too short", Path: path}
	}
	if schema.MaxItems > 0 && n > schema.MaxItems {
		return &wireerr.ValidationError{Message: Repr(w) + " is too long", Path: path}
	}
	return nil
}

// length measures strings in characters and bytes in bytes.
func length(w any) (int, bool) {
	switch v := w.(type) {
	case string:
		return utf8.RuneCountInString(v), true
	case []byte:
		return len(v), true
	}
	return 0, false
}

var patterns sync.Map // string -> *regexp.Regexp

func compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid schema pattern %q: %w", pattern, err)
	}
	patterns.Store(pattern, re)
	return re, nil
}
