package validation

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/wireerr"
)

// ShapeValidator checks a decoded wire value tree against a message type
// before it is converted: the value is an object, required fields are
// present and present values have the kind their field declares. Unknown
// keys are ignored. Paths use wire keys since they locate input.
type ShapeValidator struct{}

// typed is implemented by *field.Field and *field.ConverterField.
type typed interface {
	Type() (field.Type, error)
}

// Validate returns the first mismatch as a *wireerr.DecodeError. Failures
// to resolve a declared type are returned unchanged.
func (ShapeValidator) Validate(v any, t *message.Type) error {
	return shapeMessage(v, t, nil)
}

func shapeMessage(v any, t *message.Type, path wireerr.Path) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return wireerr.Decodef(path, "expected an object for %s, got %s", t.TypeName(), kindOf(v))
	}
	for _, d := range t.Fields() {
		key := d.WireName()
		w, present := obj[key]
		if !present {
			if d.IsRequired() {
				return wireerr.Decodef(path.Append(key), "required field %q is missing", key)
			}
			continue
		}
		if err := shapeField(d, w, path.Append(key)); err != nil {
			return err
		}
	}
	return nil
}

func shapeField(d field.Descriptor, w any, path wireerr.Path) error {
	if w == nil {
		return nil
	}
	switch f := d.(type) {
	case *field.RepeatField:
		seq, ok := w.([]any)
		if !ok {
			return wireerr.Decodef(path, "expected an array, got %s", kindOf(w))
		}
		for i, item := range seq {
			if err := shapeField(f.Items(), item, path.Append(i)); err != nil {
				return err
			}
		}
		return nil

	case *field.MapField:
		m, ok := w.(map[string]any)
		if !ok {
			return wireerr.Decodef(path, "expected an object, got %s", kindOf(w))
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := shapeField(f.Values(), m[k], path.Append(k)); err != nil {
				return err
			}
		}
		return nil

	case typed:
		t, err := f.Type()
		if err != nil {
			return err
		}
		return shapeType(t, w, path)
	}
	return fmt.Errorf("unsupported field %s", d)
}

func shapeType(t field.Type, w any, path wireerr.Path) error {
	switch typ := t.(type) {
	case *message.Type:
		return shapeMessage(w, typ, path)
	case *field.Scalar:
		if !scalarShape(typ, w) {
			return wireerr.Decodef(path, "expected %s, got %s", typ.TypeName(), kindOf(w))
		}
		return nil
	}
	// Custom wire types decide for themselves.
	if _, err := t.Coerce(w); err != nil {
		return wireerr.Decodef(path, "%v", err)
	}
	return nil
}

func scalarShape(s *field.Scalar, w any) bool {
	switch s.Kind() {
	case field.KindBool:
		_, ok := w.(bool)
		return ok
	case field.KindInt:
		_, err := s.Coerce(w)
		return err == nil
	case field.KindFloat:
		return field.IsNumber(w)
	case field.KindString:
		_, ok := w.(string)
		return ok
	case field.KindBytes:
		switch b := w.(type) {
		case []byte:
			return true
		case string:
			_, err := base64.StdEncoding.DecodeString(b)
			return err == nil
		}
	}
	return false
}

// kindOf names the JSON kind of a decoded value.
func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	if field.IsNumber(v) {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
