package codec

import (
	"encoding/base64"
	"fmt"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/validation"
	"github.com/artpar/typedwire/core/wireerr"
)

// typed is implemented by *field.Field and *field.ConverterField.
type typed interface {
	Type() (field.Type, error)
}

// encodeMessage builds the value tree of m keyed by wire names. Unset
// fields are omitted; stored nulls are kept.
func encodeMessage(t *message.Type, m *message.Message) (map[string]any, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil %s message", wireerr.ErrIncompatible, t.TypeName())
	}
	if !m.Type().IsA(t) {
		return nil, fmt.Errorf("%w: cannot encode %s as %s", wireerr.ErrIncompatible, m.Type().TypeName(), t.TypeName())
	}

	out := make(map[string]any, m.Len())
	for _, d := range t.Fields() {
		w, err := m.Get(d.Name())
		if err != nil {
			continue
		}
		v, err := encodeValue(d, w)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.TypeName(), d.Name(), err)
		}
		out[d.WireName()] = v
	}
	return out, nil
}

func encodeValue(d field.Descriptor, w any) (any, error) {
	if w == nil {
		return nil, nil
	}
	switch f := d.(type) {
	case *field.RepeatField:
		seq, ok := w.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a sequence", wireerr.ErrIncompatible, w)
		}
		out := make([]any, len(seq))
		for i, item := range seq {
			v, err := encodeValue(f.Items(), item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil

	case *field.MapField:
		m, ok := w.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a mapping", wireerr.ErrIncompatible, w)
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			v, err := encodeValue(f.Values(), item)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = v
		}
		return out, nil

	case typed:
		t, err := f.Type()
		if err != nil {
			return nil, err
		}
		return encodeTyped(t, w)
	}
	return nil, fmt.Errorf("unsupported field %s", d)
}

func encodeTyped(t field.Type, w any) (any, error) {
	switch typ := t.(type) {
	case *message.Type:
		nested, ok := w.(*message.Message)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a %s message", wireerr.ErrIncompatible, w, typ.TypeName())
		}
		// A derived instance is encoded with all of its own fields.
		return encodeMessage(nested.Type(), nested)
	case *field.Scalar:
		if typ.Kind() == field.KindBytes {
			b, ok := w.([]byte)
			if !ok {
				return nil, fmt.Errorf("%w: %T is not bytes", wireerr.ErrIncompatible, w)
			}
			return base64.StdEncoding.EncodeToString(b), nil
		}
	}
	return w, nil
}

// decodeMessage validates the shape of v against t and converts it.
func decodeMessage(v any, t *message.Type) (*message.Message, error) {
	if err := (validation.ShapeValidator{}).Validate(v, t); err != nil {
		return nil, err
	}
	return convertMessage(v.(map[string]any), t, nil)
}

func convertMessage(obj map[string]any, t *message.Type, path wireerr.Path) (*message.Message, error) {
	m := t.Empty()
	for _, d := range t.Fields() {
		key := d.WireName()
		v, present := obj[key]
		if !present {
			continue
		}
		w, err := convertValue(d, v, path.Append(key))
		if err != nil {
			return nil, err
		}
		if err := m.Put(d.Name(), w); err != nil {
			return nil, wireerr.Decodef(path.Append(key), "%v", err)
		}
	}
	return m, nil
}

func convertValue(d field.Descriptor, v any, path wireerr.Path) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f := d.(type) {
	case *field.RepeatField:
		seq, ok := v.([]any)
		if !ok {
			return nil, wireerr.Decodef(path, "expected an array")
		}
		out := make([]any, len(seq))
		for i, item := range seq {
			w, err := convertValue(f.Items(), item, path.Append(i))
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil

	case *field.MapField:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, wireerr.Decodef(path, "expected an object")
		}
		out := make(map[string]any, len(obj))
		for k, item := range obj {
			w, err := convertValue(f.Values(), item, path.Append(k))
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil

	case typed:
		t, err := f.Type()
		if err != nil {
			return nil, err
		}
		return convertTyped(t, v, path)
	}
	return nil, fmt.Errorf("unsupported field %s", d)
}

func convertTyped(t field.Type, v any, path wireerr.Path) (any, error) {
	switch typ := t.(type) {
	case *message.Type:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, wireerr.Decodef(path, "expected an object")
		}
		return convertMessage(obj, typ, path)
	case *field.Scalar:
		if s, ok := v.(string); ok && typ.Kind() == field.KindBytes {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, wireerr.Decodef(path, "invalid base64: %v", err)
			}
			return b, nil
		}
	}
	w, err := t.Coerce(v)
	if err != nil {
		return nil, wireerr.Decodef(path, "%v", err)
	}
	return w, nil
}
