package message

import (
	"fmt"
	"strings"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/wireerr"
)

// Message is an instance of a message type. It is not safe for concurrent
// mutation.
type Message struct {
	typ    *Type
	values map[string]any
}

// Type returns the message type.
func (m *Message) Type() *Type { return m.typ }

func (m *Message) field(name string) (field.Descriptor, error) {
	d, ok := m.typ.Field(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", m.typ.name, wireerr.ErrUnknownField, name)
	}
	return d, nil
}

// Has reports whether name holds a value, null included.
func (m *Message) Has(name string) bool {
	_, ok := m.values[name]
	return ok
}

// Len returns the number of set fields.
func (m *Message) Len() int { return len(m.values) }

// Fields returns the set field names in declaration order.
func (m *Message) Fields() []string {
	names := make([]string, 0, len(m.values))
	for _, d := range m.typ.fields {
		if _, ok := m.values[d.Name()]; ok {
			names = append(names, d.Name())
		}
	}
	return names
}

// Get returns the stored wire value of name, or wireerr.ErrNotSet.
func (m *Message) Get(name string) (any, error) {
	if _, err := m.field(name); err != nil {
		return nil, err
	}
	v, ok := m.values[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", m.typ.name, name, wireerr.ErrNotSet)
	}
	return v, nil
}

// Wire returns the stored wire value of name, or the field default.
func (m *Message) Wire(name string) (any, error) {
	d, err := m.field(name)
	if err != nil {
		return nil, err
	}
	if v, ok := m.values[name]; ok {
		return v, nil
	}
	return d.Default(), nil
}

// Value is the attribute-style read: the native form of the stored value,
// or of the field default when unset. Repeated fields return a live
// *RepeatView.
func (m *Message) Value(name string) (any, error) {
	d, err := m.field(name)
	if err != nil {
		return nil, err
	}
	if r, ok := d.(*field.RepeatField); ok {
		return &RepeatView{msg: m, field: r}, nil
	}
	w, ok := m.values[name]
	if !ok {
		w = d.Default()
	}
	return d.Native(w)
}

// ValueAs is Value asserted to T.
func ValueAs[T any](m *Message, name string) (T, error) {
	var zero T
	v, err := m.Value(name)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s.%s: %w: holds %T, not %T", m.typ.name, name, wireerr.ErrIncompatible, v, zero)
	}
	return t, nil
}

// Set is the attribute-style write: v is converted to wire form by the
// field (converter fields format native values) and stored.
func (m *Message) Set(name string, v any) error {
	d, err := m.field(name)
	if err != nil {
		return err
	}
	w, err := d.Coerce(v)
	if err != nil {
		return fmt.Errorf("%s: %w", m.typ.name, err)
	}
	m.values[name] = w
	return nil
}

// Put is the mapping-style write: v is already in wire form and is stored
// after canonical coercion only.
func (m *Message) Put(name string, v any) error {
	d, err := m.field(name)
	if err != nil {
		return err
	}
	w, err := d.Wire(v)
	if err != nil {
		return fmt.Errorf("%s: %w", m.typ.name, err)
	}
	m.values[name] = w
	return nil
}

// Delete unsets name.
func (m *Message) Delete(name string) error {
	if _, err := m.field(name); err != nil {
		return err
	}
	delete(m.values, name)
	return nil
}

// Repeated returns a live view over a repeated field.
func (m *Message) Repeated(name string) (*RepeatView, error) {
	d, err := m.field(name)
	if err != nil {
		return nil, err
	}
	r, ok := d.(*field.RepeatField)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a repeated field", m.typ.name, name)
	}
	return &RepeatView{msg: m, field: r}, nil
}

// Mapped returns a live view over a map field.
func (m *Message) Mapped(name string) (*MapView, error) {
	d, err := m.field(name)
	if err != nil {
		return nil, err
	}
	f, ok := d.(*field.MapField)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a map field", m.typ.name, name)
	}
	return &MapView{msg: m, field: f}, nil
}

// Equal reports whether o has the same type and the same stored values.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.typ != o.typ || len(m.values) != len(o.values) {
		return false
	}
	for name, v := range m.values {
		ov, ok := o.values[name]
		if !ok || !EqualValues(v, ov) {
			return false
		}
	}
	return true
}

func (m *Message) String() string {
	var b strings.Builder
	b.WriteString(m.typ.name)
	b.WriteByte('{')
	for i, name := range m.Fields() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", name, m.values[name])
	}
	b.WriteByte('}')
	return b.String()
}
