package message

import (
	"fmt"
	"sort"

	"github.com/artpar/typedwire/core/field"
)

// RepeatView is a live view over a repeated field. Every call reads the
// message's current storage and every mutation writes back immediately.
type RepeatView struct {
	msg   *Message
	field *field.RepeatField
}

// sequence returns the stored items, or a fresh copy of the field default
// when unset. Mutations store the copy, so the default is never aliased.
func (v *RepeatView) sequence() []any {
	w, ok := v.msg.values[v.field.Name()]
	if !ok {
		w, _ = v.field.Wire(v.field.Default())
	}
	seq, _ := w.([]any)
	return seq
}

func (v *RepeatView) store(seq []any) {
	v.msg.values[v.field.Name()] = seq
}

func (v *RepeatView) check(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%s.%s: index %d out of range [0, %d)", v.msg.typ.name, v.field.Name(), i, n)
	}
	return nil
}

// Len returns the number of items.
func (v *RepeatView) Len() int { return len(v.sequence()) }

// At returns the wire value at index i.
func (v *RepeatView) At(i int) (any, error) {
	seq := v.sequence()
	if err := v.check(i, len(seq)); err != nil {
		return nil, err
	}
	return seq[i], nil
}

// NativeAt returns the native value at index i.
func (v *RepeatView) NativeAt(i int) (any, error) {
	w, err := v.At(i)
	if err != nil {
		return nil, err
	}
	return v.field.Items().Native(w)
}

// Set replaces the item at index i.
func (v *RepeatView) Set(i int, item any) error {
	seq := v.sequence()
	if err := v.check(i, len(seq)); err != nil {
		return err
	}
	w, err := v.field.Items().Coerce(item)
	if err != nil {
		return err
	}
	seq[i] = w
	v.store(seq)
	return nil
}

// Insert places item before index i; i == Len() appends.
func (v *RepeatView) Insert(i int, item any) error {
	seq := v.sequence()
	if i < 0 || i > len(seq) {
		return fmt.Errorf("%s.%s: insert index %d out of range [0, %d]", v.msg.typ.name, v.field.Name(), i, len(seq))
	}
	w, err := v.field.Items().Coerce(item)
	if err != nil {
		return err
	}
	seq = append(seq, nil)
	copy(seq[i+1:], seq[i:])
	seq[i] = w
	v.store(seq)
	return nil
}

// Append adds items at the end.
func (v *RepeatView) Append(items ...any) error {
	for _, item := range items {
		if err := v.Insert(v.Len(), item); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the item at index i.
func (v *RepeatView) Delete(i int) error {
	seq := v.sequence()
	if err := v.check(i, len(seq)); err != nil {
		return err
	}
	seq = append(seq[:i], seq[i+1:]...)
	v.store(seq)
	return nil
}

// Values returns a copy of the wire items.
func (v *RepeatView) Values() []any {
	seq := v.sequence()
	out := make([]any, len(seq))
	copy(out, seq)
	return out
}

// MapView is a live view over a map field.
type MapView struct {
	msg   *Message
	field *field.MapField
}

func (v *MapView) mapping() map[string]any {
	w, ok := v.msg.values[v.field.Name()]
	if !ok {
		w, _ = v.field.Wire(v.field.Default())
	}
	m, _ := w.(map[string]any)
	return m
}

// Len returns the number of entries.
func (v *MapView) Len() int { return len(v.mapping()) }

// Get returns the wire value stored under key.
func (v *MapView) Get(key string) (any, bool) {
	w, ok := v.mapping()[key]
	return w, ok
}

// Set stores item under key.
func (v *MapView) Set(key string, item any) error {
	w, err := v.field.Values().Coerce(item)
	if err != nil {
		return err
	}
	m := v.mapping()
	if m == nil {
		m = make(map[string]any)
	}
	m[key] = w
	v.msg.values[v.field.Name()] = m
	return nil
}

// Delete removes key.
func (v *MapView) Delete(key string) {
	m := v.mapping()
	if _, ok := m[key]; !ok {
		return
	}
	delete(m, key)
	v.msg.values[v.field.Name()] = m
}

// Keys returns the keys in sorted order.
func (v *MapView) Keys() []string {
	m := v.mapping()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
