package field

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/artpar/typedwire/core/wireerr"
)

// Constructor builds a field for a native type.
type Constructor func(opts ...Option) Descriptor

// Deriver maps native Go types to field constructors. Message builders
// consult it to declare fields from type hints; converters register their
// native type into it.
type Deriver struct {
	mu    sync.RWMutex
	table map[reflect.Type]Constructor
}

// NativeOf returns the reflect.Type used as the hint for T.
func NativeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// NewDeriver returns a deriver that knows the Go scalar types.
func NewDeriver() *Deriver {
	d := &Deriver{table: make(map[reflect.Type]Constructor)}
	scalars := map[reflect.Type]*Scalar{
		NativeOf[bool]():    Bool,
		NativeOf[int]():     Int64,
		NativeOf[int32]():   Int32,
		NativeOf[int64]():   Int64,
		NativeOf[float32](): Float32,
		NativeOf[float64](): Float64,
		NativeOf[string]():  String,
		NativeOf[[]byte]():  Bytes,
	}
	for native, s := range scalars {
		d.table[native] = scalarConstructor(s)
	}
	return d
}

func scalarConstructor(s *Scalar) Constructor {
	return func(opts ...Option) Descriptor { return New(s, opts...) }
}

// Register adds a constructor for native. An existing registration is kept
// and Register reports false, so the first registration wins.
func (d *Deriver) Register(native reflect.Type, c Constructor) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.table[native]; exists {
		return false
	}
	d.table[native] = c
	return true
}

// RegisterConverter registers c for its native type.
func (d *Deriver) RegisterConverter(c Converter) bool {
	return d.Register(c.Native(), func(opts ...Option) Descriptor {
		return NewConverter(c, opts...)
	})
}

// Known reports whether native has a registered constructor.
func (d *Deriver) Known(native reflect.Type) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.table[native]
	return ok
}

// Derive builds a field from a hint. A hint is either a Type, which yields
// a plain field of that type, or a reflect.Type:
//
//   - registered types (scalars, converter natives) use their constructor
//   - slices and arrays yield a repeated field over the element, one level
//     per slice level
//   - maps keyed by string yield a map field over the element
//
// Anything else fails with wireerr.ErrCannotDerive.
func (d *Deriver) Derive(hint any, opts ...Option) (Descriptor, error) {
	switch h := hint.(type) {
	case Type:
		return New(h, opts...), nil
	case reflect.Type:
		return d.deriveNative(h, opts)
	default:
		return nil, fmt.Errorf("%w for %v", wireerr.ErrCannotDerive, hint)
	}
}

func (d *Deriver) deriveNative(native reflect.Type, opts []Option) (Descriptor, error) {
	if native == nil {
		return nil, fmt.Errorf("%w for nil hint", wireerr.ErrCannotDerive)
	}

	d.mu.RLock()
	c, ok := d.table[native]
	d.mu.RUnlock()
	if ok {
		return c(opts...), nil
	}

	switch native.Kind() {
	case reflect.Slice, reflect.Array:
		items, err := d.deriveNative(native.Elem(), nil)
		if err != nil {
			return nil, fmt.Errorf("%w for %s: %w", wireerr.ErrCannotDerive, native, err)
		}
		return NewRepeat(items, opts...), nil
	case reflect.Map:
		if native.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w for %s: map keys must be strings", wireerr.ErrCannotDerive, native)
		}
		values, err := d.deriveNative(native.Elem(), nil)
		if err != nil {
			return nil, fmt.Errorf("%w for %s: %w", wireerr.ErrCannotDerive, native, err)
		}
		return NewMap(values, opts...), nil
	}
	return nil, fmt.Errorf("%w for %s", wireerr.ErrCannotDerive, native)
}
