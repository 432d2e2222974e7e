// Package converter maps wire types to native Go types.
//
// A converter backs a field.ConverterField: the message stores the wire
// value and attribute-style access sees the native one. Func adapts a pair
// of typed functions into a field.Converter; the built-in converters cover
// time.Time, CivilDate and nullable scalars, each stored in a small wire
// message defined by this package.
package converter

import (
	"fmt"
	"reflect"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/wireerr"
)

type funcConverter[W, N any] struct {
	wire    field.Type
	resolve func(W) (N, error)
	format  func(N) (W, error)
}

// Func builds a converter from typed functions. resolve receives wire
// values of type W and format receives native values of type N.
//
// A null wire value resolves to the zero N without calling resolve, and a
// nil native value formats to null. A wire value of another Go type is
// first coerced through the wire type.
func Func[W, N any](wire field.Type, resolve func(W) (N, error), format func(N) (W, error)) field.Converter {
	if wire == nil || resolve == nil || format == nil {
		panic("converter: Func needs a wire type and both directions")
	}
	return &funcConverter[W, N]{wire: wire, resolve: resolve, format: format}
}

func (c *funcConverter[W, N]) Wire() field.Type { return c.wire }

func (c *funcConverter[W, N]) Native() reflect.Type { return field.NativeOf[N]() }

func (c *funcConverter[W, N]) Resolve(w any) (any, error) {
	if w == nil {
		var zero N
		return zero, nil
	}
	typed, ok := w.(W)
	if !ok {
		coerced, err := c.wire.Coerce(w)
		if err != nil {
			return nil, err
		}
		if typed, ok = coerced.(W); !ok {
			return nil, fmt.Errorf("%w: %T does not resolve from %s", wireerr.ErrIncompatible, w, c.wire.TypeName())
		}
	}
	return c.resolve(typed)
}

func (c *funcConverter[W, N]) Format(n any) (any, error) {
	if n == nil {
		return nil, nil
	}
	typed, ok := n.(N)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not %s", wireerr.ErrIncompatible, n, c.Native())
	}
	w, err := c.format(typed)
	if err != nil {
		return nil, err
	}
	if isNil(w) {
		return nil, nil
	}
	return w, nil
}

func (c *funcConverter[W, N]) String() string {
	return fmt.Sprintf("converter(%s <-> %s)", c.wire.TypeName(), c.Native())
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
