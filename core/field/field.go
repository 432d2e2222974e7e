// Package field declares the named, typed slots that make up a message type.
//
// A Descriptor is one of four kinds:
//
//   - *Field: a scalar or nested message value
//   - *ConverterField: a value stored in a wire type and read as a native Go type
//   - *RepeatField: an ordered sequence of items described by another Descriptor
//   - *MapField: a string-keyed mapping of values described by another Descriptor
//
// Descriptors convert values in three directions: Coerce turns an assigned
// (native) value into wire form, Wire canonicalizes a value that is already
// in wire form and Native turns a stored wire value into what an
// attribute-style read returns.
package field

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/artpar/typedwire/core/convention"
	"github.com/artpar/typedwire/core/wireerr"
)

// Descriptor is implemented by *Field, *ConverterField, *RepeatField and *MapField.
type Descriptor interface {
	// Name is the attribute name; empty until bound to a message type.
	Name() string

	// WireName is the key used in the wire value tree.
	WireName() string

	// IsRequired reports whether decoding fails when the field is absent.
	IsRequired() bool

	// Schema returns the validation bounds, or nil.
	Schema() *Schema

	// Options returns the opaque option bag.
	Options() Options

	// Default returns the explicit default or the zero value of the type.
	Default() any

	// Coerce converts an assigned value to wire form.
	Coerce(v any) (any, error)

	// Wire canonicalizes a value that is already in wire form.
	Wire(v any) (any, error)

	// Native converts a stored wire value to its attribute-style form.
	Native(w any) (any, error)

	// Bind fixes the attribute name. Binding again to another name fails.
	Bind(name string) error

	// BindResolver sets the resolver used for forward references.
	BindResolver(r Resolver)

	// ResolveTypes resolves every forward reference reachable from the descriptor.
	ResolveTypes() error

	Equal(other Descriptor) bool
	String() string

	descriptor()
}

// Options is the opaque option bag of a field.
type Options map[string]any

// Option configures a field at declaration time.
type Option func(*settings)

type settings struct {
	name       string
	wireName   string
	def        any
	hasDefault bool
	required   bool
	schema     *Schema
	options    Options
}

// WithName sets the attribute name up front.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithWireName overrides the wire key, e.g. "$ref".
func WithWireName(key string) Option {
	return func(s *settings) { s.wireName = key }
}

// WithDefault sets the value returned for an unset field. The value is in wire form.
func WithDefault(v any) Option {
	return func(s *settings) {
		s.def = v
		s.hasDefault = true
	}
}

// Required marks the field as required for decoding.
func Required() Option {
	return func(s *settings) { s.required = true }
}

// WithSchema attaches validation bounds.
func WithSchema(schema Schema) Option {
	return func(s *settings) { s.schema = &schema }
}

// WithOption stores an opaque option.
func WithOption(key string, value any) Option {
	return func(s *settings) {
		if s.options == nil {
			s.options = make(Options)
		}
		s.options[key] = value
	}
}

func newSettings(opts []Option) settings {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if s.options == nil {
		s.options = make(Options)
	}
	return s
}

// base holds what every descriptor kind shares.
type base struct {
	mu       sync.Mutex
	settings settings
}

func (b *base) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings.name
}

func (b *base) WireName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.settings.wireName != "" {
		return b.settings.wireName
	}
	return convention.WireName(b.settings.name)
}

func (b *base) IsRequired() bool { return b.settings.required }
func (b *base) Schema() *Schema  { return b.settings.schema }
func (b *base) Options() Options { return b.settings.options }
func (b *base) descriptor()      {}

func (b *base) explicitDefault() (any, bool) {
	return b.settings.def, b.settings.hasDefault
}

func (b *base) wireNameAs(name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.settings.name != "" && b.settings.name != name {
		return "", fmt.Errorf("%w: %q cannot be bound as %q", wireerr.ErrFieldBound, b.settings.name, name)
	}
	if b.settings.wireName != "" {
		return b.settings.wireName, nil
	}
	return convention.WireName(name), nil
}

// WireNameAs returns the wire key d would use once bound to name, without
// binding it. It fails with wireerr.ErrFieldBound when d is bound to
// another name already.
func WireNameAs(d Descriptor, name string) (string, error) {
	n, ok := d.(interface {
		wireNameAs(string) (string, error)
	})
	if !ok {
		return "", fmt.Errorf("field: %T cannot be bound", d)
	}
	return n.wireNameAs(name)
}

func (b *base) Bind(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.settings.name {
	case "":
		b.settings.name = name
		return nil
	case name:
		return nil
	default:
		return fmt.Errorf("%w: %q cannot be bound as %q", wireerr.ErrFieldBound, b.settings.name, name)
	}
}

// sameSettings compares what field equality covers: options, schema and
// the required flag. Names and defaults are not compared.
func (b *base) sameSettings(o *base) bool {
	if b.settings.required != o.settings.required {
		return false
	}
	if !reflect.DeepEqual(b.settings.schema, o.settings.schema) {
		return false
	}
	return reflect.DeepEqual(b.settings.options, o.settings.options)
}

// Field is a slot holding a scalar or a nested message.
type Field struct {
	base

	typ      Type
	ref      string
	resolver Resolver
}

// New declares a field of type t.
func New(t Type, opts ...Option) *Field {
	if t == nil {
		panic("field: New with nil type")
	}
	return &Field{base: base{settings: newSettings(opts)}, typ: t}
}

// NewRef declares a field whose type is registered under a qualified name
// and looked up on first use or when the owning registry resolves.
func NewRef(qualifiedName string, opts ...Option) *Field {
	return &Field{base: base{settings: newSettings(opts)}, ref: qualifiedName}
}

// Ref returns the qualified name the field was declared with, if any.
func (f *Field) Ref() string { return f.ref }

// BindResolver sets the resolver for a forward reference. The first
// resolver bound wins.
func (f *Field) BindResolver(r Resolver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolver == nil {
		f.resolver = r
	}
}

// Type returns the declared type, resolving a forward reference once.
func (f *Field) Type() (Type, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.typ != nil {
		return f.typ, nil
	}
	if f.resolver == nil {
		return nil, fmt.Errorf("%w: %q for field %q: no registry bound", wireerr.ErrTypeResolution, f.ref, f.settings.name)
	}
	t, ok := f.resolver.Lookup(f.ref)
	if !ok {
		return nil, fmt.Errorf("%w: %q for field %q", wireerr.ErrTypeResolution, f.ref, f.settings.name)
	}
	f.typ = t
	return t, nil
}

// ResolveTypes resolves the field's forward reference, if any.
func (f *Field) ResolveTypes() error {
	_, err := f.Type()
	return err
}

// Default returns the explicit default or the type's zero value.
func (f *Field) Default() any {
	if v, ok := f.explicitDefault(); ok {
		return v
	}
	t, err := f.Type()
	if err != nil {
		return nil
	}
	return t.Zero()
}

// Coerce converts an assigned value to wire form. Nil is stored as null.
func (f *Field) Coerce(v any) (any, error) {
	return f.Wire(v)
}

// Wire canonicalizes a wire value.
func (f *Field) Wire(v any) (any, error) {
	if isNil(v) {
		return nil, nil
	}
	t, err := f.Type()
	if err != nil {
		return nil, err
	}
	w, err := t.Coerce(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name(), err)
	}
	return w, nil
}

// Native returns the wire value unchanged.
func (f *Field) Native(w any) (any, error) {
	return w, nil
}

// Equal reports whether other is a plain field of the same resolved type
// with the same options.
func (f *Field) Equal(other Descriptor) bool {
	o, ok := other.(*Field)
	if !ok {
		return false
	}
	return f.sameType(o) && f.sameSettings(&o.base)
}

func (f *Field) sameType(o *Field) bool {
	t1, err1 := f.Type()
	t2, err2 := o.Type()
	if err1 != nil || err2 != nil {
		return err1 != nil && err2 != nil && f.ref == o.ref
	}
	return t1 == t2
}

func (f *Field) String() string {
	f.mu.Lock()
	name, typ := f.settings.name, typeString(f.typ, f.ref)
	f.mu.Unlock()
	if name != "" {
		return fmt.Sprintf("<Field %s:%s>", name, typ)
	}
	return fmt.Sprintf("<Field %s>", typ)
}
