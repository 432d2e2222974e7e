package message

import (
	"errors"
	"fmt"

	"github.com/artpar/typedwire/core/convention"
	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/wireerr"
)

// Builder collects the fields of a new message type.
type Builder struct {
	name     string
	bases    []*Type
	decls    []decl
	deriver  *field.Deriver
	registry *Registry
}

type decl struct {
	name string
	desc field.Descriptor
	hint any
	opts []field.Option
}

var defaultDeriver = field.NewDeriver()

// Define starts a message type named name deriving from bases. Hinted
// fields are derived with a deriver that only knows Go scalars; use
// Registry.Define for converter-aware derivation.
func Define(name string, bases ...*Type) *Builder {
	return &Builder{name: name, bases: bases, deriver: defaultDeriver}
}

// Field declares a field under an attribute name.
func (b *Builder) Field(name string, d field.Descriptor) *Builder {
	b.decls = append(b.decls, decl{name: name, desc: d})
	return b
}

// Add declares a field that already carries its name (see field.WithName).
func (b *Builder) Add(d field.Descriptor) *Builder {
	return b.Field(d.Name(), d)
}

// Hinted declares a field derived from a type hint when the type is built.
func (b *Builder) Hinted(name string, hint any, opts ...field.Option) *Builder {
	b.decls = append(b.decls, decl{name: name, hint: hint, opts: opts})
	return b
}

// Build computes the field table. When the builder came from a registry the
// type is registered as well.
func (b *Builder) Build() (*Type, error) {
	if b.name == "" {
		return nil, errors.New("message type name is required")
	}

	t := &Type{
		name:   b.name,
		bases:  b.bases,
		byName: make(map[string]int),
		byWire: make(map[string]int),
	}

	for _, base := range b.bases {
		if base == nil {
			return nil, fmt.Errorf("message %s: nil base type", b.name)
		}
		for _, d := range base.fields {
			t.put(d)
		}
	}

	// No descriptor is bound until every check has passed.
	descs := make([]field.Descriptor, len(b.decls))
	keys := make(map[string]string, len(t.fields)+len(b.decls))
	for _, d := range t.fields {
		keys[d.Name()] = d.WireName()
	}
	own := make(map[string]bool, len(b.decls))
	seen := make(map[field.Descriptor]string, len(b.decls))
	for i, dc := range b.decls {
		if !convention.IsIdentifier(dc.name) {
			return nil, fmt.Errorf("message %s: field name %q is not a valid identifier", b.name, dc.name)
		}
		if own[dc.name] {
			return nil, fmt.Errorf("message %s: field %q declared twice", b.name, dc.name)
		}
		own[dc.name] = true

		d := dc.desc
		if d == nil {
			derived, err := b.deriver.Derive(dc.hint, dc.opts...)
			if err != nil {
				return nil, fmt.Errorf("message %s: field %q: %w", b.name, dc.name, err)
			}
			d = derived
		}
		if prev, dup := seen[d]; dup {
			return nil, fmt.Errorf("message %s: %w: %q cannot be bound as %q", b.name, wireerr.ErrFieldBound, prev, dc.name)
		}
		seen[d] = dc.name
		key, err := field.WireNameAs(d, dc.name)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", b.name, err)
		}
		keys[dc.name] = key
		descs[i] = d
	}

	owners := make(map[string]string, len(keys))
	for _, name := range b.fieldOrder(t) {
		key := keys[name]
		if other, dup := owners[key]; dup {
			return nil, fmt.Errorf("message %s: fields %q and %q share wire key %q", t.name, other, name, key)
		}
		owners[key] = name
	}

	if b.registry != nil {
		if _, exists := b.registry.Type(t.name); exists {
			return nil, fmt.Errorf("%w: %q", wireerr.ErrDuplicateType, t.name)
		}
	}

	for i, d := range descs {
		if err := d.Bind(b.decls[i].name); err != nil {
			return nil, fmt.Errorf("message %s: %w", b.name, err)
		}
		t.put(d)
	}

	if err := t.indexWireNames(); err != nil {
		return nil, err
	}

	if b.registry != nil {
		if err := b.registry.Register(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// fieldOrder lists the final attribute names: inherited fields first, then
// the new declarations that do not replace one.
func (b *Builder) fieldOrder(t *Type) []string {
	names := make([]string, 0, len(t.fields)+len(b.decls))
	for _, d := range t.fields {
		names = append(names, d.Name())
	}
	for _, dc := range b.decls {
		if _, inherited := t.byName[dc.name]; !inherited {
			names = append(names, dc.name)
		}
	}
	return names
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Type {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

// put appends d, or replaces a same-named field in its current position.
func (t *Type) put(d field.Descriptor) {
	if i, ok := t.byName[d.Name()]; ok {
		t.fields[i] = d
		return
	}
	t.byName[d.Name()] = len(t.fields)
	t.fields = append(t.fields, d)
}

func (t *Type) indexWireNames() error {
	for i, d := range t.fields {
		key := d.WireName()
		if j, dup := t.byWire[key]; dup {
			return fmt.Errorf("message %s: fields %q and %q share wire key %q", t.name, t.fields[j].Name(), d.Name(), key)
		}
		t.byWire[key] = i
	}
	return nil
}
