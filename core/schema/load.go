package schema

import (
	"fmt"

	"github.com/artpar/typedwire/core/converter"
	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/wireerr"
)

// Loader builds the message types of documents into a registry.
type Loader struct {
	registry   *message.Registry
	converters *converter.Set
}

// NewLoader returns a loader for reg using the built-in converters.
func NewLoader(reg *message.Registry) *Loader {
	return &Loader{registry: reg, converters: converter.Defaults()}
}

// WithConverters replaces the converters field types may name.
func (l *Loader) WithConverters(s *converter.Set) *Loader {
	l.converters = s
	return l
}

// Load builds every message of docs into reg with the built-in converters.
func Load(reg *message.Registry, docs ...Document) ([]*message.Type, error) {
	return NewLoader(reg).Load(docs...)
}

type pending struct {
	doc  Document
	def  MessageDef
	name string
}

// Load checks every document against the registry and the other documents,
// then builds and registers the messages, bases first, and finally
// resolves field references. Types are returned in document order.
func (l *Loader) Load(docs ...Document) ([]*message.Type, error) {
	if err := converter.RegisterTypes(l.registry); err != nil {
		return nil, err
	}

	index := make(map[string]*pending)
	var order []*pending
	for _, doc := range docs {
		for _, def := range doc.Messages {
			name := doc.Qualify(def.Name)
			if _, dup := index[name]; dup {
				return nil, fmt.Errorf("%w: %q declared in more than one document", wireerr.ErrDuplicateType, name)
			}
			if _, exists := l.registry.Type(name); exists {
				return nil, fmt.Errorf("%w: %q", wireerr.ErrDuplicateType, name)
			}
			p := &pending{doc: doc, def: def, name: name}
			index[name] = p
			order = append(order, p)
		}
	}

	for _, p := range order {
		if err := l.check(p, index); err != nil {
			return nil, err
		}
	}

	built := make(map[string]*message.Type, len(order))
	visiting := make(map[string]bool)
	var build func(p *pending) (*message.Type, error)
	build = func(p *pending) (*message.Type, error) {
		if t, ok := built[p.name]; ok {
			return t, nil
		}
		if visiting[p.name] {
			return nil, fmt.Errorf("message %s: inheritance cycle", p.name)
		}
		visiting[p.name] = true
		defer delete(visiting, p.name)

		bases := make([]*message.Type, 0, len(p.def.Extends))
		for _, b := range p.def.Extends {
			name := p.doc.Qualify(b)
			if dep, ok := index[name]; ok {
				t, err := build(dep)
				if err != nil {
					return nil, err
				}
				bases = append(bases, t)
				continue
			}
			bases = append(bases, l.registry.MustLookup(name))
		}

		builder := l.registry.Define(p.name, bases...)
		for _, f := range p.def.Fields {
			d, err := l.descriptor(p.doc, f)
			if err != nil {
				return nil, fmt.Errorf("message %s: field %q: %w", p.name, f.Name, err)
			}
			builder.Field(f.Name, d)
		}
		t, err := builder.Build()
		if err != nil {
			return nil, err
		}
		built[p.name] = t
		return t, nil
	}

	types := make([]*message.Type, 0, len(order))
	for _, p := range order {
		t, err := build(p)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	if err := l.registry.Resolve(); err != nil {
		return nil, err
	}
	return types, nil
}

// check fails with wireerr.ErrTypeResolution when p names a type that is
// neither loaded nor registered.
func (l *Loader) check(p *pending, index map[string]*pending) error {
	known := func(name string) bool {
		if _, ok := index[name]; ok {
			return true
		}
		_, ok := l.registry.Type(name)
		return ok
	}

	for _, b := range p.def.Extends {
		if name := p.doc.Qualify(b); !known(name) {
			return fmt.Errorf("message %s: %w: base %q", p.name, wireerr.ErrTypeResolution, name)
		}
	}
	for _, f := range p.def.Fields {
		if _, ok := field.ScalarByName(f.Type); ok {
			continue
		}
		if _, ok := l.converters.Named(f.Type); ok {
			continue
		}
		if name := p.doc.Qualify(f.Type); !known(name) {
			return fmt.Errorf("message %s: field %q: %w: %q", p.name, f.Name, wireerr.ErrTypeResolution, name)
		}
	}
	return nil
}

func (l *Loader) descriptor(doc Document, f FieldDef) (field.Descriptor, error) {
	var opts []field.Option
	if f.WireName != "" {
		opts = append(opts, field.WithWireName(f.WireName))
	}
	if f.Required {
		opts = append(opts, field.Required())
	}
	if f.Schema != nil {
		opts = append(opts, field.WithSchema(*f.Schema))
	}

	d := l.shape(doc, f, opts...)
	if f.Default == nil {
		return d, nil
	}

	w, err := d.Wire(f.Default)
	if err != nil {
		return nil, fmt.Errorf("invalid default %v: %w", f.Default, err)
	}
	return l.shape(doc, f, append(opts, field.WithDefault(w))...), nil
}

func (l *Loader) shape(doc Document, f FieldDef, opts ...field.Option) field.Descriptor {
	switch {
	case f.Repeated:
		return field.NewRepeat(l.element(doc, f.Type), opts...)
	case f.Map:
		return field.NewMap(l.element(doc, f.Type), opts...)
	}
	return l.element(doc, f.Type, opts...)
}

func (l *Loader) element(doc Document, typeName string, opts ...field.Option) field.Descriptor {
	if s, ok := field.ScalarByName(typeName); ok {
		return field.New(s, opts...)
	}
	if c, ok := l.converters.Named(typeName); ok {
		return field.NewConverter(c, opts...)
	}
	return field.NewRef(doc.Qualify(typeName), opts...)
}
