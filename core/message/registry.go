package message

import (
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/typedwire/core/field"
	"github.com/artpar/typedwire/core/wireerr"
)

// Registry holds message types by qualified name and resolves forward
// references between them.
//
// Types may be registered in any order. Resolve is the second phase that
// binds every field declared with field.NewRef; fields left unresolved are
// still resolved lazily on first use.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]*Type
	order   []string
	deriver *field.Deriver
}

// Default is the process-wide registry.
var Default = NewRegistry()

// NewRegistry creates an empty registry with its own deriver.
func NewRegistry() *Registry {
	return &Registry{
		types:   make(map[string]*Type),
		deriver: field.NewDeriver(),
	}
}

// Deriver returns the table used by Define to derive hinted fields.
// Converters install themselves into it.
func (r *Registry) Deriver() *field.Deriver {
	return r.deriver
}

// Define starts a message type that is registered when built.
func (r *Registry) Define(name string, bases ...*Type) *Builder {
	return &Builder{name: name, bases: bases, deriver: r.deriver, registry: r}
}

// Register adds t and binds the registry as resolver of its fields.
func (r *Registry) Register(t *Type) error {
	r.mu.Lock()
	if _, exists := r.types[t.name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", wireerr.ErrDuplicateType, t.name)
	}
	r.types[t.name] = t
	r.order = append(r.order, t.name)
	r.mu.Unlock()

	// Field locks are taken outside r.mu: a lazy lookup holds a field
	// lock while it reads the registry.
	for _, d := range t.fields {
		d.BindResolver(r)
	}
	return nil
}

// Lookup implements field.Resolver.
func (r *Registry) Lookup(name string) (field.Type, bool) {
	t, ok := r.Type(name)
	if !ok {
		return nil, false
	}
	return t, true
}

// Type returns the message type registered under name.
func (r *Registry) Type(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// MustLookup is like Type but panics when name is not registered.
func (r *Registry) MustLookup(name string) *Type {
	t, ok := r.Type(name)
	if !ok {
		panic(fmt.Sprintf("message: type %q not registered", name))
	}
	return t
}

// Types returns all registered types sorted by name.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].name < out[j].name
	})
	return out
}

// Resolve resolves every forward reference of every registered type, in
// registration order, and returns the first failure.
func (r *Registry) Resolve() error {
	r.mu.RLock()
	types := make([]*Type, 0, len(r.order))
	for _, name := range r.order {
		types = append(types, r.types[name])
	}
	r.mu.RUnlock()

	for _, t := range types {
		for _, d := range t.fields {
			if err := d.ResolveTypes(); err != nil {
				return fmt.Errorf("message %s: %w", t.name, err)
			}
		}
	}
	return nil
}
