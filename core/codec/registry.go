package codec

import (
	"fmt"
	"mime"
	"sort"
	"sync"
)

// Registry manages registered wire formats by name and media type.
type Registry struct {
	mu         sync.RWMutex
	formats    map[string]WireFormat
	defaultFmt string
}

// NewRegistry creates a new format registry.
func NewRegistry() *Registry {
	return &Registry{
		formats:    make(map[string]WireFormat),
		defaultFmt: "json",
	}
}

// Register adds a format to the registry.
func (r *Registry) Register(f WireFormat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formats[f.Name()]; exists {
		return fmt.Errorf("format %q already registered", f.Name())
	}

	r.formats[f.Name()] = f
	return nil
}

// Replace registers f, replacing a format of the same name.
func (r *Registry) Replace(f WireFormat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[f.Name()] = f
}

// Get returns a format by name.
func (r *Registry) Get(name string) (WireFormat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formats[name]
	return f, ok
}

// ByMIME returns the format serving a media type. Parameters such as
// charset are ignored.
func (r *Registry) ByMIME(contentType string) (WireFormat, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.formats {
		if f.MIMEType() == mediaType {
			return f, true
		}
	}
	return nil, false
}

// Default returns the default format.
func (r *Registry) Default() WireFormat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.formats[r.defaultFmt]; ok {
		return f
	}
	return nil
}

// SetDefault sets the default format.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formats[name]; !exists {
		return fmt.Errorf("format %q not registered", name)
	}

	r.defaultFmt = name
	return nil
}

// List returns all registered format names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global format registry.
var DefaultRegistry = NewRegistry()

// Register adds a format to the default registry.
func Register(f WireFormat) error {
	return DefaultRegistry.Register(f)
}

// Get returns a format from the default registry.
func Get(name string) (WireFormat, bool) {
	return DefaultRegistry.Get(name)
}

// List returns all format names from the default registry.
func List() []string {
	return DefaultRegistry.List()
}
