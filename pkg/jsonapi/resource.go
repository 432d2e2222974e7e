package jsonapi

// ResourceBuilder provides a fluent API for building Resource objects.
type ResourceBuilder struct {
	resource Resource
}

// NewResource creates a new ResourceBuilder with the given type and ID.
func NewResource(resourceType, id string) *ResourceBuilder {
	return &ResourceBuilder{
		resource: Resource{
			Type:       resourceType,
			ID:         id,
			Attributes: make(map[string]any),
		},
	}
}

// Attr adds an attribute to the resource.
func (b *ResourceBuilder) Attr(key string, value any) *ResourceBuilder {
	b.resource.Attributes[key] = value
	return b
}

// Attrs adds the entries of a wire value tree as attributes. The "id" and
// "type" keys are reserved by JSON:API and move to the resource meta.
func (b *ResourceBuilder) Attrs(tree map[string]any) *ResourceBuilder {
	for k, v := range tree {
		if k == "id" || k == "type" {
			b.Meta(k, v)
			continue
		}
		b.resource.Attributes[k] = v
	}
	return b
}

// Meta adds metadata to the resource.
func (b *ResourceBuilder) Meta(key string, value any) *ResourceBuilder {
	if b.resource.Meta == nil {
		b.resource.Meta = make(Meta)
	}
	b.resource.Meta[key] = value
	return b
}

// Build returns the constructed Resource.
func (b *ResourceBuilder) Build() Resource {
	return b.resource
}
