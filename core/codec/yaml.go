package codec

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/wireerr"
)

// YAML is a wire format carrying the same value tree as JSON in YAML text.
type YAML struct{}

// NewYAML creates a YAML format.
func NewYAML() *YAML {
	return &YAML{}
}

// Name returns the format name.
func (y *YAML) Name() string { return "yaml" }

// MIMEType returns the media type of YAML payloads.
func (y *YAML) MIMEType() string { return "application/yaml" }

// Pack serializes m as a YAML document.
func (y *YAML) Pack(t *message.Type, m *message.Message) ([]byte, error) {
	tree, err := EncodeAs(t, m)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(tree); err != nil {
		return nil, fmt.Errorf("yaml: encode %s: %w", t.TypeName(), err)
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unpack parses a YAML document into a message of type t.
func (y *YAML) Unpack(t *message.Type, data []byte) (*message.Message, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, &wireerr.FormatError{Format: y.Name(), Err: err}
	}
	return Decode(normalizeYAML(v), t)
}

// normalizeYAML turns the maps yaml.v3 produces for non-string keys into
// string-keyed maps.
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			x[k] = normalizeYAML(item)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		for i, item := range x {
			x[i] = normalizeYAML(item)
		}
		return x
	}
	return v
}

func init() {
	if err := Register(NewYAML()); err != nil {
		fmt.Printf("failed to register yaml format: %v\n", err)
	}
}
