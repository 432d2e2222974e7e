// Package codec converts messages to and from wire payloads.
//
// Encoding walks the field table of a message type and builds a value tree
// of plain Go values keyed by wire names: nil, bool, int64, float64,
// string, []any and map[string]any. Bytes travel as standard base64
// strings. Decoding first checks the tree against the shape of the target
// type, then converts it field by field; unknown keys are ignored and absent
// optional fields stay unset.
//
// A WireFormat serializes that tree. JSON and YAML are registered in
// DefaultRegistry.
package codec

import (
	"github.com/artpar/typedwire/core/message"
)

// WireFormat packs messages into payloads and unpacks them.
type WireFormat interface {
	// Name returns the format name (e.g., "json", "yaml").
	Name() string

	// MIMEType returns the media type of payloads.
	MIMEType() string

	// Pack serializes m as a message of type t.
	Pack(t *message.Type, m *message.Message) ([]byte, error)

	// Unpack parses data into a message of type t.
	Unpack(t *message.Type, data []byte) (*message.Message, error)
}

// Encode returns the value tree of m as a message of its own type.
func Encode(m *message.Message) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	return encodeMessage(m.Type(), m)
}

// EncodeAs returns the value tree of m as a message of type t; m must be
// of type t or derived from it.
func EncodeAs(t *message.Type, m *message.Message) (map[string]any, error) {
	return encodeMessage(t, m)
}

// Decode converts a value tree into a message of type t.
func Decode(v any, t *message.Type) (*message.Message, error) {
	return decodeMessage(v, t)
}
