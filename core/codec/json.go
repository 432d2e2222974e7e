package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/wireerr"
)

// JSON is the JSON wire format. Numbers are parsed as json.Number so that
// integers keep their precision until the target field type is known.
type JSON struct {
	// Indent pretty-prints payloads when non-empty.
	Indent string
}

// NewJSON creates a compact JSON format.
func NewJSON() *JSON {
	return &JSON{}
}

// Name returns the format name.
func (j *JSON) Name() string { return "json" }

// MIMEType returns the media type of JSON payloads.
func (j *JSON) MIMEType() string { return "application/json" }

// Encode returns the value tree of m.
func (j *JSON) Encode(m *message.Message) (map[string]any, error) {
	return Encode(m)
}

// EncodeAs returns the value tree of m as a message of type t.
func (j *JSON) EncodeAs(t *message.Type, m *message.Message) (map[string]any, error) {
	return EncodeAs(t, m)
}

// Decode converts a value tree into a message of type t.
func (j *JSON) Decode(v any, t *message.Type) (*message.Message, error) {
	return Decode(v, t)
}

// Pack serializes m as UTF-8 JSON.
func (j *JSON) Pack(t *message.Type, m *message.Message) ([]byte, error) {
	tree, err := EncodeAs(t, m)
	if err != nil {
		return nil, err
	}
	var data []byte
	if j.Indent != "" {
		data, err = json.MarshalIndent(tree, "", j.Indent)
	} else {
		data, err = json.Marshal(tree)
	}
	if err != nil {
		return nil, fmt.Errorf("json: encode %s: %w", t.TypeName(), err)
	}
	return data, nil
}

// Unpack parses a JSON document into a message of type t. Syntax errors
// and trailing data are reported as *wireerr.FormatError.
func (j *JSON) Unpack(t *message.Type, data []byte) (*message.Message, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, &wireerr.FormatError{Format: j.Name(), Err: err}
	}
	return Decode(v, t)
}

func parseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func init() {
	if err := Register(NewJSON()); err != nil {
		fmt.Printf("failed to register json format: %v\n", err)
	}
}
