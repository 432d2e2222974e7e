package jsonapi

import (
	"encoding/json"
	"io"
)

// Write encodes doc to w, indented with two spaces when pretty is set.
func Write(w io.Writer, doc Document, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}

// WriteError writes an error document for err and returns the status of
// the error object.
func WriteError(w io.Writer, err error, pretty bool) (int, error) {
	e := FromCodecError(err)
	return e.StatusCode(), Write(w, NewErrorDocument(e), pretty)
}
