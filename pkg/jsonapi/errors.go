package jsonapi

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/artpar/typedwire/core/wireerr"
)

// ErrorBuilder provides a fluent API for building Error objects.
type ErrorBuilder struct {
	err Error
}

// NewError creates a new ErrorBuilder with the given status, code, and title.
func NewError(status int, code, title string) *ErrorBuilder {
	return &ErrorBuilder{
		err: Error{
			Status: strconv.Itoa(status),
			Code:   code,
			Title:  title,
		},
	}
}

// Detail sets the error detail message.
func (b *ErrorBuilder) Detail(detail string) *ErrorBuilder {
	b.err.Detail = detail
	return b
}

// Detailf sets the error detail message with formatting.
func (b *ErrorBuilder) Detailf(format string, args ...any) *ErrorBuilder {
	b.err.Detail = fmt.Sprintf(format, args...)
	return b
}

// Pointer sets the JSON pointer to the source of the error.
// Example: "/items/0/sku"
func (b *ErrorBuilder) Pointer(pointer string) *ErrorBuilder {
	if pointer == "" {
		return b
	}
	if b.err.Source == nil {
		b.err.Source = &ErrorSource{}
	}
	b.err.Source.Pointer = pointer
	return b
}

// Parameter sets the argument that caused the error.
func (b *ErrorBuilder) Parameter(param string) *ErrorBuilder {
	if b.err.Source == nil {
		b.err.Source = &ErrorSource{}
	}
	b.err.Source.Parameter = param
	return b
}

// Meta adds metadata to the error.
func (b *ErrorBuilder) Meta(key string, value any) *ErrorBuilder {
	if b.err.Meta == nil {
		b.err.Meta = make(Meta)
	}
	b.err.Meta[key] = value
	return b
}

// Build returns the constructed Error.
func (b *ErrorBuilder) Build() Error {
	return b.err
}

// StatusCode returns the HTTP status code as an int.
func (e Error) StatusCode() int {
	code, _ := strconv.Atoi(e.Status)
	return code
}

// ErrNotFoundWithID creates a 404 Not Found error with resource ID.
func ErrNotFoundWithID(resourceType, id string) Error {
	return NewError(404, "not_found", "Not Found").
		Detailf("The %s with ID '%s' was not found", resourceType, id).
		Build()
}

// ErrInternal creates a 500 Internal Server Error.
func ErrInternal(detail string) Error {
	if detail == "" {
		detail = "An internal error occurred"
	}
	return NewError(500, "internal_error", "Internal Server Error").Detail(detail).Build()
}

// FromCodecError maps a codec, validation or type failure to an error
// object. Validation and decode failures point at the offending value.
func FromCodecError(err error) Error {
	if err == nil {
		return ErrInternal("")
	}

	var verr *wireerr.ValidationError
	if errors.As(err, &verr) {
		path := verr.WirePath
		if path == nil {
			path = verr.Path
		}
		return NewError(422, "validation_error", "Validation Failed").
			Detail(verr.Message).
			Pointer(path.Pointer()).
			Meta("path", verr.Path.String()).
			Build()
	}

	var derr *wireerr.DecodeError
	if errors.As(err, &derr) {
		return NewError(400, "decode_error", "Invalid Message").
			Detail(derr.Reason).
			Pointer(derr.Path.Pointer()).
			Build()
	}

	var ferr *wireerr.FormatError
	if errors.As(err, &ferr) {
		return NewError(400, "malformed_payload", "Malformed Payload").
			Detail(ferr.Err.Error()).
			Meta("format", ferr.Format).
			Build()
	}

	switch {
	case errors.Is(err, wireerr.ErrUnknownField):
		return NewError(400, "unknown_field", "Unknown Field").Detail(err.Error()).Build()
	case errors.Is(err, wireerr.ErrIncompatible):
		return NewError(422, "incompatible_value", "Incompatible Value").Detail(err.Error()).Build()
	case errors.Is(err, wireerr.ErrTypeResolution):
		return NewError(404, "unknown_type", "Unknown Message Type").Detail(err.Error()).Build()
	}

	return ErrInternal(err.Error())
}
