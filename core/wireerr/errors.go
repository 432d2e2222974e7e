// Package wireerr defines the failures raised by the field model, the
// validators and the wire codec.
//
// Sentinels are matched with errors.Is. The typed errors (ValidationError,
// DecodeError, FormatError) carry the detail a caller needs to report the
// failure to a client and match their sentinel as well.
package wireerr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrTypeResolution is returned when a field type declared by qualified
	// name cannot be resolved to a registered type.
	ErrTypeResolution = errors.New("unable to resolve type")

	// ErrCannotDerive is returned when no field can be derived for a native type hint.
	ErrCannotDerive = errors.New("cannot derive field")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrDecode is matched by every *DecodeError.
	ErrDecode = errors.New("decode failed")

	// ErrFormat is matched by every *FormatError.
	ErrFormat = errors.New("malformed payload")

	// ErrNotSet is returned by mapping-style reads of a field that holds no value.
	ErrNotSet = errors.New("field not set")

	// ErrUnknownField is returned when a name is not declared on a message type.
	ErrUnknownField = errors.New("unknown field")

	// ErrFieldBound is returned when a field already bound under one name is
	// bound again under another.
	ErrFieldBound = errors.New("field already bound")

	// ErrAmbiguousArgument is returned when a constructor receives the same
	// field both positionally and by keyword.
	ErrAmbiguousArgument = errors.New("field given both positionally and by keyword")

	// ErrIncompatible is returned when a value cannot be coerced to a field's wire type.
	ErrIncompatible = errors.New("incompatible value")

	// ErrDuplicateType is returned when a message type name is registered twice.
	ErrDuplicateType = errors.New("message type already registered")
)

// Path locates a value inside a message: attribute names, map keys and
// sequence indexes from the root to the offending value.
type Path []any

// Append returns a copy of p extended with step.
func (p Path) Append(step any) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, step)
}

// String renders the path as names[0].key.
func (p Path) String() string {
	var b strings.Builder
	for i, step := range p {
		switch s := step.(type) {
		case int:
			b.WriteString("[" + strconv.Itoa(s) + "]")
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			fmt.Fprint(&b, s)
		}
	}
	return b.String()
}

// Pointer renders the path as an RFC 6901 JSON pointer.
func (p Path) Pointer() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for _, step := range p {
		b.WriteByte('/')
		s := fmt.Sprint(step)
		s = strings.ReplaceAll(s, "~", "~0")
		s = strings.ReplaceAll(s, "/", "~1")
		b.WriteString(s)
	}
	return b.String()
}

// ValidationError reports a schema bound violated by a message value.
type ValidationError struct {
	Message string
	Path    Path

	// WirePath locates the value in the encoded payload: field steps are
	// wire keys. Empty when the message type was not at hand.
	WirePath Path
}

func (e *ValidationError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DecodeError reports input that does not have the shape of the target
// message type, such as a missing required field.
type DecodeError struct {
	Reason string
	Path   Path
}

func (e *DecodeError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("decode: %s", e.Reason)
	}
	return fmt.Sprintf("decode %s: %s", e.Path, e.Reason)
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Decodef builds a DecodeError at path.
func Decodef(path Path, format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...), Path: path}
}

// FormatError wraps the parse failure of an outer payload.
type FormatError struct {
	Format string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Format, ErrFormat, e.Err)
}

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Kind classifies err for reporting: "validation", "decode", "format",
// "resolution", "derivation" or "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrTypeResolution):
		return "resolution"
	case errors.Is(err, ErrCannotDerive):
		return "derivation"
	default:
		return "internal"
	}
}
