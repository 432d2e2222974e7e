// Package convention derives wire-facing names from declared attribute names.
// Attributes are declared in lower_snake form and travel on the wire in
// lowerCamelCase unless a field overrides its wire name explicitly.
package convention

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// reserved maps attribute names that cannot be written as Go-friendly
// identifiers onto their wire key. The attribute "ref" is conventionally
// declared as "ref_" to keep it apart from a reference helper, and
// "is_in" stands for the keyword "in".
var reserved = map[string]string{
	"ref_":  "$ref",
	"is_in": "in",
}

// WireName returns the default wire key for an attribute name.
func WireName(name string) string {
	if key, ok := reserved[name]; ok {
		return key
	}
	return LowerCamel(name)
}

// LowerCamel converts lower_snake to lowerCamelCase.
// Leading underscores are kept so private-looking names stay distinct.
func LowerCamel(s string) string {
	if s == "" {
		return ""
	}

	lead := len(s) - len(strings.TrimLeft(s, "_"))
	parts := strings.Split(s[lead:], "_")

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:lead])

	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		b.WriteString(upperFirst(part))
	}
	return b.String()
}

// UpperCamel converts lower_snake to UpperCamelCase.
func UpperCamel(s string) string {
	return upperFirst(LowerCamel(strings.TrimLeft(s, "_")))
}

// Snake converts lowerCamelCase or UpperCamelCase to lower_snake.
// Runs of capitals are treated as one word ("HTTPPath" -> "http_path").
func Snake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			prevUpper := i > 0 && unicode.IsUpper(runes[i-1])
			if i > 0 && (prevLower || (prevUpper && nextLower)) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsIdentifier reports whether s is usable as an attribute name.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !unicode.IsLetter(c) && c != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			return false
		}
	}
	return true
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
