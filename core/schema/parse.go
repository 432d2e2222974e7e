package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/typedwire/core/convention"
	"github.com/artpar/typedwire/core/field"
)

// Document is one YAML definition file.
type Document struct {
	// Package qualifies every message name of the document.
	Package string `yaml:"package"`

	Messages []MessageDef `yaml:"messages"`

	// Source is the file the document was read from, if any.
	Source string `yaml:"-"`
}

// MessageDef declares one message type.
type MessageDef struct {
	Name    string     `yaml:"name"`
	Extends []string   `yaml:"extends,omitempty"`
	Fields  []FieldDef `yaml:"fields"`
}

// FieldDef declares one field.
type FieldDef struct {
	Name     string        `yaml:"name"`
	Type     string        `yaml:"type"`
	Repeated bool          `yaml:"repeated,omitempty"`
	Map      bool          `yaml:"map,omitempty"`
	WireName string        `yaml:"wire_name,omitempty"`
	Default  any           `yaml:"default,omitempty"`
	Required bool          `yaml:"required,omitempty"`
	Schema   *field.Schema `yaml:"schema,omitempty"`
}

// Qualify returns the qualified form of a message name used in d.
func (d Document) Qualify(name string) string {
	if strings.Contains(name, ".") || d.Package == "" {
		return name
	}
	return d.Package + "." + name
}

// ParseFile parses a definition document from a YAML file.
func ParseFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read file %s: %w", path, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// Parse parses a definition document from YAML bytes.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(doc); err != nil {
		return Document{}, fmt.Errorf("validate package %q: %w", doc.Package, err)
	}

	return doc, nil
}

// ParseDir parses all definition documents from a directory, including
// subdirectories, in lexical file order.
func ParseDir(dir string) ([]Document, error) {
	var docs []Document

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, sub...)
			continue
		}

		if !isYAML(entry.Name()) {
			continue
		}

		doc, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// Validate checks a document on its own: names, duplicates and field
// declarations. Type references are checked by Load.
func Validate(doc Document) error {
	var errs []string

	if doc.Package != "" {
		for _, part := range strings.Split(doc.Package, ".") {
			if !convention.IsIdentifier(part) {
				errs = append(errs, fmt.Sprintf("package name %q is not valid", doc.Package))
				break
			}
		}
	}

	seen := make(map[string]bool)
	for _, msg := range doc.Messages {
		if !convention.IsIdentifier(msg.Name) {
			errs = append(errs, fmt.Sprintf("message name %q is not a valid identifier", msg.Name))
		}
		if seen[msg.Name] {
			errs = append(errs, fmt.Sprintf("message %q declared twice", msg.Name))
		}
		seen[msg.Name] = true

		fields := make(map[string]bool)
		for _, f := range msg.Fields {
			if !convention.IsIdentifier(f.Name) {
				errs = append(errs, fmt.Sprintf("%s: field name %q is not a valid identifier", msg.Name, f.Name))
			}
			if fields[f.Name] {
				errs = append(errs, fmt.Sprintf("%s: field %q declared twice", msg.Name, f.Name))
			}
			fields[f.Name] = true

			if f.Type == "" {
				errs = append(errs, fmt.Sprintf("%s.%s: type is required", msg.Name, f.Name))
			}
			if f.Repeated && f.Map {
				errs = append(errs, fmt.Sprintf("%s.%s: a field cannot be both repeated and a map", msg.Name, f.Name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
