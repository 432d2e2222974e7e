package field

// Schema holds the validation bounds of a field. It is consulted by
// validation only, never by plain reads and writes.
//
// MinLength and MaxLength bound the length of strings and bytes. On a
// repeated field they apply to every item, while MinItems and MaxItems
// bound the sequence itself. A zero Max bound means unbounded.
type Schema struct {
	MinLength int    `yaml:"min_length,omitempty" json:"minLength,omitempty"`
	MaxLength int    `yaml:"max_length,omitempty" json:"maxLength,omitempty"`
	MinItems  int    `yaml:"min_items,omitempty" json:"minItems,omitempty"`
	MaxItems  int    `yaml:"max_items,omitempty" json:"maxItems,omitempty"`
	Pattern   string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// IsZero reports whether the schema has no bounds at all.
func (s Schema) IsZero() bool {
	return s == Schema{}
}
