package domain

// FieldType declares the coercion applied to a mapped field.
type FieldType string

const (
	// FieldString passes string values through unchanged.
	FieldString FieldType = "string"

	// FieldBool coerces the literal strings "true"/"false" (any case) to booleans.
	FieldBool FieldType = "bool"

	// FieldInt parses numeric strings (including decimal forms) to integers.
	FieldInt FieldType = "int"

	// FieldFloat parses numeric strings to floats.
	FieldFloat FieldType = "float"

	// FieldDate renders datetime-like values to ISO-8601 with UTC offset.
	FieldDate FieldType = "date"

	// FieldArray parses JSON-encoded strings into sequences.
	FieldArray FieldType = "array"

	// FieldAny passes any value through unchanged.
	FieldAny FieldType = "any"
)

// FieldMapping maps one incoming field to its outbound name and type.
type FieldMapping struct {
	// From is the incoming field name.
	From string `toml:"from"`

	// To is the outbound API attribute name.
	To string `toml:"to"`

	// Type is the coercion target. Empty means FieldAny.
	Type FieldType `toml:"type"`
}

// StreamDefinition describes one supported stream. Definitions are built once
// at startup from the embedded catalog and never mutated.
type StreamDefinition struct {
	// Name is the stream identifier records are tagged with.
	Name string `toml:"name"`

	// Endpoint is the API path segment for this stream (e.g. "products").
	Endpoint string `toml:"endpoint"`

	// Mandatory lists outbound fields that must be present on creates.
	// A missing mandatory field fails the whole record.
	Mandatory []string `toml:"mandatory"`

	// Fields is the ordered mapping table applied by the field mapper.
	Fields []FieldMapping `toml:"field"`

	// Rules names the business-rule set evaluated after coercion
	// (e.g. "supplier"). Empty means no extra rules.
	Rules string `toml:"rules"`

	// LineItemsType, when set, expands a JSON-encoded "line_items" field into
	// nested order lines of this JSON:API type, recomputing totalValue.
	LineItemsType string `toml:"line_items_type"`
}

// MappingFor returns the mapping entry for an outbound field name.
func (d *StreamDefinition) MappingFor(outbound string) (FieldMapping, bool) {
	for _, m := range d.Fields {
		if m.To == outbound {
			return m, true
		}
	}
	return FieldMapping{}, false
}
