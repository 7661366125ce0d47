// Package schema implements the JSON-Schema-shaped documents that describe intent
// parameters and component props.
//
// Only the subset the catalog needs is supported: type, properties, required, enum,
// default, numeric bounds, string length and pattern, array items and bounds, and
// additionalProperties. Values are expected in the shape produced by encoding/json
// (map[string]any, []any, float64, string, bool, nil); Go integer kinds are accepted too.
// Validation is delegated to a compiled draft 2020-12 schema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Type names understood by the validator.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
	TypeNull    = "null"
)

var knownTypes = map[string]bool{
	TypeString:  true,
	TypeNumber:  true,
	TypeInteger: true,
	TypeBoolean: true,
	TypeObject:  true,
	TypeArray:   true,
	TypeNull:    true,
}

// TypeSet holds the allowed types of a schema node. It decodes from either a single
// string ("string") or an array (["string", "null"]).
type TypeSet []string

// UnmarshalJSON accepts a string or an array of strings.
func (t *TypeSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*t = TypeSet{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("type must be a string or an array of strings: %w", err)
	}
	*t = many
	return nil
}

// MarshalJSON writes a single type as a plain string.
func (t TypeSet) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// Has reports whether name is one of the declared types.
func (t TypeSet) Has(name string) bool {
	return slices.Contains(t, name)
}

// Schema is a single node of a JSON-Schema-shaped document.
type Schema struct {
	Type                 TypeSet            `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Default              any                `json:"default,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	ExclusiveMinimum     *float64           `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum     *float64           `json:"exclusiveMaximum,omitempty"`
	MinLength            *int               `json:"minLength,omitempty"`
	MaxLength            *int               `json:"maxLength,omitempty"`
	Pattern              string             `json:"pattern,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	MinItems             *int               `json:"minItems,omitempty"`
	MaxItems             *int               `json:"maxItems,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`

	// compiled is set by Check; a Schema that was never checked compiles on demand.
	compiled *jsonschema.Schema
}

// ShapeError lists every structural problem found in a schema document.
type ShapeError struct {
	Problems []string
}

func (e *ShapeError) Error() string {
	return "malformed schema: " + strings.Join(e.Problems, "; ")
}

// Check verifies the schema is well formed and compiles its patterns.
// It must be called before the schema is shared between goroutines.
func (s *Schema) Check() error {
	if s == nil {
		return nil
	}
	var problems []string
	s.check("", &problems)
	if len(problems) > 0 {
		return &ShapeError{Problems: problems}
	}
	compiled, err := s.compile()
	if err != nil {
		return &ShapeError{Problems: []string{err.Error()}}
	}
	s.compiled = compiled
	return nil
}

func (s *Schema) check(path string, problems *[]string) {
	at := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		if path != "" {
			msg = path + ": " + msg
		}
		*problems = append(*problems, msg)
	}

	for _, name := range s.Type {
		if !knownTypes[name] {
			at("unknown type %q", name)
		}
	}

	objectish := len(s.Type) == 0 || s.Type.Has(TypeObject)
	if !objectish && (len(s.Properties) > 0 || len(s.Required) > 0) {
		at("properties/required declared on non-object type %v", []string(s.Type))
	}

	seen := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		if name == "" {
			at("required entry must not be empty")
			continue
		}
		if seen[name] {
			at("required entry %q listed twice", name)
		}
		seen[name] = true
	}

	if s.Enum != nil && len(s.Enum) == 0 {
		at("enum must not be empty")
	}

	if s.Minimum != nil && s.Maximum != nil && *s.Minimum > *s.Maximum {
		at("minimum %v exceeds maximum %v", *s.Minimum, *s.Maximum)
	}
	if s.MinLength != nil && *s.MinLength < 0 {
		at("minLength must not be negative")
	}
	if s.MinLength != nil && s.MaxLength != nil && *s.MinLength > *s.MaxLength {
		at("minLength %d exceeds maxLength %d", *s.MinLength, *s.MaxLength)
	}
	if s.MinItems != nil && *s.MinItems < 0 {
		at("minItems must not be negative")
	}
	if s.MinItems != nil && s.MaxItems != nil && *s.MinItems > *s.MaxItems {
		at("minItems %d exceeds maxItems %d", *s.MinItems, *s.MaxItems)
	}

	if s.Pattern != "" {
		if _, err := regexp.Compile(s.Pattern); err != nil {
			at("invalid pattern %q: %v", s.Pattern, err)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(s.Properties)) {
		prop := s.Properties[name]
		if prop == nil {
			at("property %q has no schema", name)
			continue
		}
		prop.check(join(path, name), problems)
	}
	if s.Items != nil {
		s.Items.check(path+"[]", problems)
	}

	// Only a structurally sound schema can judge its own default.
	if len(*problems) == 0 && s.Default != nil {
		for _, v := range s.Validate(s.Default) {
			at("default does not satisfy schema: %s", v.Message)
		}
	}
}

// PropertyNames returns the declared property names in sorted order.
func (s *Schema) PropertyNames() []string {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.Properties))
}

// IsRequired reports whether name is listed in required.
func (s *Schema) IsRequired(name string) bool {
	return s != nil && slices.Contains(s.Required, name)
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := *s
	out.compiled = nil
	out.Type = slices.Clone(s.Type)
	out.Required = slices.Clone(s.Required)
	out.Enum = deepCopySlice(s.Enum)
	out.Default = DeepCopy(s.Default)
	out.Minimum = clonePtr(s.Minimum)
	out.Maximum = clonePtr(s.Maximum)
	out.ExclusiveMinimum = clonePtr(s.ExclusiveMinimum)
	out.ExclusiveMaximum = clonePtr(s.ExclusiveMaximum)
	out.MinLength = clonePtr(s.MinLength)
	out.MaxLength = clonePtr(s.MaxLength)
	out.MinItems = clonePtr(s.MinItems)
	out.MaxItems = clonePtr(s.MaxItems)
	out.AdditionalProperties = clonePtr(s.AdditionalProperties)
	out.Items = s.Items.Clone()
	if s.Properties != nil {
		out.Properties = make(map[string]*Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.Clone()
		}
	}
	return &out
}

// ApplyDefaults returns a copy of values with declared defaults filled in for
// properties that are absent. Nested objects that are present get their own defaults.
func (s *Schema) ApplyDefaults(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	if s == nil {
		return out
	}
	for _, name := range s.PropertyNames() {
		prop := s.Properties[name]
		if prop == nil {
			continue
		}
		current, present := out[name]
		if !present {
			if prop.Default != nil {
				out[name] = DeepCopy(prop.Default)
			}
			continue
		}
		if nested, ok := current.(map[string]any); ok && len(prop.Properties) > 0 {
			out[name] = prop.ApplyDefaults(nested)
		}
	}
	return out
}

// DeepCopy copies JSON-shaped values so callers never share mutable maps or slices.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = DeepCopy(item)
		}
		return out
	case []any:
		return deepCopySlice(val)
	default:
		return v
	}
}

func deepCopySlice(in []any) []any {
	if in == nil {
		return nil
	}
	out := make([]any, len(in))
	for i, item := range in {
		out[i] = DeepCopy(item)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
