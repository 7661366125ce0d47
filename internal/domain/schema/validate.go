package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Keywords reported in violations.
const (
	KeywordRequired             = "required"
	KeywordType                 = "type"
	KeywordEnum                 = "enum"
	KeywordMinimum              = "minimum"
	KeywordMaximum              = "maximum"
	KeywordExclusiveMinimum     = "exclusiveMinimum"
	KeywordExclusiveMaximum     = "exclusiveMaximum"
	KeywordMinLength            = "minLength"
	KeywordMaxLength            = "maxLength"
	KeywordPattern              = "pattern"
	KeywordMinItems             = "minItems"
	KeywordMaxItems             = "maxItems"
	KeywordAdditionalProperties = "additionalProperties"
)

const resourceURL = "mem://intentui/schema.json"

var printer = message.NewPrinter(language.English)

// Violation is one failed constraint.
type Violation struct {
	// Field is the dotted path of the offending value; empty for the root.
	Field   string `json:"field"`
	Keyword string `json:"keyword"`
	Message string `json:"message"`
}

// Validate checks value against the schema and returns every violated constraint.
// A nil schema accepts anything. Values are never coerced: "5" is not a number.
func (s *Schema) Validate(value any) []Violation {
	if s == nil {
		return nil
	}
	compiled := s.compiled
	if compiled == nil {
		var err error
		compiled, err = s.compile()
		if err != nil {
			return []Violation{{Keyword: KeywordType, Message: "value cannot be checked: " + err.Error()}}
		}
	}

	instance := s.prune(normalize(value))
	err := compiled.Validate(instance)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []Violation{{Keyword: KeywordType, Message: "value " + err.Error()}}
	}

	var out []Violation
	collect(verr, instance, &out)
	slices.SortStableFunc(out, func(a, b Violation) int {
		if c := strings.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return strings.Compare(a.Keyword, b.Keyword)
	})
	return slices.Compact(out)
}

// ValidateObject validates a parameter bag. A nil map is treated as empty.
func (s *Schema) ValidateObject(values map[string]any) []Violation {
	if values == nil {
		values = map[string]any{}
	}
	return s.Validate(values)
}

// compile hands the schema document to the validator library.
func (s *Schema) compile() (*jsonschema.Schema, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(resourceURL)
}

// prune drops explicit nulls for required properties so they report as missing.
func (s *Schema) prune(value any) any {
	if s == nil {
		return value
	}
	switch val := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if item == nil && s.IsRequired(k) {
				continue
			}
			if prop := s.Properties[k]; prop != nil {
				item = prop.prune(item)
			}
			out[k] = item
		}
		return out
	case []any:
		if s.Items == nil {
			return val
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.Items.prune(item)
		}
		return out
	}
	return value
}

// collect flattens the error tree into one violation per failed leaf constraint.
func collect(verr *jsonschema.ValidationError, instance any, out *[]Violation) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			collect(cause, instance, out)
		}
		return
	}

	path := instancePath(instance, verr.InstanceLocation)
	switch k := verr.ErrorKind.(type) {
	case *kind.Required:
		for _, name := range slices.Sorted(slices.Values(k.Missing)) {
			field := join(path, name)
			*out = append(*out, Violation{Field: field, Keyword: KeywordRequired, Message: field + " is required"})
		}
	case *kind.AdditionalProperties:
		for _, name := range slices.Sorted(slices.Values(k.Properties)) {
			field := join(path, name)
			*out = append(*out, Violation{Field: field, Keyword: KeywordAdditionalProperties, Message: field + " is not an allowed property"})
		}
	case *kind.Type:
		*out = append(*out, Violation{
			Field:   path,
			Keyword: KeywordType,
			Message: fmt.Sprintf("%s must be of type %s, got %s", label(path), describeTypes(k.Want), k.Got),
		})
	default:
		*out = append(*out, Violation{
			Field:   path,
			Keyword: keywordOf(verr.ErrorKind),
			Message: label(path) + " " + verr.ErrorKind.LocalizedString(printer),
		})
	}
}

func keywordOf(k jsonschema.ErrorKind) string {
	keywords := k.KeywordPath()
	if len(keywords) == 0 {
		return "false"
	}
	return keywords[len(keywords)-1]
}

// instancePath renders a location as "a.b[2].c", using the instance to tell
// array indexes from property names.
func instancePath(instance any, location []string) string {
	var b strings.Builder
	current := instance
	for _, segment := range location {
		switch val := current.(type) {
		case []any:
			b.WriteString("[" + segment + "]")
			if i, err := strconv.Atoi(segment); err == nil && i >= 0 && i < len(val) {
				current = val[i]
			} else {
				current = nil
			}
		case map[string]any:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(segment)
			current = val[segment]
		default:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(segment)
			current = nil
		}
	}
	return b.String()
}

func describeTypes(types []string) string {
	if len(types) == 1 {
		return types[0]
	}
	return fmt.Sprintf("%v", types)
}

func label(path string) string {
	if path == "" {
		return "value"
	}
	return path
}

// toFloat reports the numeric value of v. Strings never count as numbers.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// normalize maps every numeric kind to float64 so the validator sees JSON-shaped values.
func normalize(v any) any {
	if n, ok := toFloat(v); ok {
		return n
	}
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	}
	return v
}
