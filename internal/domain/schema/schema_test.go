package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustParse(t *testing.T, doc string) *Schema {
	t.Helper()
	var s Schema
	require.NoError(t, json.Unmarshal([]byte(doc), &s))
	require.NoError(t, s.Check())
	return &s
}

const productsSchema = `{
  "type": "object",
  "required": ["category"],
  "properties": {
    "category": {"type": "string", "minLength": 2},
    "limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 20},
    "sort": {"type": "string", "enum": ["price", "rating"]},
    "tags": {"type": "array", "items": {"type": "string"}, "maxItems": 3}
  }
}`

func TestTypeSet_UnmarshalStringAndArray(t *testing.T) {
	var single Schema
	require.NoError(t, json.Unmarshal([]byte(`{"type":"string"}`), &single))
	require.Equal(t, TypeSet{"string"}, single.Type)

	var many Schema
	require.NoError(t, json.Unmarshal([]byte(`{"type":["string","null"]}`), &many))
	require.Equal(t, TypeSet{"string", "null"}, many.Type)

	out, err := json.Marshal(single.Type)
	require.NoError(t, err)
	require.JSONEq(t, `"string"`, string(out))
}

func TestTypeSet_UnmarshalRejectsNumbers(t *testing.T) {
	var s Schema
	require.Error(t, json.Unmarshal([]byte(`{"type":5}`), &s))
}

func TestValidate_ValidParameters(t *testing.T) {
	s := mustParse(t, productsSchema)

	violations := s.ValidateObject(map[string]any{
		"category": "electronics",
		"limit":    float64(10),
		"sort":     "price",
		"tags":     []any{"a", "b"},
	})

	require.Empty(t, violations)
}

func TestValidate_MissingRequired(t *testing.T) {
	s := mustParse(t, productsSchema)

	violations := s.ValidateObject(map[string]any{})

	require.Len(t, violations, 1)
	require.Equal(t, "category", violations[0].Field)
	require.Equal(t, KeywordRequired, violations[0].Keyword)
	require.Equal(t, "category is required", violations[0].Message)
}

func TestValidate_NilValueCountsAsMissing(t *testing.T) {
	s := mustParse(t, productsSchema)

	violations := s.ValidateObject(map[string]any{"category": nil})

	require.Len(t, violations, 1)
	require.Equal(t, KeywordRequired, violations[0].Keyword)
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	s := mustParse(t, productsSchema)

	violations := s.ValidateObject(map[string]any{
		"limit": float64(500),
		"sort":  "name",
		"tags":  []any{"a", 2, "c", "d"},
	})

	keywords := make(map[string]string)
	for _, v := range violations {
		keywords[v.Field] = v.Keyword
	}
	require.Equal(t, map[string]string{
		"category": KeywordRequired,
		"limit":    KeywordMaximum,
		"sort":     KeywordEnum,
		"tags":     KeywordMaxItems,
		"tags[1]":  KeywordType,
	}, keywords)
}

func TestValidate_NumericStringIsNotCoerced(t *testing.T) {
	s := mustParse(t, productsSchema)

	violations := s.ValidateObject(map[string]any{"category": "books", "limit": "10"})

	require.Len(t, violations, 1)
	require.Equal(t, "limit", violations[0].Field)
	require.Equal(t, KeywordType, violations[0].Keyword)
	require.Contains(t, violations[0].Message, "got string")
}

func TestValidate_IntegerRejectsFraction(t *testing.T) {
	s := mustParse(t, productsSchema)

	violations := s.ValidateObject(map[string]any{"category": "books", "limit": 2.5})

	require.Len(t, violations, 1)
	require.Equal(t, KeywordType, violations[0].Keyword)
}

func TestValidate_IntegerBeyondInt64(t *testing.T) {
	s := mustParse(t, `{"type":"integer"}`)

	require.Empty(t, s.Validate(1e19))
	require.Empty(t, s.Validate(-1e19))
	require.Len(t, s.Validate(0.5), 1)
}

func TestValidate_ReportsBoundWithFieldPath(t *testing.T) {
	s := mustParse(t, productsSchema)

	violations := s.ValidateObject(map[string]any{"category": "books", "limit": float64(0)})

	require.Len(t, violations, 1)
	require.Equal(t, "limit", violations[0].Field)
	require.Equal(t, KeywordMinimum, violations[0].Keyword)
	require.True(t, strings.HasPrefix(violations[0].Message, "limit "))
}

func TestValidate_UncheckedSchemaCompilesOnDemand(t *testing.T) {
	s := &Schema{Type: TypeSet{TypeObject}, Required: []string{"q"}}

	violations := s.ValidateObject(nil)

	require.Equal(t, []Violation{{Field: "q", Keyword: KeywordRequired, Message: "q is required"}}, violations)
}

func TestClone_DropsCompiledValidator(t *testing.T) {
	s := mustParse(t, productsSchema)

	c := s.Clone()
	c.Required = nil

	require.Empty(t, c.ValidateObject(nil))
	require.Len(t, s.ValidateObject(nil), 1)
}

func TestValidate_AcceptsGoIntegers(t *testing.T) {
	s := mustParse(t, productsSchema)

	require.Empty(t, s.ValidateObject(map[string]any{"category": "books", "limit": 7}))
}

func TestValidate_EnumComparesNumbersByValue(t *testing.T) {
	s := mustParse(t, `{"type":"number","enum":[1,2,3]}`)

	require.Empty(t, s.Validate(2))
	require.Empty(t, s.Validate(float64(3)))
	require.Len(t, s.Validate(4), 1)
}

func TestValidate_PatternAndLength(t *testing.T) {
	s := mustParse(t, `{"type":"string","pattern":"^[a-z]+$","maxLength":4}`)

	violations := s.Validate("ABCDEF")

	require.Len(t, violations, 2)
	require.Equal(t, KeywordMaxLength, violations[0].Keyword)
	require.Equal(t, KeywordPattern, violations[1].Keyword)
}

func TestValidate_AdditionalPropertiesFalse(t *testing.T) {
	s := mustParse(t, `{"type":"object","properties":{"a":{"type":"string"}},"additionalProperties":false}`)

	violations := s.ValidateObject(map[string]any{"a": "x", "b": 1, "c": 2})

	require.Len(t, violations, 2)
	require.Equal(t, "b", violations[0].Field)
	require.Equal(t, "c", violations[1].Field)
}

func TestValidate_NestedObjectPaths(t *testing.T) {
	s := mustParse(t, `{
	  "type":"object",
	  "properties":{"filter":{"type":"object","required":["min"],"properties":{"min":{"type":"number"}}}}
	}`)

	violations := s.ValidateObject(map[string]any{"filter": map[string]any{}})

	require.Len(t, violations, 1)
	require.Equal(t, "filter.min", violations[0].Field)
}

func TestValidate_NilSchemaAcceptsAnything(t *testing.T) {
	var s *Schema
	require.Empty(t, s.Validate(map[string]any{"x": 1}))
}

func TestCheck_RejectsMalformedShapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown type", `{"type":"str"}`, `unknown type "str"`},
		{"min above max", `{"type":"number","minimum":5,"maximum":1}`, "minimum 5 exceeds maximum 1"},
		{"bad pattern", `{"type":"string","pattern":"("}`, "invalid pattern"},
		{"empty enum", `{"type":"string","enum":[]}`, "enum must not be empty"},
		{"duplicate required", `{"type":"object","required":["a","a"]}`, `required entry "a" listed twice`},
		{"required on string", `{"type":"string","required":["a"]}`, "non-object type"},
		{"nested problem", `{"type":"object","properties":{"n":{"type":"integer","minLength":-1}}}`, "n: minLength must not be negative"},
		{"bad default", `{"type":"object","properties":{"n":{"type":"integer","default":"x"}}}`, "default does not satisfy schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Schema
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &s))

			err := s.Check()

			var shapeErr *ShapeError
			require.ErrorAs(t, err, &shapeErr)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	s := mustParse(t, productsSchema)
	input := map[string]any{"category": "books"}

	out := s.ApplyDefaults(input)

	require.Equal(t, float64(20), out["limit"])
	require.NotContains(t, input, "limit", "input must not be mutated")
}

func TestApplyDefaults_SuppliedValueWins(t *testing.T) {
	s := mustParse(t, productsSchema)

	out := s.ApplyDefaults(map[string]any{"category": "books", "limit": float64(5)})

	require.Equal(t, float64(5), out["limit"])
}

func TestApplyDefaults_CopiesCompositeDefaults(t *testing.T) {
	s := mustParse(t, `{"type":"object","properties":{"tags":{"type":"array","default":["a"]}}}`)

	first := s.ApplyDefaults(nil)
	first["tags"].([]any)[0] = "mutated"
	second := s.ApplyDefaults(nil)

	require.Equal(t, []any{"a"}, second["tags"])
}

func TestClone_IsIndependent(t *testing.T) {
	s := mustParse(t, productsSchema)

	c := s.Clone()
	c.Required[0] = "other"
	c.Properties["limit"].Default = float64(1)

	require.Equal(t, "category", s.Required[0])
	require.Equal(t, float64(20), s.Properties["limit"].Default)
}

// TestProperty_MissingRequiredAlwaysReported checks that every omitted required field is listed.
func TestProperty_MissingRequiredAlwaysReported(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,8}`), 1, 6, rapid.ID[string]).Draw(rt, "required")
		s := &Schema{Type: TypeSet{TypeObject}, Required: names, Properties: map[string]*Schema{}}
		for _, n := range names {
			s.Properties[n] = &Schema{Type: TypeSet{TypeString}}
		}

		supplied := map[string]any{}
		var omitted []string
		for _, n := range names {
			if rapid.Bool().Draw(rt, "supply-"+n) {
				supplied[n] = "v"
			} else {
				omitted = append(omitted, n)
			}
		}

		violations := s.ValidateObject(supplied)

		var missing []string
		for _, v := range violations {
			require.Equal(rt, KeywordRequired, v.Keyword)
			missing = append(missing, v.Field)
		}
		require.ElementsMatch(rt, omitted, missing)
	})
}
