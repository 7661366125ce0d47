// Package catalog defines the intent and component definitions served by the
// registries, the resolution result handed to renderers, and the error taxonomy
// shared by every layer.
package catalog

import (
	"fmt"

	"github.com/zjrosen/intentui/internal/domain/schema"
)

// IntentDefinition is a named, schema-validated user goal mapped to one component.
type IntentDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  *schema.Schema `json:"parameters,omitempty"`
	Component   string         `json:"component"`
	Version     string         `json:"version,omitempty"`
	Deprecated  bool           `json:"deprecated,omitempty"`
	Crawlable   bool           `json:"crawlable,omitempty"`
}

// Validate checks the definition in isolation. The target component is not looked
// up here; components may be loaded after intents.
func (d *IntentDefinition) Validate() error {
	if d == nil {
		return NewError(ErrIntentValidation, nil, "intent definition is nil")
	}
	if d.Name == "" {
		return NewError(ErrIntentValidation, nil, "intent name is required")
	}
	if d.Component == "" {
		return NewError(ErrIntentValidation, nil, "intent %q: component is required", d.Name)
	}
	if d.Parameters != nil {
		if len(d.Parameters.Type) > 0 && !d.Parameters.Type.Has(schema.TypeObject) {
			return NewError(ErrIntentValidation, nil, "intent %q: parameters schema must be an object", d.Name)
		}
		if err := d.Parameters.Check(); err != nil {
			return WrapError(ErrIntentValidation, err, "intent %q: parameters", d.Name)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (d *IntentDefinition) Clone() *IntentDefinition {
	if d == nil {
		return nil
	}
	out := *d
	out.Parameters = d.Parameters.Clone()
	return &out
}

func (d *IntentDefinition) String() string {
	return fmt.Sprintf("intent(%s -> %s)", d.Name, d.Component)
}

// IntentCriteria filters intents. Nil fields match everything.
type IntentCriteria struct {
	Crawlable  *bool
	Deprecated *bool
	Component  string
}

// Matches reports whether d satisfies every set criterion.
func (c IntentCriteria) Matches(d *IntentDefinition) bool {
	if c.Crawlable != nil && d.Crawlable != *c.Crawlable {
		return false
	}
	if c.Deprecated != nil && d.Deprecated != *c.Deprecated {
		return false
	}
	if c.Component != "" && d.Component != c.Component {
		return false
	}
	return true
}

// IntentStats summarises the intent catalog.
type IntentStats struct {
	Total       int            `json:"total"`
	Crawlable   int            `json:"crawlable"`
	Deprecated  int            `json:"deprecated"`
	ByComponent map[string]int `json:"byComponent"`
}

// IntentRequest names an intent and carries the caller's raw parameters.
type IntentRequest struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
}
