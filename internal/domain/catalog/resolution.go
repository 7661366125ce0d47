package catalog

import "time"

// ResolutionRecord is what a client needs to load and mount the bundle.
type ResolutionRecord struct {
	ModuleURL  string         `json:"moduleUrl"`
	ExportName string         `json:"exportName"`
	Props      map[string]any `json:"props"`
}

// ResolutionResult is the outcome of resolving one intent request.
// The JSON form is the wire contract: {record, component, ttl}.
type ResolutionResult struct {
	Record    ResolutionRecord     `json:"record"`
	Component *ComponentDefinition `json:"component"`
	TTL       int                  `json:"ttl"`

	// Intent and Parameters are kept for renderers and are not part of the wire form.
	Intent     *IntentDefinition `json:"-"`
	Parameters map[string]any    `json:"-"`
	// Data is what the data provider contributed before parameters were merged over it.
	Data       map[string]any `json:"-"`
	ResolvedAt time.Time      `json:"-"`
}

// Deprecated reports whether the intent or its component is deprecated.
func (r *ResolutionResult) Deprecated() bool {
	return (r.Intent != nil && r.Intent.Deprecated) || (r.Component != nil && r.Component.Deprecated)
}

// ChangeKind describes a registry mutation.
type ChangeKind string

const (
	ChangeReloaded ChangeKind = "reloaded"
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is published by a registry after its catalog was replaced.
type Change struct {
	Registry string     `json:"registry"` // "intents" or "components"
	Kind     ChangeKind `json:"kind"`
	Names    []string   `json:"names,omitempty"`
	Total    int        `json:"total"`
}
