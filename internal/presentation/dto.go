package presentation

import (
	"slices"

	"github.com/zjrosen/intentui/internal/domain/catalog"
)

// IntentDTO is one row of intents:list.
type IntentDTO struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Component   string   `json:"component"`
	Version     string   `json:"version,omitempty"`
	Parameters  []string `json:"parameters"`
	Required    []string `json:"required"`
	Crawlable   bool     `json:"crawlable"`
	Deprecated  bool     `json:"deprecated"`
	// Resolvable is false when the target component is not registered.
	Resolvable bool `json:"resolvable"`
}

// ComponentDTO is one row of components:list.
type ComponentDTO struct {
	Name           string            `json:"name"`
	Framework      catalog.Framework `json:"framework"`
	RemoteURL      string            `json:"remoteUrl"`
	ExportName     string            `json:"exportName"`
	Version        string            `json:"version,omitempty"`
	AllowedOrigins []string          `json:"allowedOrigins"`
	BundleSize     int64             `json:"bundleSize,omitempty"`
	CacheTTL       int               `json:"cacheTtl,omitempty"`
	Sandboxed      bool              `json:"sandboxed"`
	Deprecated     bool              `json:"deprecated"`
}

// FromIntent converts an intent definition. hasComponent reports whether the
// target component is registered.
func FromIntent(def *catalog.IntentDefinition, hasComponent func(string) bool) IntentDTO {
	dto := IntentDTO{
		Name:        def.Name,
		Description: def.Description,
		Component:   def.Component,
		Version:     def.Version,
		Parameters:  make([]string, 0),
		Required:    make([]string, 0),
		Crawlable:   def.Crawlable,
		Deprecated:  def.Deprecated,
	}
	if p := def.Parameters; p != nil {
		for name := range p.Properties {
			dto.Parameters = append(dto.Parameters, name)
		}
		dto.Required = append(dto.Required, p.Required...)
	}
	slices.Sort(dto.Parameters)
	if hasComponent != nil {
		dto.Resolvable = hasComponent(def.Component)
	}
	return dto
}

// FromIntents converts a slice of intent definitions.
func FromIntents(defs []*catalog.IntentDefinition, hasComponent func(string) bool) []IntentDTO {
	dtos := make([]IntentDTO, len(defs))
	for i, def := range defs {
		dtos[i] = FromIntent(def, hasComponent)
	}
	return dtos
}

// FromComponent converts a component definition.
func FromComponent(def *catalog.ComponentDefinition) ComponentDTO {
	origins := make([]string, 0, len(def.AllowedOrigins))
	origins = append(origins, def.AllowedOrigins...)
	return ComponentDTO{
		Name:           def.Name,
		Framework:      def.Framework,
		RemoteURL:      def.RemoteURL,
		ExportName:     def.ExportName,
		Version:        def.Version,
		AllowedOrigins: origins,
		BundleSize:     def.BundleSize,
		CacheTTL:       def.CacheTTL(),
		Sandboxed:      def.Sandboxed(),
		Deprecated:     def.Deprecated,
	}
}

// FromComponents converts a slice of component definitions.
func FromComponents(defs []*catalog.ComponentDefinition) []ComponentDTO {
	dtos := make([]ComponentDTO, len(defs))
	for i, def := range defs {
		dtos[i] = FromComponent(def)
	}
	return dtos
}
