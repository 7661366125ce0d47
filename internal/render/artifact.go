package render

import (
	"fmt"
	"time"

	"github.com/zjrosen/intentui/internal/domain/catalog"
)

// Mode selects the artifact a render produces.
type Mode string

const (
	ModeJSON Mode = "json"
	ModeHTML Mode = "html"
)

// ParseMode maps "json" and "html" to a Mode. An empty string yields fallback.
func ParseMode(s string, fallback Mode) (Mode, error) {
	switch Mode(s) {
	case "":
		return fallback, nil
	case ModeJSON, ModeHTML:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown render mode %q", s)
	}
}

// State is a step in the life of one render request.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateResolved     State = "RESOLVED"
	StateSSRAttempted State = "SSR_ATTEMPTED"
	StateSSRSkipped   State = "SSR_SKIPPED"
	StateTemplated    State = "TEMPLATED"
	StateSent         State = "SENT"
	StateFailed       State = "FAILED"
)

// Artifact is the output of one render.
type Artifact struct {
	Mode Mode
	// JSON is set in JSON mode.
	JSON *JSONArtifact
	// HTML is set in HTML mode.
	HTML   string
	Result *catalog.ResolutionResult
	// States records every transition, in order.
	States []State
	// SSRFallback is true when server rendering failed and the document
	// relies on client rendering only.
	SSRFallback bool
}

// State returns the last state reached.
func (a *Artifact) State() State {
	if a == nil || len(a.States) == 0 {
		return ""
	}
	return a.States[len(a.States)-1]
}

// JSONArtifact is the API form of a render.
type JSONArtifact struct {
	Intent      string                       `json:"intent,omitempty"`
	Parameters  map[string]any               `json:"parameters"`
	Component   *catalog.ComponentDefinition `json:"component"`
	Data        map[string]any               `json:"data"`
	Meta        Meta                         `json:"meta"`
	Performance PerformanceInfo              `json:"performance"`
}

// Meta describes where the props came from and how long they stay valid.
type Meta struct {
	TTL        int               `json:"ttl"`
	ResolvedAt time.Time         `json:"resolvedAt"`
	Deprecated bool              `json:"deprecated"`
	Framework  catalog.Framework `json:"framework"`
	ModuleURL  string            `json:"moduleUrl"`
	ExportName string            `json:"exportName"`
}

// PerformanceInfo carries timing and bundle hints for the client.
type PerformanceInfo struct {
	ResolutionTimeMs float64 `json:"resolutionTimeMs"`
	BundleSize       int64   `json:"bundleSize,omitempty"`
	CacheTTL         int     `json:"cacheTtl"`
	Preload          bool    `json:"preload"`
}

func newJSONArtifact(res *catalog.ResolutionResult, elapsed time.Duration) *JSONArtifact {
	out := &JSONArtifact{
		Parameters: res.Parameters,
		Component:  res.Component,
		Data:       res.Record.Props,
		Meta: Meta{
			TTL:        res.TTL,
			ResolvedAt: res.ResolvedAt,
			Deprecated: res.Deprecated(),
			Framework:  res.Component.Framework,
			ModuleURL:  res.Record.ModuleURL,
			ExportName: res.Record.ExportName,
		},
		Performance: PerformanceInfo{
			ResolutionTimeMs: float64(elapsed.Microseconds()) / 1000,
			BundleSize:       res.Component.BundleSize,
			CacheTTL:         res.TTL,
			Preload:          res.Component.Performance != nil && res.Component.Performance.Preload,
		},
	}
	if res.Intent != nil {
		out.Intent = res.Intent.Name
	}
	if out.Parameters == nil {
		out.Parameters = map[string]any{}
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	return out
}
