// Package render turns resolution results into JSON descriptors or hydrated HTML
// documents, one Renderer per UI framework.
package render

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"

	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/templates"
)

// Renderer produces server markup and client hydration for one framework.
type Renderer interface {
	Framework() catalog.Framework
	// RenderToString returns best-effort server markup. Frameworks without a
	// practical server renderer return "".
	RenderToString(ctx context.Context, comp *catalog.ComponentDefinition, props map[string]any) (string, error)
	// GenerateHydrationScript returns the module script that reads the data blob
	// with id dataID and mounts the bundle into the element with id mountID.
	GenerateHydrationScript(comp *catalog.ComponentDefinition, mountID, dataID string) string
	// GenerateTemplate returns a full HTML document.
	GenerateTemplate(content string, comp *catalog.ComponentDefinition, data map[string]any, intent *catalog.IntentDefinition, params map[string]any) (string, error)
}

// Hydration is the JSON blob embedded next to the mount element.
type Hydration struct {
	Intent     string            `json:"intent,omitempty"`
	Parameters map[string]any    `json:"parameters,omitempty"`
	Component  string            `json:"component"`
	Framework  catalog.Framework `json:"framework"`
	ModuleURL  string            `json:"moduleUrl"`
	ExportName string            `json:"exportName"`
	Tag        string            `json:"tag,omitempty"`
	Props      map[string]any    `json:"props"`
	MountID    string            `json:"mountId"`
	Sandboxed  bool              `json:"sandboxed,omitempty"`
}

// PageOptions are document-level settings shared by every renderer.
type PageOptions struct {
	Title string
	Lang  string
}

// Option configures a renderer.
type Option func(*base)

// WithSSR routes RenderToString through an SSR service. Only renderers that
// support server rendering use it.
func WithSSR(client SSRClient) Option {
	return func(b *base) { b.ssr = client }
}

// WithPage sets the document title and language.
func WithPage(p PageOptions) Option {
	return func(b *base) { b.page = p }
}

// WithIDGenerator replaces the uuid generator used for mount ids and nonces.
func WithIDGenerator(fn func() string) Option {
	return func(b *base) { b.newID = fn }
}

// base holds what every framework renderer shares: document generation and
// the common hydration prelude. Frameworks differ in the mount snippet.
type base struct {
	framework catalog.Framework
	page      PageOptions
	ssr       SSRClient
	newID     func() string

	// imports are static module imports placed at the top of the script.
	imports []string
	// runtime lists origins the imports load from, for script-src.
	runtime []string
	// needsExport makes the script fail when exportName is missing from the bundle.
	needsExport bool
	// mount is the framework snippet. It sees data, host, target, ssr and Component.
	mount string
	// serverRender is nil for frameworks that never render on the server.
	serverRender func(ctx context.Context, b *base, comp *catalog.ComponentDefinition, props map[string]any) (string, error)
}

func newBase(f catalog.Framework, opts []Option) *base {
	b := &base{
		framework:   f,
		needsExport: true,
		newID:       func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *base) Framework() catalog.Framework {
	return b.framework
}

func (b *base) RenderToString(ctx context.Context, comp *catalog.ComponentDefinition, props map[string]any) (string, error) {
	if b.serverRender == nil {
		return "", nil
	}
	return b.serverRender(ctx, b, comp, props)
}

func (b *base) GenerateHydrationScript(comp *catalog.ComponentDefinition, mountID, dataID string) string {
	var sb strings.Builder
	for _, imp := range b.imports {
		sb.WriteString(imp)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "const data = JSON.parse(document.getElementById(%q).textContent);\n", dataID)
	fmt.Fprintf(&sb, "const host = document.getElementById(%q);\n", mountID)
	sb.WriteString(`const ssr = host.dataset.ssr === "true";
try {
  if (!ssr) host.replaceChildren();
  let target = host;
  if (data.sandboxed) {
    target = host.attachShadow({ mode: "open" });
    if (ssr) target.append(...host.childNodes);
  }
  const mod = await import(data.moduleUrl);
  const Component = mod[data.exportName] ?? mod.default;
`)
	if b.needsExport {
		sb.WriteString(`  if (Component === undefined) throw new Error("export " + data.exportName + " not found in " + data.moduleUrl);
`)
	}
	for _, line := range strings.Split(strings.TrimSpace(b.mount), "\n") {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString(`  host.dataset.state = "mounted";
} catch (err) {
  host.dataset.state = "error";
  console.error("intentui: mounting " + data.component + " failed", err);
}
`)
	return sb.String()
}

func (b *base) GenerateTemplate(content string, comp *catalog.ComponentDefinition, data map[string]any, intent *catalog.IntentDefinition, params map[string]any) (string, error) {
	if comp == nil {
		return "", fmt.Errorf("generate template: component is nil")
	}
	id := b.newID()
	mountID := "intentui-" + id
	dataID := mountID + "-data"

	hydration := Hydration{
		Parameters: params,
		Component:  comp.Name,
		Framework:  comp.Framework,
		ModuleURL:  comp.RemoteURL,
		ExportName: comp.ExportName,
		Props:      data,
		MountID:    mountID,
		Sandboxed:  comp.Sandboxed(),
	}
	if hydration.Props == nil {
		hydration.Props = map[string]any{}
	}
	if b.framework == catalog.FrameworkWebComponent {
		hydration.Tag = TagName(comp.ExportName)
	}
	doc := templates.Document{
		Lang:      b.page.Lang,
		Title:     b.page.Title,
		CSP:       ContentSecurityPolicy(comp, id, b.runtime),
		Nonce:     id,
		Preload:   comp.Performance != nil && comp.Performance.Preload,
		ModuleURL: comp.RemoteURL,
		MountID:   mountID,
		DataID:    dataID,
		Component: comp.Name,
		Framework: string(comp.Framework),
		Content:   template.HTML(content), //nolint:gosec // markup comes from the renderer or the SSR service
		Hydration: hydration,
		Script:    template.JS(b.GenerateHydrationScript(comp, mountID, dataID)), //nolint:gosec // generated here, data is read from the JSON blob
	}
	if intent != nil {
		hydration.Intent = intent.Name
		doc.Hydration = hydration
		doc.Intent = intent.Name
		if doc.Title == "" {
			doc.Title = intent.Description
		}
	}
	return templates.RenderString(doc)
}
