package render

import (
	"context"

	"github.com/zjrosen/intentui/internal/domain/catalog"
)

const esmOrigin = "https://esm.sh"

func sidecarRender(ctx context.Context, b *base, comp *catalog.ComponentDefinition, props map[string]any) (string, error) {
	if b.ssr == nil {
		return "", nil
	}
	return b.ssr.Render(ctx, SSRRequest{
		Framework:  b.framework,
		Component:  comp.Name,
		ModuleURL:  comp.RemoteURL,
		ExportName: comp.ExportName,
		Props:      props,
	})
}

// NewReact renders through react-dom, hydrating server markup when present.
func NewReact(opts ...Option) Renderer {
	b := newBase(catalog.FrameworkReact, opts)
	b.imports = []string{
		`import { createElement } from "https://esm.sh/react@18";`,
		`import { createRoot, hydrateRoot } from "https://esm.sh/react-dom@18/client";`,
	}
	b.runtime = []string{esmOrigin}
	b.mount = `
const element = createElement(Component, data.props);
if (ssr) { hydrateRoot(target, element); } else { createRoot(target).render(element); }`
	b.serverRender = sidecarRender
	return b
}

// NewVue mounts with createApp, or createSSRApp over server markup.
func NewVue(opts ...Option) Renderer {
	b := newBase(catalog.FrameworkVue, opts)
	b.imports = []string{`import { createApp, createSSRApp } from "https://esm.sh/vue@3";`}
	b.runtime = []string{esmOrigin}
	b.mount = `(ssr ? createSSRApp : createApp)(Component, data.props).mount(target);`
	b.serverRender = sidecarRender
	return b
}

// NewSvelte instantiates the compiled component class.
func NewSvelte(opts ...Option) Renderer {
	b := newBase(catalog.FrameworkSvelte, opts)
	b.mount = `new Component({ target, props: data.props, hydrate: ssr });`
	b.serverRender = sidecarRender
	return b
}

// NewAngular expects the export to be a bootstrap function (target, props).
// Angular has no server rendering here.
func NewAngular(opts ...Option) Renderer {
	b := newBase(catalog.FrameworkAngular, opts)
	b.mount = `
if (typeof Component !== "function") throw new Error("angular export " + data.exportName + " must be a bootstrap function");
await Component(target, data.props);`
	return b
}

// NewVanilla calls Component.mount(target, props) or Component(target, props).
func NewVanilla(opts ...Option) Renderer {
	b := newBase(catalog.FrameworkVanilla, opts)
	b.mount = `if (typeof Component.mount === "function") { Component.mount(target, data.props); } else { Component(target, data.props); }`
	return b
}
