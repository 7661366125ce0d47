package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/intentui/internal/domain/catalog"
)

func component(f catalog.Framework) *catalog.ComponentDefinition {
	return &catalog.ComponentDefinition{
		Name:       "Widget",
		Framework:  f,
		RemoteURL:  "https://cdn.example.com/widget.js",
		ExportName: "Widget",
	}
}

func TestDefaultRegistry_AllFrameworks(t *testing.T) {
	r := DefaultRegistry(nil)

	require.ElementsMatch(t, catalog.Frameworks(), r.Frameworks())
	for _, f := range catalog.Frameworks() {
		rr, ok := r.Get(f)
		require.True(t, ok, f)
		require.Equal(t, f, rr.Framework())
	}
}

func TestRegistry_RegisterUnregister(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get(catalog.FrameworkVue)
	require.False(t, ok)

	r.Register(NewVue())
	_, ok = r.Get(catalog.FrameworkVue)
	require.True(t, ok)

	r.Unregister(catalog.FrameworkVue)
	require.Empty(t, r.Frameworks())
}

func TestHydrationScript_PerFramework(t *testing.T) {
	tests := []struct {
		renderer Renderer
		contains string
	}{
		{NewReact(), "createRoot(target).render(element)"},
		{NewVue(), "(ssr ? createSSRApp : createApp)(Component, data.props).mount(target);"},
		{NewSvelte(), "new Component({ target, props: data.props, hydrate: ssr });"},
		{NewAngular(), "await Component(target, data.props);"},
		{NewVanilla(), "Component.mount(target, data.props)"},
		{NewWebComponent(), "customElements.whenDefined(data.tag)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.renderer.Framework()), func(t *testing.T) {
			script := tt.renderer.GenerateHydrationScript(component(tt.renderer.Framework()), "m1", "d1")

			require.Contains(t, script, tt.contains)
			require.Contains(t, script, `document.getElementById("d1")`)
			require.Contains(t, script, `document.getElementById("m1")`)
			require.Contains(t, script, "await import(data.moduleUrl)")
		})
	}
}

func TestHydrationScript_WebComponentSkipsExportCheck(t *testing.T) {
	script := NewWebComponent().GenerateHydrationScript(component(catalog.FrameworkWebComponent), "m", "d")
	require.NotContains(t, script, "not found in")

	script = NewReact().GenerateHydrationScript(component(catalog.FrameworkReact), "m", "d")
	require.Contains(t, script, "not found in")
}

func TestRenderToString_ClientOnlyFrameworks(t *testing.T) {
	for _, r := range []Renderer{NewAngular(), NewVanilla(), NewReact(), NewVue(), NewSvelte()} {
		out, err := r.RenderToString(context.Background(), component(r.Framework()), map[string]any{"a": 1})
		require.NoError(t, err)
		require.Empty(t, out, r.Framework())
	}
}

func TestRenderToString_WebComponentAttributes(t *testing.T) {
	comp := component(catalog.FrameworkWebComponent)
	comp.ExportName = "ProfileCard"

	out, err := NewWebComponent().RenderToString(context.Background(), comp, map[string]any{
		"userId":  "u<1>",
		"compact": true,
		"size":    3.5,
		"tags":    []any{"a"},
	})

	require.NoError(t, err)
	require.Equal(t, `<profile-card compact="true" size="3.5" user-id="u&lt;1&gt;"></profile-card>`, out)
}

func TestTagName(t *testing.T) {
	require.Equal(t, "profile-card", TagName("ProfileCard"))
	require.Equal(t, "intentui-widget", TagName("Widget"))
	require.Equal(t, "my-element", TagName("my_element"))
}

func TestContentSecurityPolicy(t *testing.T) {
	comp := component(catalog.FrameworkReact)
	comp.SecurityPolicy = &catalog.SecurityPolicy{
		AllowEval: true,
		CSP: map[string][]string{
			"img-src":    {"'self'", "https://img.example.com"},
			"script-src": {"'self'"},
		},
	}

	csp := ContentSecurityPolicy(comp, "n1", []string{esmOrigin})

	require.Equal(t,
		"img-src 'self' https://img.example.com; script-src 'self' 'nonce-n1' https://cdn.example.com https://esm.sh 'unsafe-eval'",
		csp)
	require.Equal(t, []string{"'self'"}, comp.SecurityPolicy.CSP["script-src"], "policy must not be modified")
}

func TestContentSecurityPolicy_RootRelativeBundle(t *testing.T) {
	comp := component(catalog.FrameworkVanilla)
	comp.RemoteURL = "/static/widget.js"

	require.Equal(t, "script-src 'self' 'nonce-n'", ContentSecurityPolicy(comp, "n", nil))
}

func TestGenerateTemplate_DirectRender(t *testing.T) {
	r := NewVanilla(fixedIDs(), WithPage(PageOptions{Title: "Widgets", Lang: "de"}))

	doc, err := r.GenerateTemplate("", component(catalog.FrameworkVanilla), map[string]any{"x": 1.0}, nil, nil)

	require.NoError(t, err)
	require.Contains(t, doc, `<html lang="de">`)
	require.Contains(t, doc, "<title>Widgets</title>")
	require.Contains(t, doc, `data-intent=""`)
	require.Equal(t, 1.0, hydrationProps(t, doc)["x"])

	_, err = r.GenerateTemplate("", nil, nil, nil, nil)
	require.Error(t, err)
}

func TestHTTPSSR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SSRRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Component == "Broken" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"html": "<p>" + req.Props["title"].(string) + "</p>"})
	}))
	defer srv.Close()
	client := NewHTTPSSR(srv.URL, time.Second)

	out, err := client.Render(context.Background(), SSRRequest{Component: "Card", Props: map[string]any{"title": "hi"}})
	require.NoError(t, err)
	require.Equal(t, "<p>hi</p>", out)

	_, err = client.Render(context.Background(), SSRRequest{Component: "Broken"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "status 500"))
}

func TestWithSSR_UsedByReact(t *testing.T) {
	r := NewReact(WithSSR(SSRFunc(func(_ context.Context, req SSRRequest) (string, error) {
		return "<div>" + req.ExportName + "</div>", nil
	})))

	out, err := r.RenderToString(context.Background(), component(catalog.FrameworkReact), nil)

	require.NoError(t, err)
	require.Equal(t, "<div>Widget</div>", out)
}
