package render

import (
	"context"
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/zjrosen/intentui/internal/domain/catalog"
)

// NewWebComponent renders the custom element tag on the server. The bundle is
// expected to define the element when imported.
func NewWebComponent(opts ...Option) Renderer {
	b := newBase(catalog.FrameworkWebComponent, opts)
	b.needsExport = false
	b.mount = `
await customElements.whenDefined(data.tag);
let el = target.querySelector(data.tag);
if (!el) { el = document.createElement(data.tag); target.appendChild(el); }
Object.assign(el, data.props);`
	b.serverRender = func(_ context.Context, _ *base, comp *catalog.ComponentDefinition, props map[string]any) (string, error) {
		return customElementMarkup(comp, props), nil
	}
	return b
}

// TagName derives a custom element name from an export name:
// "ProfileCard" becomes "profile-card". Names without a hyphen get an
// "intentui-" prefix since custom elements require one.
func TagName(exportName string) string {
	tag := kebab(exportName)
	if !strings.Contains(tag, "-") {
		tag = "intentui-" + tag
	}
	return tag
}

func kebab(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
		case r == '_' || r == ' ':
			sb.WriteByte('-')
		default:
			sb.WriteRune(r)
		}
	}
	return strings.Trim(sb.String(), "-")
}

// customElementMarkup writes scalar props as attributes. Objects and arrays are
// left to hydration.
func customElementMarkup(comp *catalog.ComponentDefinition, props map[string]any) string {
	tag := TagName(comp.ExportName)
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	sb.WriteString("<" + tag)
	for _, k := range keys {
		value, ok := attributeValue(props[k])
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, ` %s="%s"`, html.EscapeString(kebab(k)), html.EscapeString(value))
	}
	sb.WriteString("></" + tag + ">")
	return sb.String()
}

func attributeValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return "", false
	}
}
