package render

import (
	"net/url"
	"slices"
	"strings"

	"github.com/zjrosen/intentui/internal/domain/catalog"
)

// ContentSecurityPolicy builds the document policy: the component's declared
// directives, with script-src extended by 'self', the script nonce, the bundle
// origin and the runtime origins. allowEval adds 'unsafe-eval'.
func ContentSecurityPolicy(comp *catalog.ComponentDefinition, nonce string, runtime []string) string {
	directives := map[string][]string{}
	allowEval := false
	if p := comp.SecurityPolicy; p != nil {
		for name, sources := range p.CSP {
			directives[strings.ToLower(strings.TrimSpace(name))] = slices.Clone(sources)
		}
		allowEval = p.AllowEval
	}

	script := append(directives["script-src"], "'self'")
	if nonce != "" {
		script = append(script, "'nonce-"+nonce+"'")
	}
	if origin := bundleOrigin(comp.RemoteURL); origin != "" {
		script = append(script, origin)
	}
	script = append(script, runtime...)
	if allowEval {
		script = append(script, "'unsafe-eval'")
	}
	directives["script-src"] = dedupe(script)

	names := make([]string, 0, len(directives))
	for name := range directives {
		if name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if len(directives[name]) == 0 {
			parts = append(parts, name)
			continue
		}
		parts = append(parts, name+" "+strings.Join(directives[name], " "))
	}
	return strings.Join(parts, "; ")
}

func bundleOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
