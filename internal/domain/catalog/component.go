package catalog

import (
	"net/url"
	"slices"
	"strings"

	"github.com/zjrosen/intentui/internal/domain/schema"
)

// Framework selects the renderer used for a component.
type Framework string

const (
	FrameworkReact        Framework = "react"
	FrameworkVue          Framework = "vue"
	FrameworkSvelte       Framework = "svelte"
	FrameworkAngular      Framework = "angular"
	FrameworkVanilla      Framework = "vanilla"
	FrameworkWebComponent Framework = "webcomponent"
)

// Frameworks returns every supported framework.
func Frameworks() []Framework {
	return []Framework{
		FrameworkReact,
		FrameworkVue,
		FrameworkSvelte,
		FrameworkAngular,
		FrameworkVanilla,
		FrameworkWebComponent,
	}
}

// Valid reports whether f is a supported framework.
func (f Framework) Valid() bool {
	return slices.Contains(Frameworks(), f)
}

// AnyOrigin in AllowedOrigins admits every origin.
const AnyOrigin = "*"

// SecurityPolicy constrains how a bundle may be loaded.
type SecurityPolicy struct {
	AllowEval     bool  `json:"allowEval,omitempty"`
	MaxBundleSize int64 `json:"maxBundleSize,omitempty"`
	Sandboxed     bool  `json:"sandboxed,omitempty"`
	// CSP maps a directive (e.g. "img-src") to its sources.
	CSP map[string][]string `json:"csp,omitempty"`
}

// Performance is informational metadata about a bundle.
type Performance struct {
	// CacheTTL is the number of seconds a resolution may be cached. Zero means default.
	CacheTTL      int    `json:"cacheTtl,omitempty"`
	Preload       bool   `json:"preload,omitempty"`
	Priority      string `json:"priority,omitempty"`
	LoadTimeoutMs int    `json:"loadTimeoutMs,omitempty"`
}

// ComponentDefinition describes one remotely hosted UI bundle.
type ComponentDefinition struct {
	Name           string          `json:"name"`
	Framework      Framework       `json:"framework"`
	RemoteURL      string          `json:"remoteUrl"`
	ExportName     string          `json:"exportName"`
	PropsSchema    *schema.Schema  `json:"propsSchema,omitempty"`
	Version        string          `json:"version,omitempty"`
	Deprecated     bool            `json:"deprecated,omitempty"`
	AllowedOrigins []string        `json:"allowedOrigins,omitempty"`
	BundleSize     int64           `json:"bundleSize,omitempty"`
	Performance    *Performance    `json:"performance,omitempty"`
	SecurityPolicy *SecurityPolicy `json:"securityPolicy,omitempty"`
}

// Validate runs the schema and security checks applied at load time.
// Every problem is collected into the error details.
func (c *ComponentDefinition) Validate() error {
	if c == nil {
		return NewError(ErrComponentValidation, nil, "component definition is nil")
	}
	var problems []string
	if c.Name == "" {
		problems = append(problems, "name is required")
	}
	if !c.Framework.Valid() {
		problems = append(problems, "unsupported framework "+quote(string(c.Framework)))
	}
	if err := checkRemoteURL(c.RemoteURL); err != "" {
		problems = append(problems, err)
	}
	if c.ExportName == "" {
		problems = append(problems, "exportName is required")
	}
	if c.PropsSchema != nil {
		if err := c.PropsSchema.Check(); err != nil {
			problems = append(problems, "propsSchema: "+err.Error())
		}
	}
	for _, origin := range c.AllowedOrigins {
		if origin == AnyOrigin {
			continue
		}
		if !isOrigin(origin) {
			problems = append(problems, "allowedOrigins: invalid origin "+quote(origin))
		}
	}
	if c.BundleSize < 0 {
		problems = append(problems, "bundleSize must not be negative")
	}
	if p := c.SecurityPolicy; p != nil {
		if p.MaxBundleSize < 0 {
			problems = append(problems, "securityPolicy.maxBundleSize must not be negative")
		}
		if p.MaxBundleSize > 0 && c.BundleSize > p.MaxBundleSize {
			problems = append(problems, "bundleSize exceeds securityPolicy.maxBundleSize")
		}
	}
	if c.Performance != nil && c.Performance.CacheTTL < 0 {
		problems = append(problems, "performance.cacheTtl must not be negative")
	}

	if len(problems) > 0 {
		name := c.Name
		if name == "" {
			name = "<unnamed>"
		}
		return NewError(ErrComponentValidation, problems, "component %q: %s", name, strings.Join(problems, "; "))
	}
	return nil
}

// IsOriginAllowed reports whether origin may request this component: the allow-list
// contains "*" or an exact match.
func (c *ComponentDefinition) IsOriginAllowed(origin string) bool {
	if c == nil {
		return false
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == AnyOrigin || allowed == origin {
			return true
		}
	}
	return false
}

// Sandboxed reports whether the security policy asks for an isolated mount.
func (c *ComponentDefinition) Sandboxed() bool {
	return c != nil && c.SecurityPolicy != nil && c.SecurityPolicy.Sandboxed
}

// CacheTTL returns the declared cache lifetime in seconds, or zero when unset.
func (c *ComponentDefinition) CacheTTL() int {
	if c == nil || c.Performance == nil {
		return 0
	}
	return c.Performance.CacheTTL
}

// Clone returns a deep copy.
func (c *ComponentDefinition) Clone() *ComponentDefinition {
	if c == nil {
		return nil
	}
	out := *c
	out.PropsSchema = c.PropsSchema.Clone()
	out.AllowedOrigins = slices.Clone(c.AllowedOrigins)
	if c.Performance != nil {
		perf := *c.Performance
		out.Performance = &perf
	}
	if c.SecurityPolicy != nil {
		policy := *c.SecurityPolicy
		if c.SecurityPolicy.CSP != nil {
			policy.CSP = make(map[string][]string, len(c.SecurityPolicy.CSP))
			for k, v := range c.SecurityPolicy.CSP {
				policy.CSP[k] = slices.Clone(v)
			}
		}
		out.SecurityPolicy = &policy
	}
	return &out
}

// ComponentCriteria filters components. Nil fields match everything.
type ComponentCriteria struct {
	Framework  Framework
	Deprecated *bool
	Sandboxed  *bool
}

// Matches reports whether c satisfies every set criterion.
func (cr ComponentCriteria) Matches(c *ComponentDefinition) bool {
	if cr.Framework != "" && c.Framework != cr.Framework {
		return false
	}
	if cr.Deprecated != nil && c.Deprecated != *cr.Deprecated {
		return false
	}
	if cr.Sandboxed != nil && c.Sandboxed() != *cr.Sandboxed {
		return false
	}
	return true
}

// ComponentStats summarises the component catalog.
type ComponentStats struct {
	Total             int               `json:"total"`
	ByFramework       map[Framework]int `json:"byFramework"`
	Deprecated        int               `json:"deprecated"`
	Sandboxed         int               `json:"sandboxed"`
	AverageBundleSize float64           `json:"averageBundleSize"`
	Rejected          int               `json:"rejected"`
}

func checkRemoteURL(raw string) string {
	if raw == "" {
		return "remoteUrl is required"
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "remoteUrl must be an absolute http(s) URL or a root-relative path"
	}
	return ""
}

func isOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != "" && (u.Path == "" || u.Path == "/") && u.RawQuery == ""
}

func quote(s string) string {
	return `"` + s + `"`
}
