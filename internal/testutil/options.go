package testutil

import (
	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/domain/schema"
)

// IntentOption configures an intent fixture.
type IntentOption func(*catalog.IntentDefinition)

// ComponentOption configures a component fixture.
type ComponentOption func(*catalog.ComponentDefinition)

// defaultIntent returns an intent with no parameters targeting component.
func defaultIntent(name, component string) *catalog.IntentDefinition {
	return &catalog.IntentDefinition{
		Name:        name,
		Description: "Fixture intent " + name,
		Component:   component,
		Version:     "1.0.0",
		Parameters:  &schema.Schema{Type: schema.TypeSet{schema.TypeObject}, Properties: map[string]*schema.Schema{}},
	}
}

// defaultComponent returns a valid react component open to every origin.
func defaultComponent(name string) *catalog.ComponentDefinition {
	return &catalog.ComponentDefinition{
		Name:           name,
		Framework:      catalog.FrameworkReact,
		RemoteURL:      "https://cdn.example.com/" + name + ".js",
		ExportName:     name,
		Version:        "1.0.0",
		AllowedOrigins: []string{catalog.AnyOrigin},
		BundleSize:     1024,
	}
}

// StringParam declares an optional string parameter.
func StringParam(name string) IntentOption {
	return Param(name, &schema.Schema{Type: schema.TypeSet{schema.TypeString}})
}

// IntegerParam declares an optional integer parameter with a default.
func IntegerParam(name string, def int) IntentOption {
	return Param(name, &schema.Schema{Type: schema.TypeSet{schema.TypeInteger}, Default: float64(def)})
}

// Param declares a parameter with an explicit schema.
func Param(name string, s *schema.Schema) IntentOption {
	return func(d *catalog.IntentDefinition) {
		d.Parameters.Properties[name] = s
	}
}

// Required marks parameters as required.
func Required(names ...string) IntentOption {
	return func(d *catalog.IntentDefinition) {
		d.Parameters.Required = append(d.Parameters.Required, names...)
	}
}

// Crawlable marks the intent crawlable.
func Crawlable() IntentOption {
	return func(d *catalog.IntentDefinition) { d.Crawlable = true }
}

// DeprecatedIntent marks the intent deprecated.
func DeprecatedIntent() IntentOption {
	return func(d *catalog.IntentDefinition) { d.Deprecated = true }
}

// Framework sets the component framework.
func Framework(f catalog.Framework) ComponentOption {
	return func(c *catalog.ComponentDefinition) { c.Framework = f }
}

// RemoteURL sets the bundle location.
func RemoteURL(u string) ComponentOption {
	return func(c *catalog.ComponentDefinition) { c.RemoteURL = u }
}

// Origins replaces the allow-list.
func Origins(origins ...string) ComponentOption {
	return func(c *catalog.ComponentDefinition) { c.AllowedOrigins = origins }
}

// CacheTTL sets performance.cacheTtl.
func CacheTTL(seconds int) ComponentOption {
	return func(c *catalog.ComponentDefinition) {
		if c.Performance == nil {
			c.Performance = &catalog.Performance{}
		}
		c.Performance.CacheTTL = seconds
	}
}

// Sandboxed sets securityPolicy.sandboxed.
func Sandboxed() ComponentOption {
	return func(c *catalog.ComponentDefinition) {
		if c.SecurityPolicy == nil {
			c.SecurityPolicy = &catalog.SecurityPolicy{}
		}
		c.SecurityPolicy.Sandboxed = true
	}
}

// CSP adds a content security policy directive.
func CSP(directive string, sources ...string) ComponentOption {
	return func(c *catalog.ComponentDefinition) {
		if c.SecurityPolicy == nil {
			c.SecurityPolicy = &catalog.SecurityPolicy{}
		}
		if c.SecurityPolicy.CSP == nil {
			c.SecurityPolicy.CSP = map[string][]string{}
		}
		c.SecurityPolicy.CSP[directive] = sources
	}
}

// PropsSchema sets the props schema.
func PropsSchema(s *schema.Schema) ComponentOption {
	return func(c *catalog.ComponentDefinition) { c.PropsSchema = s }
}

// BundleSize sets the declared bundle size.
func BundleSize(n int64) ComponentOption {
	return func(c *catalog.ComponentDefinition) { c.BundleSize = n }
}

// DeprecatedComponent marks the component deprecated.
func DeprecatedComponent() ComponentOption {
	return func(c *catalog.ComponentDefinition) { c.Deprecated = true }
}
