// Package templates holds the embedded HTML document served for rendered intents.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
)

//go:embed html
var documents embed.FS

var document = template.Must(template.ParseFS(documents, "html/document.html.tmpl"))

// Document is the data for one rendered page.
type Document struct {
	Lang      string
	Title     string
	CSP       string
	Nonce     string
	Preload   bool
	ModuleURL string

	MountID   string
	DataID    string
	Intent    string
	Component string
	Framework string

	// Content is server rendered markup placed inside the mount element. When
	// empty a loading placeholder is emitted instead.
	Content template.HTML
	// Hydration is JSON encoded into the data script.
	Hydration any
	// Script is the module script that loads and mounts the bundle.
	Script template.JS
}

// ServerRendered reports whether the document carries server markup.
func (d Document) ServerRendered() bool {
	return strings.TrimSpace(string(d.Content)) != ""
}

// FS returns the embedded template files.
func FS() fs.FS {
	return documents
}

// Render writes the full HTML document.
func Render(w io.Writer, d Document) error {
	if d.Lang == "" {
		d.Lang = "en"
	}
	if d.Title == "" {
		d.Title = d.Component
	}
	if err := document.ExecuteTemplate(w, "document.html.tmpl", d); err != nil {
		return fmt.Errorf("execute document template: %w", err)
	}
	return nil
}

// RenderString is Render into a string.
func RenderString(d Document) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, d); err != nil {
		return "", err
	}
	return sb.String(), nil
}
