package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/log"
)

// Files loads catalogs from a file path or a doublestar glob pattern.
type Files struct {
	pattern string
}

// NewFiles creates a file-backed source.
func NewFiles(pattern string) *Files {
	return &Files{pattern: pattern}
}

// WatchPatterns implements Watchable.
func (f *Files) WatchPatterns() []string {
	return []string{f.pattern}
}

// Pattern returns the configured path or glob.
func (f *Files) Pattern() string {
	return f.pattern
}

// LoadIntents reads every matching file as an array of intent definitions.
// Duplicate detection and schema checks are left to the registry.
func (f *Files) LoadIntents(ctx context.Context) ([]*catalog.IntentDefinition, error) {
	paths, err := f.paths()
	if err != nil {
		return nil, err
	}
	var out []*catalog.IntentDefinition
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var defs []*catalog.IntentDefinition
		if err := decodeFile(path, &defs); err != nil {
			return nil, err
		}
		out = append(out, defs...)
	}
	return out, nil
}

// LoadComponents reads every matching file as a map of name to component definition.
// A name defined in more than one file is a configuration error. An entry without a
// name takes its key.
func (f *Files) LoadComponents(ctx context.Context) (map[string]*catalog.ComponentDefinition, error) {
	paths, err := f.paths()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*catalog.ComponentDefinition)
	origin := make(map[string]string)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var defs map[string]*catalog.ComponentDefinition
		if err := decodeFile(path, &defs); err != nil {
			return nil, err
		}
		for name, def := range defs {
			if prev, dup := origin[name]; dup {
				return nil, catalog.NewError(catalog.ErrConfiguration, []string{prev, path},
					"component %q defined in both %s and %s", name, prev, path)
			}
			if def != nil && def.Name == "" {
				def.Name = name
			}
			origin[name] = path
			out[name] = def
		}
	}
	return out, nil
}

func (f *Files) paths() ([]string, error) {
	if f.pattern == "" {
		return nil, catalog.NewError(catalog.ErrConfiguration, nil, "no source path configured")
	}
	if !isGlob(f.pattern) {
		return []string{f.pattern}, nil
	}
	matches, err := doublestar.FilepathGlob(f.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, catalog.WrapError(catalog.ErrConfiguration, err, "invalid source pattern %q", f.pattern)
	}
	if len(matches) == 0 {
		log.Warn(log.CatConfig, "Source pattern matched no files", "pattern", f.pattern)
	}
	slices.Sort(matches)
	return matches, nil
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// decodeFile reads path and decodes it into target by extension. YAML is decoded
// generically and re-encoded as JSON so both formats share the json struct tags.
func decodeFile(path string, target any) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: catalog path comes from operator config
	if err != nil {
		return catalog.WrapError(catalog.ErrConfiguration, err, "read %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return catalog.WrapError(catalog.ErrConfiguration, err, "parse %s", path)
		}
		if data, err = json.Marshal(generic); err != nil {
			return catalog.WrapError(catalog.ErrConfiguration, err, "convert %s", path)
		}
	case ".json", "":
	default:
		return catalog.NewError(catalog.ErrConfiguration, nil, "unsupported source format %q for %s", filepath.Ext(path), path)
	}

	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if key, dup := duplicateKey(data); dup {
		return catalog.NewError(catalog.ErrConfiguration, []string{path},
			"key %q defined twice in %s", key, path)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return catalog.WrapError(catalog.ErrConfiguration, err, "parse %s", path)
	}
	return nil
}

// duplicateKey reports the first key repeated in a top-level JSON object.
// encoding/json keeps the last value silently; yaml.v3 already rejects repeats.
// Malformed input reports nothing and is left to json.Unmarshal.
func duplicateKey(data []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return "", false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", false
	}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		key, _ := tok.(string)
		if seen[key] {
			return key, true
		}
		seen[key] = true
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return "", false
		}
	}
	return "", false
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
