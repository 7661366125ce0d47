package presentation

import (
	"encoding/json"
	"io"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatIntents writes intent rows as indented JSON.
func (f *Formatter) FormatIntents(intents []IntentDTO) error {
	return f.encode(intents)
}

// FormatComponents writes component rows as indented JSON.
func (f *Formatter) FormatComponents(components []ComponentDTO) error {
	return f.encode(components)
}

// FormatResult writes any command result (resolution, artifact, report) as indented JSON.
func (f *Formatter) FormatResult(result any) error {
	return f.encode(result)
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
