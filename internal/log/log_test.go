package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel("error"))
	require.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestInit_JSONFormatIncludesCategory(t *testing.T) {
	var buf bytes.Buffer
	cleanup, err := Init(Options{Level: LevelDebug, Format: "json", Writer: &buf})
	require.NoError(t, err)
	defer cleanup()

	Info(CatResolver, "resolved intent", "intent", "show_products")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "resolver", entry["category"])
	require.Equal(t, "show_products", entry["intent"])
	require.Equal(t, "resolved intent", entry["msg"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cleanup, err := Init(Options{Level: LevelWarn, Writer: &buf})
	require.NoError(t, err)
	defer cleanup()

	Debug(CatRender, "hidden")
	Warn(CatRender, "shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "shown")
}

func TestErrorErr_OddFieldsAndNilError(t *testing.T) {
	var buf bytes.Buffer
	cleanup, err := Init(Options{Level: LevelDebug, Writer: &buf})
	require.NoError(t, err)
	defer cleanup()

	ErrorErr(CatHTTP, "failed", nil, "orphan")

	out := buf.String()
	require.True(t, strings.Contains(out, "orphan") || strings.Contains(out, "<missing>"))
	require.Contains(t, out, "category=http")
}

func TestSetEnabled(t *testing.T) {
	var buf bytes.Buffer
	cleanup, err := Init(Options{Level: LevelDebug, Writer: &buf})
	require.NoError(t, err)
	defer cleanup()

	SetEnabled(false)
	Info(CatConfig, "muted")
	SetEnabled(true)

	require.Empty(t, buf.String())
}
