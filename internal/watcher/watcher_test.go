package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/intentui/internal/watcher"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func expectSignal(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}

func expectQuiet(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal(msg)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intents.json")
	writeFile(t, path, "[]")

	w, err := watcher.New(watcher.Config{Patterns: []string{path}, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		writeFile(t, path, fmt.Sprintf(`[{"n":%d}]`, i))
		time.Sleep(10 * time.Millisecond)
	}

	expectSignal(t, onChange, "expected notification after burst of writes")
	expectQuiet(t, onChange, "burst should coalesce into one notification")
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "components.json")
	other := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "{}")
	writeFile(t, other, "initial")

	w, err := watcher.New(watcher.Config{Patterns: []string{path}, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	writeFile(t, other, "changed")

	expectQuiet(t, onChange, "should not notify for unrelated files")
}

func TestWatcher_GlobPatternMatchesNestedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "intents", "shop", "products.json"), "[]")

	w, err := watcher.New(watcher.Config{
		Patterns: []string{filepath.Join(dir, "intents", "**", "*.json")},
		Debounce: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "intents", "shop", "products.json"), `[{"name":"x"}]`)
	expectSignal(t, onChange, "expected notification for nested glob match")

	writeFile(t, filepath.Join(dir, "intents", "shop", "README.md"), "ignored")
	expectQuiet(t, onChange, "non-matching extension should be ignored")
}

func TestWatcher_RemovalTriggers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intents.yaml")
	writeFile(t, path, "[]")

	w, err := watcher.New(watcher.Config{Patterns: []string{path}, Debounce: 30 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	expectSignal(t, onChange, "expected notification for removal")
}

func TestWatcher_Stop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intents.json")
	writeFile(t, path, "[]")

	w, err := watcher.New(watcher.Config{Patterns: []string{path}, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = w.Start()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Stop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestNew_RequiresPatterns(t *testing.T) {
	_, err := watcher.New(watcher.Config{})
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("a.json", "b.json")

	assert.Equal(t, []string{"a.json", "b.json"}, cfg.Patterns)
	assert.Equal(t, 300*time.Millisecond, cfg.Debounce)
}
