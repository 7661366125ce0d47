// Package watcher watches catalog source files and signals, debounced, when one of
// them changes.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/intentui/internal/log"
)

// Watcher monitors a set of file paths or glob patterns for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	patterns  []string
	debounce  time.Duration
	onChange  chan struct{}
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// Patterns are file paths or doublestar globs ("catalog/**/*.json").
	Patterns []string
	Debounce time.Duration
}

// DefaultConfig returns a config with a 300ms debounce.
func DefaultConfig(patterns ...string) Config {
	return Config{
		Patterns: patterns,
		Debounce: 300 * time.Millisecond,
	}
}

// New creates a watcher. Patterns are made absolute so they compare against the
// names fsnotify reports.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Patterns) == 0 {
		return nil, errors.New("watcher: no patterns to watch")
	}
	patterns := make([]string, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		patterns = append(patterns, filepath.Clean(abs))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	return &Watcher{
		fsWatcher: fsw,
		patterns:  patterns,
		debounce:  debounce,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start watches the directories that can contain a matching file. The returned
// channel has a buffer of one: bursts of changes coalesce into a single signal.
func (w *Watcher) Start() (<-chan struct{}, error) {
	seen := make(map[string]bool)
	for _, pattern := range w.patterns {
		dirs, err := directoriesFor(pattern)
		if err != nil {
			return nil, err
		}
		for _, dir := range dirs {
			if seen[dir] {
				continue
			}
			seen[dir] = true
			if err := w.fsWatcher.Add(dir); err != nil {
				return nil, fmt.Errorf("watching directory %s: %w", dir, err)
			}
			log.Debug(log.CatWatcher, "Watching directory", "dir", dir)
		}
	}

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.followNewDirectory(event)
			if !w.isRelevantEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case w.onChange <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "File watcher error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent reports whether the event touches a watched file. Editors that
// save by rename show up as Create or Rename, so those count as well as Write.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	return w.matches(filepath.Clean(event.Name))
}

func (w *Watcher) matches(name string) bool {
	for _, pattern := range w.patterns {
		if pattern == name {
			return true
		}
		if ok, err := doublestar.PathMatch(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// followNewDirectory adds directories created under a recursive pattern's base.
func (w *Watcher) followNewDirectory(event fsnotify.Event) {
	if event.Op&fsnotify.Create == 0 {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	for _, pattern := range w.patterns {
		if !strings.Contains(pattern, "**") {
			continue
		}
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		if strings.HasPrefix(filepath.ToSlash(event.Name), base) {
			if err := w.fsWatcher.Add(event.Name); err != nil {
				log.ErrorErr(log.CatWatcher, "Failed to watch new directory", err, "dir", event.Name)
			}
			return
		}
	}
}

// directoriesFor lists the directories whose events can match pattern. A plain
// path watches its parent; a glob watches its static base, plus every
// subdirectory when the pattern recurses.
func directoriesFor(pattern string) ([]string, error) {
	slashed := filepath.ToSlash(pattern)
	base, rest := doublestar.SplitPattern(slashed)
	if rest == "" || !hasMeta(rest) {
		return []string{filepath.Dir(pattern)}, nil
	}
	root := filepath.FromSlash(base)
	if !strings.Contains(rest, "**") {
		dirs := []string{root}
		if strings.Contains(rest, "/") {
			matches, err := doublestar.FilepathGlob(filepath.Join(root, filepath.FromSlash(parentOf(rest))))
			if err != nil {
				return nil, fmt.Errorf("expanding %s: %w", pattern, err)
			}
			for _, m := range matches {
				if info, err := os.Stat(m); err == nil && info.IsDir() {
					dirs = append(dirs, m)
				}
			}
		}
		return dirs, nil
	}

	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return dirs, nil
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func parentOf(rest string) string {
	i := strings.LastIndex(rest, "/")
	if i < 0 {
		return "."
	}
	return rest[:i]
}
