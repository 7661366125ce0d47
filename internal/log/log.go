// Package log provides category-tagged structured logging for intentui.
// Messages go through log/slog; nothing is written until Init is called.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level. Unknown values are info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Category groups related log messages.
type Category string

const (
	CatIntent    Category = "intent"    // Intent registry
	CatComponent Category = "component" // Component registry
	CatResolver  Category = "resolver"  // Intent resolution
	CatRender    Category = "render"    // Render pipeline and renderers
	CatWatcher   Category = "watcher"   // Source file watching
	CatConfig    Category = "config"    // Configuration loading
	CatHTTP      Category = "http"      // HTTP boundary
	CatCache     Category = "cache"     // Resolution cache
	CatProvider  Category = "provider"  // Data provider calls
)

// Options configures the global logger.
type Options struct {
	Level  Level
	Format string // "text" (default) or "json"
	// Path writes to a file instead of Writer when set.
	Path   string
	Writer io.Writer
}

var (
	mu      sync.RWMutex
	logger  *slog.Logger
	enabled bool
	closer  io.Closer
)

// Init installs the global logger. It returns a cleanup function that closes the
// log file when one was opened.
func Init(opts Options) (func(), error) {
	w := opts.Writer
	var file *os.File
	if opts.Path != "" {
		f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G304: operator-supplied log path
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		w = f
	}
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level.slog()}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	mu.Lock()
	logger = slog.New(handler)
	enabled = true
	if file != nil {
		closer = file
	}
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		if closer != nil {
			_ = closer.Close()
			closer = nil
		}
	}, nil
}

// SetEnabled toggles logging on/off.
func SetEnabled(on bool) {
	mu.Lock()
	enabled = on
	mu.Unlock()
}

// Logger returns the underlying slog logger, or a discarding one before Init.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	write(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	write(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	write(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	write(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	write(LevelError, cat, msg, fields...)
}

func write(level Level, cat Category, msg string, fields ...any) {
	mu.RLock()
	l, on := logger, enabled
	mu.RUnlock()
	if l == nil || !on {
		return
	}
	// An orphan key would be rendered by slog as !BADKEY; keep it readable instead.
	if len(fields)%2 != 0 {
		fields = append(fields, "<missing>")
	}
	args := make([]any, 0, len(fields)+2)
	args = append(args, slog.String("category", string(cat)))
	args = append(args, fields...)
	l.Log(context.Background(), level.slog(), msg, args...)
}
