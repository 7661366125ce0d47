package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zjrosen/intentui/internal/log"
	"github.com/zjrosen/intentui/internal/source"
	"github.com/zjrosen/intentui/internal/watcher"
)

// ErrNotWatchable is returned when file watching is enabled on a registry whose
// source is not file backed.
var ErrNotWatchable = errors.New("source does not support file watching")

// fileWatch drives reloads from a file watcher. A single goroutine performs the
// reloads, so triggers that arrive while one is running coalesce into one more.
type fileWatch struct {
	mu     sync.Mutex
	w      *watcher.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

func (fw *fileWatch) enable(src any, debounce time.Duration, cat log.Category, reload func(context.Context) error) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.w != nil {
		return nil
	}

	watchable, ok := src.(source.Watchable)
	if !ok {
		return ErrNotWatchable
	}
	w, err := watcher.New(watcher.Config{Patterns: watchable.WatchPatterns(), Debounce: debounce})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	onChange, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return fmt.Errorf("start watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-onChange:
				log.Debug(cat, "Source changed, reloading")
				if err := reload(ctx); err != nil {
					log.ErrorErr(cat, "Reload after file change failed, keeping previous catalog", err)
				}
			}
		}
	}()

	fw.w, fw.cancel, fw.done = w, cancel, done
	log.Info(cat, "File watching enabled", "patterns", watchable.WatchPatterns(), "debounce", debounce)
	return nil
}

func (fw *fileWatch) disable() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.w == nil {
		return nil
	}
	fw.cancel()
	err := fw.w.Stop()
	<-fw.done
	fw.w, fw.cancel, fw.done = nil, nil, nil
	return err
}

func (fw *fileWatch) active() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.w != nil
}
