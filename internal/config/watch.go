package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2/log"

	"imagevariants/internal/model"
)

// SchemaWatcher reloads the schema catalog file when it changes on disk.
// Editors that save through a rename are handled by watching the parent directory.
type SchemaWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func([]model.EntitySchema)
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// WatchSchemas starts watching path. onChange receives every successfully parsed version;
// a file that fails to parse or validate is logged and the previous catalog stays active.
func WatchSchemas(path string, onChange func([]model.EntitySchema)) (*SchemaWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve schema file: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &SchemaWatcher{
		path:     abs,
		watcher:  fw,
		onChange: onChange,
		debounce: 300 * time.Millisecond,
	}, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *SchemaWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("[Schemas] watcher error: %v", err)
		}
	}
}

// schedule coalesces the bursts of events a single save produces.
func (w *SchemaWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *SchemaWatcher) reload() {
	schemas, err := LoadSchemas(w.path)
	if err != nil {
		log.Warnf("[Schemas] keeping previous catalog, reload of %s failed: %v", w.path, err)
		return
	}
	log.Infof("[Schemas] reloaded %d entity schemas from %s", len(schemas), w.path)
	w.onChange(schemas)
}

// Close stops watching.
func (w *SchemaWatcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
