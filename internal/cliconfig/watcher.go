package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tickship/tickship/pkg/log"
)

// Watcher monitors the config file via fsnotify. Configuration changes
// require reconstruction of the bridge, not live mutation, so the watcher
// only surfaces a debounced notification; acting on it (logging, restarting)
// is the caller's choice.
type Watcher struct {
	path     string
	logger   log.Logger
	onChange func()

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for the config file at path. onChange fires
// at most once per debounce window.
func NewWatcher(path string, logger log.Logger, onChange func()) *Watcher {
	return &Watcher{path: path, logger: logger, onChange: onChange}
}

// Run watches the config file's directory until the context is canceled.
// Watching the directory rather than the file survives editors that replace
// the file on save.
func (w *Watcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("config watcher unavailable", log.Err(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.logger.Warn("config watcher failed to watch directory",
			log.String("dir", filepath.Dir(w.path)),
			log.Err(err),
		)
		return
	}

	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.fire(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) fire(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.onChange)
}
