package watcher

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a catalog directory and reports YAML changes
type Watcher struct {
	dir      string
	onChange func()
	debounce time.Duration
}

// New creates a watcher over a catalog directory. The callback runs after
// changes settle for the debounce window, collapsed to one call per burst.
func New(dir string, onChange func()) *Watcher {
	return &Watcher{
		dir:      dir,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch starts watching the directory for changes.
// It blocks until the context is cancelled or an error occurs.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	log.Printf("Watching %s for catalog changes", w.dir)

	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Only YAML files belong to the catalog
			if filepath.Ext(event.Name) != ".yaml" {
				continue
			}

			// Write covers edits in place, Create covers the
			// write-then-rename dance editors do on save
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				name := event.Name
				debounceTimer = time.AfterFunc(w.debounce, func() {
					log.Printf("Catalog changed: %s", name)
					w.onChange()
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error: %v", err)

		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return ctx.Err()
		}
	}
}
