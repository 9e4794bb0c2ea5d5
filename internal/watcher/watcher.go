// Package watcher keeps the install manifest in sync with changes made
// to the environment outside pkgx (e.g. by plain pip).
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	logger "github.com/sirupsen/logrus"
)

// Watcher observes a site-packages directory and invokes a callback
// after changes settle.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func()
}

// New creates a Watcher over dir. onChange runs after events have been
// quiet for the debounce interval, so one pip run triggers one sync.
func New(dir string, debounce time.Duration, onChange func()) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{dir: dir, debounce: debounce, onChange: onChange}
}

// Run watches the directory until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	logger.Infof("watching %s for package changes", w.dir)

	// Timer starts drained; the first event arms it
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debugf("filesystem event: %s", event)
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watch error: %v", err)

		case <-timer.C:
			w.onChange()
		}
	}
}
