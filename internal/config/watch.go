package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay collapses bursts of writes into one reload.
const DebounceDelay = 100 * time.Millisecond

// Watch reloads the configuration whenever the file changes until ctx is
// cancelled. Reload failures are sent to errs without stopping the watch;
// errs may be nil.
func (m *Manager) Watch(ctx context.Context, errs chan<- error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors replace files, so watch the directory.
	if err := watcher.Add(filepath.Dir(m.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go m.watchLoop(ctx, watcher, errs)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, errs chan<- error) {
	defer watcher.Close()

	report := func(err error) {
		if errs == nil {
			return
		}
		select {
		case errs <- err:
		default:
		}
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(m.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(DebounceDelay, func() {
				if err := m.Load(); err != nil {
					report(fmt.Errorf("reload config: %w", err))
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			report(err)
		}
	}
}
