package yamlfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/migrato/internal/logger"
)

// DefaultQuiet is how long the directory must stay unchanged before a
// batch of changes is reported.
const DefaultQuiet = 300 * time.Millisecond

// Watch reports the kinds whose transfer files changed. Changes arriving
// within quiet of each other are delivered as one sorted batch. The channel
// closes when ctx is done.
func (s *Store) Watch(ctx context.Context, quiet time.Duration) (<-chan []string, error) {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", s.dir, err)
	}

	out := make(chan []string)
	go func() {
		defer close(out)
		defer watcher.Close()

		pending := make(map[string]bool)
		timer := time.NewTimer(quiet)
		timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if kind, ok := handleEvent(event); ok {
					pending[kind] = true
					timer.Reset(quiet)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch %s: %v", s.dir, err)
			case <-timer.C:
				batch := make([]string, 0, len(pending))
				for k := range pending {
					batch = append(batch, k)
				}
				sort.Strings(batch)
				pending = make(map[string]bool)
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// handleEvent returns the kind a filesystem event touches. Permission
// changes and scratch files are ignored.
func handleEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	return kindOf(filepath.Base(event.Name))
}
