package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/core/ports/driving"
	"github.com/custodia-labs/migrato/internal/logger"
)

// maxHistory bounds the results an ImportWatcher keeps.
const maxHistory = 100

// WatchResult is the outcome of one import triggered by a change.
type WatchResult struct {
	Kinds     []string
	StartedAt time.Time
	EndedAt   time.Time
	Report    *domain.Report
	Err       error
}

// ImportWatcher re-imports the transfer store whenever it changes.
type ImportWatcher struct {
	source       driven.ChangeSource
	orchestrator driving.MigrationOrchestrator
	opts         driving.ImportOptions
	quiet        time.Duration
	onResult     func(WatchResult)
	now          func() time.Time

	mu      sync.Mutex
	running bool
	history []WatchResult
}

// NewImportWatcher creates a watcher. onResult, if set, is called after
// every triggered import.
func NewImportWatcher(
	source driven.ChangeSource,
	orchestrator driving.MigrationOrchestrator,
	opts driving.ImportOptions,
	quiet time.Duration,
	onResult func(WatchResult),
) *ImportWatcher {
	return &ImportWatcher{
		source:       source,
		orchestrator: orchestrator,
		opts:         opts,
		quiet:        quiet,
		onResult:     onResult,
		now:          time.Now,
	}
}

// Run blocks, importing after each change, until ctx is done.
// It returns nil on cancellation.
func (w *ImportWatcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return domain.ErrRunInProgress
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	changes, err := w.source.Watch(ctx, w.quiet)
	if err != nil {
		return err
	}
	logger.Info("Watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case kinds, ok := <-changes:
			if !ok {
				return nil
			}
			w.runImport(ctx, kinds)
		}
	}
}

// History returns the results of past imports, oldest first.
func (w *ImportWatcher) History() []WatchResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]WatchResult(nil), w.history...)
}

func (w *ImportWatcher) runImport(ctx context.Context, kinds []string) {
	logger.Info("Changed: %v", kinds)
	result := WatchResult{Kinds: kinds, StartedAt: w.now()}
	result.Report, result.Err = w.orchestrator.Import(ctx, w.opts)
	result.EndedAt = w.now()

	switch {
	case result.Err == nil:
	case errors.Is(result.Err, context.Canceled):
		return
	default:
		// a broken file must not stop the watch
		logger.Warn("import failed: %v", result.Err)
	}

	w.mu.Lock()
	w.history = append(w.history, result)
	if len(w.history) > maxHistory {
		w.history = w.history[len(w.history)-maxHistory:]
	}
	w.mu.Unlock()

	if w.onResult != nil {
		w.onResult(result)
	}
}
