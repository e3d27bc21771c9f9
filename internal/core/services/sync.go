package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/core/ports/driving"
	"github.com/custodia-labs/migrato/internal/logger"
)

// Ensure MigrationOrchestrator implements the interface.
var _ driving.MigrationOrchestrator = (*MigrationOrchestrator)(nil)

// RegistryFactory builds the providers of one pass.
type RegistryFactory func() (*ProviderRegistry, error)

// MigrationOrchestrator coordinates passes between the live database and
// the transfer store. Only one pass runs at a time.
type MigrationOrchestrator struct {
	newRegistry RegistryFactory
	records     driven.RecordStore
	syncOpts    []SynchronizerOption
	now         func() time.Time

	run    sync.Mutex
	mu     sync.RWMutex
	status driving.RunStatus
}

// NewMigrationOrchestrator creates an orchestrator. The synchronizer
// options apply to every import pass.
func NewMigrationOrchestrator(
	newRegistry RegistryFactory,
	records driven.RecordStore,
	syncOpts ...SynchronizerOption,
) *MigrationOrchestrator {
	return &MigrationOrchestrator{
		newRegistry: newRegistry,
		records:     records,
		syncOpts:    syncOpts,
		now:         time.Now,
	}
}

// Export writes live records to the transfer store, one batch per kind.
// Selected kinds with no live records have their stored batch removed.
func (o *MigrationOrchestrator) Export(ctx context.Context, opts driving.ExportOptions) (*driving.ExportSummary, error) {
	var summary *driving.ExportSummary
	err := o.pass("export", func(registry *ProviderRegistry) error {
		records, err := NewSynchronizer(registry, o.syncOpts...).Export(ctx, opts)
		if err != nil {
			return err
		}

		kinds := opts.Kinds
		if len(kinds) == 0 {
			if kinds, err = registry.Kinds(); err != nil {
				return err
			}
		}
		byKind := make(map[string][]domain.Record, len(kinds))
		for _, rec := range records {
			byKind[rec.Kind] = append(byKind[rec.Kind], rec)
		}

		summary = &driving.ExportSummary{
			Kinds:    kinds,
			Counts:   make(map[string]int, len(kinds)),
			Location: o.records.Location(),
		}
		for _, kind := range kinds {
			if err := o.records.Save(ctx, kind, byKind[kind]); err != nil {
				return fmt.Errorf("save %s: %w", kind, err)
			}
			summary.Counts[kind] = len(byKind[kind])
		}
		logger.Info("Exported %d records to %s", summary.Total(), summary.Location)
		return nil
	})
	return summary, err
}

// Import loads the transfer store and applies it.
func (o *MigrationOrchestrator) Import(ctx context.Context, opts driving.ImportOptions) (*domain.Report, error) {
	var report *domain.Report
	err := o.pass("import", func(registry *ProviderRegistry) error {
		records, err := o.records.Load(ctx)
		if err != nil {
			return fmt.Errorf("load records: %w", err)
		}
		logger.Debug("Loaded %d records from %s", len(records), o.records.Location())

		report, err = NewSynchronizer(registry, o.syncOpts...).Import(ctx, records, opts)
		return err
	})
	return report, err
}

// Validate checks the live records.
func (o *MigrationOrchestrator) Validate(ctx context.Context) (*driving.ValidationReport, error) {
	var report *driving.ValidationReport
	err := o.pass("validate", func(registry *ProviderRegistry) error {
		var err error
		report, err = NewValidator(registry).Validate(ctx)
		return err
	})
	return report, err
}

// ReindexURLs runs the URL rewrite provider's reindex.
func (o *MigrationOrchestrator) ReindexURLs(ctx context.Context) (int, error) {
	count := 0
	err := o.pass("reindex", func(registry *ProviderRegistry) error {
		kinds, err := registry.Kinds()
		if err != nil {
			return err
		}
		for _, kind := range kinds {
			p, err := registry.Provider(kind)
			if err != nil {
				return err
			}
			if rw, ok := p.(driving.URLRewriter); ok {
				count, err = rw.Reindex(ctx)
				return err
			}
		}
		return fmt.Errorf("%w: no URL rewrite provider registered", domain.ErrUnsupportedKind)
	})
	return count, err
}

// Kinds describes the registered kinds.
func (o *MigrationOrchestrator) Kinds() ([]driving.KindInfo, error) {
	registry, err := o.newRegistry()
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	kinds, err := registry.Kinds()
	if err != nil {
		return nil, err
	}
	infos := make([]driving.KindInfo, 0, len(kinds))
	for _, kind := range kinds {
		deps, err := registry.Dependencies(kind)
		if err != nil {
			return nil, err
		}
		infos = append(infos, driving.KindInfo{Kind: kind, Dependencies: deps})
	}
	return infos, nil
}

// Status returns the state of the current or last pass.
func (o *MigrationOrchestrator) Status() driving.RunStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// pass runs fn on a fresh registry, one pass at a time.
func (o *MigrationOrchestrator) pass(op string, fn func(*ProviderRegistry) error) error {
	if !o.run.TryLock() {
		return fmt.Errorf("%s: %w", op, domain.ErrRunInProgress)
	}
	defer o.run.Unlock()

	o.setStatus(driving.RunStatus{Running: true, Operation: op, StartedAt: o.now()})

	err := o.runPass(op, fn)

	o.mu.Lock()
	o.status.Running = false
	o.status.FinishedAt = o.now()
	o.status.Err = err
	o.mu.Unlock()
	return err
}

func (o *MigrationOrchestrator) runPass(op string, fn func(*ProviderRegistry) error) error {
	registry, err := o.newRegistry()
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	if err := fn(registry); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("%s interrupted", op)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (o *MigrationOrchestrator) setStatus(s driving.RunStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
}
