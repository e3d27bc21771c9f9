package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/core/ports/driving"
	"github.com/custodia-labs/migrato/internal/logger"
)

// Ensure Synchronizer implements the interface.
var _ driving.Synchronizer = (*Synchronizer)(nil)

// Synchronizer applies record batches to the live database in dependency
// order and exports live entities as records.
type Synchronizer struct {
	registry *ProviderRegistry
	limiter  *rate.Limiter
	now      func() time.Time
}

// SynchronizerOption configures a Synchronizer.
type SynchronizerOption func(*Synchronizer)

// WithWriteLimit throttles live create, update and delete calls.
// A non-positive rate disables throttling.
func WithWriteLimit(perSecond float64, burst int) SynchronizerOption {
	return func(s *Synchronizer) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithClock overrides the clock used for report timestamps.
func WithClock(now func() time.Time) SynchronizerOption {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// NewSynchronizer creates a synchronizer over a provider registry.
func NewSynchronizer(registry *ProviderRegistry, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		registry: registry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export reads live entities of the requested kinds, dependencies first.
func (s *Synchronizer) Export(ctx context.Context, opts driving.ExportOptions) ([]domain.Record, error) {
	kinds, err := s.registry.Kinds()
	if err != nil {
		return nil, fmt.Errorf("order kinds: %w", err)
	}
	if len(opts.Kinds) > 0 {
		for _, k := range opts.Kinds {
			if !s.registry.Has(k) {
				return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedKind, k)
			}
		}
		kinds = slices.DeleteFunc(kinds, func(k string) bool {
			return !slices.Contains(opts.Kinds, k)
		})
	}

	logger.Section("Export")
	var records []domain.Record
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := s.registry.Provider(kind)
		if err != nil {
			return nil, err
		}
		list, err := p.List(ctx, driven.ListFilter{})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		logger.Info("Exported %d %s records", len(list), kind)
		records = append(records, list...)
	}
	return records, nil
}

// importRun holds the bookkeeping of one import pass.
type importRun struct {
	opts    driving.ImportOptions
	report  *domain.Report
	records map[domain.NodeKey]domain.Record
	graph   *graph[domain.NodeKey]

	// applied maps a node to its live ID after create or update.
	applied map[domain.NodeKey]domain.RecordID
	// planned marks nodes a dry run would create.
	planned map[domain.NodeKey]bool
	// broken maps failed and blocked nodes to the error that stopped them.
	broken   map[domain.NodeKey]error
	failures int
}

// Import applies a batch of records.
//
// Records are processed in topological order of their dependencies, ties
// broken by input order. A failed record blocks every record that depends
// on it, directly or not. With Prune set, live records of the batch's kinds
// that the batch does not contain are deleted afterwards in reverse order,
// except those still referenced by a surviving live record.
func (s *Synchronizer) Import(
	ctx context.Context,
	records []domain.Record,
	opts driving.ImportOptions,
) (*domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := &importRun{
		opts: opts,
		report: &domain.Report{
			RunID:     uuid.NewString(),
			StartedAt: s.now(),
		},
		records: make(map[domain.NodeKey]domain.Record, len(records)),
		graph:   newGraph[domain.NodeKey](),
		applied: make(map[domain.NodeKey]domain.RecordID),
		planned: make(map[domain.NodeKey]bool),
		broken:  make(map[domain.NodeKey]error),
	}

	logger.Section("Import")
	logger.Debug("Run %s: %d records", run.report.RunID, len(records))

	s.buildGraph(run, records)

	order, cycle := run.graph.sort()
	if cycle != nil {
		return nil, &domain.CyclicDependencyError{Cycle: cycle}
	}

	stopped := false
	for i, key := range order {
		if err := ctx.Err(); err != nil {
			skipRemaining(run, order[i:], err)
			run.report.FinishedAt = s.now()
			return run.report, err
		}
		if opts.MaxFailures > 0 && run.failures >= opts.MaxFailures {
			skipRemaining(run, order[i:], domain.ErrFailureThreshold)
			stopped = true
			break
		}
		if err := s.applyNode(ctx, run, key); err != nil {
			// only cancellation reaches here
			skipRemaining(run, order[i+1:], err)
			run.report.FinishedAt = s.now()
			return run.report, err
		}
	}

	if opts.Prune && !stopped {
		if err := s.prune(ctx, run, records); err != nil {
			run.report.FinishedAt = s.now()
			return run.report, err
		}
	}

	run.report.FinishedAt = s.now()
	sum := run.report.Summary()
	logger.Info("Import finished: %d created, %d updated, %d deleted, %d planned, %d failed, %d blocked, %d skipped",
		sum.Created, sum.Updated, sum.Deleted, sum.Planned, sum.Failed, sum.Blocked, sum.Skipped)
	return run.report, nil
}

// buildGraph adds one node per valid record and one edge per dependency
// value that names another record of the batch. Invalid records are
// reported as failed and left out of the graph.
func (s *Synchronizer) buildGraph(run *importRun, records []domain.Record) {
	var keys []domain.NodeKey
	for _, rec := range records {
		key := rec.Key()
		var err error
		switch {
		case rec.XMLID == "":
			err = fmt.Errorf("%s: %w: empty xml id", rec.Kind, domain.ErrInvalidInput)
		case !s.registry.Has(rec.Kind):
			err = fmt.Errorf("%s %q: %w", rec.Kind, rec.XMLID, domain.ErrUnsupportedKind)
		case run.graph.has(key):
			err = fmt.Errorf("%s %q: %w", rec.Kind, rec.XMLID, domain.ErrDuplicateRecord)
		}
		if err != nil {
			run.failures++
			run.report.Add(domain.Outcome{Key: key, Action: domain.ActionNone, Status: domain.StatusFailed, Err: err})
			continue
		}
		run.graph.addNode(key)
		run.records[key] = rec
		keys = append(keys, key)
	}

	for _, key := range keys {
		rec := run.records[key]
		for _, name := range sortedDependencyNames(rec) {
			dep := rec.Dependencies[name]
			for _, v := range dep.Values {
				target := domain.NodeKey{Kind: dep.Kind, XMLID: v}
				if run.graph.has(target) {
					run.graph.addEdge(target, key)
				}
			}
		}
	}
}

// applyNode processes one record. It returns an error only when the
// context was cancelled while waiting for the write limiter.
func (s *Synchronizer) applyNode(ctx context.Context, run *importRun, key domain.NodeKey) error {
	rec := run.records[key].Clone()

	for _, pred := range run.graph.predecessors(key) {
		if cause, ok := run.broken[pred]; ok {
			s.block(run, key, domain.ActionNone, pred, cause)
			return nil
		}
	}

	if err := s.resolveDependencies(ctx, run, &rec); err != nil {
		s.fail(run, key, domain.ActionNone, err)
		return nil
	}

	p, err := s.registry.Provider(rec.Kind)
	if err != nil {
		s.fail(run, key, domain.ActionNone, err)
		return nil
	}

	id, found, err := p.FindByXMLID(ctx, rec.XMLID)
	if err != nil {
		s.fail(run, key, domain.ActionNone, fmt.Errorf("find %s %q: %w", rec.Kind, rec.XMLID, err))
		return nil
	}

	action := domain.ActionCreate
	if found {
		action = domain.ActionUpdate
		rec.SetID(id)
	}

	if run.opts.DryRun {
		if !found {
			run.planned[key] = true
		}
		s.outcome(run, domain.Outcome{Key: key, Action: action, Status: domain.StatusPlanned, ID: id})
		return nil
	}

	if err := s.wait(ctx); err != nil {
		return err
	}

	if found {
		err = p.Update(ctx, rec)
	} else {
		id, err = p.Create(ctx, rec)
	}
	if err != nil {
		s.fail(run, key, action, asPersistenceError(rec, err))
		return nil
	}

	run.applied[key] = id
	s.outcome(run, domain.Outcome{Key: key, Action: action, Status: domain.StatusApplied, ID: id})
	return nil
}

// resolveDependencies fills Dependency.IDs with the live identifiers of
// every referenced xmlId. A value with no live counterpart is a
// *domain.NotFoundError, except in a dry run when an earlier node of the
// batch is planned to create it.
func (s *Synchronizer) resolveDependencies(ctx context.Context, run *importRun, rec *domain.Record) error {
	for _, name := range sortedDependencyNames(*rec) {
		dep := rec.Dependencies[name]
		target, err := s.registry.Provider(dep.Kind)
		if err != nil {
			return fmt.Errorf("dependency %s: %w", name, err)
		}

		ids := make([]domain.RecordID, len(dep.Values))
		for i, v := range dep.Values {
			ref := domain.NodeKey{Kind: dep.Kind, XMLID: v}
			if id, ok := run.applied[ref]; ok {
				ids[i] = id
				continue
			}
			id, found, err := target.FindByXMLID(ctx, v)
			if err != nil {
				return fmt.Errorf("dependency %s: %w", name, err)
			}
			if !found {
				if run.planned[ref] {
					continue
				}
				return fmt.Errorf("dependency %s of %s: %w", name, rec.Key(),
					&domain.NotFoundError{Kind: dep.Kind, XMLID: v})
			}
			ids[i] = id
		}
		dep.IDs = ids
		rec.Dependencies[name] = dep
	}
	return nil
}

// prune deletes live records of the batch's kinds that the batch does not
// contain, dependents first. A live record referenced by a live record
// that stays is reported blocked with domain.ErrInUse and kept.
//
//nolint:gocyclo // Deletion planning with necessary sequential steps
func (s *Synchronizer) prune(ctx context.Context, run *importRun, records []domain.Record) error {
	logger.Section("Prune")

	kinds, err := s.registry.Kinds()
	if err != nil {
		return fmt.Errorf("order kinds: %w", err)
	}

	inBatch := make(map[string]bool)
	for key := range run.records {
		inBatch[key.Kind] = true
	}

	// Live IDs the batch accounts for, per kind.
	survivors := make(map[string]map[domain.RecordID]bool)
	for _, rec := range records {
		key := rec.Key()
		if !inBatch[key.Kind] {
			continue
		}
		if survivors[key.Kind] == nil {
			survivors[key.Kind] = make(map[domain.RecordID]bool)
		}
		if id, ok := run.applied[key]; ok {
			survivors[key.Kind][id] = true
			continue
		}
		p, err := s.registry.Provider(key.Kind)
		if err != nil {
			continue
		}
		// Failed, blocked and planned records keep their live counterpart.
		if id, found, err := p.FindByXMLID(ctx, rec.XMLID); err == nil && found {
			survivors[key.Kind][id] = true
		}
	}

	// Reference index over all live records: target -> referrers.
	live := make(map[string][]domain.Record, len(kinds))
	referrers := make(map[domain.NodeKey][]liveRef)
	for _, kind := range kinds {
		p, err := s.registry.Provider(kind)
		if err != nil {
			return err
		}
		list, err := p.List(ctx, driven.ListFilter{})
		if err != nil {
			return fmt.Errorf("list %s: %w", kind, err)
		}
		live[kind] = list
		for _, rec := range list {
			for _, name := range sortedDependencyNames(rec) {
				dep := rec.Dependencies[name]
				for _, v := range dep.Values {
					target := domain.NodeKey{Kind: dep.Kind, XMLID: v}
					referrers[target] = append(referrers[target], liveRef{key: rec.Key(), id: rec.LiveID()})
				}
			}
		}
	}

	deleted := make(map[liveRef]bool)
	for i := len(kinds) - 1; i >= 0; i-- {
		kind := kinds[i]
		if !inBatch[kind] {
			continue
		}
		p, err := s.registry.Provider(kind)
		if err != nil {
			return err
		}

		for _, rec := range live[kind] {
			id := rec.LiveID()
			if id.IsZero() || survivors[kind][id] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			key := rec.Key()
			self := liveRef{key: key, id: id}

			// References to a keyless record were dropped when it was
			// listed, so nothing shows whether it is still in use.
			if key.XMLID == "" {
				s.outcome(run, domain.Outcome{
					Key: key, Action: domain.ActionDelete, Status: domain.StatusSkipped, ID: id,
					Err: fmt.Errorf("%s #%s: %w", kind, id, domain.ErrNoXMLID),
				})
				continue
			}

			if by, ok := firstLiveReferrer(referrers[key], self, deleted); ok {
				s.block(run, key, domain.ActionDelete, by, domain.ErrInUse)
				continue
			}

			if run.opts.DryRun {
				deleted[self] = true
				s.outcome(run, domain.Outcome{Key: key, Action: domain.ActionDelete, Status: domain.StatusPlanned, ID: id})
				continue
			}

			if err := s.wait(ctx); err != nil {
				return err
			}
			err := p.Delete(ctx, id)
			switch {
			case err == nil:
				deleted[self] = true
				s.outcome(run, domain.Outcome{Key: key, Action: domain.ActionDelete, Status: domain.StatusApplied, ID: id})
			case errors.Is(err, domain.ErrNotFound):
				// already gone
				deleted[self] = true
				s.outcome(run, domain.Outcome{
					Key: key, Action: domain.ActionDelete, Status: domain.StatusSkipped, ID: id, Err: err,
				})
			default:
				s.fail(run, key, domain.ActionDelete, asPersistenceError(rec, err))
			}
		}
	}
	return nil
}

// liveRef identifies one live record. Distinct live records may share an
// xmlId, so the live id is part of the identity.
type liveRef struct {
	key domain.NodeKey
	id  domain.RecordID
}

// firstLiveReferrer returns the first referrer that is neither the record
// itself nor deleted.
func firstLiveReferrer(refs []liveRef, self liveRef, deleted map[liveRef]bool) (domain.NodeKey, bool) {
	for _, r := range refs {
		if r != self && !deleted[r] {
			return r.key, true
		}
	}
	return domain.NodeKey{}, false
}

func (s *Synchronizer) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *Synchronizer) fail(run *importRun, key domain.NodeKey, action domain.Action, err error) {
	run.failures++
	run.broken[key] = err
	logger.Warn("%s: %v", key, err)
	s.outcome(run, domain.Outcome{Key: key, Action: action, Status: domain.StatusFailed, Err: err})
}

func (s *Synchronizer) block(run *importRun, key domain.NodeKey, action domain.Action, by domain.NodeKey, cause error) {
	err := &domain.BlockedError{Kind: key.Kind, XMLID: key.XMLID, By: by, Err: cause}
	run.broken[key] = err
	s.outcome(run, domain.Outcome{Key: key, Action: action, Status: domain.StatusBlocked, Err: err})
}

func (s *Synchronizer) outcome(run *importRun, o domain.Outcome) {
	logger.Record(o.Key.Kind, o.Key.XMLID, string(o.Action), string(o.Status))
	run.report.Add(o)
}

func skipRemaining(run *importRun, keys []domain.NodeKey, cause error) {
	for _, key := range keys {
		run.report.Add(domain.Outcome{Key: key, Action: domain.ActionNone, Status: domain.StatusSkipped, Err: cause})
	}
}

// asPersistenceError makes sure a provider write failure carries the
// record's kind and xmlId.
func asPersistenceError(rec domain.Record, err error) error {
	var pe *domain.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &domain.PersistenceError{Kind: rec.Kind, XMLID: rec.XMLID, Err: err}
}

func sortedDependencyNames(rec domain.Record) []string {
	names := make([]string, 0, len(rec.Dependencies))
	for name := range rec.Dependencies {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
