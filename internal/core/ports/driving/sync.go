package driving

import (
	"context"

	"github.com/custodia-labs/migrato/internal/core/domain"
)

// Synchronizer exports live configuration as records and applies record
// batches to the live database in dependency order.
type Synchronizer interface {
	// Import applies a batch of records. Per-record failures are reported
	// in the returned report; an error is returned only when the whole
	// batch is rejected (e.g. *domain.CyclicDependencyError).
	Import(ctx context.Context, records []domain.Record, opts ImportOptions) (*domain.Report, error)

	// Export reads live entities as records, kinds in dependency order.
	Export(ctx context.Context, opts ExportOptions) ([]domain.Record, error)
}

// ImportOptions controls an import pass.
type ImportOptions struct {
	// Prune deletes live records of the batch's kinds that the batch does
	// not contain. Records still referenced by surviving records are kept.
	Prune bool

	// DryRun computes the plan without calling create, update or delete.
	DryRun bool

	// MaxFailures stops dispatching records after this many failures.
	// Zero means no limit.
	MaxFailures int
}

// ExportOptions controls an export pass.
type ExportOptions struct {
	// Kinds restricts the export. Empty means every registered kind.
	Kinds []string
}

// Validator checks exported records for consistency.
type Validator interface {
	// Validate exports every kind and reports problems.
	Validate(ctx context.Context) (*ValidationReport, error)
}

// ValidationReport lists the problems found by a validation pass.
type ValidationReport struct {
	Checked int
	Issues  []ValidationIssue
}

// ValidationIssue describes one problem with one record.
type ValidationIssue struct {
	Key        domain.NodeKey
	Dependency string
	Message    string
}

// OK reports whether no issue was found.
func (r *ValidationReport) OK() bool {
	return len(r.Issues) == 0
}

// URLRewriter rebuilds the URL rewrite rule index.
type URLRewriter interface {
	// Reindex re-sorts the rules and returns how many were reindexed.
	Reindex(ctx context.Context) (int, error)
}
