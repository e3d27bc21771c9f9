package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/migrato/internal/core/domain"
)

// MigrationOrchestrator runs whole passes between the live database and
// the transfer store. Each pass works on fresh providers, so nothing
// learned about live IDs leaks from one pass into the next.
type MigrationOrchestrator interface {
	// Export writes live records of the selected kinds to the transfer
	// store, replacing the stored records of each kind.
	Export(ctx context.Context, opts ExportOptions) (*ExportSummary, error)

	// Import loads every stored record and applies it to the live database.
	Import(ctx context.Context, opts ImportOptions) (*domain.Report, error)

	// Validate checks the live records for consistency.
	Validate(ctx context.Context) (*ValidationReport, error)

	// ReindexURLs rebuilds the URL rewrite rule order.
	ReindexURLs(ctx context.Context) (int, error)

	// Kinds describes every registered kind, dependencies first.
	Kinds() ([]KindInfo, error)

	// Status returns the state of the current or last pass.
	Status() RunStatus
}

// ExportSummary counts exported records per kind.
type ExportSummary struct {
	Kinds    []string
	Counts   map[string]int
	Location string
}

// Total returns the number of exported records.
func (s *ExportSummary) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// KindInfo describes one registered kind.
type KindInfo struct {
	Kind         string
	Dependencies map[string]string
}

// RunStatus reports on the current or last pass.
type RunStatus struct {
	Running    bool
	Operation  string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}
