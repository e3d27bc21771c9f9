package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/migrato/internal/core/domain"
)

// RecordStore persists exported records in the transfer format.
// The file layout is the adapter's concern.
type RecordStore interface {
	// Save replaces the stored records of one kind.
	Save(ctx context.Context, kind string, records []domain.Record) error

	// Load returns every stored record, kinds in stable order and records
	// in their stored order.
	Load(ctx context.Context) ([]domain.Record, error)

	// Kinds lists the kinds that have stored records.
	Kinds(ctx context.Context) ([]string, error)

	// Location describes where records are stored, for watchers and messages.
	Location() string
}

// ChangeSource reports changes to stored records.
type ChangeSource interface {
	// Watch delivers batches of changed kinds until ctx is done. Changes
	// arriving within quiet of each other are delivered together.
	Watch(ctx context.Context, quiet time.Duration) (<-chan []string, error)
}
