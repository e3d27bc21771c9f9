package driven

import (
	"context"

	"github.com/custodia-labs/migrato/internal/core/domain"
)

// Provider reads, translates and persists the instances of one entity kind.
// Each kind (info-block, property, admin filter, performance index, etc.)
// implements this interface.
type Provider interface {
	// Kind returns the kind identifier, e.g. "iblock.iblock".
	Kind() string

	// DeclaredDependencies returns the static dependency schema:
	// dependency name -> kind of the provider that resolves it.
	DeclaredDependencies() map[string]string

	// ParseID converts a live column value into a RecordID of this kind.
	ParseID(v any) (domain.RecordID, error)

	// List reads live instances and translates them to records whose
	// dependencies hold xmlIds. It never mutates live state.
	List(ctx context.Context, filter ListFilter) ([]domain.Record, error)

	// FindByXMLID resolves a portable key to a live identifier.
	// Returns false when no live instance matches.
	FindByXMLID(ctx context.Context, xmlID string) (domain.RecordID, bool, error)

	// XMLIDOf returns the portable key of a live instance.
	// Returns an empty string when the identifier denotes no live instance.
	XMLIDOf(ctx context.Context, id domain.RecordID) (string, error)

	// Create builds a new live instance from a record whose dependencies
	// are resolved. Returns *domain.PersistenceError on failure.
	Create(ctx context.Context, record domain.Record) (domain.RecordID, error)

	// Update applies a record to the live instance record.ID.
	// Returns *domain.PersistenceError on failure.
	Update(ctx context.Context, record domain.Record) error

	// Delete removes a live instance. Returns *domain.NotFoundError when no
	// instance owns id and *domain.PersistenceError when the delete fails.
	Delete(ctx context.Context, id domain.RecordID) error
}

// ListFilter narrows a List call.
type ListFilter struct {
	// XMLIDs restricts the result to these keys. Empty means all.
	XMLIDs []string
}

// Matches reports whether an xmlId passes the filter.
func (f ListFilter) Matches(xmlID string) bool {
	if len(f.XMLIDs) == 0 {
		return true
	}
	for _, x := range f.XMLIDs {
		if x == xmlID {
			return true
		}
	}
	return false
}

// ProviderLookup gives providers access to the providers of other kinds
// for cross references during one run.
type ProviderLookup interface {
	// Provider returns the provider registered for a kind.
	// Returns domain.ErrUnsupportedKind when none is registered.
	Provider(kind string) (Provider, error)
}
