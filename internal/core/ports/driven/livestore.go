package driven

import (
	"context"
	"strconv"

	"github.com/custodia-labs/migrato/internal/core/domain"
)

// Row is one flat row of a live table: column name -> value.
type Row map[string]any

// String returns a column as text. Missing and nil values are empty.
func (r Row) String(col string) string {
	return domain.ScalarString(r[col])
}

// Int64 returns a column as an integer.
func (r Row) Int64(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Clone returns a shallow copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// LiveStore is the narrow accessor into the CMS database.
// Tables are addressed by name; every table has an "ID" primary key column
// that is either an auto-increment integer or a caller-supplied string.
type LiveStore interface {
	// Select returns rows matching every filter column, ordered by ID.
	// A slice filter value matches any of its elements.
	Select(ctx context.Context, table string, filter Row) ([]Row, error)

	// Insert adds a row and returns its ID. When the row carries an "ID"
	// it is used as is.
	Insert(ctx context.Context, table string, row Row) (any, error)

	// Update changes the given columns of the row with the given ID.
	// Returns domain.ErrNotFound when no such row exists.
	Update(ctx context.Context, table string, id any, row Row) error

	// Delete removes the row with the given ID.
	// Returns domain.ErrNotFound when no such row exists.
	Delete(ctx context.Context, table string, id any) error

	// CreateIndex creates a database index on table columns.
	CreateIndex(ctx context.Context, table, name string, columns []string) error

	// DropIndex removes a database index.
	DropIndex(ctx context.Context, table, name string) error
}
