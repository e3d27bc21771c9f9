package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
)

// liveStore implements driven.LiveStore.
type liveStore struct {
	store *Store
}

var _ driven.LiveStore = (*liveStore)(nil)

// Select returns rows matching every filter column, ordered by ID.
func (s *liveStore) Select(ctx context.Context, table string, filter driven.Row) ([]driven.Row, error) {
	if err := s.store.checkColumns(ctx, table, filter); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	for _, col := range sortedColumns(filter) {
		values, isList := listValues(filter[col])
		if !isList {
			where = append(where, quote(col)+" = ?")
			args = append(args, filter[col])
			continue
		}
		if len(values) == 0 {
			where = append(where, "1 = 0")
			continue
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		where = append(where, quote(col)+" IN ("+marks+")")
		args = append(args, values...)
	}

	query := "SELECT * FROM " + quote(table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ID"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return out, nil
}

// Insert adds a row and returns its ID.
func (s *liveStore) Insert(ctx context.Context, table string, row driven.Row) (any, error) {
	if err := s.store.checkColumns(ctx, table, row); err != nil {
		return nil, err
	}

	cols := sortedColumns(row)
	var query string
	args := make([]any, 0, len(cols))
	if len(cols) == 0 {
		query = "INSERT INTO " + quote(table) + " DEFAULT VALUES"
	} else {
		quoted := make([]string, len(cols))
		for i, col := range cols {
			quoted[i] = quote(col)
			args = append(args, row[col])
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quote(table), strings.Join(quoted, ", "), marks)
	}

	res, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}

	if id, ok := row["ID"]; ok && id != nil && domain.ScalarString(id) != "" {
		return id, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	return id, nil
}

// Update changes the given columns of one row.
func (s *liveStore) Update(ctx context.Context, table string, id any, row driven.Row) error {
	row = row.Clone()
	delete(row, "ID")
	if err := s.store.checkColumns(ctx, table, row); err != nil {
		return err
	}
	if len(row) == 0 {
		// nothing to change, but the row must exist
		found, err := s.Select(ctx, table, driven.Row{"ID": id})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("update %s %v: %w", table, id, domain.ErrNotFound)
		}
		return nil
	}

	cols := sortedColumns(row)
	set := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		set[i] = quote(col) + " = ?"
		args = append(args, row[col])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE ID = ?", quote(table), strings.Join(set, ", "))
	res, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return notFound(res, "update", table, id)
}

// Delete removes one row.
func (s *liveStore) Delete(ctx context.Context, table string, id any) error {
	if _, err := s.store.tableColumns(ctx, table); err != nil {
		return err
	}
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM "+quote(table)+" WHERE ID = ?", id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return notFound(res, "delete", table, id)
}

// CreateIndex creates a database index on table columns.
func (s *liveStore) CreateIndex(ctx context.Context, table, name string, columns []string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("%w: index name %q", domain.ErrInvalidInput, name)
	}
	if len(columns) == 0 {
		return fmt.Errorf("create index %s: %w", name, errNoColumns)
	}
	cols, err := s.store.tableColumns(ctx, table)
	if err != nil {
		return err
	}
	quoted := make([]string, len(columns))
	for i, col := range columns {
		if !cols[col] {
			return fmt.Errorf("%w: %s has no column %s", domain.ErrInvalidInput, table, col)
		}
		quoted[i] = quote(col)
	}

	query := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", quote(name), quote(table), strings.Join(quoted, ", "))
	if _, err := s.store.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// DropIndex removes a database index.
func (s *liveStore) DropIndex(ctx context.Context, table, name string) error {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ? AND tbl_name = ?",
		name, table).Scan(&count)
	if err != nil {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	if count == 0 {
		return fmt.Errorf("drop index %s on %s: %w", name, table, domain.ErrNotFound)
	}
	if _, err := s.store.db.ExecContext(ctx, "DROP INDEX "+quote(name)); err != nil {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	return nil
}

// listValues flattens the slice filter values Select accepts.
func listValues(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
