// Package perfmon provides database performance indexes. An index record
// owns both the DDL index and its registration row.
package perfmon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/logger"
	"github.com/custodia-labs/migrato/internal/providers/kind"
	"github.com/custodia-labs/migrato/internal/providers/table"
)

// IndexTable registers the indexes created by the performance module.
const IndexTable = "b_perf_index_complete"

// Index is the performance index provider. The xmlId is the index name.
type Index struct {
	*table.Provider
	live driven.LiveStore
}

var _ driven.Provider = (*Index)(nil)

// NewIndex creates the performance index provider.
func NewIndex(live driven.LiveStore, lookup driven.ProviderLookup) *Index {
	return &Index{
		Provider: table.New(table.Schema{
			Kind:        kind.PerfmonIndex,
			Table:       IndexTable,
			XMLIDColumn: "INDEX_NAME",
			Fields:      []string{"TABLE_NAME", "COLUMN_NAMES", "BANNED"},
		}, live, lookup),
		live: live,
	}
}

// Create runs the DDL, then registers the index.
func (x *Index) Create(ctx context.Context, rec domain.Record) (domain.RecordID, error) {
	if err := x.createIndex(ctx, rec); err != nil {
		return domain.RecordID{}, err
	}
	return x.Provider.Create(ctx, rec)
}

// Update rebuilds the index when its definition changed.
func (x *Index) Update(ctx context.Context, rec domain.Record) error {
	row, ok, err := x.Row(ctx, rec.LiveID())
	if err != nil {
		return x.persistence(rec.XMLID, err)
	}
	if !ok {
		return &domain.NotFoundError{Kind: x.Kind(), XMLID: rec.XMLID, ID: rec.LiveID()}
	}
	if sameDefinition(row, rec) {
		logger.Debug("%s %q: unchanged", x.Kind(), rec.XMLID)
		return nil
	}

	if err := x.dropIndex(ctx, row.String("TABLE_NAME"), rec.XMLID); err != nil {
		return err
	}
	if err := x.createIndex(ctx, rec); err != nil {
		return err
	}
	return x.Provider.Update(ctx, rec)
}

// Delete drops the index and its registration.
func (x *Index) Delete(ctx context.Context, id domain.RecordID) error {
	row, ok, err := x.Row(ctx, id)
	if err != nil {
		return x.persistence("", err)
	}
	if !ok {
		return &domain.NotFoundError{Kind: x.Kind(), ID: id}
	}
	if err := x.dropIndex(ctx, row.String("TABLE_NAME"), row.String("INDEX_NAME")); err != nil {
		return err
	}
	return x.Provider.Delete(ctx, id)
}

func (x *Index) createIndex(ctx context.Context, rec domain.Record) error {
	tableName := rec.FieldString("TABLE_NAME")
	columns := Columns(rec.FieldString("COLUMN_NAMES"))
	if tableName == "" || len(columns) == 0 {
		return x.persistence(rec.XMLID, errors.New("fields TABLE_NAME and COLUMN_NAMES are required"))
	}
	if err := x.live.CreateIndex(ctx, tableName, rec.XMLID, columns); err != nil {
		return x.persistence(rec.XMLID, err)
	}
	return nil
}

// dropIndex removes a DDL index. A missing index is not an error.
func (x *Index) dropIndex(ctx context.Context, tableName, name string) error {
	err := x.live.DropIndex(ctx, tableName, name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return x.persistence(name, fmt.Errorf("drop index: %w", err))
	}
	return nil
}

func (x *Index) persistence(xmlID string, err error) error {
	return &domain.PersistenceError{Kind: x.Kind(), XMLID: xmlID, Err: err}
}

func sameDefinition(row driven.Row, rec domain.Record) bool {
	for _, f := range []string{"TABLE_NAME", "COLUMN_NAMES", "BANNED"} {
		if row.String(f) != rec.FieldString(f) {
			return false
		}
	}
	return true
}

// Columns splits a COLUMN_NAMES value.
func Columns(names string) []string {
	var out []string
	for _, c := range strings.Split(names, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
