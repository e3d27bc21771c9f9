// Package table implements driven.Provider for entity kinds stored one row
// per entity in a single live table with a native portable key column.
//
// Kinds declare a Schema: the table, the column holding the xmlId, the
// exported field columns and the foreign key columns that become
// dependencies. Kind-specific translation goes in the Schema hooks.
package table

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/patrickmn/go-cache"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/logger"
)

// Reference maps a foreign key column to a dependency.
type Reference struct {
	// Dependency is the dependency name on the record.
	Dependency string

	// Column is the foreign key column of this table.
	Column string

	// Kind is the kind the column points at.
	Kind string

	// Optional references may be empty; the column is cleared on write.
	Optional bool
}

// Schema describes how one kind is stored.
type Schema struct {
	Kind  string
	Table string

	// XMLIDColumn holds the portable key. For string keyed tables it is "ID".
	XMLIDColumn string

	// StringID marks tables whose primary key is a caller supplied string.
	StringID bool

	// Fields lists the exported columns, excluding ID, the xmlId column and
	// reference columns.
	Fields []string

	References []Reference

	// Managed lists dependencies the hooks set and read themselves,
	// name -> kind. They are declared but not bound to a column.
	Managed map[string]string

	// Scope restricts every query to matching rows.
	Scope driven.Row

	// ToRecord adjusts a record built from a live row.
	ToRecord func(ctx context.Context, row driven.Row, rec *domain.Record) error

	// ToRow adjusts a live row built from a record before it is written.
	ToRow func(ctx context.Context, rec domain.Record, row driven.Row) error
}

// Provider is a driven.Provider over one live table.
type Provider struct {
	schema Schema
	live   driven.LiveStore
	lookup driven.ProviderLookup
	memo   *cache.Cache
}

var _ driven.Provider = (*Provider)(nil)

// New creates a provider. lookup resolves the kinds named in references.
func New(schema Schema, live driven.LiveStore, lookup driven.ProviderLookup) *Provider {
	return &Provider{
		schema: schema,
		live:   live,
		lookup: lookup,
		memo:   cache.New(cache.NoExpiration, 0),
	}
}

// Kind returns the kind identifier.
func (p *Provider) Kind() string {
	return p.schema.Kind
}

// Schema returns the provider's schema.
func (p *Provider) Schema() Schema {
	return p.schema
}

// Live returns the live store the provider reads.
func (p *Provider) Live() driven.LiveStore {
	return p.live
}

// DeclaredDependencies returns dependency name -> kind.
func (p *Provider) DeclaredDependencies() map[string]string {
	deps := make(map[string]string, len(p.schema.References)+len(p.schema.Managed))
	for _, ref := range p.schema.References {
		deps[ref.Dependency] = ref.Kind
	}
	for name, kind := range p.schema.Managed {
		deps[name] = kind
	}
	return deps
}

// ParseID converts a live ID column value.
func (p *Provider) ParseID(v any) (domain.RecordID, error) {
	return ParseID(v, p.schema.StringID)
}

// ParseID converts a live ID column value into a numeric or string RecordID.
func ParseID(v any, stringID bool) (domain.RecordID, error) {
	s := domain.ScalarString(v)
	if s == "" {
		return domain.RecordID{}, fmt.Errorf("%w: empty id", domain.ErrInvalidInput)
	}
	if stringID {
		return domain.StringID(s), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return domain.RecordID{}, fmt.Errorf("%w: numeric id %q", domain.ErrInvalidInput, s)
	}
	return domain.NumericID(n), nil
}

// Rows returns the live rows in scope matching filter.
func (p *Provider) Rows(ctx context.Context, filter driven.Row) ([]driven.Row, error) {
	q := make(driven.Row, len(p.schema.Scope)+len(filter))
	for k, v := range p.schema.Scope {
		q[k] = v
	}
	for k, v := range filter {
		q[k] = v
	}
	rows, err := p.live.Select(ctx, p.schema.Table, q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", p.schema.Table, err)
	}
	return rows, nil
}

// Lookup returns the provider of another kind.
func (p *Provider) Lookup(kind string) (driven.Provider, error) {
	return p.lookup.Provider(kind)
}

// Row returns the live row of one ID.
func (p *Provider) Row(ctx context.Context, id domain.RecordID) (driven.Row, bool, error) {
	if id.IsZero() {
		return nil, false, nil
	}
	rows, err := p.Rows(ctx, driven.Row{"ID": id.Value()})
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// List reads live rows as records.
func (p *Provider) List(ctx context.Context, filter driven.ListFilter) ([]domain.Record, error) {
	q := driven.Row{}
	if len(filter.XMLIDs) > 0 {
		q[p.schema.XMLIDColumn] = filter.XMLIDs
	}
	rows, err := p.Rows(ctx, q)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := p.toRecord(ctx, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *Provider) toRecord(ctx context.Context, row driven.Row) (domain.Record, error) {
	id, err := p.ParseID(row["ID"])
	if err != nil {
		return domain.Record{}, fmt.Errorf("%s: %w", p.schema.Kind, err)
	}

	rec := domain.NewRecord(p.schema.Kind, row.String(p.schema.XMLIDColumn))
	rec.SetID(id)
	for _, f := range p.schema.Fields {
		if v, ok := row[f]; ok {
			rec.SetField(f, v)
		}
	}

	for _, ref := range p.schema.References {
		raw := row[ref.Column]
		if s := domain.ScalarString(raw); s == "" || s == "0" {
			continue
		}
		xmlID, err := p.refXMLID(ctx, ref, raw)
		if err != nil {
			return domain.Record{}, err
		}
		if xmlID == "" {
			logger.Warn("%s %q: %s %v has no portable key", p.schema.Kind, rec.XMLID, ref.Column, raw)
			continue
		}
		rec.SetDependency(ref.Dependency, domain.NewDependency(ref.Kind, xmlID))
	}

	if p.schema.ToRecord != nil {
		if err := p.schema.ToRecord(ctx, row, &rec); err != nil {
			return domain.Record{}, fmt.Errorf("%s %q: %w", p.schema.Kind, rec.XMLID, err)
		}
	}

	p.remember(rec.XMLID, id)
	return rec, nil
}

func (p *Provider) refXMLID(ctx context.Context, ref Reference, raw any) (string, error) {
	target, err := p.lookup.Provider(ref.Kind)
	if err != nil {
		return "", fmt.Errorf("%s reference %s: %w", p.schema.Kind, ref.Dependency, err)
	}
	id, err := target.ParseID(raw)
	if err != nil {
		return "", fmt.Errorf("%s reference %s: %w", p.schema.Kind, ref.Dependency, err)
	}
	return target.XMLIDOf(ctx, id)
}

// FindByXMLID resolves a portable key to a live ID.
func (p *Provider) FindByXMLID(ctx context.Context, xmlID string) (domain.RecordID, bool, error) {
	if xmlID == "" {
		return domain.RecordID{}, false, nil
	}
	if v, ok := p.memo.Get("x:" + xmlID); ok {
		return v.(domain.RecordID), true, nil
	}

	rows, err := p.Rows(ctx, driven.Row{p.schema.XMLIDColumn: xmlID})
	if err != nil {
		return domain.RecordID{}, false, err
	}
	if len(rows) == 0 {
		return domain.RecordID{}, false, nil
	}
	id, err := p.ParseID(rows[0]["ID"])
	if err != nil {
		return domain.RecordID{}, false, err
	}
	p.remember(xmlID, id)
	return id, true, nil
}

// XMLIDOf returns the portable key of a live ID, or "" when absent.
func (p *Provider) XMLIDOf(ctx context.Context, id domain.RecordID) (string, error) {
	if v, ok := p.memo.Get("i:" + id.String()); ok {
		return v.(string), nil
	}
	row, ok, err := p.Row(ctx, id)
	if err != nil || !ok {
		return "", err
	}
	xmlID := row.String(p.schema.XMLIDColumn)
	p.remember(xmlID, id)
	return xmlID, nil
}

// Create inserts a row built from the record.
func (p *Provider) Create(ctx context.Context, rec domain.Record) (domain.RecordID, error) {
	row, err := p.toRow(ctx, rec)
	if err != nil {
		return domain.RecordID{}, p.persistence(rec, err)
	}
	if p.schema.StringID {
		row["ID"] = rec.XMLID
	}

	raw, err := p.live.Insert(ctx, p.schema.Table, row)
	if err != nil {
		return domain.RecordID{}, p.persistence(rec, err)
	}
	id, err := p.ParseID(raw)
	if err != nil {
		return domain.RecordID{}, p.persistence(rec, err)
	}
	p.remember(rec.XMLID, id)
	return id, nil
}

// Update writes the record onto its live row.
func (p *Provider) Update(ctx context.Context, rec domain.Record) error {
	id := rec.LiveID()
	if id.IsZero() {
		return p.persistence(rec, errors.New("record has no live id"))
	}
	row, err := p.toRow(ctx, rec)
	if err != nil {
		return p.persistence(rec, err)
	}
	if err := p.live.Update(ctx, p.schema.Table, id.Value(), row); err != nil {
		return p.persistence(rec, err)
	}
	return nil
}

// Delete removes a live row.
func (p *Provider) Delete(ctx context.Context, id domain.RecordID) error {
	xmlID, _ := p.XMLIDOf(ctx, id)
	err := p.live.Delete(ctx, p.schema.Table, id.Value())
	p.forget(xmlID, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return &domain.NotFoundError{Kind: p.schema.Kind, XMLID: xmlID, ID: id}
	default:
		return &domain.PersistenceError{Kind: p.schema.Kind, XMLID: xmlID, Err: err}
	}
}

// toRow builds the live row of a record. Every reference must be resolved.
func (p *Provider) toRow(ctx context.Context, rec domain.Record) (driven.Row, error) {
	row := make(driven.Row, len(p.schema.Fields)+len(p.schema.References)+1)
	for _, f := range p.schema.Fields {
		if v, ok := rec.Fields[f]; ok {
			row[f] = v
		}
	}
	if p.schema.XMLIDColumn != "ID" {
		row[p.schema.XMLIDColumn] = rec.XMLID
	}
	for k, v := range p.schema.Scope {
		if _, isList := v.([]string); !isList {
			row[k] = v
		}
	}

	for _, ref := range p.schema.References {
		dep, ok := rec.Dependency(ref.Dependency)
		if ref.Optional && (!ok || len(dep.Values) == 0) {
			row[ref.Column] = nil
			continue
		}
		if !ok || !dep.Resolved() || len(dep.IDs) == 0 {
			return nil, fmt.Errorf("dependency %s is not resolved", ref.Dependency)
		}
		row[ref.Column] = dep.ID().Value()
	}

	if p.schema.ToRow != nil {
		if err := p.schema.ToRow(ctx, rec, row); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func (p *Provider) persistence(rec domain.Record, err error) error {
	var pe *domain.PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &domain.PersistenceError{Kind: p.schema.Kind, XMLID: rec.XMLID, Err: err}
}

func (p *Provider) remember(xmlID string, id domain.RecordID) {
	if xmlID == "" || id.IsZero() {
		return
	}
	p.memo.Set("x:"+xmlID, id, cache.NoExpiration)
	p.memo.Set("i:"+id.String(), xmlID, cache.NoExpiration)
}

func (p *Provider) forget(xmlID string, id domain.RecordID) {
	p.memo.Delete("x:" + xmlID)
	p.memo.Delete("i:" + id.String())
}
