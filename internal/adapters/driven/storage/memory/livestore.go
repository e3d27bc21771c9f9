package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
)

// Ensure LiveStore implements the interface.
var _ driven.LiveStore = (*LiveStore)(nil)

// LiveStore is an in-memory implementation of driven.LiveStore.
// Tables are created on first insert. Column values are compared as text,
// so 7 and "7" match the same filter.
type LiveStore struct {
	mu      sync.RWMutex
	tables  map[string]*memTable
	indexes map[string]memIndex
}

type memTable struct {
	nextID int64
	rows   map[string]driven.Row
}

type memIndex struct {
	table   string
	columns []string
}

// NewLiveStore creates an empty in-memory live store.
func NewLiveStore() *LiveStore {
	return &LiveStore{
		tables:  make(map[string]*memTable),
		indexes: make(map[string]memIndex),
	}
}

func (s *LiveStore) table(name string) *memTable {
	t, ok := s.tables[name]
	if !ok {
		t = &memTable{rows: make(map[string]driven.Row)}
		s.tables[name] = t
	}
	return t
}

// Select returns rows matching every filter column, ordered by ID.
func (s *LiveStore) Select(_ context.Context, table string, filter driven.Row) ([]driven.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[table]
	if !ok {
		return nil, nil
	}

	var out []driven.Row
	for _, row := range t.rows {
		if matches(row, filter) {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessID(out[i]["ID"], out[j]["ID"])
	})
	return out, nil
}

// Insert adds a row and returns its ID.
func (s *LiveStore) Insert(_ context.Context, table string, row driven.Row) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	stored := row.Clone()

	id, ok := stored["ID"]
	if !ok || id == nil || domain.ScalarString(id) == "" {
		t.nextID++
		id = t.nextID
		stored["ID"] = id
	} else if n, isInt := stored.Int64("ID"); isInt {
		if _, isString := id.(string); !isString {
			id = n
			stored["ID"] = n
		}
		if n > t.nextID {
			t.nextID = n
		}
	}

	k := domain.ScalarString(id)
	if _, exists := t.rows[k]; exists {
		return nil, fmt.Errorf("insert into %s: duplicate ID %s", table, k)
	}
	t.rows[k] = stored
	return id, nil
}

// Update changes the given columns of one row.
func (s *LiveStore) Update(_ context.Context, table string, id any, row driven.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("update %s %v: %w", table, id, domain.ErrNotFound)
	}
	stored, ok := t.rows[domain.ScalarString(id)]
	if !ok {
		return fmt.Errorf("update %s %v: %w", table, id, domain.ErrNotFound)
	}
	for col, v := range row {
		if col == "ID" {
			continue
		}
		stored[col] = v
	}
	return nil
}

// Delete removes one row.
func (s *LiveStore) Delete(_ context.Context, table string, id any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("delete %s %v: %w", table, id, domain.ErrNotFound)
	}
	k := domain.ScalarString(id)
	if _, ok := t.rows[k]; !ok {
		return fmt.Errorf("delete %s %v: %w", table, id, domain.ErrNotFound)
	}
	delete(t.rows, k)
	return nil
}

// CreateIndex registers an index. Names are unique across tables.
func (s *LiveStore) CreateIndex(_ context.Context, table, name string, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" || len(columns) == 0 {
		return fmt.Errorf("create index on %s: %w: name and columns required", table, domain.ErrInvalidInput)
	}
	if _, exists := s.indexes[name]; exists {
		return fmt.Errorf("create index %s: already exists", name)
	}
	s.indexes[name] = memIndex{table: table, columns: slices.Clone(columns)}
	return nil
}

// DropIndex removes an index.
func (s *LiveStore) DropIndex(_ context.Context, table, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[name]
	if !ok || idx.table != table {
		return fmt.Errorf("drop index %s on %s: %w", name, table, domain.ErrNotFound)
	}
	delete(s.indexes, name)
	return nil
}

// Index returns the columns of an index, if it exists.
func (s *LiveStore) Index(name string) (table string, columns []string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	if !ok {
		return "", nil, false
	}
	return idx.table, slices.Clone(idx.columns), true
}

// Count returns the number of rows in a table.
func (s *LiveStore) Count(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}

func matches(row, filter driven.Row) bool {
	for col, want := range filter {
		have := domain.ScalarString(row[col])
		switch w := want.(type) {
		case []any:
			if !slices.ContainsFunc(w, func(v any) bool { return domain.ScalarString(v) == have }) {
				return false
			}
		case []string:
			if !slices.Contains(w, have) {
				return false
			}
		case []int64:
			if !slices.ContainsFunc(w, func(v int64) bool { return domain.ScalarString(v) == have }) {
				return false
			}
		default:
			if domain.ScalarString(want) != have {
				return false
			}
		}
	}
	return true
}

// lessID orders numeric IDs numerically, before string IDs.
func lessID(a, b any) bool {
	an, aNum := driven.Row{"ID": a}.Int64("ID")
	bn, bNum := driven.Row{"ID": b}.Int64("ID")
	switch {
	case aNum && bNum:
		return an < bn
	case aNum != bNum:
		return aNum
	default:
		return domain.ScalarString(a) < domain.ScalarString(b)
	}
}
