package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
)

// callLog records provider writes across kinds as "op kind:xmlId".
type callLog struct {
	calls []string
}

func (l *callLog) add(op string, key domain.NodeKey) {
	l.calls = append(l.calls, op+" "+key.String())
}

func (l *callLog) ops(op string) []string {
	var out []string
	for _, c := range l.calls {
		if len(c) > len(op) && c[:len(op)+1] == op+" " {
			out = append(out, c[len(op)+1:])
		}
	}
	return out
}

// mockProvider keeps live records in memory, keyed by xmlId.
type mockProvider struct {
	kind   string
	deps   map[string]string
	log    *callLog
	nextID int64
	live   map[string]domain.Record

	failCreate map[string]error
	failUpdate map[string]error
	failDelete map[string]error
	findErr    map[string]error

	// written holds the last record passed to Create or Update, by xmlId.
	written map[string]domain.Record
}

var _ driven.Provider = (*mockProvider)(nil)

func newMockProvider(kind string, deps map[string]string, log *callLog) *mockProvider {
	return &mockProvider{
		kind:       kind,
		deps:       deps,
		log:        log,
		nextID:     100,
		live:       make(map[string]domain.Record),
		failCreate: make(map[string]error),
		failUpdate: make(map[string]error),
		failDelete: make(map[string]error),
		findErr:    make(map[string]error),
		written:    make(map[string]domain.Record),
	}
}

// seed adds a live record without logging a call.
func (m *mockProvider) seed(rec domain.Record) domain.RecordID {
	m.nextID++
	id := domain.NumericID(m.nextID)
	rec = rec.Clone()
	rec.Kind = m.kind
	rec.SetID(id)
	m.live[rec.XMLID] = rec
	return id
}

func (m *mockProvider) Kind() string { return m.kind }

func (m *mockProvider) DeclaredDependencies() map[string]string { return m.deps }

func (m *mockProvider) ParseID(v any) (domain.RecordID, error) {
	switch t := v.(type) {
	case int64:
		return domain.NumericID(t), nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return domain.RecordID{}, err
		}
		return domain.NumericID(n), nil
	}
	return domain.RecordID{}, fmt.Errorf("bad id %v", v)
}

func (m *mockProvider) List(_ context.Context, filter driven.ListFilter) ([]domain.Record, error) {
	var out []domain.Record
	for _, rec := range m.live {
		if !filter.Matches(rec.XMLID) {
			continue
		}
		c := rec.Clone()
		for name, dep := range c.Dependencies {
			dep.IDs = nil
			c.Dependencies[name] = dep
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Record) int {
		return int(a.LiveID().Int() - b.LiveID().Int())
	})
	return out, nil
}

func (m *mockProvider) FindByXMLID(_ context.Context, xmlID string) (domain.RecordID, bool, error) {
	if err := m.findErr[xmlID]; err != nil {
		return domain.RecordID{}, false, err
	}
	rec, ok := m.live[xmlID]
	if !ok {
		return domain.RecordID{}, false, nil
	}
	return rec.LiveID(), true, nil
}

func (m *mockProvider) XMLIDOf(_ context.Context, id domain.RecordID) (string, error) {
	for _, rec := range m.live {
		if rec.LiveID().Equal(id) {
			return rec.XMLID, nil
		}
	}
	return "", nil
}

func (m *mockProvider) Create(_ context.Context, rec domain.Record) (domain.RecordID, error) {
	m.log.add("create", rec.Key())
	m.written[rec.XMLID] = rec.Clone()
	if err := m.failCreate[rec.XMLID]; err != nil {
		return domain.RecordID{}, &domain.PersistenceError{Kind: m.kind, XMLID: rec.XMLID, Err: err}
	}
	for name, dep := range rec.Dependencies {
		if !dep.Resolved() {
			return domain.RecordID{}, &domain.PersistenceError{
				Kind: m.kind, XMLID: rec.XMLID, Message: "unresolved dependency " + name,
			}
		}
	}
	return m.seed(rec), nil
}

func (m *mockProvider) Update(_ context.Context, rec domain.Record) error {
	m.log.add("update", rec.Key())
	m.written[rec.XMLID] = rec.Clone()
	if err := m.failUpdate[rec.XMLID]; err != nil {
		return err
	}
	stored := rec.Clone()
	stored.Kind = m.kind
	m.live[rec.XMLID] = stored
	return nil
}

func (m *mockProvider) Delete(_ context.Context, id domain.RecordID) error {
	for xmlID, rec := range m.live {
		if !rec.LiveID().Equal(id) {
			continue
		}
		m.log.add("delete", rec.Key())
		if err := m.failDelete[xmlID]; err != nil {
			return &domain.PersistenceError{Kind: m.kind, XMLID: xmlID, Err: err}
		}
		delete(m.live, xmlID)
		return nil
	}
	return &domain.NotFoundError{Kind: m.kind, ID: id}
}

var errBoom = errors.New("boom")

// fixture is a three-level kind chain: type <- block <- filter.
type fixture struct {
	log      *callLog
	types    *mockProvider
	blocks   *mockProvider
	filters  *mockProvider
	registry *ProviderRegistry
}

const (
	kindType   = "test.type"
	kindBlock  = "test.block"
	kindFilter = "test.filter"
)

func newFixture() *fixture {
	log := &callLog{}
	f := &fixture{
		log:     log,
		types:   newMockProvider(kindType, nil, log),
		blocks:  newMockProvider(kindBlock, map[string]string{"TYPE": kindType}, log),
		filters: newMockProvider(kindFilter, map[string]string{"BLOCK": kindBlock}, log),
	}
	// registered out of dependency order on purpose
	f.registry = NewProviderRegistry().MustRegister(f.filters, f.blocks, f.types)
	return f
}

func typeRecord(xmlID string) domain.Record {
	r := domain.NewRecord(kindType, xmlID)
	r.SetField("NAME", xmlID)
	return r
}

func blockRecord(xmlID, typeXMLID string) domain.Record {
	r := domain.NewRecord(kindBlock, xmlID)
	r.SetField("NAME", xmlID)
	r.SetDependency("TYPE", domain.NewDependency(kindType, typeXMLID))
	return r
}

func filterRecord(xmlID string, blocks ...string) domain.Record {
	r := domain.NewRecord(kindFilter, xmlID)
	r.SetDependency("BLOCK", domain.NewDependency(kindBlock, blocks...))
	return r
}

func key(kind, xmlID string) domain.NodeKey {
	return domain.NodeKey{Kind: kind, XMLID: xmlID}
}
