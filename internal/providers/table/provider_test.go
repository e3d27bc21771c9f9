package table

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/migrato/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
)

type lookup map[string]driven.Provider

func (l lookup) Provider(kind string) (driven.Provider, error) {
	p, ok := l[kind]
	if !ok {
		return nil, domain.ErrUnsupportedKind
	}
	return p, nil
}

func newPair(live driven.LiveStore) (*Provider, *Provider) {
	l := lookup{}
	types := New(Schema{
		Kind:        "test.type",
		Table:       "b_iblock_type",
		XMLIDColumn: "ID",
		StringID:    true,
		Fields:      []string{"NAME", "SORT"},
	}, live, l)
	blocks := New(Schema{
		Kind:        "test.block",
		Table:       "b_iblock",
		XMLIDColumn: "XML_ID",
		Fields:      []string{"NAME", "CODE"},
		References:  []Reference{{Dependency: "IBLOCK_TYPE_ID", Column: "IBLOCK_TYPE_ID", Kind: "test.type"}},
	}, live, l)
	l[types.Kind()] = types
	l[blocks.Kind()] = blocks
	return types, blocks
}

func seed(t *testing.T, live driven.LiveStore, table string, row driven.Row) any {
	t.Helper()
	id, err := live.Insert(context.Background(), table, row)
	require.NoError(t, err)
	return id
}

func TestParseID(t *testing.T) {
	id, err := ParseID(int64(7), false)
	require.NoError(t, err)
	assert.Equal(t, domain.NumericID(7), id)

	id, err = ParseID("12", false)
	require.NoError(t, err)
	assert.Equal(t, domain.NumericID(12), id)

	id, err = ParseID("news", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StringID("news"), id)

	for _, bad := range []any{nil, "", "abc", int64(0), "-3"} {
		_, err := ParseID(bad, false)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%v", bad)
	}
}

func TestProvider_ListTranslatesReferences(t *testing.T) {
	ctx := context.Background()
	live := memory.NewLiveStore()
	types, blocks := newPair(live)

	seed(t, live, "b_iblock_type", driven.Row{"ID": "content", "NAME": "Content"})
	seed(t, live, "b_iblock", driven.Row{"IBLOCK_TYPE_ID": "content", "XML_ID": "news", "NAME": "News", "CODE": "news"})
	seed(t, live, "b_iblock", driven.Row{"IBLOCK_TYPE_ID": "gone", "XML_ID": "orphan", "NAME": "Orphan"})

	records, err := blocks.List(ctx, driven.ListFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	news := records[0]
	assert.Equal(t, "test.block", news.Kind)
	assert.Equal(t, "news", news.XMLID)
	assert.Equal(t, domain.NumericID(1), news.LiveID())
	assert.Equal(t, "News", news.FieldString("NAME"))
	_, hasColumn := news.Field("IBLOCK_TYPE_ID")
	assert.False(t, hasColumn)

	dep, ok := news.Dependency("IBLOCK_TYPE_ID")
	require.True(t, ok)
	assert.Equal(t, domain.NewDependency("test.type", "content"), dep)

	// the type row is missing; the reference is dropped
	_, ok = records[1].Dependency("IBLOCK_TYPE_ID")
	assert.False(t, ok)

	typeRecords, err := types.List(ctx, driven.ListFilter{XMLIDs: []string{"content"}})
	require.NoError(t, err)
	require.Len(t, typeRecords, 1)
	assert.Equal(t, domain.StringID("content"), typeRecords[0].LiveID())
	assert.Empty(t, typeRecords[0].Dependencies)
}

func TestProvider_FindByXMLIDAndXMLIDOf(t *testing.T) {
	ctx := context.Background()
	live := memory.NewLiveStore()
	_, blocks := newPair(live)
	seed(t, live, "b_iblock", driven.Row{"IBLOCK_TYPE_ID": "content", "XML_ID": "news", "NAME": "News"})

	id, ok, err := blocks.FindByXMLID(ctx, "news")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.NumericID(1), id)

	_, ok, err = blocks.FindByXMLID(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = blocks.FindByXMLID(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	xmlID, err := blocks.XMLIDOf(ctx, domain.NumericID(1))
	require.NoError(t, err)
	assert.Equal(t, "news", xmlID)

	xmlID, err = blocks.XMLIDOf(ctx, domain.NumericID(99))
	require.NoError(t, err)
	assert.Empty(t, xmlID)
}

func TestProvider_CreateRequiresResolvedDependencies(t *testing.T) {
	ctx := context.Background()
	live := memory.NewLiveStore()
	_, blocks := newPair(live)

	rec := domain.NewRecord("test.block", "news")
	rec.SetField("NAME", "News")
	rec.SetDependency("IBLOCK_TYPE_ID", domain.NewDependency("test.type", "content"))

	_, err := blocks.Create(ctx, rec)
	var pe *domain.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "test.block", pe.Kind)
	assert.Equal(t, "news", pe.XMLID)
	assert.Contains(t, err.Error(), "IBLOCK_TYPE_ID")
	assert.Zero(t, live.Count("b_iblock"))
}

func TestProvider_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	live := memory.NewLiveStore()
	types, blocks := newPair(live)

	typeRec := domain.NewRecord("test.type", "content")
	typeRec.SetField("NAME", "Content")
	typeID, err := types.Create(ctx, typeRec)
	require.NoError(t, err)
	assert.Equal(t, domain.StringID("content"), typeID)

	rec := domain.NewRecord("test.block", "news")
	rec.SetField("NAME", "News")
	dep := domain.NewDependency("test.type", "content")
	dep.IDs = []domain.RecordID{typeID}
	rec.SetDependency("IBLOCK_TYPE_ID", dep)

	id, err := blocks.Create(ctx, rec)
	require.NoError(t, err)

	rows, err := live.Select(ctx, "b_iblock", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "news", rows[0].String("XML_ID"))
	assert.Equal(t, "content", rows[0].String("IBLOCK_TYPE_ID"))

	rec.SetID(id)
	rec.SetField("NAME", "Press")
	require.NoError(t, blocks.Update(ctx, rec))
	rows, _ = live.Select(ctx, "b_iblock", nil)
	assert.Equal(t, "Press", rows[0].String("NAME"))

	require.NoError(t, blocks.Delete(ctx, id))
	_, ok, err := blocks.FindByXMLID(ctx, "news")
	require.NoError(t, err)
	assert.False(t, ok)

	err = blocks.Delete(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestProvider_UpdateWithoutIDFails(t *testing.T) {
	live := memory.NewLiveStore()
	types, _ := newPair(live)

	err := types.Update(context.Background(), domain.NewRecord("test.type", "content"))
	var pe *domain.PersistenceError
	assert.True(t, errors.As(err, &pe))
}

func TestProvider_ScopeAndHooks(t *testing.T) {
	ctx := context.Background()
	live := memory.NewLiveStore()
	p := New(Schema{
		Kind:        "test.option",
		Table:       "b_user_option",
		XMLIDColumn: "NAME",
		Fields:      []string{"VALUE"},
		Scope:       driven.Row{"CATEGORY": "filters"},
		Managed:     map[string]string{"OWNER": "test.owner"},
		ToRecord: func(_ context.Context, row driven.Row, rec *domain.Record) error {
			rec.SetField("VALUE", "<"+row.String("VALUE")+">")
			return nil
		},
		ToRow: func(_ context.Context, rec domain.Record, row driven.Row) error {
			row["VALUE"] = rec.FieldString("VALUE") + "!"
			return nil
		},
	}, live, lookup{})

	assert.Equal(t, map[string]string{"OWNER": "test.owner"}, p.DeclaredDependencies())

	seed(t, live, "b_user_option", driven.Row{"CATEGORY": "filters", "NAME": "a", "VALUE": "x"})
	seed(t, live, "b_user_option", driven.Row{"CATEGORY": "other", "NAME": "b", "VALUE": "y"})

	records, err := p.List(ctx, driven.ListFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "<x>", records[0].FieldString("VALUE"))

	rec := domain.NewRecord("test.option", "c")
	rec.SetField("VALUE", "z")
	_, err = p.Create(ctx, rec)
	require.NoError(t, err)

	rows, err := live.Select(ctx, "b_user_option", driven.Row{"NAME": "c"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "filters", rows[0].String("CATEGORY"))
	assert.Equal(t, "z!", rows[0].String("VALUE"))
}
