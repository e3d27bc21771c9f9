package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	r := NewRecord("iblock.iblock", "news_block")

	assert.Equal(t, NodeKey{Kind: "iblock.iblock", XMLID: "news_block"}, r.Key())
	assert.Nil(t, r.ID)
	assert.True(t, r.LiveID().IsZero())
	assert.NotNil(t, r.Fields)
	assert.NotNil(t, r.Dependencies)
}

func TestRecord_Fields(t *testing.T) {
	var r Record
	r.SetField("NAME", "News")
	r.SetFields(map[string]any{"SORT": int64(500), "ACTIVE": true})

	v, ok := r.Field("NAME")
	require.True(t, ok)
	assert.Equal(t, "News", v)
	assert.Equal(t, "500", r.FieldString("SORT"))
	assert.Equal(t, "Y", r.FieldString("ACTIVE"))
	assert.Equal(t, "", r.FieldString("MISSING"))
}

func TestRecord_SetID(t *testing.T) {
	r := NewRecord("iblock.type", "news")
	r.SetID(StringID("news"))

	require.NotNil(t, r.ID)
	assert.Equal(t, StringID("news"), r.LiveID())
}

func TestRecord_Dependencies(t *testing.T) {
	var r Record
	r.SetDependency("IBLOCK", NewDependency("iblock.iblock", "news_block"))

	dep, ok := r.Dependency("IBLOCK")
	require.True(t, ok)
	assert.Equal(t, "news_block", dep.Value())
	assert.False(t, dep.Resolved())

	_, ok = r.Dependency("PROPERTY")
	assert.False(t, ok)
}

func TestRecord_CloneIsDeep(t *testing.T) {
	r := NewRecord("iblock.elementfilter", "x")
	r.SetID(NumericID(3))
	r.SetField("FIELDS", map[string]any{"a": []any{"1", "2"}})
	r.SetDependency("ENUM", NewDependency("iblock.enum", "red", "blue"))

	c := r.Clone()
	c.Fields["FIELDS"].(map[string]any)["a"].([]any)[0] = "changed"
	c.Dependencies["ENUM"].Values[0] = "changed"
	*c.ID = NumericID(9)

	assert.Equal(t, "1", r.Fields["FIELDS"].(map[string]any)["a"].([]any)[0])
	assert.Equal(t, "red", r.Dependencies["ENUM"].Values[0])
	assert.Equal(t, NumericID(3), r.LiveID())
}

func TestDependency_Lookup(t *testing.T) {
	dep := NewDependency("iblock.enum", "red", "blue")
	dep.IDs = []RecordID{NumericID(10), NumericID(11)}

	assert.True(t, dep.Resolved())
	assert.Equal(t, NumericID(10), dep.ID())

	id, ok := dep.Lookup("blue")
	require.True(t, ok)
	assert.Equal(t, NumericID(11), id)

	_, ok = dep.Lookup("green")
	assert.False(t, ok)
}

func TestDependency_ResolvedRequiresEveryValue(t *testing.T) {
	dep := NewDependency("iblock.enum", "red", "blue")
	dep.IDs = []RecordID{NumericID(10), {}}

	assert.False(t, dep.Resolved())
	_, ok := dep.Lookup("blue")
	assert.False(t, ok)
}

func TestDependency_EmptyValue(t *testing.T) {
	var dep Dependency
	assert.Equal(t, "", dep.Value())
	assert.True(t, dep.ID().IsZero())
}

func TestScalarString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{[]byte("b"), "b"},
		{7, "7"},
		{int64(8), "8"},
		{int32(9), "9"},
		{uint64(10), "10"},
		{1.5, "1.5"},
		{true, "Y"},
		{false, "N"},
		{NumericID(3), "3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScalarString(tt.in))
	}
}
