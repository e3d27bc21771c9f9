// Package iblock provides the info-block entity kinds: types, info-blocks,
// their properties and list values, and the admin element list filters.
package iblock

import (
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/providers/kind"
	"github.com/custodia-labs/migrato/internal/providers/table"
)

// Live tables.
const (
	TypeTable     = "b_iblock_type"
	IblockTable   = "b_iblock"
	PropertyTable = "b_iblock_property"
	EnumTable     = "b_iblock_property_enum"
	OptionTable   = "b_user_option"
)

// NewType creates the info-block type provider. Types are keyed by their
// string primary key.
func NewType(live driven.LiveStore, lookup driven.ProviderLookup) *table.Provider {
	return table.New(table.Schema{
		Kind:        kind.IblockType,
		Table:       TypeTable,
		XMLIDColumn: "ID",
		StringID:    true,
		Fields:      []string{"SECTIONS", "IN_RSS", "SORT", "NAME"},
	}, live, lookup)
}

// NewIblock creates the info-block provider.
func NewIblock(live driven.LiveStore, lookup driven.ProviderLookup) *table.Provider {
	return table.New(table.Schema{
		Kind:        kind.Iblock,
		Table:       IblockTable,
		XMLIDColumn: "XML_ID",
		Fields: []string{
			"CODE", "NAME", "ACTIVE", "SORT",
			"LIST_PAGE_URL", "DETAIL_PAGE_URL", "VERSION",
		},
		References: []table.Reference{
			{Dependency: "IBLOCK_TYPE_ID", Column: "IBLOCK_TYPE_ID", Kind: kind.IblockType},
		},
	}, live, lookup)
}

// NewProperty creates the info-block property provider. A property that
// links to another info-block carries an optional LINK_IBLOCK_ID dependency.
func NewProperty(live driven.LiveStore, lookup driven.ProviderLookup) *table.Provider {
	return table.New(table.Schema{
		Kind:        kind.IblockProperty,
		Table:       PropertyTable,
		XMLIDColumn: "XML_ID",
		Fields: []string{
			"CODE", "NAME", "ACTIVE", "SORT",
			"PROPERTY_TYPE", "MULTIPLE", "USER_TYPE", "IS_REQUIRED",
		},
		References: []table.Reference{
			{Dependency: "IBLOCK", Column: "IBLOCK_ID", Kind: kind.Iblock},
			{Dependency: "LINK_IBLOCK_ID", Column: "LINK_IBLOCK_ID", Kind: kind.Iblock, Optional: true},
		},
	}, live, lookup)
}

// NewEnum creates the provider of list property values.
func NewEnum(live driven.LiveStore, lookup driven.ProviderLookup) *table.Provider {
	return table.New(table.Schema{
		Kind:        kind.IblockPropertyEnum,
		Table:       EnumTable,
		XMLIDColumn: "XML_ID",
		Fields:      []string{"VALUE", "DEF", "SORT"},
		References: []table.Reference{
			{Dependency: "PROPERTY", Column: "PROPERTY_ID", Kind: kind.IblockProperty},
		},
	}, live, lookup)
}
