// Package userfield provides custom (UF) fields and their list values.
package userfield

import (
	"context"
	"fmt"
	"regexp"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/logger"
	"github.com/custodia-labs/migrato/internal/providers/kind"
	"github.com/custodia-labs/migrato/internal/providers/table"
)

// Live tables.
const (
	FieldTable = "b_user_field"
	EnumTable  = "b_user_field_enum"
)

// SectionTemplate is the portable entity of fields attached to the
// sections of one info-block.
const SectionTemplate = "IBLOCK_#IBLOCK_ID#_SECTION"

// TypeEnumeration is the USER_TYPE_ID of list fields.
const TypeEnumeration = "enumeration"

var sectionEntity = regexp.MustCompile(`^IBLOCK_(\d+)_SECTION$`)

// SectionEntity returns the live ENTITY_ID of an info-block's section fields.
func SectionEntity(iblockID domain.RecordID) string {
	return "IBLOCK_" + iblockID.String() + "_SECTION"
}

// NewField creates the custom field provider. Section fields of an
// info-block depend on it through IBLOCK and store a templated entity.
func NewField(live driven.LiveStore, lookup driven.ProviderLookup) *table.Provider {
	return table.New(table.Schema{
		Kind:        kind.UserField,
		Table:       FieldTable,
		XMLIDColumn: "XML_ID",
		Fields: []string{
			"ENTITY_ID", "FIELD_NAME", "USER_TYPE_ID",
			"SORT", "MULTIPLE", "MANDATORY", "SETTINGS",
		},
		Managed: map[string]string{"IBLOCK": kind.Iblock},
		ToRecord: func(ctx context.Context, row driven.Row, rec *domain.Record) error {
			m := sectionEntity.FindStringSubmatch(row.String("ENTITY_ID"))
			if m == nil {
				return nil
			}
			iblocks, err := lookup.Provider(kind.Iblock)
			if err != nil {
				return err
			}
			id, err := iblocks.ParseID(m[1])
			if err != nil {
				return err
			}
			xmlID, err := iblocks.XMLIDOf(ctx, id)
			if err != nil {
				return err
			}
			if xmlID == "" {
				logger.Warn("%s %q: info-block %s has no portable key", kind.UserField, rec.XMLID, id)
				return nil
			}
			rec.SetField("ENTITY_ID", SectionTemplate)
			rec.SetDependency("IBLOCK", domain.NewDependency(kind.Iblock, xmlID))
			return nil
		},
		ToRow: func(_ context.Context, rec domain.Record, row driven.Row) error {
			if rec.FieldString("ENTITY_ID") != SectionTemplate {
				return nil
			}
			dep, ok := rec.Dependency("IBLOCK")
			if !ok || !dep.Resolved() || len(dep.IDs) == 0 {
				return fmt.Errorf("dependency IBLOCK is not resolved")
			}
			row["ENTITY_ID"] = SectionEntity(dep.ID())
			return nil
		},
	}, live, lookup)
}

// NewEnum creates the provider of list field values.
func NewEnum(live driven.LiveStore, lookup driven.ProviderLookup) *table.Provider {
	return table.New(table.Schema{
		Kind:        kind.UserFieldEnum,
		Table:       EnumTable,
		XMLIDColumn: "XML_ID",
		Fields:      []string{"VALUE", "DEF", "SORT"},
		References: []table.Reference{
			{Dependency: "FIELD", Column: "USER_FIELD_ID", Kind: kind.UserField},
		},
	}, live, lookup)
}
