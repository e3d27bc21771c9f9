package iblock

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/logger"
	"github.com/custodia-labs/migrato/internal/providers/kind"
	"github.com/custodia-labs/migrato/internal/providers/table"
	"github.com/custodia-labs/migrato/internal/providers/userfield"
)

type filterType struct {
	name   string
	prefix string
}

// Filter types and the option name prefix of each.
var filterTypes = []filterType{
	{name: "COMMON_VIEW", prefix: "tbl_iblock_list_"},
	{name: "SEPARATE_VIEW_SECTION", prefix: "tbl_iblock_section_"},
	{name: "SEPARATE_VIEW_ELEMENT", prefix: "tbl_iblock_element_"},
}

// FilterCategories are the option categories that hold list filters.
var FilterCategories = []string{
	"main.ui.filter",
	"main.ui.filter.common",
	"main.ui.filter.common.presets",
}

const adminUserID = 1

var filterDependencies = map[string]string{
	"IBLOCK":    kind.Iblock,
	"PROPERTY":  kind.IblockProperty,
	"ENUM":      kind.IblockPropertyEnum,
	"FIELD":     kind.UserField,
	"FIELDENUM": kind.UserFieldEnum,
}

// FilterKey is the xmlId schema of element filters:
// TYPE.USER.COMMON.CATEGORY.HASH.IBLOCK_XML_ID with dots in the category
// replaced by underscores. HASH is md5(prefix + iblock type + "." + iblock
// xmlId), so it is the same in every installation.
var FilterKey = domain.VirtualKeyCodec{
	Kind:       kind.IblockElementFilter,
	Delimiter:  '.',
	Substitute: '_',
	Arity:      6,
	Escaped:    []int{3},
	Tail:       true,
}

// ElementFilter provides the admin list filters of info-blocks, stored as
// user options. Filters owned by the admin user and common filters are
// migrated.
type ElementFilter struct {
	live   driven.LiveStore
	lookup driven.ProviderLookup
}

var _ driven.Provider = (*ElementFilter)(nil)

// NewElementFilter creates the element filter provider.
func NewElementFilter(live driven.LiveStore, lookup driven.ProviderLookup) *ElementFilter {
	return &ElementFilter{live: live, lookup: lookup}
}

// Kind returns the kind identifier.
func (f *ElementFilter) Kind() string {
	return kind.IblockElementFilter
}

// DeclaredDependencies returns dependency name -> kind.
func (f *ElementFilter) DeclaredDependencies() map[string]string {
	return maps.Clone(filterDependencies)
}

// ParseID converts an option ID.
func (f *ElementFilter) ParseID(v any) (domain.RecordID, error) {
	return table.ParseID(v, false)
}

// List reads the migrated filter options.
func (f *ElementFilter) List(ctx context.Context, filter driven.ListFilter) ([]domain.Record, error) {
	rows, err := f.live.Select(ctx, OptionTable, driven.Row{"CATEGORY": FilterCategories})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", OptionTable, err)
	}
	iblocks, err := f.iblocksByHash(ctx)
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	for _, row := range rows {
		if !isFilterOption(row) {
			continue
		}
		xmlID, iblock, err := f.keyOf(row, iblocks)
		if err != nil {
			return nil, err
		}
		if xmlID == "" || !filter.Matches(xmlID) {
			continue
		}
		rec, ok, err := f.toRecord(ctx, row, xmlID, iblock)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (f *ElementFilter) toRecord(ctx context.Context, row driven.Row, xmlID string, iblock driven.Row) (domain.Record, bool, error) {
	tree := map[string]any{}
	if v := row.String("VALUE"); v != "" {
		if err := json.Unmarshal([]byte(v), &tree); err != nil {
			logger.Warn("%s %q: skipping undecodable value: %v", f.Kind(), xmlID, err)
			return domain.Record{}, false, nil
		}
	}

	iblockID, err := table.ParseID(iblock["ID"], false)
	if err != nil {
		return domain.Record{}, false, err
	}
	deps := newDependencySet()
	portable, err := translateTree(ctx, tree, &exportMapper{f: f, iblockID: iblockID, deps: deps})
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("%s %q: %w", f.Kind(), xmlID, err)
	}

	id, err := f.ParseID(row["ID"])
	if err != nil {
		return domain.Record{}, false, err
	}
	rec := domain.NewRecord(f.Kind(), xmlID)
	rec.SetID(id)
	rec.SetField("COMMON", row.String("COMMON"))
	rec.SetField("CATEGORY", row.String("CATEGORY"))
	rec.SetField("FIELDS", portable)
	rec.SetDependency("IBLOCK", domain.NewDependency(kind.Iblock, iblock.String("XML_ID")))
	deps.apply(&rec)
	return rec, true, nil
}

// FindByXMLID decodes the key, resolves its info-block and searches the
// option with the rebuilt live name.
func (f *ElementFilter) FindByXMLID(ctx context.Context, xmlID string) (domain.RecordID, bool, error) {
	key, err := parseFilterKey(xmlID)
	if err != nil {
		return domain.RecordID{}, false, err
	}

	iblockID, iblock, ok, err := f.findIblock(ctx, key.iblockXMLID)
	if err != nil || !ok {
		return domain.RecordID{}, false, err
	}
	iblockType := iblock.String("IBLOCK_TYPE_ID")
	if portableHash(key.typ, iblockType, key.iblockXMLID) != key.hash {
		return domain.RecordID{}, false, nil
	}

	rows, err := f.live.Select(ctx, OptionTable, driven.Row{
		"CATEGORY": key.category,
		"NAME":     liveName(key.typ, iblockType, iblockID),
		"USER_ID":  key.userID(),
		"COMMON":   key.common,
	})
	if err != nil {
		return domain.RecordID{}, false, fmt.Errorf("select %s: %w", OptionTable, err)
	}
	if len(rows) == 0 {
		return domain.RecordID{}, false, nil
	}
	id, err := f.ParseID(rows[0]["ID"])
	if err != nil {
		return domain.RecordID{}, false, err
	}
	return id, true, nil
}

// XMLIDOf returns the key of a filter option, or "" for other options.
func (f *ElementFilter) XMLIDOf(ctx context.Context, id domain.RecordID) (string, error) {
	rows, err := f.live.Select(ctx, OptionTable, driven.Row{"ID": id.Value()})
	if err != nil {
		return "", fmt.Errorf("select %s: %w", OptionTable, err)
	}
	if len(rows) == 0 || !isFilterOption(rows[0]) || !isFilterCategory(rows[0].String("CATEGORY")) {
		return "", nil
	}
	iblocks, err := f.iblocksByHash(ctx)
	if err != nil {
		return "", err
	}
	xmlID, _, err := f.keyOf(rows[0], iblocks)
	return xmlID, err
}

// Create stores a new filter option.
func (f *ElementFilter) Create(ctx context.Context, rec domain.Record) (domain.RecordID, error) {
	row, err := f.toRow(ctx, rec)
	if err != nil {
		return domain.RecordID{}, f.persistence(rec.XMLID, err)
	}
	raw, err := f.live.Insert(ctx, OptionTable, row)
	if err != nil {
		return domain.RecordID{}, f.persistence(rec.XMLID, err)
	}
	id, err := f.ParseID(raw)
	if err != nil {
		return domain.RecordID{}, f.persistence(rec.XMLID, err)
	}
	return id, nil
}

// Update rewrites the filter option rec.ID.
func (f *ElementFilter) Update(ctx context.Context, rec domain.Record) error {
	id := rec.LiveID()
	if id.IsZero() {
		return f.persistence(rec.XMLID, errors.New("record has no live id"))
	}
	row, err := f.toRow(ctx, rec)
	if err != nil {
		return f.persistence(rec.XMLID, err)
	}
	if err := f.live.Update(ctx, OptionTable, id.Value(), row); err != nil {
		return f.persistence(rec.XMLID, err)
	}
	return nil
}

// Delete removes a filter option.
func (f *ElementFilter) Delete(ctx context.Context, id domain.RecordID) error {
	err := f.live.Delete(ctx, OptionTable, id.Value())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return &domain.NotFoundError{Kind: f.Kind(), ID: id}
	default:
		return f.persistence("", err)
	}
}

func (f *ElementFilter) toRow(ctx context.Context, rec domain.Record) (driven.Row, error) {
	key, err := parseFilterKey(rec.XMLID)
	if err != nil {
		return nil, err
	}

	dep, ok := rec.Dependency("IBLOCK")
	if !ok || !dep.Resolved() || len(dep.IDs) == 0 {
		return nil, errors.New("dependency IBLOCK is not resolved")
	}
	iblockID := dep.ID()
	iblocks, err := f.live.Select(ctx, IblockTable, driven.Row{"ID": iblockID.Value()})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", IblockTable, err)
	}
	if len(iblocks) == 0 {
		return nil, &domain.NotFoundError{Kind: kind.Iblock, XMLID: dep.Value(), ID: iblockID}
	}

	category := rec.FieldString("CATEGORY")
	tree, err := filterTree(rec)
	if err != nil {
		return nil, err
	}
	if category == "" || tree == nil {
		return nil, errors.New("fields CATEGORY and FIELDS are required")
	}
	if category != key.category {
		return nil, fmt.Errorf("%w: CATEGORY %q does not match key category %q", domain.ErrInvalidInput, category, key.category)
	}
	if common := rec.FieldString("COMMON"); common != "" && common != key.common {
		return nil, fmt.Errorf("%w: COMMON %q does not match key flag %q", domain.ErrInvalidInput, common, key.common)
	}

	live, err := translateTree(ctx, tree, &importMapper{f: f, rec: rec, iblockID: iblockID})
	if err != nil {
		return nil, err
	}
	value, err := json.Marshal(live)
	if err != nil {
		return nil, fmt.Errorf("encoding filter: %w", err)
	}

	return driven.Row{
		"USER_ID":  key.userID(),
		"COMMON":   key.common,
		"CATEGORY": category,
		"NAME":     liveName(key.typ, iblocks[0].String("IBLOCK_TYPE_ID"), iblockID),
		"VALUE":    string(value),
	}, nil
}

// filterTree returns the FIELDS tree of a record. A JSON string is accepted
// as well as a decoded tree.
func filterTree(rec domain.Record) (any, error) {
	v, ok := rec.Field("FIELDS")
	if !ok || v == nil {
		return nil, nil
	}
	s, isText := v.(string)
	if !isText {
		return v, nil
	}
	var tree map[string]any
	if err := json.Unmarshal([]byte(s), &tree); err != nil {
		return nil, fmt.Errorf("decoding FIELDS: %w", err)
	}
	return tree, nil
}

func (f *ElementFilter) persistence(xmlID string, err error) error {
	return &domain.PersistenceError{Kind: f.Kind(), XMLID: xmlID, Err: err}
}

// keyOf builds the key of a filter option from the info-blocks indexed by
// live name hash. It returns "" when the option's info-block is unknown.
func (f *ElementFilter) keyOf(row driven.Row, iblocks map[string]driven.Row) (string, driven.Row, error) {
	name := row.String("NAME")
	ft, ok := typeOfName(name)
	if !ok {
		return "", nil, nil
	}
	iblock, ok := iblocks[strings.TrimPrefix(name, ft.prefix)]
	if !ok {
		logger.Debug("%s: option %s has no info-block", f.Kind(), name)
		return "", nil, nil
	}
	iblockXMLID := iblock.String("XML_ID")
	if iblockXMLID == "" {
		logger.Warn("%s: info-block %s of option %s has no portable key", f.Kind(), iblock.String("ID"), name)
		return "", nil, nil
	}

	user := "N"
	if n, _ := row.Int64("USER_ID"); n == adminUserID {
		user = "Y"
	}
	xmlID, err := FilterKey.Encode([]string{
		ft.name,
		user,
		row.String("COMMON"),
		row.String("CATEGORY"),
		portableHash(ft, iblock.String("IBLOCK_TYPE_ID"), iblockXMLID),
		iblockXMLID,
	})
	if err != nil {
		return "", nil, err
	}
	return xmlID, iblock, nil
}

// iblocksByHash indexes info-blocks by md5(type + "." + id), the hash used
// in live option names.
func (f *ElementFilter) iblocksByHash(ctx context.Context) (map[string]driven.Row, error) {
	rows, err := f.live.Select(ctx, IblockTable, nil)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", IblockTable, err)
	}
	out := make(map[string]driven.Row, len(rows))
	for _, row := range rows {
		out[md5Hex(row.String("IBLOCK_TYPE_ID")+"."+row.String("ID"))] = row
	}
	return out, nil
}

func (f *ElementFilter) findIblock(ctx context.Context, xmlID string) (domain.RecordID, driven.Row, bool, error) {
	iblocks, err := f.lookup.Provider(kind.Iblock)
	if err != nil {
		return domain.RecordID{}, nil, false, err
	}
	id, ok, err := iblocks.FindByXMLID(ctx, xmlID)
	if err != nil || !ok {
		return domain.RecordID{}, nil, false, err
	}
	rows, err := f.live.Select(ctx, IblockTable, driven.Row{"ID": id.Value()})
	if err != nil {
		return domain.RecordID{}, nil, false, fmt.Errorf("select %s: %w", IblockTable, err)
	}
	if len(rows) == 0 {
		return domain.RecordID{}, nil, false, nil
	}
	return id, rows[0], true, nil
}

func (f *ElementFilter) propertyRow(ctx context.Context, ref string) (driven.Row, bool, error) {
	id, err := table.ParseID(ref, false)
	if err != nil {
		return nil, false, nil
	}
	rows, err := f.live.Select(ctx, PropertyTable, driven.Row{"ID": id.Value()})
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", PropertyTable, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func (f *ElementFilter) sectionField(ctx context.Context, iblockID domain.RecordID, name string) (driven.Row, bool, error) {
	rows, err := f.live.Select(ctx, userfield.FieldTable, driven.Row{
		"ENTITY_ID":  userfield.SectionEntity(iblockID),
		"FIELD_NAME": name,
	})
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", userfield.FieldTable, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// xmlIDOf maps a live value of another kind to its key, or "" when unknown.
func (f *ElementFilter) xmlIDOf(ctx context.Context, k, value string) (string, error) {
	p, err := f.lookup.Provider(k)
	if err != nil {
		return "", err
	}
	id, err := p.ParseID(value)
	if err != nil {
		return "", nil
	}
	return p.XMLIDOf(ctx, id)
}

type decodedKey struct {
	typ         filterType
	user        string
	common      string
	category    string
	hash        string
	iblockXMLID string
}

func (k decodedKey) userID() int64 {
	if k.user == "Y" {
		return adminUserID
	}
	return 0
}

func parseFilterKey(xmlID string) (decodedKey, error) {
	parts, err := FilterKey.Decode(xmlID)
	if err != nil {
		return decodedKey{}, err
	}
	malformed := func(reason string) error {
		return &domain.MalformedKeyError{Kind: kind.IblockElementFilter, Key: xmlID, Reason: reason}
	}

	ft, ok := typeByName(parts[0])
	if !ok {
		return decodedKey{}, malformed(fmt.Sprintf("unknown filter type %q", parts[0]))
	}
	if parts[1] != "Y" && parts[1] != "N" {
		return decodedKey{}, malformed("user flag must be Y or N")
	}
	if parts[2] != "Y" && parts[2] != "N" {
		return decodedKey{}, malformed("common flag must be Y or N")
	}
	if parts[1] == "N" && parts[2] == "N" {
		return decodedKey{}, malformed("filter is neither the admin's nor common")
	}
	if !isFilterCategory(parts[3]) {
		return decodedKey{}, malformed(fmt.Sprintf("unknown category %q", parts[3]))
	}
	if parts[4] == "" || parts[5] == "" {
		return decodedKey{}, malformed("empty hash or info-block key")
	}
	return decodedKey{
		typ:         ft,
		user:        parts[1],
		common:      parts[2],
		category:    parts[3],
		hash:        parts[4],
		iblockXMLID: parts[5],
	}, nil
}

func isFilterOption(row driven.Row) bool {
	if _, ok := typeOfName(row.String("NAME")); !ok {
		return false
	}
	user, _ := row.Int64("USER_ID")
	return user == adminUserID || (user == 0 && row.String("COMMON") == "Y")
}

func isFilterCategory(category string) bool {
	return slices.Contains(FilterCategories, category)
}

func typeOfName(name string) (filterType, bool) {
	for _, ft := range filterTypes {
		if strings.HasPrefix(name, ft.prefix) {
			return ft, true
		}
	}
	return filterType{}, false
}

func typeByName(name string) (filterType, bool) {
	for _, ft := range filterTypes {
		if ft.name == name {
			return ft, true
		}
	}
	return filterType{}, false
}

func liveName(ft filterType, iblockType string, iblockID domain.RecordID) string {
	return ft.prefix + md5Hex(iblockType+"."+iblockID.String())
}

func portableHash(ft filterType, iblockType, iblockXMLID string) string {
	return md5Hex(ft.prefix + iblockType + "." + iblockXMLID)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// dependencySet collects the references found while exporting a filter.
type dependencySet struct {
	order  []string
	values map[string][]string
	seen   map[string]bool
}

func newDependencySet() *dependencySet {
	return &dependencySet{values: map[string][]string{}, seen: map[string]bool{}}
}

func (s *dependencySet) add(name, xmlID string) {
	if xmlID == "" || s.seen[name+"\x00"+xmlID] {
		return
	}
	s.seen[name+"\x00"+xmlID] = true
	if _, ok := s.values[name]; !ok {
		s.order = append(s.order, name)
	}
	s.values[name] = append(s.values[name], xmlID)
}

// apply sets the collected dependencies, values sorted so exports are stable.
func (s *dependencySet) apply(rec *domain.Record) {
	for _, name := range s.order {
		values := slices.Clone(s.values[name])
		slices.Sort(values)
		rec.SetDependency(name, domain.NewDependency(filterDependencies[name], values...))
	}
}

// exportMapper turns live IDs into keys and records them as dependencies.
type exportMapper struct {
	f        *ElementFilter
	iblockID domain.RecordID
	deps     *dependencySet
}

func (m *exportMapper) property(ctx context.Context, ref FieldProperty) (FieldProperty, propertyInfo, bool, error) {
	row, ok, err := m.f.propertyRow(ctx, ref.Ref)
	if err != nil || !ok {
		return ref, propertyInfo{}, false, err
	}
	xmlID := row.String("XML_ID")
	if xmlID == "" {
		return ref, propertyInfo{}, false, nil
	}
	m.deps.add("PROPERTY", xmlID)
	ref.Ref = xmlID
	return ref, propertyInfo{list: row.String("PROPERTY_TYPE") == "L"}, true, nil
}

func (m *exportMapper) enum(ctx context.Context, value string) (string, error) {
	return m.mapValue(ctx, "ENUM", kind.IblockPropertyEnum, value)
}

func (m *exportMapper) field(ctx context.Context, name string) (customInfo, bool, error) {
	row, ok, err := m.f.sectionField(ctx, m.iblockID, name)
	if err != nil || !ok {
		return customInfo{}, false, err
	}
	m.deps.add("FIELD", row.String("XML_ID"))
	return customInfo{enumeration: row.String("USER_TYPE_ID") == userfield.TypeEnumeration}, true, nil
}

func (m *exportMapper) fieldEnum(ctx context.Context, value string) (string, error) {
	return m.mapValue(ctx, "FIELDENUM", kind.UserFieldEnum, value)
}

func (m *exportMapper) mapValue(ctx context.Context, dep, k, value string) (string, error) {
	xmlID, err := m.f.xmlIDOf(ctx, k, value)
	if err != nil {
		return "", err
	}
	if xmlID == "" {
		return value, nil
	}
	m.deps.add(dep, xmlID)
	return xmlID, nil
}

// importMapper turns keys back into live IDs using the record's resolved
// dependencies.
type importMapper struct {
	f        *ElementFilter
	rec      domain.Record
	iblockID domain.RecordID
}

// property matches the longest PROPERTY value the reference starts with,
// since property keys may contain underscores.
func (m *importMapper) property(ctx context.Context, ref FieldProperty) (FieldProperty, propertyInfo, bool, error) {
	dep, _ := m.rec.Dependency("PROPERTY")
	tail := ref.Ref + ref.Suffix

	var (
		best string
		id   domain.RecordID
	)
	for _, v := range dep.Values {
		if len(v) <= len(best) || !strings.HasPrefix(tail, v) {
			continue
		}
		if rest := tail[len(v):]; rest != "" && rest[0] != '_' {
			continue
		}
		if resolved, ok := dep.Lookup(v); ok {
			best, id = v, resolved
		}
	}
	if best == "" {
		return ref, propertyInfo{}, false, nil
	}

	row, ok, err := m.f.propertyRow(ctx, id.String())
	if err != nil {
		return ref, propertyInfo{}, false, err
	}
	out := FieldProperty{Prefix: ref.Prefix, Ref: id.String(), Suffix: tail[len(best):]}
	return out, propertyInfo{list: ok && row.String("PROPERTY_TYPE") == "L"}, true, nil
}

// classify recognises property keys that ClassifyField cannot, such as
// keys starting with "_", by matching the record's PROPERTY values.
func (m *importMapper) classify(name string) FieldRef {
	dep, _ := m.rec.Dependency("PROPERTY")
	if ref, ok := matchProperty(name, dep.Values); ok {
		return ref
	}
	return ClassifyField(name)
}

func (m *importMapper) enum(_ context.Context, value string) (string, error) {
	return m.mapValue("ENUM", value), nil
}

func (m *importMapper) field(ctx context.Context, name string) (customInfo, bool, error) {
	row, ok, err := m.f.sectionField(ctx, m.iblockID, name)
	if err != nil || !ok {
		return customInfo{}, false, err
	}
	return customInfo{enumeration: row.String("USER_TYPE_ID") == userfield.TypeEnumeration}, true, nil
}

func (m *importMapper) fieldEnum(_ context.Context, value string) (string, error) {
	return m.mapValue("FIELDENUM", value), nil
}

func (m *importMapper) mapValue(dep, value string) string {
	d, _ := m.rec.Dependency(dep)
	if id, ok := d.Lookup(value); ok {
		return id.String()
	}
	return value
}
