// Package urlrewrite provides the URL rewrite rules of each site and the
// reindex operation that rebuilds their order.
package urlrewrite

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/logger"
	"github.com/custodia-labs/migrato/internal/providers/kind"
	"github.com/custodia-labs/migrato/internal/providers/table"
)

// RuleTable holds the rewrite rules.
const RuleTable = "b_urlrewrite"

const (
	defaultSort = 100
	sortStep    = 10
)

var ruleFields = []string{"CONDITION", "RULE", "PATH", "COMPONENT", "SORT"}

// RuleKey is the xmlId schema of rules: SITE_ID.md5(CONDITION).
var RuleKey = domain.VirtualKeyCodec{
	Kind:      kind.URLRewriteRule,
	Delimiter: '.',
	Arity:     2,
}

// Rules is the rewrite rule provider.
type Rules struct {
	live driven.LiveStore
}

var _ driven.Provider = (*Rules)(nil)

// NewRules creates the rewrite rule provider.
func NewRules(live driven.LiveStore) *Rules {
	return &Rules{live: live}
}

// Kind returns the kind identifier.
func (r *Rules) Kind() string {
	return kind.URLRewriteRule
}

// DeclaredDependencies returns no dependencies.
func (r *Rules) DeclaredDependencies() map[string]string {
	return map[string]string{}
}

// ParseID converts a rule ID.
func (r *Rules) ParseID(v any) (domain.RecordID, error) {
	return table.ParseID(v, false)
}

// List reads every rule.
func (r *Rules) List(ctx context.Context, filter driven.ListFilter) ([]domain.Record, error) {
	rows, err := r.live.Select(ctx, RuleTable, nil)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", RuleTable, err)
	}

	var records []domain.Record
	for _, row := range rows {
		xmlID, err := ruleKey(row)
		if err != nil {
			logger.Warn("%s: skipping rule %s: %v", r.Kind(), row.String("ID"), err)
			continue
		}
		if !filter.Matches(xmlID) {
			continue
		}
		id, err := r.ParseID(row["ID"])
		if err != nil {
			return nil, err
		}
		rec := domain.NewRecord(r.Kind(), xmlID)
		rec.SetID(id)
		for _, f := range ruleFields {
			if v, ok := row[f]; ok {
				rec.SetField(f, v)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// FindByXMLID searches the site's rules for the condition hash.
func (r *Rules) FindByXMLID(ctx context.Context, xmlID string) (domain.RecordID, bool, error) {
	parts, err := RuleKey.Decode(xmlID)
	if err != nil {
		return domain.RecordID{}, false, err
	}
	rows, err := r.live.Select(ctx, RuleTable, driven.Row{"SITE_ID": parts[0]})
	if err != nil {
		return domain.RecordID{}, false, fmt.Errorf("select %s: %w", RuleTable, err)
	}
	for _, row := range rows {
		if conditionHash(row.String("CONDITION")) == parts[1] {
			id, err := r.ParseID(row["ID"])
			return id, err == nil, err
		}
	}
	return domain.RecordID{}, false, nil
}

// XMLIDOf returns the key of a rule, or "" when absent.
func (r *Rules) XMLIDOf(ctx context.Context, id domain.RecordID) (string, error) {
	rows, err := r.live.Select(ctx, RuleTable, driven.Row{"ID": id.Value()})
	if err != nil {
		return "", fmt.Errorf("select %s: %w", RuleTable, err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return ruleKey(rows[0])
}

// Create inserts a rule.
func (r *Rules) Create(ctx context.Context, rec domain.Record) (domain.RecordID, error) {
	row, err := r.toRow(rec)
	if err != nil {
		return domain.RecordID{}, r.persistence(rec.XMLID, err)
	}
	raw, err := r.live.Insert(ctx, RuleTable, row)
	if err != nil {
		return domain.RecordID{}, r.persistence(rec.XMLID, err)
	}
	id, err := r.ParseID(raw)
	if err != nil {
		return domain.RecordID{}, r.persistence(rec.XMLID, err)
	}
	return id, nil
}

// Update rewrites the rule rec.ID.
func (r *Rules) Update(ctx context.Context, rec domain.Record) error {
	if rec.LiveID().IsZero() {
		return r.persistence(rec.XMLID, errors.New("record has no live id"))
	}
	row, err := r.toRow(rec)
	if err != nil {
		return r.persistence(rec.XMLID, err)
	}
	if err := r.live.Update(ctx, RuleTable, rec.LiveID().Value(), row); err != nil {
		return r.persistence(rec.XMLID, err)
	}
	return nil
}

// Delete removes a rule.
func (r *Rules) Delete(ctx context.Context, id domain.RecordID) error {
	err := r.live.Delete(ctx, RuleTable, id.Value())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return &domain.NotFoundError{Kind: r.Kind(), ID: id}
	default:
		return r.persistence("", err)
	}
}

// Reindex renumbers the rules of every site: SORT ascending, then longer
// conditions first. It returns the number of rules reindexed.
func (r *Rules) Reindex(ctx context.Context) (int, error) {
	rows, err := r.live.Select(ctx, RuleTable, nil)
	if err != nil {
		return 0, fmt.Errorf("select %s: %w", RuleTable, err)
	}

	bySite := make(map[string][]driven.Row)
	var sites []string
	for _, row := range rows {
		site := row.String("SITE_ID")
		if _, ok := bySite[site]; !ok {
			sites = append(sites, site)
		}
		bySite[site] = append(bySite[site], row)
	}
	sort.Strings(sites)

	count := 0
	for _, site := range sites {
		rules := bySite[site]
		sort.SliceStable(rules, func(i, j int) bool {
			si, sj := ruleSort(rules[i]), ruleSort(rules[j])
			if si != sj {
				return si < sj
			}
			return len(rules[i].String("CONDITION")) > len(rules[j].String("CONDITION"))
		})
		for i, row := range rules {
			want := int64((i + 1) * sortStep)
			if ruleSort(row) != want {
				if err := r.live.Update(ctx, RuleTable, row["ID"], driven.Row{"SORT": want}); err != nil {
					return count, fmt.Errorf("reindex %s rule %s: %w", site, row.String("ID"), err)
				}
			}
			count++
		}
		logger.Debug("%s: reindexed %d rules of site %s", r.Kind(), len(rules), site)
	}
	return count, nil
}

func (r *Rules) toRow(rec domain.Record) (driven.Row, error) {
	parts, err := RuleKey.Decode(rec.XMLID)
	if err != nil {
		return nil, err
	}
	condition := rec.FieldString("CONDITION")
	if condition == "" {
		return nil, errors.New("field CONDITION is required")
	}
	if conditionHash(condition) != parts[1] {
		return nil, &domain.MalformedKeyError{Kind: r.Kind(), Key: rec.XMLID, Reason: "hash does not match CONDITION"}
	}

	row := driven.Row{"SITE_ID": parts[0]}
	for _, f := range ruleFields {
		if v, ok := rec.Fields[f]; ok {
			row[f] = v
		}
	}
	return row, nil
}

func (r *Rules) persistence(xmlID string, err error) error {
	return &domain.PersistenceError{Kind: r.Kind(), XMLID: xmlID, Err: err}
}

func ruleKey(row driven.Row) (string, error) {
	return RuleKey.Encode([]string{row.String("SITE_ID"), conditionHash(row.String("CONDITION"))})
}

func ruleSort(row driven.Row) int64 {
	if n, ok := row.Int64("SORT"); ok {
		return n
	}
	return defaultSort
}

func conditionHash(condition string) string {
	sum := md5.Sum([]byte(condition))
	return hex.EncodeToString(sum[:])
}
