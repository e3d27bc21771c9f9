package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driving"
	"github.com/custodia-labs/migrato/internal/logger"
)

// Ensure Validator implements the interface.
var _ driving.Validator = (*Validator)(nil)

// Validator exports every kind and checks the records for consistency:
// every record has an xmlId, xmlIds are unique per kind, dependencies
// match the declared schema and every referenced xmlId resolves either
// inside the export or live.
type Validator struct {
	registry *ProviderRegistry
	sync     *Synchronizer
}

// NewValidator creates a validator over a provider registry.
func NewValidator(registry *ProviderRegistry) *Validator {
	return &Validator{
		registry: registry,
		sync:     NewSynchronizer(registry),
	}
}

// Validate runs the validation pass.
func (v *Validator) Validate(ctx context.Context) (*driving.ValidationReport, error) {
	records, err := v.sync.Export(ctx, driving.ExportOptions{})
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	logger.Section("Validate")
	report := &driving.ValidationReport{Checked: len(records)}
	issue := func(key domain.NodeKey, dep, msg string, args ...any) {
		report.Issues = append(report.Issues, driving.ValidationIssue{
			Key:        key,
			Dependency: dep,
			Message:    fmt.Sprintf(msg, args...),
		})
	}

	exported := make(map[domain.NodeKey]int, len(records))
	for _, rec := range records {
		key := rec.Key()
		if rec.XMLID == "" {
			issue(key, "", "empty xml id (live id %s)", rec.LiveID())
			continue
		}
		exported[key]++
		if exported[key] == 2 {
			issue(key, "", "xml id is not unique")
		}
	}

	for _, rec := range records {
		key := rec.Key()
		declared, err := v.registry.Dependencies(rec.Kind)
		if err != nil {
			return nil, err
		}
		for _, name := range sortedDependencyNames(rec) {
			dep := rec.Dependencies[name]
			if want, ok := declared[name]; !ok {
				issue(key, name, "undeclared dependency")
			} else if want != dep.Kind {
				issue(key, name, "dependency targets %s, declared %s", dep.Kind, want)
			}

			target, err := v.registry.Provider(dep.Kind)
			if err != nil {
				issue(key, name, "%v", err)
				continue
			}
			for _, value := range dep.Values {
				if value == "" {
					issue(key, name, "empty reference")
					continue
				}
				if exported[domain.NodeKey{Kind: dep.Kind, XMLID: value}] > 0 {
					continue
				}
				_, found, err := target.FindByXMLID(ctx, value)
				switch {
				case err != nil:
					issue(key, name, "resolve %q: %v", value, err)
				case !found:
					issue(key, name, "unresolved reference %s:%s", dep.Kind, value)
				}
			}
		}
	}

	logger.Info("Validated %d records, %d issues", report.Checked, len(report.Issues))
	return report, nil
}
