// Package providers wires every entity kind into a provider registry.
package providers

import (
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/core/services"
	"github.com/custodia-labs/migrato/internal/providers/iblock"
	"github.com/custodia-labs/migrato/internal/providers/perfmon"
	"github.com/custodia-labs/migrato/internal/providers/urlrewrite"
	"github.com/custodia-labs/migrato/internal/providers/userfield"
)

// NewRegistry returns a registry holding a fresh provider of every kind,
// all reading and writing live. Providers memoize lookups, so build one
// registry per pass.
func NewRegistry(live driven.LiveStore) (*services.ProviderRegistry, error) {
	registry := services.NewProviderRegistry()
	for _, p := range []driven.Provider{
		iblock.NewType(live, registry),
		iblock.NewIblock(live, registry),
		iblock.NewProperty(live, registry),
		iblock.NewEnum(live, registry),
		userfield.NewField(live, registry),
		userfield.NewEnum(live, registry),
		iblock.NewElementFilter(live, registry),
		perfmon.NewIndex(live, registry),
		urlrewrite.NewRules(live),
	} {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
