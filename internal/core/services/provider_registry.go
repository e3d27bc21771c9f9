package services

import (
	"fmt"
	"maps"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/core/ports/driving"
)

// Ensure ProviderRegistry implements the interfaces.
var (
	_ driving.ProviderRegistry = (*ProviderRegistry)(nil)
	_ driven.ProviderLookup    = (*ProviderRegistry)(nil)
)

// ProviderRegistry holds one provider per entity kind for one run.
// It is built once and passed to the synchronizer and to providers that
// need cross references.
type ProviderRegistry struct {
	providers map[string]driven.Provider
	// registration order, used to break ordering ties
	kinds []string
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]driven.Provider),
	}
}

// Register adds a provider. A kind can only be registered once.
func (r *ProviderRegistry) Register(p driven.Provider) error {
	kind := p.Kind()
	if kind == "" {
		return fmt.Errorf("%w: provider without kind", domain.ErrInvalidInput)
	}
	if _, exists := r.providers[kind]; exists {
		return fmt.Errorf("%w: kind %s registered twice", domain.ErrInvalidInput, kind)
	}
	r.providers[kind] = p
	r.kinds = append(r.kinds, kind)
	return nil
}

// MustRegister registers providers and panics on misconfiguration.
// Intended for wiring code where the set of providers is static.
func (r *ProviderRegistry) MustRegister(providers ...driven.Provider) *ProviderRegistry {
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Provider returns the provider registered for a kind.
func (r *ProviderRegistry) Provider(kind string) (driven.Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedKind, kind)
	}
	return p, nil
}

// Has reports whether a kind is registered.
func (r *ProviderRegistry) Has(kind string) bool {
	_, ok := r.providers[kind]
	return ok
}

// Dependencies returns the declared dependency schema of a kind.
func (r *ProviderRegistry) Dependencies(kind string) (map[string]string, error) {
	p, err := r.Provider(kind)
	if err != nil {
		return nil, err
	}
	return maps.Clone(p.DeclaredDependencies()), nil
}

// Kinds returns every registered kind ordered so that a kind comes after
// every kind it declares a dependency on. Ties keep registration order.
func (r *ProviderRegistry) Kinds() ([]string, error) {
	g := newGraph[string]()
	for _, kind := range r.kinds {
		g.addNode(kind)
	}
	for _, kind := range r.kinds {
		for name, target := range r.providers[kind].DeclaredDependencies() {
			if target == kind {
				continue
			}
			if !r.Has(target) {
				return nil, fmt.Errorf("%s dependency %s: %w: %s",
					kind, name, domain.ErrUnsupportedKind, target)
			}
			g.addEdge(target, kind)
		}
	}

	order, cycle := g.sort()
	if cycle != nil {
		keys := make([]domain.NodeKey, len(cycle))
		for i, k := range cycle {
			keys[i] = domain.NodeKey{Kind: k}
		}
		return nil, &domain.CyclicDependencyError{Cycle: keys}
	}
	return order, nil
}
