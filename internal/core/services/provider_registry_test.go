package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/migrato/internal/core/domain"
)

func TestNewProviderRegistry(t *testing.T) {
	registry := NewProviderRegistry()
	require.NotNil(t, registry)

	kinds, err := registry.Kinds()
	require.NoError(t, err)
	assert.Empty(t, kinds)
}

func TestProviderRegistry_Provider(t *testing.T) {
	f := newFixture()

	p, err := f.registry.Provider(kindBlock)
	require.NoError(t, err)
	assert.Equal(t, kindBlock, p.Kind())

	_, err = f.registry.Provider("nope")
	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
	assert.False(t, f.registry.Has("nope"))
}

func TestProviderRegistry_Register_Duplicate(t *testing.T) {
	log := &callLog{}
	registry := NewProviderRegistry()
	require.NoError(t, registry.Register(newMockProvider("test.a", nil, log)))

	err := registry.Register(newMockProvider("test.a", nil, log))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = registry.Register(newMockProvider("", nil, log))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProviderRegistry_MustRegister_Panics(t *testing.T) {
	log := &callLog{}
	assert.Panics(t, func() {
		NewProviderRegistry().MustRegister(
			newMockProvider("test.a", nil, log),
			newMockProvider("test.a", nil, log),
		)
	})
}

func TestProviderRegistry_Kinds_DependenciesFirst(t *testing.T) {
	f := newFixture()

	kinds, err := f.registry.Kinds()
	require.NoError(t, err)
	assert.Equal(t, []string{kindType, kindBlock, kindFilter}, kinds)
}

func TestProviderRegistry_Kinds_IgnoresSelfReference(t *testing.T) {
	log := &callLog{}
	registry := NewProviderRegistry().MustRegister(
		newMockProvider("test.section", map[string]string{"PARENT": "test.section"}, log),
	)

	kinds, err := registry.Kinds()
	require.NoError(t, err)
	assert.Equal(t, []string{"test.section"}, kinds)
}

func TestProviderRegistry_Kinds_UnregisteredTarget(t *testing.T) {
	log := &callLog{}
	registry := NewProviderRegistry().MustRegister(
		newMockProvider("test.a", map[string]string{"B": "test.b"}, log),
	)

	_, err := registry.Kinds()
	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
}

func TestProviderRegistry_Kinds_Cycle(t *testing.T) {
	log := &callLog{}
	registry := NewProviderRegistry().MustRegister(
		newMockProvider("test.a", map[string]string{"B": "test.b"}, log),
		newMockProvider("test.b", map[string]string{"A": "test.a"}, log),
	)

	_, err := registry.Kinds()
	var cycleErr *domain.CyclicDependencyError
	assert.True(t, errors.As(err, &cycleErr))
}

func TestProviderRegistry_Dependencies(t *testing.T) {
	f := newFixture()

	deps, err := f.registry.Dependencies(kindBlock)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"TYPE": kindType}, deps)

	// the returned map is a copy
	deps["X"] = "y"
	again, _ := f.registry.Dependencies(kindBlock)
	assert.NotContains(t, again, "X")

	_, err = f.registry.Dependencies("nope")
	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
}
