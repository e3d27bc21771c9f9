package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/migrato/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/migrato/internal/core/domain"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), "/home/u/.migrato")

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/home/u/.migrato", "data", "site.db"), settings.DatabasePath)
	assert.Equal(t, filepath.Join("/home/u/.migrato", "transfer"), settings.TransferDir)
	assert.False(t, settings.Prune)
	assert.Zero(t, settings.MaxFailures)
	assert.Equal(t, 1, settings.WriteBurst)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set(domain.SettingDatabasePath, "/srv/site.db")
	_ = store.Set(domain.SettingPrune, true)
	_ = store.Set(domain.SettingMaxFailures, 3)
	_ = store.Set(domain.SettingWriteRate, 10.0)
	_ = store.Set(domain.SettingWriteBurst, 5)
	_ = store.Set(domain.SettingVerbose, true)

	settings, err := NewSettingsService(store, "/base").Get()
	require.NoError(t, err)

	assert.Equal(t, "/srv/site.db", settings.DatabasePath)
	assert.Equal(t, filepath.Join("/base", "transfer"), settings.TransferDir)
	assert.True(t, settings.Prune)
	assert.Equal(t, 3, settings.MaxFailures)
	assert.InDelta(t, 10.0, settings.WriteRate, 0.0001)
	assert.Equal(t, 5, settings.WriteBurst)
	assert.True(t, settings.Verbose)
}

func TestSettingsService_Get_InvalidStoredValue(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set(domain.SettingMaxFailures, -1)

	_, err := NewSettingsService(store, "/base").Get()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsService_Save_RoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, "/base")

	want := service.GetDefaults()
	want.Prune = true
	want.MaxFailures = 7
	want.WriteRate = 0.5
	want.WriteBurst = 2

	require.NoError(t, service.Save(&want))

	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestSettingsService_Save_RejectsInvalid(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, "/base")

	bad := service.GetDefaults()
	bad.TransferDir = ""

	assert.ErrorIs(t, service.Save(&bad), domain.ErrInvalidInput)
	_, ok := store.Get(domain.SettingPrune)
	assert.False(t, ok)
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, "/base")

	require.NoError(t, service.Set(domain.SettingPrune, true))
	assert.True(t, store.GetBool(domain.SettingPrune))

	err := service.Set("search.mode", "hybrid")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
