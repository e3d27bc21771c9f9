package services

import (
	"fmt"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	baseDir     string
}

// NewSettingsService creates a new settings service.
// baseDir roots the default database and transfer paths.
func NewSettingsService(configStore driven.ConfigStore, baseDir string) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		baseDir:     baseDir,
	}
}

// Get retrieves current settings, defaults filled in.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := s.GetDefaults()

	settings := &domain.Settings{
		DatabasePath: s.getString(domain.SettingDatabasePath, defaults.DatabasePath),
		TransferDir:  s.getString(domain.SettingTransferDir, defaults.TransferDir),
		Prune:        s.getBool(domain.SettingPrune, defaults.Prune),
		MaxFailures:  s.getInt(domain.SettingMaxFailures, defaults.MaxFailures),
		WriteRate:    s.getFloat(domain.SettingWriteRate, defaults.WriteRate),
		WriteBurst:   s.getInt(domain.SettingWriteBurst, defaults.WriteBurst),
		Verbose:      s.getBool(domain.SettingVerbose, defaults.Verbose),
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", s.configStore.Path(), err)
	}
	return settings, nil
}

// Save persists settings.
func (s *SettingsService) Save(settings *domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{domain.SettingDatabasePath, settings.DatabasePath},
		{domain.SettingTransferDir, settings.TransferDir},
		{domain.SettingPrune, settings.Prune},
		{domain.SettingMaxFailures, settings.MaxFailures},
		{domain.SettingWriteRate, settings.WriteRate},
		{domain.SettingWriteBurst, settings.WriteBurst},
		{domain.SettingVerbose, settings.Verbose},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Set updates one setting by key and persists it.
func (s *SettingsService) Set(key string, value any) error {
	switch key {
	case domain.SettingDatabasePath, domain.SettingTransferDir, domain.SettingPrune,
		domain.SettingMaxFailures, domain.SettingWriteRate, domain.SettingWriteBurst,
		domain.SettingVerbose:
	default:
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings(s.baseDir)
}

func (s *SettingsService) getString(key, def string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return def
}

func (s *SettingsService) getBool(key string, def bool) bool {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getInt(key string, def int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, def float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return def
	}
	return s.configStore.GetFloat(key)
}
