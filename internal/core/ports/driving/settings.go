package driving

import "github.com/custodia-labs/migrato/internal/core/domain"

// SettingsService reads and writes the saved sync settings.
type SettingsService interface {
	// Get loads the saved settings over the defaults.
	Get() (*domain.Settings, error)

	// Save validates and writes every setting.
	Save(settings *domain.Settings) error

	// Set writes a single key such as domain.SettingPrune.
	Set(key string, value any) error

	// GetDefaults returns the settings used when nothing is saved.
	GetDefaults() domain.Settings
}
