package driving

import "github.com/custodia-labs/brief-cli/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.Settings, error)

	// Set stores a single setting by its configuration key.
	Set(key string, value any) error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings
}
