package driven

import (
	"context"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

// SettingsStore provides per-user settings.
type SettingsStore interface {
	// UserSettings returns the settings of an account.
	// An account without settings yields empty settings, not an error.
	UserSettings(ctx context.Context, accountID string) (domain.Settings, error)

	// SaveUserSetting stores a single setting.
	SaveUserSetting(ctx context.Context, accountID, name, value string) error
}
