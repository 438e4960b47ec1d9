package repositories

import (
	"context"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// SettingsRepository persists per-account preferences.
type SettingsRepository interface {
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	UpsertSettings(ctx context.Context, executor SQLExecutor, settings *models.UserSettings) error
}

type settingsRepository struct {
	db SQLExecutor
}

// NewSettingsRepository creates a new instance of SettingsRepository.
func NewSettingsRepository(db SQLExecutor) SettingsRepository {
	return &settingsRepository{db: db}
}

// GetSettings returns ErrNotFound when the account never saved preferences.
func (r *settingsRepository) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings := &models.UserSettings{}
	query := `SELECT user_id, email_notifications, push_notifications, profile_visibility, dark_mode, updated_at
	          FROM user_settings WHERE user_id = $1`
	if err := sqlx.GetContext(ctx, r.db, settings, query, userID); err != nil {
		return nil, mapError(err, "getting settings")
	}
	return settings, nil
}

// UpsertSettings inserts or replaces the preferences row.
func (r *settingsRepository) UpsertSettings(ctx context.Context, executor SQLExecutor, settings *models.UserSettings) error {
	executor = orDB(executor, r.db)
	settings.UpdatedAt = time.Now().UTC()
	query := `INSERT INTO user_settings (user_id, email_notifications, push_notifications, profile_visibility, dark_mode, updated_at)
	          VALUES (:user_id, :email_notifications, :push_notifications, :profile_visibility, :dark_mode, :updated_at)
	          ON CONFLICT (user_id) DO UPDATE SET
	              email_notifications = EXCLUDED.email_notifications,
	              push_notifications = EXCLUDED.push_notifications,
	              profile_visibility = EXCLUDED.profile_visibility,
	              dark_mode = EXCLUDED.dark_mode,
	              updated_at = EXCLUDED.updated_at`
	if _, err := executor.NamedExecContext(ctx, query, settings); err != nil {
		return mapError(err, "upserting settings")
	}
	return nil
}
