package services

import (
	"context"
	"errors"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/cache"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/repositories"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"
)

const emailPreferenceTTL = 10 * time.Minute

// UpdateSettingsRequest holds preference changes. Nil fields are left unchanged.
type UpdateSettingsRequest struct {
	EmailNotifications *bool   `json:"emailNotifications"`
	PushNotifications  *bool   `json:"pushNotifications"`
	ProfileVisibility  *string `json:"profileVisibility" validate:"omitempty,oneof=public members private"`
	DarkMode           *bool   `json:"darkMode"`
}

// SettingsService manages per-account preferences.
type SettingsService interface {
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	UpdateSettings(ctx context.Context, userID string, req UpdateSettingsRequest) (*models.UserSettings, error)
	// EmailEnabled reports the email-notification preference, cached.
	EmailEnabled(ctx context.Context, userID string) (bool, error)
}

type settingsService struct {
	settingsRepo repositories.SettingsRepository
	cache        cache.Cache
}

// NewSettingsService creates a SettingsService. c may be nil to disable caching.
func NewSettingsService(sr repositories.SettingsRepository, c cache.Cache) SettingsService {
	return &settingsService{settingsRepo: sr, cache: c}
}

func emailPreferenceKey(userID string) string { return "email-pref:" + userID }

func (s *settingsService) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings, err := s.settingsRepo.GetSettings(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		defaults := models.DefaultUserSettings(userID)
		return &defaults, nil
	}
	if err != nil {
		return nil, internalError("getting settings", err)
	}
	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, userID string, req UpdateSettingsRequest) (*models.UserSettings, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.EmailNotifications != nil {
		settings.EmailNotifications = *req.EmailNotifications
	}
	if req.PushNotifications != nil {
		settings.PushNotifications = *req.PushNotifications
	}
	if req.ProfileVisibility != nil {
		settings.ProfileVisibility = *req.ProfileVisibility
	}
	if req.DarkMode != nil {
		settings.DarkMode = *req.DarkMode
	}

	if err := s.settingsRepo.UpsertSettings(ctx, nil, settings); err != nil {
		return nil, internalError("saving settings", err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, emailPreferenceKey(userID)); err != nil {
			utils.LogWarn("SettingsService: cache invalidation failed", map[string]interface{}{"user_id": userID, "error": err.Error()})
		}
	}
	return settings, nil
}

func (s *settingsService) EmailEnabled(ctx context.Context, userID string) (bool, error) {
	key := emailPreferenceKey(userID)
	if s.cache != nil {
		var enabled bool
		found, err := s.cache.Get(ctx, key, &enabled)
		if err == nil && found {
			return enabled, nil
		}
		if err != nil {
			utils.LogWarn("SettingsService: cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, settings.EmailNotifications, emailPreferenceTTL); err != nil {
			utils.LogWarn("SettingsService: cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return settings.EmailNotifications, nil
}
