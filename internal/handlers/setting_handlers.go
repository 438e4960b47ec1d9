package handlers

import (
	"net/http"

	"github.com/Societyforcis/SCIS-Backend/internal/middleware"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// SettingsHandler serves per-user preferences.
type SettingsHandler struct {
	settingsService services.SettingsService
}

func NewSettingsHandler(ss services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: ss}
}

// GetSettings returns the caller's settings, or the defaults when none were saved.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.GetSettings(c.Request.Context(), middleware.CallerFrom(c).UserID)
	if err != nil {
		respondError(c, err, "GetSettings")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Settings retrieved", settings)
}

func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req services.UpdateSettingsRequest
	if !bindJSON(c, &req, "UpdateSettings") {
		return
	}

	settings, err := h.settingsService.UpdateSettings(c.Request.Context(), middleware.CallerFrom(c).UserID, req)
	if err != nil {
		respondError(c, err, "UpdateSettings")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Settings updated successfully", settings)
}
