package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	started time.Time
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now()}
}

// Health reports liveness and database reachability.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	data := gin.H{"database": "up", "uptime": time.Since(h.started).Round(time.Second).String()}
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			utils.LogError(err, "Health: database ping failed")
			data["database"] = "down"
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Database unavailable", "data": data})
			return
		}
	}
	utils.RespondSuccess(c, http.StatusOK, "Server is running", data)
}
