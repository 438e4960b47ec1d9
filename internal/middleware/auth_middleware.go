package middleware

import (
	"net/http"
	"strings"

	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middlewares.
const (
	ContextUserID  = "userID"
	ContextEmail   = "email"
	ContextIsAdmin = "isAdmin"
)

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func authenticate(c *gin.Context, auth services.AuthService, token string) bool {
	account, err := auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		return false
	}
	c.Set(ContextUserID, account.ID)
	c.Set(ContextEmail, account.Email)
	c.Set(ContextIsAdmin, account.IsAdmin)
	return true
}

// AuthMiddleware requires a valid access token for a still existing account.
func AuthMiddleware(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized,
				"Authorization header required. Use Bearer <token>", ""))
			return
		}
		if !authenticate(c, auth, token) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized,
				"Invalid or expired token", ""))
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the caller identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			authenticate(c, auth, token)
		}
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware. It checks the stored admin flag.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextIsAdmin) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden,
				"Administrator access required", ""))
			return
		}
		c.Next()
	}
}

// CallerFrom returns the identity attached by the auth middlewares.
func CallerFrom(c *gin.Context) services.Caller {
	return services.Caller{
		UserID:  c.GetString(ContextUserID),
		Email:   c.GetString(ContextEmail),
		IsAdmin: c.GetBool(ContextIsAdmin),
	}
}
