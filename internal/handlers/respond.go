package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// maxJSONBody bounds request bodies; screenshots arrive inline as data URIs.
const maxJSONBody = 10 << 20

// bindJSON decodes the request body into dst and writes the error response on failure.
func bindJSON(c *gin.Context, dst interface{}, action string) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody)
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.LogWarn(action+": invalid JSON payload", map[string]interface{}{"error": err.Error()})
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest,
			"Invalid request payload", err.Error()))
		return false
	}
	return true
}

// respondError maps the service error taxonomy onto the API error envelope.
func respondError(c *gin.Context, err error, action string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]utils.FieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, utils.FieldError{Field: f.Field, Message: f.Message})
		}
		utils.RespondValidationFailed(c, fields...)
	case errors.Is(err, services.ErrAccountNotVerified):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeVerifyOTP,
			"Please verify your email. A new code has been sent.", ""))
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, message(err), ""))
	case errors.Is(err, services.ErrConflict):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, message(err), ""))
	case errors.Is(err, services.ErrUnauthorized):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, message(err), ""))
	case errors.Is(err, services.ErrForbidden):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, message(err), ""))
	case errors.Is(err, services.ErrUpload):
		utils.LogError(err, action+": upload failed")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadGateway, utils.ErrCodeUploadFailed,
			"Failed to upload image", err.Error()))
	default:
		utils.LogError(err, action+": unexpected error")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError,
			"Something went wrong, please try again later", err.Error()))
	}
}

// message turns "conflict: a pending application..." into a sentence for clients.
func message(err error) string {
	msg := err.Error()
	for _, prefix := range []string{"conflict: ", "unauthorized: ", "forbidden: "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, name string) (*bool, bool) {
	v, err := utils.ParseOptionalBool(c.Query(name))
	if err != nil {
		utils.RespondValidationFailed(c, utils.FieldError{Field: name, Message: "must be true or false"})
		return nil, false
	}
	return v, true
}
