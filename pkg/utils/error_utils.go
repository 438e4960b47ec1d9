package utils

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// FieldError names one failing input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Standardized APIError response
type APIError struct {
	StatusCode int          `json:"-"`              // HTTP status code, not included in JSON response body for error itself
	Code       string       `json:"code,omitempty"` // Application-specific error code
	Message    string       `json:"message"`
	Details    string       `json:"details,omitempty"`
	Fields     []FieldError `json:"fields,omitempty"`
}

// NewAPIError creates a new APIError instance
func NewAPIError(statusCode int, code string, message string, details string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Details:    details,
	}
}

// WithFields attaches per-field validation failures.
func (e *APIError) WithFields(fields []FieldError) *APIError {
	e.Fields = fields
	return e
}

var developmentMode atomic.Bool

// SetDevelopmentMode controls whether error details reach API clients.
func SetDevelopmentMode(enabled bool) {
	developmentMode.Store(enabled)
}

// IsDevelopmentMode reports the current detail policy.
func IsDevelopmentMode() bool {
	return developmentMode.Load()
}

// RespondWithError sends a standardized JSON error response
func RespondWithError(c *gin.Context, err *APIError) {
	body := *err
	if !IsDevelopmentMode() && body.StatusCode >= http.StatusInternalServerError {
		body.Details = ""
	}
	c.JSON(err.StatusCode, gin.H{"success": false, "message": body.Message, "error": body})
	c.Abort() // Abort further processing if it's a middleware or critical error
}

// RespondSuccess sends the success envelope with an optional payload.
func RespondSuccess(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// Common Error Constants
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeInternalServerError = "INTERNAL_SERVER_ERROR"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeUploadFailed        = "UPLOAD_FAILED"
	ErrCodeVerifyOTP           = "VERIFY_OTP"
	ErrCodeTooManyRequests     = "TOO_MANY_REQUESTS"
)

// RespondValidationFailed reports failing input fields with a 400.
func RespondValidationFailed(c *gin.Context, fields ...FieldError) {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	RespondWithError(c, NewAPIError(http.StatusBadRequest, ErrCodeValidationFailed,
		"Validation failed: "+strings.Join(names, ", "), "").WithFields(fields))
}
