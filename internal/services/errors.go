package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Societyforcis/SCIS-Backend/internal/repositories"
)

// Error categories. Every error returned by a service either wraps one of
// these or is a *ValidationError.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUpload       = errors.New("upload failed")
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// --- Specific service errors ---
var (
	ErrAccountNotFound      = fmt.Errorf("account %w", ErrNotFound)
	ErrBookingNotFound      = fmt.Errorf("booking %w", ErrNotFound)
	ErrMembershipNotFound   = fmt.Errorf("membership %w", ErrNotFound)
	ErrVerificationNotFound = fmt.Errorf("payment verification %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)
	ErrSubscriberNotFound   = fmt.Errorf("subscriber %w", ErrNotFound)

	ErrPendingBookingExists    = fmt.Errorf("%w: a pending membership application already exists for this email", ErrConflict)
	ErrActiveMembershipExists  = fmt.Errorf("%w: an active membership already exists for this email", ErrConflict)
	ErrBookingAlreadyApproved  = fmt.Errorf("%w: booking is already approved", ErrConflict)
	ErrBookingAlreadyRejected  = fmt.Errorf("%w: booking is already rejected", ErrConflict)
	ErrVerificationExists      = fmt.Errorf("%w: a payment verification is already pending or approved for this membership", ErrConflict)
	ErrVerificationDecided     = fmt.Errorf("%w: payment verification has already been decided", ErrConflict)
	ErrSameMembershipType      = fmt.Errorf("%w: membership already has the requested type", ErrConflict)
	ErrEmailExists             = fmt.Errorf("%w: an account with this email already exists", ErrConflict)
	ErrAlreadySubscribed       = fmt.Errorf("%w: email is already subscribed", ErrConflict)
	ErrAccountAlreadyVerified  = fmt.Errorf("%w: account is already verified", ErrConflict)
	ErrMembershipIDExhausted   = fmt.Errorf("%w: could not allocate a unique membership id", ErrInternal)
	ErrStorageNotConfigured    = fmt.Errorf("%w: object storage is not configured", ErrUpload)
	ErrInvalidCredentials      = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrInvalidOTP              = fmt.Errorf("%w: invalid or expired code", ErrUnauthorized)
	ErrExternalIdentityInvalid = fmt.Errorf("%w: external identity could not be verified", ErrUnauthorized)
	ErrGoogleAccountMismatch   = fmt.Errorf("%w: account is linked to a different Google identity", ErrUnauthorized)
	ErrPrimaryAdminProtected   = fmt.Errorf("%w: the primary administrator cannot be modified this way", ErrForbidden)
	ErrNotMembershipOwner      = fmt.Errorf("%w: membership belongs to another account", ErrForbidden)
)

// ErrAccountNotVerified is returned by login for unverified accounts; a fresh
// code has already been sent when it is returned.
var ErrAccountNotVerified = fmt.Errorf("%w: account email is not verified", ErrForbidden)

// FieldError names one failing input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failing field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a failing field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// newValidationError builds a ValidationError for a single field.
func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// internalError wraps an unexpected failure from a collaborator or the database.
func internalError(action string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, action, err)
}

// lookupError maps a repository read failure to notFound or an internal error.
func lookupError(err error, notFound error, action string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound
	}
	return internalError(action, err)
}
