package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/metrics"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"go.opentelemetry.io/otel"
)

// Upload namespaces.
const (
	FolderPaymentScreenshots   = "scis/payment-screenshots"
	FolderPaymentVerifications = "scis/payment-verifications"
	FolderProfilePictures      = "scis/profile-pictures"
)

// membershipValidity is the length of one membership term.
const membershipValidity = 365 * 24 * time.Hour

var tracer = otel.Tracer("github.com/Societyforcis/SCIS-Backend/internal/services")

// ObjectStorage stores an encoded image and returns a stable URL for it.
type ObjectStorage interface {
	Upload(ctx context.Context, payload, folder string) (string, error)
}

// ExternalIdentity is a verified third-party sign-in.
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	Picture       string
}

// ExternalIdentityVerifier checks a third-party credential.
type ExternalIdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*ExternalIdentity, error)
}

// Caller is the authenticated identity an operation runs on behalf of.
// UserID and Email are empty for anonymous callers.
type Caller struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// Authenticated reports whether the caller carries any identity.
func (c Caller) Authenticated() bool {
	return c.UserID != "" || c.Email != ""
}

// actor is the value recorded in approvedBy/verifiedBy fields.
func (c Caller) actor() *string {
	if c.UserID != "" {
		return utils.NewNullString(c.UserID)
	}
	return utils.NewNullString(c.Email)
}

func (c Caller) userRef() *string {
	return utils.NewNullString(c.UserID)
}

// isRemoteURL reports whether an image field already holds a hosted URL.
func isRemoteURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// uploadImage sends payload to storage and records the outcome.
func uploadImage(ctx context.Context, storage ObjectStorage, m *metrics.Registry, payload, folder string) (string, error) {
	if storage == nil {
		if m != nil {
			m.UploadsTotal.WithLabelValues(folder, "failure").Inc()
		}
		return "", ErrStorageNotConfigured
	}
	url, err := storage.Upload(ctx, payload, folder)
	if m != nil {
		m.UploadsTotal.WithLabelValues(folder, metrics.Result(err)).Inc()
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return url, nil
}

// resolveImage keeps hosted URLs and uploads anything else.
func resolveImage(ctx context.Context, storage ObjectStorage, m *metrics.Registry, value, folder string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || isRemoteURL(value) {
		return value, nil
	}
	return uploadImage(ctx, storage, m, value, folder)
}
