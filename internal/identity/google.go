package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Societyforcis/SCIS-Backend/internal/services"

	"google.golang.org/api/idtoken"
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleVerifier checks Google Sign-In ID tokens issued for one OAuth client.
type GoogleVerifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

var _ services.ExternalIdentityVerifier = (*GoogleVerifier)(nil)

// NewGoogleVerifier returns a verifier for clientID.
func NewGoogleVerifier(clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}, nil
}

// Verify validates the credential signature, audience and expiry and extracts the identity.
func (g *GoogleVerifier) Verify(ctx context.Context, credential string) (*services.ExternalIdentity, error) {
	payload, err := g.validate(ctx, credential, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("validating google id token: %w", err)
	}
	if !googleIssuers[payload.Issuer] {
		return nil, fmt.Errorf("unexpected token issuer %q", payload.Issuer)
	}

	id := &services.ExternalIdentity{
		Subject:       payload.Subject,
		Email:         claimString(payload.Claims, "email"),
		EmailVerified: claimBool(payload.Claims, "email_verified"),
		FirstName:     claimString(payload.Claims, "given_name"),
		LastName:      claimString(payload.Claims, "family_name"),
		Picture:       claimString(payload.Claims, "picture"),
	}
	if id.Subject == "" || id.Email == "" {
		return nil, errors.New("google id token is missing subject or email")
	}
	return id, nil
}

func claimString(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

// email_verified arrives as a bool, older tokens used the string "true".
func claimBool(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
