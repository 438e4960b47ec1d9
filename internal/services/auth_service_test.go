package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerAccount(t *testing.T, svc *authService, email string) *models.Account {
	t.Helper()
	account, err := svc.Register(context.Background(), SigninRequest{
		FirstName: "Alan", LastName: "Turing", Email: email, Password: "enigma-42",
	})
	require.NoError(t, err)
	return account
}

func TestRegisterSendsVerificationCode(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(nil)

	account := registerAccount(t, svc, "Alan@Example.com")
	env.dispatcher.Wait()

	assert.Equal(t, "alan@example.com", account.Email)
	assert.False(t, account.IsVerified)
	assert.False(t, account.IsAdmin)
	assert.NotEqual(t, "enigma-42", account.PasswordHash)

	mails := env.sender.to("alan@example.com")
	require.Len(t, mails, 1)
	assert.Contains(t, mails[0].Text, "123456")
	assert.Equal(t, "Verify your email address", mails[0].Subject)
}

func TestRegisterRefreshesUnverifiedAccount(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(nil)
	first := registerAccount(t, svc, "again@example.com")

	second, err := svc.Register(context.Background(), SigninRequest{
		FirstName: "Alan", LastName: "Turing", Email: "again@example.com", Password: "another-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, env.store.accounts, 1)
}

func TestRegisterRejectsVerifiedEmail(t *testing.T) {
	env := newTestEnv(t)
	env.addAccount("taken@example.com", false)

	_, err := env.authService(nil).Register(context.Background(), SigninRequest{
		FirstName: "A", LastName: "B", Email: "taken@example.com", Password: "secret-1",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRegisterPrimaryAdminIsAdmin(t *testing.T) {
	env := newTestEnv(t)
	account := registerAccount(t, env.authService(nil), DefaultPrimaryAdminEmail)
	assert.True(t, account.IsAdmin)
}

func TestVerifyAccountIssuesSession(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(nil)
	registerAccount(t, svc, "verify@example.com")

	_, err := svc.VerifyAccount(context.Background(), VerifyOTPRequest{Email: "verify@example.com", OTP: "000000"})
	assert.ErrorIs(t, err, ErrInvalidOTP)

	resp, err := svc.VerifyAccount(context.Background(), VerifyOTPRequest{Email: "verify@example.com", OTP: "123456"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.User.IsVerified)
	assert.Empty(t, resp.User.OTPCode)

	account, err := svc.Authenticate(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, account.ID)

	_, err = svc.VerifyAccount(context.Background(), VerifyOTPRequest{Email: "verify@example.com", OTP: "123456"})
	assert.ErrorIs(t, err, ErrAccountAlreadyVerified)
}

func TestVerifyAccountRejectsExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(nil)
	registerAccount(t, svc, "late@example.com")

	svc.now = func() time.Time { return testNow.Add(otpTTL + time.Second) }
	_, err := svc.VerifyAccount(context.Background(), VerifyOTPRequest{Email: "late@example.com", OTP: "123456"})
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(nil)
	registerAccount(t, svc, "login@example.com")

	_, err := svc.Login(context.Background(), LoginRequest{Email: "login@example.com", Password: "enigma-42"})
	assert.ErrorIs(t, err, ErrAccountNotVerified)

	_, err = svc.VerifyAccount(context.Background(), VerifyOTPRequest{Email: "login@example.com", OTP: "123456"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "login@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "enigma-42"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "LOGIN@example.com", Password: "enigma-42"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(nil)
	registerAccount(t, svc, "reset@example.com")
	svc.newOTP = func() (string, error) { return "654321", nil }

	require.NoError(t, svc.ForgotPassword(context.Background(), EmailRequest{Email: "reset@example.com"}))

	err := svc.ResetPassword(context.Background(), ResetPasswordRequest{Email: "reset@example.com", OTP: "654321", NewPassword: "brand-new"})
	assert.ErrorIs(t, err, ErrInvalidOTP, "reset requires the code to be verified first")

	_, err = svc.VerifyAccount(context.Background(), VerifyOTPRequest{Email: "reset@example.com", OTP: "654321"})
	assert.ErrorIs(t, err, ErrInvalidOTP, "a reset code does not verify the account")

	require.NoError(t, svc.VerifyResetOTP(context.Background(), VerifyOTPRequest{Email: "reset@example.com", OTP: "654321"}))
	require.NoError(t, svc.ResetPassword(context.Background(), ResetPasswordRequest{Email: "reset@example.com", OTP: "654321", NewPassword: "brand-new"}))

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "reset@example.com", Password: "brand-new"})
	require.NoError(t, err)
	assert.True(t, resp.User.IsVerified)

	err = svc.ResetPassword(context.Background(), ResetPasswordRequest{Email: "reset@example.com", OTP: "654321", NewPassword: "again-new"})
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	err := env.authService(nil).ForgotPassword(context.Background(), EmailRequest{Email: "nobody@example.com"})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGoogleLoginWithoutVerifier(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(nil)
	svc.cfg.AllowUnverifiedGoogle = true

	_, err := svc.GoogleLogin(context.Background(), GoogleLoginRequest{Email: "g@example.com"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	resp, err := svc.GoogleLogin(context.Background(), GoogleLoginRequest{Email: "G@example.com", GoogleID: "sub-1", FirstName: "Gee"})
	require.NoError(t, err)
	assert.True(t, resp.User.IsVerified)
	assert.Equal(t, "g@example.com", resp.User.Email)

	again, err := svc.GoogleLogin(context.Background(), GoogleLoginRequest{Email: "g@example.com", GoogleID: "sub-1"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, again.User.ID)
}

func TestGoogleLoginWithoutVerifierRefusedOutsideDevelopment(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(nil)
	admin := registerAccount(t, svc, DefaultPrimaryAdminEmail)

	resp, err := svc.GoogleLogin(context.Background(), GoogleLoginRequest{Email: DefaultPrimaryAdminEmail, GoogleID: "attacker"})
	assert.ErrorIs(t, err, ErrExternalIdentityInvalid)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, resp)

	stored, err := env.store.GetAccountByID(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.GoogleID)
}

func TestGoogleLoginNeverRelinksAnotherSubject(t *testing.T) {
	env := newTestEnv(t)
	google := &fakeGoogle{identity: &ExternalIdentity{Subject: "google-1", Email: "owner@example.com", EmailVerified: true}}
	svc := env.authService(google)
	registerAccount(t, svc, "owner@example.com")

	first, err := svc.GoogleLogin(context.Background(), GoogleLoginRequest{Credential: "valid-credential"})
	require.NoError(t, err)

	google.identity = &ExternalIdentity{Subject: "google-2", Email: "owner@example.com", EmailVerified: true}
	resp, err := svc.GoogleLogin(context.Background(), GoogleLoginRequest{Credential: "valid-credential"})
	assert.ErrorIs(t, err, ErrGoogleAccountMismatch)
	assert.Nil(t, resp)

	stored, err := env.store.GetAccountByID(context.Background(), first.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.GoogleID)
	assert.Equal(t, "google-1", *stored.GoogleID)
}

func TestGoogleLoginLinksExistingAccount(t *testing.T) {
	env := newTestEnv(t)
	google := &fakeGoogle{identity: &ExternalIdentity{
		Subject: "google-42", Email: "Link@Example.com", EmailVerified: true, Picture: "https://img.test/p.png",
	}}
	svc := env.authService(google)
	existing := registerAccount(t, svc, "link@example.com")

	_, err := svc.GoogleLogin(context.Background(), GoogleLoginRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.GoogleLogin(context.Background(), GoogleLoginRequest{Credential: "forged"})
	assert.ErrorIs(t, err, ErrExternalIdentityInvalid)

	resp, err := svc.GoogleLogin(context.Background(), GoogleLoginRequest{Credential: "valid-credential"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, resp.User.ID)
	assert.True(t, resp.User.IsVerified)
	assert.Equal(t, "https://img.test/p.png", resp.User.ProfilePicture)
	require.NotNil(t, resp.User.GoogleID)
	assert.Equal(t, "google-42", *resp.User.GoogleID)
}

func TestGoogleLoginRejectsUnverifiedEmail(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(&fakeGoogle{identity: &ExternalIdentity{Subject: "s", Email: "x@example.com"}})

	_, err := svc.GoogleLogin(context.Background(), GoogleLoginRequest{Credential: "valid-credential"})
	assert.ErrorIs(t, err, ErrExternalIdentityInvalid)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(nil)

	_, err := svc.Authenticate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	token, err := svc.tokens.Generate(newID(), "gone@example.com", false)
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	svc := env.authService(nil)
	id := env.addAccount("profile@example.com", false)

	name, bio, picture := " Ada ", "Mathematician", "data:image/png;base64,iVBORw0KGgo="
	updated, err := svc.UpdateProfile(context.Background(), id, UpdateProfileRequest{FirstName: &name, Bio: &bio, ProfilePicture: &picture})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "Mathematician", updated.Bio)
	assert.Equal(t, "https://cdn.test/scis/profile-pictures/1.png", updated.ProfilePicture)

	env.storage.err = errors.New("offline")
	_, err = svc.UpdateProfile(context.Background(), id, UpdateProfileRequest{ProfilePicture: &picture})
	assert.ErrorIs(t, err, ErrUpload)

	hosted := "https://elsewhere.test/me.png"
	updated, err = svc.UpdateProfile(context.Background(), id, UpdateProfileRequest{ProfilePicture: &hosted})
	require.NoError(t, err)
	assert.Equal(t, hosted, updated.ProfilePicture)

	_, err = svc.GetProfile(context.Background(), newID())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
