package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/metrics"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/repositories"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"
)

const otpTTL = 30 * time.Minute

// DefaultPrimaryAdminEmail is the account that is always an administrator.
const DefaultPrimaryAdminEmail = "societyforcis.org@gmail.com"

// --- Data Transfer Objects (DTOs) ---

// SigninRequest DTO
type SigninRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest DTO
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// EmailRequest DTO
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyOTPRequest DTO
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// ResetPasswordRequest DTO
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// GoogleLoginRequest DTO. Credential is the Google ID token; Email and
// GoogleID are accepted only when no Google client is configured.
type GoogleLoginRequest struct {
	Credential string `json:"credential"`
	Email      string `json:"email" validate:"omitempty,email"`
	GoogleID   string `json:"googleId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Picture    string `json:"picture"`
}

// UpdateProfileRequest DTO. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName      *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName       *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Phone          *string `json:"phone" validate:"omitempty,max=30"`
	Address        *string `json:"address" validate:"omitempty,max=500"`
	Bio            *string `json:"bio" validate:"omitempty,max=2000"`
	ProfilePicture *string `json:"profilePicture"`
}

// AuthResponse DTO
type AuthResponse struct {
	Token string          `json:"token"`
	User  *models.Account `json:"user"`
}

// AuthConfig holds account policy settings.
type AuthConfig struct {
	PrimaryAdminEmail string
	// AllowUnverifiedGoogle accepts a client-supplied email and googleId when
	// no verifier is configured. Only for local development.
	AllowUnverifiedGoogle bool
}

// --- AuthService Interface ---
type AuthService interface {
	Register(ctx context.Context, req SigninRequest) (*models.Account, error)
	VerifyAccount(ctx context.Context, req VerifyOTPRequest) (*AuthResponse, error)
	ResendOTP(ctx context.Context, req EmailRequest) error
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	ForgotPassword(ctx context.Context, req EmailRequest) error
	VerifyResetOTP(ctx context.Context, req VerifyOTPRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	GoogleLogin(ctx context.Context, req GoogleLoginRequest) (*AuthResponse, error)
	Authenticate(ctx context.Context, token string) (*models.Account, error)
	GetProfile(ctx context.Context, userID string) (*models.Account, error)
	UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.Account, error)
}

// --- authService Implementation ---
type authService struct {
	accountRepo repositories.AccountRepository
	tokens      *utils.TokenManager
	google      ExternalIdentityVerifier
	storage     ObjectStorage
	mail        *MailService
	dispatcher  *Dispatcher
	metrics     *metrics.Registry
	cfg         AuthConfig
	now         func() time.Time
	newOTP      func() (string, error)
}

// NewAuthService creates a new instance of AuthService. google may be nil when
// Google sign-in is not configured.
func NewAuthService(
	ar repositories.AccountRepository,
	tokens *utils.TokenManager,
	google ExternalIdentityVerifier,
	storage ObjectStorage,
	mail *MailService,
	dispatcher *Dispatcher,
	m *metrics.Registry,
	cfg AuthConfig,
) AuthService {
	if cfg.PrimaryAdminEmail == "" {
		cfg.PrimaryAdminEmail = DefaultPrimaryAdminEmail
	}
	cfg.PrimaryAdminEmail = utils.NormalizeEmail(cfg.PrimaryAdminEmail)
	return &authService{
		accountRepo: ar,
		tokens:      tokens,
		google:      google,
		storage:     storage,
		mail:        mail,
		dispatcher:  dispatcher,
		metrics:     m,
		cfg:         cfg,
		now:         time.Now,
		newOTP:      generateOTP,
	}
}

// generateOTP returns a uniformly random 6-digit code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *authService) isPrimaryAdmin(email string) bool {
	return utils.NormalizeEmail(email) == s.cfg.PrimaryAdminEmail
}

// issueOTP stores a fresh code on the account and emails it.
func (s *authService) issueOTP(ctx context.Context, account *models.Account, purpose string) error {
	code, err := s.newOTP()
	if err != nil {
		return internalError("issuing code", err)
	}
	expires := s.now().UTC().Add(otpTTL)
	account.OTPCode = code
	account.OTPPurpose = purpose
	account.OTPExpiresAt = &expires
	account.ResetVerified = false
	if err := s.accountRepo.UpdateAccount(ctx, nil, account); err != nil {
		return lookupError(err, ErrAccountNotFound, "saving code")
	}
	s.sendOTP(account.Email, account.FirstName, code, purpose)
	return nil
}

func (s *authService) sendOTP(email, firstName, code, purpose string) {
	if s.mail == nil || s.dispatcher == nil {
		return
	}
	s.dispatcher.Go("otp-email", func(ctx context.Context) error {
		return s.mail.SendOTP(ctx, email, firstName, code, purpose)
	})
}

// checkOTP validates a submitted code against the stored one.
func (s *authService) checkOTP(account *models.Account, purpose, code string) error {
	if account.OTPCode == "" || account.OTPPurpose != purpose || account.OTPExpiresAt == nil {
		return ErrInvalidOTP
	}
	if s.now().After(*account.OTPExpiresAt) {
		return ErrInvalidOTP
	}
	if subtle.ConstantTimeCompare([]byte(account.OTPCode), []byte(code)) != 1 {
		return ErrInvalidOTP
	}
	return nil
}

func clearOTP(account *models.Account) {
	account.OTPCode = ""
	account.OTPPurpose = ""
	account.OTPExpiresAt = nil
	account.ResetVerified = false
}

func (s *authService) session(account *models.Account) (*AuthResponse, error) {
	token, err := s.tokens.Generate(account.ID, account.Email, account.IsAdmin)
	if err != nil {
		return nil, internalError("issuing token", err)
	}
	return &AuthResponse{Token: token, User: account}, nil
}

func (s *authService) accountByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.accountRepo.GetAccountByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return nil, lookupError(err, ErrAccountNotFound, "getting account by email")
	}
	return account, nil
}

// Register creates an unverified account, or refreshes a pending one, and
// sends it a verification code.
func (s *authService) Register(ctx context.Context, req SigninRequest) (*models.Account, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	email := utils.NormalizeEmail(req.Email)
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, internalError("hashing password", err)
	}

	existing, err := s.accountRepo.GetAccountByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsVerified {
			return nil, ErrEmailExists
		}
		existing.PasswordHash = hash
		existing.FirstName = strings.TrimSpace(req.FirstName)
		existing.LastName = strings.TrimSpace(req.LastName)
		if err := s.issueOTP(ctx, existing, models.OTPPurposeVerify); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, internalError("getting account by email", err)
	}

	code, err := s.newOTP()
	if err != nil {
		return nil, internalError("issuing code", err)
	}
	expires := s.now().UTC().Add(otpTTL)
	account := &models.Account{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		IsAdmin:      s.isPrimaryAdmin(email),
		OTPCode:      code,
		OTPPurpose:   models.OTPPurposeVerify,
		OTPExpiresAt: &expires,
	}
	if err := s.accountRepo.CreateAccount(ctx, nil, account); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, internalError("creating account", err)
	}
	utils.LogInfo("Account registered", map[string]interface{}{"user_id": account.ID})
	s.sendOTP(account.Email, account.FirstName, code, models.OTPPurposeVerify)
	return account, nil
}

func (s *authService) VerifyAccount(ctx context.Context, req VerifyOTPRequest) (*AuthResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	account, err := s.accountByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if account.IsVerified {
		return nil, ErrAccountAlreadyVerified
	}
	if err := s.checkOTP(account, models.OTPPurposeVerify, req.OTP); err != nil {
		return nil, err
	}
	account.IsVerified = true
	clearOTP(account)
	if err := s.accountRepo.UpdateAccount(ctx, nil, account); err != nil {
		return nil, lookupError(err, ErrAccountNotFound, "verifying account")
	}
	return s.session(account)
}

func (s *authService) ResendOTP(ctx context.Context, req EmailRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	account, err := s.accountByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if account.IsVerified {
		return ErrAccountAlreadyVerified
	}
	return s.issueOTP(ctx, account, models.OTPPurposeVerify)
}

// Login checks credentials. Unverified accounts get a fresh code and
// ErrAccountNotVerified.
func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	account, err := s.accountByEmail(ctx, req.Email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(account.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !account.IsVerified {
		if err := s.issueOTP(ctx, account, models.OTPPurposeVerify); err != nil {
			return nil, err
		}
		return nil, ErrAccountNotVerified
	}
	if err := s.ensurePrimaryAdmin(ctx, account); err != nil {
		return nil, err
	}
	return s.session(account)
}

func (s *authService) ensurePrimaryAdmin(ctx context.Context, account *models.Account) error {
	if account.IsAdmin || !s.isPrimaryAdmin(account.Email) {
		return nil
	}
	account.IsAdmin = true
	if err := s.accountRepo.UpdateAccount(ctx, nil, account); err != nil {
		return lookupError(err, ErrAccountNotFound, "promoting primary admin")
	}
	return nil
}

func (s *authService) ForgotPassword(ctx context.Context, req EmailRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	account, err := s.accountByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	return s.issueOTP(ctx, account, models.OTPPurposeReset)
}

func (s *authService) VerifyResetOTP(ctx context.Context, req VerifyOTPRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	account, err := s.accountByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if err := s.checkOTP(account, models.OTPPurposeReset, req.OTP); err != nil {
		return err
	}
	account.ResetVerified = true
	if err := s.accountRepo.UpdateAccount(ctx, nil, account); err != nil {
		return lookupError(err, ErrAccountNotFound, "verifying reset code")
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	account, err := s.accountByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if !account.ResetVerified {
		return ErrInvalidOTP
	}
	if err := s.checkOTP(account, models.OTPPurposeReset, req.OTP); err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return internalError("hashing password", err)
	}
	account.PasswordHash = hash
	// Completing a reset proves control of the mailbox.
	account.IsVerified = true
	clearOTP(account)
	if err := s.accountRepo.UpdateAccount(ctx, nil, account); err != nil {
		return lookupError(err, ErrAccountNotFound, "resetting password")
	}
	utils.LogInfo("Password reset", map[string]interface{}{"user_id": account.ID})
	return nil
}

// GoogleLogin signs in with a Google identity, linking or creating the account.
func (s *authService) GoogleLogin(ctx context.Context, req GoogleLoginRequest) (*AuthResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	identity, err := s.externalIdentity(ctx, req)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetAccountByGoogleID(ctx, identity.Subject)
	if err == nil {
		if err := s.ensurePrimaryAdmin(ctx, account); err != nil {
			return nil, err
		}
		return s.session(account)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, internalError("getting account by google id", err)
	}

	account, err = s.accountRepo.GetAccountByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if account.GoogleID != nil && *account.GoogleID != identity.Subject {
			utils.LogWarn("AuthService: google identity does not match linked account", map[string]interface{}{"user_id": account.ID})
			return nil, ErrGoogleAccountMismatch
		}
		subject := identity.Subject
		account.GoogleID = &subject
		account.IsVerified = true
		account.IsAdmin = account.IsAdmin || s.isPrimaryAdmin(account.Email)
		if account.ProfilePicture == "" {
			account.ProfilePicture = identity.Picture
		}
		if err := s.accountRepo.UpdateAccount(ctx, nil, account); err != nil {
			return nil, lookupError(err, ErrAccountNotFound, "linking google account")
		}
		return s.session(account)
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, internalError("getting account by email", err)
	}

	subject := identity.Subject
	account = &models.Account{
		ID:             newID(),
		Email:          identity.Email,
		FirstName:      identity.FirstName,
		LastName:       identity.LastName,
		ProfilePicture: identity.Picture,
		IsVerified:     true,
		IsAdmin:        s.isPrimaryAdmin(identity.Email),
		GoogleID:       &subject,
	}
	if err := s.accountRepo.CreateAccount(ctx, nil, account); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, internalError("creating account", err)
	}
	utils.LogInfo("Account created from Google sign-in", map[string]interface{}{"user_id": account.ID})
	return s.session(account)
}

func (s *authService) externalIdentity(ctx context.Context, req GoogleLoginRequest) (*ExternalIdentity, error) {
	if s.google != nil {
		if strings.TrimSpace(req.Credential) == "" {
			return nil, newValidationError("credential", "is required")
		}
		identity, err := s.google.Verify(ctx, req.Credential)
		if err != nil {
			utils.LogWarn("AuthService: google credential rejected", map[string]interface{}{"error": err.Error()})
			return nil, ErrExternalIdentityInvalid
		}
		if identity.Email == "" || !identity.EmailVerified {
			return nil, ErrExternalIdentityInvalid
		}
		identity.Email = utils.NormalizeEmail(identity.Email)
		return identity, nil
	}

	if !s.cfg.AllowUnverifiedGoogle {
		return nil, ErrExternalIdentityInvalid
	}
	verr := &ValidationError{}
	if req.Email == "" {
		verr.Add("email", "is required")
	}
	if strings.TrimSpace(req.GoogleID) == "" {
		verr.Add("googleId", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return &ExternalIdentity{
		Subject:       strings.TrimSpace(req.GoogleID),
		Email:         utils.NormalizeEmail(req.Email),
		EmailVerified: true,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Picture:       strings.TrimSpace(req.Picture),
	}, nil
}

// Authenticate validates a bearer token and loads the account it names.
func (s *authService) Authenticate(ctx context.Context, token string) (*models.Account, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !isUUID(claims.UserID) {
		return nil, fmt.Errorf("%w: malformed subject", ErrUnauthorized)
	}
	account, err := s.accountRepo.GetAccountByID(ctx, claims.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: account no longer exists", ErrUnauthorized)
	}
	if err != nil {
		return nil, internalError("loading account", err)
	}
	return account, nil
}

func (s *authService) GetProfile(ctx context.Context, userID string) (*models.Account, error) {
	if !isUUID(userID) {
		return nil, ErrAccountNotFound
	}
	account, err := s.accountRepo.GetAccountByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, ErrAccountNotFound, "getting account")
	}
	return account, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.Account, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	account, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		account.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		account.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		account.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		account.Address = strings.TrimSpace(*req.Address)
	}
	if req.Bio != nil {
		account.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.ProfilePicture != nil {
		url, err := resolveImage(ctx, s.storage, s.metrics, *req.ProfilePicture, FolderProfilePictures)
		if err != nil {
			return nil, err
		}
		account.ProfilePicture = url
	}
	if err := s.accountRepo.UpdateAccount(ctx, nil, account); err != nil {
		return nil, lookupError(err, ErrAccountNotFound, "updating profile")
	}
	return account, nil
}
