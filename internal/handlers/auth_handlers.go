package handlers

import (
	"net/http"

	"github.com/Societyforcis/SCIS-Backend/internal/middleware"
	"github.com/Societyforcis/SCIS-Backend/internal/services"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as services.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// Signin registers an account and emails a verification code.
func (h *AuthHandler) Signin(c *gin.Context) {
	var req services.SigninRequest
	if !bindJSON(c, &req, "Signin") {
		return
	}

	account, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Signin")
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, "Account created. Check your email for the verification code.",
		gin.H{"email": account.Email})
}

// VerifyAccount confirms the signup code and starts a session.
func (h *AuthHandler) VerifyAccount(c *gin.Context) {
	var req services.VerifyOTPRequest
	if !bindJSON(c, &req, "VerifyAccount") {
		return
	}

	resp, err := h.authService.VerifyAccount(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "VerifyAccount")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Email verified successfully", resp)
}

// ResendOTP sends a fresh verification code.
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req services.EmailRequest
	if !bindJSON(c, &req, "ResendOTP") {
		return
	}
	if err := h.authService.ResendOTP(c.Request.Context(), req); err != nil {
		respondError(c, err, "ResendOTP")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "A new verification code has been sent", nil)
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req, "Login") {
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Login")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Login successful", resp)
}

// ForgotPassword emails a password reset code.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req services.EmailRequest
	if !bindJSON(c, &req, "ForgotPassword") {
		return
	}
	if err := h.authService.ForgotPassword(c.Request.Context(), req); err != nil {
		respondError(c, err, "ForgotPassword")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Password reset code sent to your email", nil)
}

// VerifyResetOTP checks a password reset code.
func (h *AuthHandler) VerifyResetOTP(c *gin.Context) {
	var req services.VerifyOTPRequest
	if !bindJSON(c, &req, "VerifyResetOTP") {
		return
	}
	if err := h.authService.VerifyResetOTP(c.Request.Context(), req); err != nil {
		respondError(c, err, "VerifyResetOTP")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Code verified, you can now reset your password", nil)
}

// ResetPassword sets a new password after a verified reset code.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req services.ResetPasswordRequest
	if !bindJSON(c, &req, "ResetPassword") {
		return
	}
	if err := h.authService.ResetPassword(c.Request.Context(), req); err != nil {
		respondError(c, err, "ResetPassword")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Password reset successfully", nil)
}

// GoogleLogin signs in with a Google credential.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req services.GoogleLoginRequest
	if !bindJSON(c, &req, "GoogleLogin") {
		return
	}

	resp, err := h.authService.GoogleLogin(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "GoogleLogin")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Login successful", resp)
}

// VerifyToken returns the account behind the presented token.
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	account, err := h.authService.GetProfile(c.Request.Context(), middleware.CallerFrom(c).UserID)
	if err != nil {
		respondError(c, err, "VerifyToken")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Token is valid", gin.H{"user": account})
}

// GetProfile retrieves the profile of the currently authenticated user.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	account, err := h.authService.GetProfile(c.Request.Context(), middleware.CallerFrom(c).UserID)
	if err != nil {
		respondError(c, err, "GetProfile")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Profile retrieved", account)
}

// UpdateProfile edits the caller's profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	if !bindJSON(c, &req, "UpdateProfile") {
		return
	}

	account, err := h.authService.UpdateProfile(c.Request.Context(), middleware.CallerFrom(c).UserID, req)
	if err != nil {
		respondError(c, err, "UpdateProfile")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, "Profile updated successfully", account)
}
