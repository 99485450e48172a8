package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dfe0990ngc/pcds-student-portal/internal/middleware"
	"github.com/dfe0990ngc/pcds-student-portal/internal/services"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/errors"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/response"
)

// AuthHandler exposes the registration, verification, session, and password
// reset endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	StudentNumber   string `json:"studentNumber" validate:"required,studentnumber"`
	FirstName       string `json:"firstName" validate:"required,min=1"`
	LastName        string `json:"lastName" validate:"required,min=1"`
	Birthday        string `json:"birthday" validate:"required,calendardate"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		StudentNumber: strings.TrimSpace(req.StudentNumber),
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Birthday:      strings.TrimSpace(req.Birthday),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Password:      req.Password,
		ClientIP:      c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	extra := gin.H{
		"verification_required": true,
		"email":                 res.Email,
		"email_sent":            res.EmailSent,
	}
	if !res.EmailSent {
		response.Success(c, http.StatusCreated,
			"Registration successful. However, we had trouble sending the verification email. Please check your spam folder or contact support.",
			extra)
		return
	}

	response.Success(c, http.StatusCreated,
		"Registration successful. Please check your email to verify your account.",
		extra)
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/resend-email-verification
func (h *AuthHandler) ResendEmailVerification(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	res, err := h.auth.ResendVerification(c.Request.Context(), email, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	extra := gin.H{
		"verification_required": true,
		"email":                 res.Email,
		"email_sent":            res.EmailSent,
	}
	if !res.EmailSent {
		response.Fail(c, http.StatusOK,
			"We had trouble sending the verification email. Please check your spam folder or contact support.",
			extra)
		return
	}

	response.Success(c, http.StatusOK,
		"Verification Code sent! Please check your email inbox/spam folder.",
		extra)
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// POST /api/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := h.auth.VerifyEmail(c.Request.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK,
		"Email verified successfully. You can now log in to your account.",
		gin.H{"verified_at": res.VerifiedAt.Format("2006-01-02 15:04:05")})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	res, err := h.auth.Login(c.Request.Context(), email, req.Password, c.ClientIP())
	if err != nil {
		if appErr := errors.FromError(err); appErr.Code == errors.ErrForbidden.Code {
			response.ErrorWithExtra(c, err, gin.H{"verification_required": true})
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Login successful", gin.H{
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
		"token_type":    res.TokenType,
		"expires_in":    res.ExpiresIn,
		"StudentNumber": res.StudentNumber,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Token refreshed", gin.H{
		"access_token": res.AccessToken,
		"token_type":   res.TokenType,
		"expires_in":   res.ExpiresIn,
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.StudentNumber(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Logged out successfully", nil)
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	res, err := h.auth.ForgotPassword(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}

	extra := gin.H{
		"verification_required": true,
		"email":                 res.Email,
		"email_sent":            res.EmailSent,
	}
	if !res.EmailSent {
		response.Fail(c, http.StatusOK,
			"We had trouble sending the reset code to your email. Please check your spam folder or contact support.",
			extra)
		return
	}

	response.Success(c, http.StatusOK,
		"Reset Code sent! Please check your email inbox/spam folder.",
		extra)
}

// POST /api/auth/resend-forgot-password
func (h *AuthHandler) ResendForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	res, err := h.auth.ResendForgotPassword(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}

	extra := gin.H{
		"verification_required": true,
		"email":                 res.Email,
		"email_sent":            res.EmailSent,
	}
	if !res.EmailSent {
		response.Fail(c, http.StatusOK,
			"We had trouble resending the reset code to your email. Please check your spam folder or contact support.",
			extra)
		return
	}

	response.Success(c, http.StatusOK,
		"Reset Code resent successfully! Please check your email inbox/spam folder.",
		extra)
}

type resetPasswordRequest struct {
	Token                string `json:"token" validate:"required"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), strings.TrimSpace(req.Token), req.Password); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Password has been reset successfully", nil)
}
