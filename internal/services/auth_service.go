package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dfe0990ngc/pcds-student-portal/internal/auth"
	"github.com/dfe0990ngc/pcds-student-portal/internal/models"
	"github.com/dfe0990ngc/pcds-student-portal/internal/ratelimit"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/crypto"
	apperrors "github.com/dfe0990ngc/pcds-student-portal/pkg/errors"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/logger"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/mail"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/metrics"
)

// Rate limit actions. Resend-verification shares the register bucket.
const (
	actionRegister = "register"
	actionLogin    = "login"
)

// RateRules groups the per-action limits applied to the public auth endpoints.
type RateRules struct {
	Register           ratelimit.Rule
	ResendVerification ratelimit.Rule
	Login              ratelimit.Rule
}

// DefaultRateRules mirrors the portal's production limits.
func DefaultRateRules() RateRules {
	return RateRules{
		Register:           ratelimit.Rule{Limit: 5, Window: time.Hour},
		ResendVerification: ratelimit.Rule{Limit: 5, Window: 3 * time.Minute},
		Login:              ratelimit.Rule{Limit: 2, Window: 15 * time.Minute},
	}
}

// AuthConfig tunes an AuthService. Zero values fall back to production
// defaults.
type AuthConfig struct {
	HashParams      crypto.Argon2Parameters
	Rules           RateRules
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	Clock           func() time.Time
}

// AuthService orchestrates registration, the email verification and password
// reset state machines, and session issuance.
type AuthService struct {
	db              *gorm.DB
	tokens          *auth.TokenService
	limiter         *ratelimit.Limiter
	mailer          *mail.Dispatcher
	hashParams      crypto.Argon2Parameters
	rules           RateRules
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
	log             *zap.Logger
}

// NewAuthService wires an AuthService from its collaborators.
func NewAuthService(db *gorm.DB, tokens *auth.TokenService, limiter *ratelimit.Limiter, mailer *mail.Dispatcher, cfg AuthConfig) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: database is required")
	}
	if tokens == nil {
		return nil, errors.New("auth service: token service is required")
	}
	if limiter == nil {
		return nil, errors.New("auth service: rate limiter is required")
	}
	if mailer == nil {
		return nil, errors.New("auth service: mail dispatcher is required")
	}

	hashParams := cfg.HashParams
	if hashParams == (crypto.Argon2Parameters{}) {
		hashParams = crypto.DefaultArgon2Params()
	}
	if err := hashParams.Validate(); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	rules := cfg.Rules
	if rules == (RateRules{}) {
		rules = DefaultRateRules()
	}

	verificationTTL := cfg.VerificationTTL
	if verificationTTL <= 0 {
		verificationTTL = 24 * time.Hour
	}

	resetTTL := cfg.ResetTTL
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &AuthService{
		db:              db,
		tokens:          tokens,
		limiter:         limiter,
		mailer:          mailer,
		hashParams:      hashParams,
		rules:           rules,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
		now:             now,
		log:             logger.WithModule("auth"),
	}, nil
}

// RegisterInput carries the already-validated registration payload.
type RegisterInput struct {
	StudentNumber string
	FirstName     string
	LastName      string
	Birthday      string
	Email         string
	Password      string
	ClientIP      string
}

// MailFlowResult reports the outcome of an operation whose response depends on
// whether a notification could be delivered.
type MailFlowResult struct {
	Email     string
	EmailSent bool
}

// Register creates an unverified credential for a student whose academic
// record matches the submitted identity, then attempts to send the
// verification code. Mail failure does not fail the registration.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*MailFlowResult, error) {
	if res := s.limiter.Allow(ctx, actionRegister, input.ClientIP, s.rules.Register); !res.Allowed {
		return nil, apperrors.ErrRateLimited.WithMessage("Too many registration attempts. Try again later after an hour.")
	}

	var existing models.Credential
	err := s.db.WithContext(ctx).Where("StudentNumber = ?", input.StudentNumber).First(&existing).Error
	if err == nil {
		metrics.Registrations.WithLabelValues("conflict").Inc()
		return nil, apperrors.ErrConflict.WithMessage("This student number is already bound to another email")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	var record models.Grade
	err = s.db.WithContext(ctx).
		Where("StudentNumber = ? AND LOWER(TRIM(FirstName)) = LOWER(?) AND LOWER(TRIM(LastName)) = LOWER(?) AND Birthday = ?",
			input.StudentNumber, input.FirstName, input.LastName, input.Birthday).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.Registrations.WithLabelValues("not_found").Inc()
		return nil, apperrors.ErrNotFound.WithMessage("Your record haven't uploaded yet. You can register again later.")
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	err = s.db.WithContext(ctx).Where("Email = ?", input.Email).First(&existing).Error
	if err == nil {
		metrics.Registrations.WithLabelValues("conflict").Inc()
		return nil, apperrors.ErrConflict.WithMessage("Email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	code, err := s.tokens.NewShortCode()
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	passwordHash, err := crypto.HashPassword(input.Password, s.hashParams)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	credential := models.Credential{
		StudentNumber:     input.StudentNumber,
		Email:             input.Email,
		PasswordHash:      passwordHash,
		IsVerified:        false,
		VerificationToken: &code,
		CreatedAt:         s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&credential).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	metrics.Registrations.WithLabelValues("created").Inc()

	sent, errMsg := s.mailer.Send(ctx, mail.KindVerification, input.Email, mail.Payload{
		Name: record.FirstName,
		Code: code,
	})
	if !sent {
		s.log.Warn("verification email failed",
			zap.String("email", input.Email), zap.String("reason", errMsg))
	}

	return &MailFlowResult{Email: input.Email, EmailSent: sent}, nil
}

// ResendVerification resends the stored verification code for a registered
// email. The code is reused, not rotated, so earlier emails stay valid.
func (s *AuthService) ResendVerification(ctx context.Context, email, clientIP string) (*MailFlowResult, error) {
	if res := s.limiter.Allow(ctx, actionRegister, clientIP, s.rules.ResendVerification); !res.Allowed {
		return nil, apperrors.ErrRateLimited.WithMessage("Too many resend attempts. Try again later after 3 minutes.")
	}

	var credential models.Credential
	err := s.db.WithContext(ctx).Where("Email = ?", email).First(&credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.WithMessage("Your email cannot be found in our database.")
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	code := ""
	if credential.VerificationToken != nil {
		code = *credential.VerificationToken
	}

	sent, errMsg := s.mailer.Send(ctx, mail.KindVerification, email, mail.Payload{
		Name: s.firstNameFor(ctx, credential.StudentNumber),
		Code: code,
	})
	if !sent {
		s.log.Warn("verification email failed",
			zap.String("email", email), zap.String("reason", errMsg))
	}

	return &MailFlowResult{Email: email, EmailSent: sent}, nil
}

// VerifyResult carries the timestamp recorded by a successful verification.
type VerifyResult struct {
	VerifiedAt time.Time
}

// VerifyEmail flips an unverified credential to verified when the code matches
// and the 24-hour window since registration has not lapsed. The welcome email
// is best-effort.
func (s *AuthService) VerifyEmail(ctx context.Context, code string) (*VerifyResult, error) {
	var credential models.Credential
	err := s.db.WithContext(ctx).Where("VerificationToken = ?", code).First(&credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrBadRequest.WithMessage("Invalid verification token")
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	if credential.IsVerified {
		return nil, apperrors.ErrBadRequest.WithMessage("Email has already been verified")
	}

	now := s.now()
	if now.After(credential.CreatedAt.Add(s.verificationTTL)) {
		return nil, apperrors.ErrExpired.WithMessage("Verification token has expired. Please request a new verification email.")
	}

	updates := map[string]any{
		"IsVerified":        true,
		"VerificationToken": nil,
		"VerifiedAt":        now,
	}
	if err := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("StudentNumber = ?", credential.StudentNumber).
		Updates(updates).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	if sent, errMsg := s.mailer.Send(ctx, mail.KindWelcome, credential.Email, mail.Payload{
		Name: s.firstNameFor(ctx, credential.StudentNumber),
	}); !sent {
		s.log.Warn("welcome email failed",
			zap.String("email", credential.Email), zap.String("reason", errMsg))
	}

	return &VerifyResult{VerifiedAt: now}, nil
}

// LoginResult carries the issued session tokens.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	TokenType     string
	ExpiresIn     int
	StudentNumber string
}

// Login authenticates a verified credential and issues an access token plus a
// persisted refresh token. Unknown email and wrong password share one message.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*LoginResult, error) {
	if res := s.limiter.Allow(ctx, actionLogin, clientIP, s.rules.Login); !res.Allowed {
		return nil, apperrors.ErrRateLimited.WithMessage("Too many login attempts. Try again later.")
	}

	var credential models.Credential
	err := s.db.WithContext(ctx).Where("Email = ?", email).First(&credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	if !crypto.VerifyPassword(password, credential.PasswordHash) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !credential.IsVerified {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrForbidden
	}

	accessToken, err := s.tokens.GenerateAccessToken(credential.StudentNumber, credential.Email)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	refreshToken, err := s.tokens.NewRefreshToken()
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	now := s.now()
	row := models.RefreshToken{
		StudentNumber: credential.StudentNumber,
		TokenHash:     auth.HashRefreshToken(refreshToken),
		ExpiresAt:     now.Add(s.tokens.RefreshTokenTTL()),
		CreatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	if err := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("StudentNumber = ?", credential.StudentNumber).
		Update("LastLogin", now).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	return &LoginResult{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		TokenType:     "Bearer",
		ExpiresIn:     int(s.tokens.AccessTokenTTL().Seconds()),
		StudentNumber: credential.StudentNumber,
	}, nil
}

// RefreshResult carries the re-issued access token.
type RefreshResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	hash := auth.HashRefreshToken(refreshToken)

	var row models.RefreshToken
	err := s.db.WithContext(ctx).
		Where("Token = ? AND ExpiresAt > ?", hash, s.now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUnauthorized.WithMessage("Invalid or expired refresh token")
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	var credential models.Credential
	if err := s.db.WithContext(ctx).Where("StudentNumber = ?", row.StudentNumber).First(&credential).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	accessToken, err := s.tokens.GenerateAccessToken(row.StudentNumber, credential.Email)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	return &RefreshResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokens.AccessTokenTTL().Seconds()),
	}, nil
}

// Logout revokes every refresh token held by the student.
func (s *AuthService) Logout(ctx context.Context, studentNumber string) error {
	if studentNumber == "" {
		return nil
	}

	if err := s.db.WithContext(ctx).
		Where("StudentNumber = ?", studentNumber).
		Delete(&models.RefreshToken{}).Error; err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}
	return nil
}

// ForgotPassword starts a reset window for the email's credential. Students
// known only to the accounting system get a credential provisioned on the fly
// with an unusable placeholder hash, so the reset flow is the only way to pick
// the first password.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*MailFlowResult, error) {
	studentNumber := ""
	hasCredential := true

	var credential models.Credential
	err := s.db.WithContext(ctx).Where("Email = ?", email).First(&credential).Error
	switch {
	case err == nil:
		studentNumber = credential.StudentNumber
	case errors.Is(err, gorm.ErrRecordNotFound):
		hasCredential = false

		var account models.StudentAccount
		legacyErr := s.db.WithContext(ctx).Where("Email = ?", email).First(&account).Error
		if errors.Is(legacyErr, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Your email is not yet exists in our database.")
		}
		if legacyErr != nil {
			return nil, apperrors.ErrInternalServer.WithInternal(legacyErr)
		}
		studentNumber = account.StudentNumber
	default:
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	code, err := s.tokens.NewShortCode()
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	now := s.now()
	expiresAt := now.Add(s.resetTTL)

	if hasCredential {
		updates := map[string]any{
			"ResetToken":          code,
			"ResetTokenExpiresAt": expiresAt,
		}
		if err := s.db.WithContext(ctx).Model(&models.Credential{}).
			Where("StudentNumber = ?", studentNumber).
			Updates(updates).Error; err != nil {
			return nil, apperrors.ErrInternalServer.WithInternal(err)
		}
	} else {
		placeholder, err := crypto.UnusablePasswordHash()
		if err != nil {
			return nil, apperrors.ErrInternalServer.WithInternal(err)
		}

		provisioned := models.Credential{
			StudentNumber:       studentNumber,
			Email:               email,
			PasswordHash:        placeholder,
			IsVerified:          true,
			ResetToken:          &code,
			ResetTokenExpiresAt: &expiresAt,
			CreatedAt:           now,
			VerifiedAt:          &now,
		}
		if err := s.db.WithContext(ctx).Create(&provisioned).Error; err != nil {
			return nil, apperrors.ErrInternalServer.WithInternal(err)
		}
	}

	sent, errMsg := s.mailer.Send(ctx, mail.KindPasswordReset, email, mail.Payload{
		Name: s.firstNameFor(ctx, studentNumber),
		Code: code,
	})
	if !sent {
		s.log.Warn("reset email failed",
			zap.String("email", email), zap.String("reason", errMsg))
	}

	return &MailFlowResult{Email: email, EmailSent: sent}, nil
}

// ResendForgotPassword re-sends the active reset code without rotating it. A
// credential with no active code gets a fresh one.
func (s *AuthService) ResendForgotPassword(ctx context.Context, email string) (*MailFlowResult, error) {
	var credential models.Credential
	err := s.db.WithContext(ctx).Where("Email = ?", email).First(&credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.WithMessage("Your email is not yet exists in our database.")
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	code := ""
	if credential.ResetToken != nil {
		code = *credential.ResetToken
	}
	if code == "" {
		code, err = s.tokens.NewShortCode()
		if err != nil {
			return nil, apperrors.ErrInternalServer.WithInternal(err)
		}
	}

	expiresAt := s.now().Add(s.resetTTL)
	updates := map[string]any{
		"ResetToken":          code,
		"ResetTokenExpiresAt": expiresAt,
	}
	if err := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("StudentNumber = ?", credential.StudentNumber).
		Updates(updates).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	sent, errMsg := s.mailer.Send(ctx, mail.KindPasswordReset, email, mail.Payload{
		Name: s.firstNameFor(ctx, credential.StudentNumber),
		Code: code,
	})
	if !sent {
		s.log.Warn("reset email failed",
			zap.String("email", email), zap.String("reason", errMsg))
	}

	return &MailFlowResult{Email: email, EmailSent: sent}, nil
}

// ResetPassword completes a reset. The code is single-use: it is cleared on
// success, and unknown or lapsed codes share one message so callers cannot
// probe which it was.
func (s *AuthService) ResetPassword(ctx context.Context, code, password string) error {
	invalid := apperrors.ErrBadRequest.WithMessage("Invalid or expired reset token")

	var credential models.Credential
	err := s.db.WithContext(ctx).Where("ResetToken = ?", code).First(&credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalid
	}
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	if credential.ResetTokenExpiresAt == nil || s.now().After(*credential.ResetTokenExpiresAt) {
		return invalid
	}

	passwordHash, err := crypto.HashPassword(password, s.hashParams)
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	updates := map[string]any{
		"PasswordHash":        passwordHash,
		"ResetToken":          nil,
		"ResetTokenExpiresAt": nil,
	}
	if err := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("StudentNumber = ?", credential.StudentNumber).
		Updates(updates).Error; err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	return nil
}

// firstNameFor resolves a display name from the registrar records, falling
// back to the accounting table and finally to an empty string.
func (s *AuthService) firstNameFor(ctx context.Context, studentNumber string) string {
	var record models.Grade
	if err := s.db.WithContext(ctx).
		Select("FirstName").
		Where("StudentNumber = ?", studentNumber).
		First(&record).Error; err == nil {
		return record.FirstName
	}

	var account models.StudentAccount
	if err := s.db.WithContext(ctx).
		Select("FirstName").
		Where("StudentNumber = ?", studentNumber).
		First(&account).Error; err == nil {
		return account.FirstName
	}

	return ""
}
