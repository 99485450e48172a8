package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/dfe0990ngc/pcds-student-portal/internal/auth"
	"github.com/dfe0990ngc/pcds-student-portal/internal/database"
	"github.com/dfe0990ngc/pcds-student-portal/internal/models"
	"github.com/dfe0990ngc/pcds-student-portal/internal/ratelimit"
	"github.com/dfe0990ngc/pcds-student-portal/internal/services"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/crypto"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/mail"
)

type memoryMailer struct {
	bodies []string
}

func (m *memoryMailer) Send(_ context.Context, msg mail.Message) error {
	m.bodies = append(m.bodies, msg.Body)
	return nil
}

type fixture struct {
	router *gin.Engine
	db     *gorm.DB
	mailer *memoryMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{Driver: "sqlite", DSN: "file::memory:?_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	tokens, err := iauth.NewTokenService(iauth.TokenConfig{Secret: "router-test-secret"})
	require.NoError(t, err)

	mailer := &memoryMailer{}

	router, err := NewRouter(Deps{
		DB:      db,
		Tokens:  tokens,
		Limiter: ratelimit.NewLimiter(ratelimit.NewMemoryStore()),
		Mailer:  mail.NewDispatcher(mailer),
		AuthConfig: services.AuthConfig{
			HashParams: crypto.Argon2Parameters{
				Memory: 8 * 1024, Time: 1, Threads: 1, SaltLength: 16, KeyLength: 16,
			},
			Rules: services.RateRules{
				Register:           ratelimit.Rule{Limit: 100, Window: time.Hour},
				ResendVerification: ratelimit.Rule{Limit: 100, Window: time.Hour},
				Login:              ratelimit.Rule{Limit: 100, Window: time.Hour},
			},
		},
	})
	require.NoError(t, err)

	return &fixture{router: router, db: db, mailer: mailer}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var payload map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" &&
		w.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		_ = json.Unmarshal(w.Body.Bytes(), &payload)
	}
	return w, payload
}

func (f *fixture) seedStudent(t *testing.T) {
	t.Helper()

	require.NoError(t, f.db.Create(&models.Grade{
		StudentNumber: "2021-00001",
		FirstName:     "Juan",
		LastName:      "Cruz",
		Birthday:      "2000-01-01",
		Course:        "BSIT",
		YearLevel:     "2",
		SubjectCode:   "IT201",
		Average:       90,
		CreditUnits:   3,
		Sem:           "1st",
		SY:            "2024-2025",
	}).Error)
}

func registerPayload() map[string]any {
	return map[string]any{
		"studentNumber":   "2021-00001",
		"firstName":       "Juan",
		"lastName":        "Cruz",
		"birthday":        "2000-01-01",
		"email":           "juan@example.com",
		"password":        "secret-password",
		"confirmPassword": "secret-password",
	}
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	f := newFixture(t)
	f.seedStudent(t)

	w, body := f.do(t, http.MethodPost, "/api/auth/register", registerPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, true, body["email_sent"])
	require.Equal(t, "Registration successful. Please check your email to verify your account.", body["message"])

	// Unverified login -> 403 with the flag
	w, body = f.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "juan@example.com", "password": "secret-password",
	}, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, true, body["verification_required"])

	var credential models.Credential
	require.NoError(t, f.db.Where("Email = ?", "juan@example.com").First(&credential).Error)
	require.NotNil(t, credential.VerificationToken)

	w, body = f.do(t, http.MethodPost, "/api/auth/verify-email", map[string]any{
		"token": *credential.VerificationToken,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Email verified successfully. You can now log in to your account.", body["message"])

	w, body = f.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "juan@example.com", "password": "secret-password",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Login successful", body["message"])
	require.Equal(t, "Bearer", body["token_type"])
	require.Equal(t, "2021-00001", body["StudentNumber"])
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])

	accessToken := body["access_token"].(string)
	refreshToken := body["refresh_token"].(string)

	// Authenticated profile
	w, body = f.do(t, http.MethodGet, "/api/student/profile", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	require.Equal(t, http.StatusOK, w.Code)
	profile := body["profile"].(map[string]any)
	require.Equal(t, "Juan", profile["FirstName"])
	require.Equal(t, "juan@example.com", profile["Email"])

	// Refresh issues a fresh access token
	w, body = f.do(t, http.MethodPost, "/api/auth/refresh", map[string]any{
		"refresh_token": refreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Token refreshed", body["message"])
	require.NotEmpty(t, body["access_token"])

	// Logout revokes the refresh token
	w, _ = f.do(t, http.MethodPost, "/api/auth/logout", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(t, http.MethodPost, "/api/auth/refresh", map[string]any{
		"refresh_token": refreshToken,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Invalid or expired refresh token", body["message"])
}

func TestRegisterValidationFailure(t *testing.T) {
	f := newFixture(t)

	payload := registerPayload()
	payload["password"] = "short"
	payload["confirmPassword"] = "short"

	w, body := f.do(t, http.MethodPost, "/api/auth/register", payload, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, false, body["success"])
	require.Equal(t, "password must be at least 8 characters", body["message"])
	require.Contains(t, body, "errors")
}

func TestRegisterConfirmMismatch(t *testing.T) {
	f := newFixture(t)

	payload := registerPayload()
	payload["confirmPassword"] = "different-password"

	w, body := f.do(t, http.MethodPost, "/api/auth/register", payload, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "confirmPassword must match password", body["message"])
}

func TestStudentNumberAllowsDashes(t *testing.T) {
	f := newFixture(t)
	f.seedStudent(t)

	// The seeded number contains a dash and must pass validation.
	w, _ := f.do(t, http.MethodPost, "/api/auth/register", registerPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/student/profile", "/api/student/grades", "/api/student/account"} {
		w, body := f.do(t, http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Equal(t, "Authorization token required", body["message"])
	}
}

func TestPasswordResetFlowOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.seedStudent(t)

	w, _ := f.do(t, http.MethodPost, "/api/auth/register", registerPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := f.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]any{
		"email": "juan@example.com",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Reset Code sent! Please check your email inbox/spam folder.", body["message"])

	var credential models.Credential
	require.NoError(t, f.db.Where("Email = ?", "juan@example.com").First(&credential).Error)
	require.NotNil(t, credential.ResetToken)

	w, body = f.do(t, http.MethodPost, "/api/auth/reset-password", map[string]any{
		"token":                 *credential.ResetToken,
		"password":              "a-new-password",
		"password_confirmation": "a-new-password",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Password has been reset successfully", body["message"])

	// Reuse fails
	w, body = f.do(t, http.MethodPost, "/api/auth/reset-password", map[string]any{
		"token":                 *credential.ResetToken,
		"password":              "another-password",
		"password_confirmation": "another-password",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid or expired reset token", body["message"])
}

func TestMaintenanceEndpoints(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.db.Create(&models.RefreshToken{
		StudentNumber: "2021-00001",
		TokenHash:     "stale",
		ExpiresAt:     time.Now().Add(-time.Hour),
		CreatedAt:     time.Now().Add(-8 * 24 * time.Hour),
	}).Error)

	w, body := f.do(t, http.MethodGet, "/api/clear-expired-tokens", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, body["deleted"])

	w, body = f.do(t, http.MethodGet, "/api/clear-rate-limit-cache", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, body, "cleared")
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/api/unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Endpoint not found", body["message"])
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["success"])

	w, _ = f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}
