package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dfe0990ngc/pcds-student-portal/internal/auth"
	"github.com/dfe0990ngc/pcds-student-portal/internal/database"
	"github.com/dfe0990ngc/pcds-student-portal/internal/models"
	"github.com/dfe0990ngc/pcds-student-portal/internal/ratelimit"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/crypto"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/mail"
)

func testHashParams() crypto.Argon2Parameters {
	return crypto.Argon2Parameters{
		Memory:     8 * 1024,
		Time:       1,
		Threads:    1,
		SaltLength: 16,
		KeyLength:  16,
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite", DSN: "file::memory:?_foreign_keys=1"})
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

// capturingMailer records dispatched messages and can be told to fail.
type capturingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	fail     bool
}

func (m *capturingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return errors.New("transport down")
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *capturingMailer) last(t *testing.T) mail.Message {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	require.NotEmpty(t, m.messages)
	return m.messages[len(m.messages)-1]
}

func (m *capturingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type authFixture struct {
	svc     *AuthService
	db      *gorm.DB
	mailer  *capturingMailer
	tokens  *auth.TokenService
	current *time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	db := openTestDB(t)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: "test-secret",
		Clock:  clock,
	})
	require.NoError(t, err)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.WithClock(clock))

	mailer := &capturingMailer{}
	dispatcher := mail.NewDispatcher(mailer)

	svc, err := NewAuthService(db, tokens, limiter, dispatcher, AuthConfig{
		HashParams: testHashParams(),
		Clock:      clock,
	})
	require.NoError(t, err)

	return &authFixture{svc: svc, db: db, mailer: mailer, tokens: tokens, current: &current}
}

func (f *authFixture) advance(d time.Duration) {
	*f.current = f.current.Add(d)
}

func (f *authFixture) seedGrade(t *testing.T, studentNumber, firstName, lastName, birthday string) {
	t.Helper()

	require.NoError(t, f.db.Create(&models.Grade{
		StudentNumber: studentNumber,
		FirstName:     firstName,
		LastName:      lastName,
		Birthday:      birthday,
		SubjectCode:   "GE101",
		Description:   "Understanding the Self",
		Average:       90,
		CreditUnits:   3,
		Sem:           "1st",
		SY:            "2024-2025",
	}).Error)
}

func (f *authFixture) register(t *testing.T, email string) *models.Credential {
	t.Helper()

	f.seedGrade(t, "2021-00001", "Juan", "Cruz", "2000-01-01")

	res, err := f.svc.Register(context.Background(), RegisterInput{
		StudentNumber: "2021-00001",
		FirstName:     "Juan",
		LastName:      "Cruz",
		Birthday:      "2000-01-01",
		Email:         email,
		Password:      "secret-password",
		ClientIP:      "203.0.113.7",
	})
	require.NoError(t, err)
	require.True(t, res.EmailSent)

	var credential models.Credential
	require.NoError(t, f.db.Where("Email = ?", email).First(&credential).Error)
	return &credential
}
