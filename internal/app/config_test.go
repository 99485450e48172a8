package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "*", cfg.Server.CORSOrigin)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/portal.sqlite", cfg.Database.Path)

	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "127.0.0.1:6379", cfg.Cache.Redis.Address)

	require.Equal(t, time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.Refresh.TTL)
	require.Equal(t, time.Hour, cfg.Auth.Reset.TTL)
	require.Equal(t, 24*time.Hour, cfg.Auth.Verification.TTL)

	require.Equal(t, 5, cfg.RateLimit.Register.Limit)
	require.Equal(t, time.Hour, cfg.RateLimit.Register.Window)
	require.Equal(t, 5, cfg.RateLimit.ResendVerification.Limit)
	require.Equal(t, 3*time.Minute, cfg.RateLimit.ResendVerification.Window)
	require.Equal(t, 2, cfg.RateLimit.Login.Limit)
	require.Equal(t, 15*time.Minute, cfg.RateLimit.Login.Window)

	require.False(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, 587, cfg.Email.SMTP.Port)
	require.Equal(t, 30*time.Second, cfg.Email.SMTP.Timeout)
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "https://portal.example.edu", cfg.Server.CORSOrigin)

	require.Equal(t, "mysql", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.MySQL.Host)
	require.Equal(t, 3307, cfg.Database.MySQL.Port)
	require.Equal(t, "portal", cfg.Database.MySQL.Database)
	require.Equal(t, "portal_user", cfg.Database.MySQL.Username)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6379", cfg.Cache.Redis.Address)

	require.Equal(t, "file-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 48*time.Hour, cfg.Auth.Refresh.TTL)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.edu", cfg.Email.SMTP.Host)
	require.Equal(t, "portal@example.edu", cfg.Email.SMTP.From)
	require.True(t, cfg.Email.Fallback.Enabled)
	require.Equal(t, "relay.example.net", cfg.Email.Fallback.Host)

	require.Equal(t, 10, cfg.RateLimit.Login.Limit)
	require.Equal(t, time.Minute, cfg.RateLimit.Login.Window)

	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresJWTSecret(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	cfg.Auth.JWT.Secret = "secret"
	require.NoError(t, cfg.Validate())
}
