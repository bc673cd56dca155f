package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 50, cfg.Server.RateLimit.MaxRequests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "https://blog.example.com", cfg.Frontend.BaseURL)
	require.Len(t, cfg.Frontend.AllowedOrigins, 2)

	require.Equal(t, 12*time.Hour, cfg.Auth.Session.TTL)
	require.Equal(t, 1440*time.Hour, cfg.Auth.Session.RememberTTL)
	require.Equal(t, 64, cfg.Auth.Session.TokenLength)
	require.Equal(t, 30*time.Minute, cfg.Auth.Reset.TokenTTL)
	require.Equal(t, 6*time.Hour, cfg.Auth.Reset.ThrottleWindow)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, "no-reply@example.com", cfg.Email.SMTP.From)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 24*time.Hour, cfg.Auth.Session.TTL)
	require.Equal(t, 30*24*time.Hour, cfg.Auth.Session.RememberTTL)
	require.Equal(t, time.Hour, cfg.Auth.Reset.TokenTTL)
	require.Equal(t, 12*time.Hour, cfg.Auth.Reset.ThrottleWindow)
	require.False(t, cfg.Email.SMTP.Enabled)
}

func TestSessionServiceConfigDefaults(t *testing.T) {
	var cfg AuthConfig
	sc := cfg.SessionServiceConfig()

	require.Equal(t, 24*time.Hour, sc.SessionTTL)
	require.Equal(t, 30*24*time.Hour, sc.RememberTTL)
	require.Equal(t, 48, sc.TokenLength)
}

func TestDatabaseSettingsPostgres(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "postgres",
		Postgres: DBAuthConfig{
			Enabled:  true,
			Host:     "db.internal",
			Port:     5432,
			Database: "inkpost",
			Username: "svc",
			Password: "pw",
		},
	}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.internal", settings.Host)
	require.Equal(t, 5432, settings.Port)
	require.Equal(t, "inkpost", settings.Name)
	require.Equal(t, "svc", settings.User)
}
