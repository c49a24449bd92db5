package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: safesight
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 100, cfg.Limits.MonthlyInspections)
	assert.Equal(t, 8<<20, cfg.Limits.MaxImageBytes)
	assert.Equal(t, 1600, cfg.Limits.MaxImageSide)
	assert.Equal(t, 72, cfg.Limits.JPEGQuality)
	assert.Equal(t, 60, cfg.Limits.RatePerMinute)
}

func TestLoadReadsValues(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 9090
  corsOrigins: ["https://app.example.com"]
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: safesight
  password: filepass
  name: safesight
  sslMode: require
openai:
  apiKey: file-key
  model: gpt-4o
limits:
  monthlyInspections: 250
  ratePerMinute: 30
retention:
  usageLogDays: 90
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 250, cfg.Limits.MonthlyInspections)
	assert.Equal(t, 30, cfg.Limits.RatePerMinute)
	assert.Equal(t, 90, cfg.Retention.UsageLogDays)
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	path := writeConfig(t, `
openai:
  apiKey: file-key
auth:
  jwtSecret: file-secret
database:
  password: filepass
`)
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("AUTH_JWT_SECRET", "env-secret")
	t.Setenv("DB_PASSWORD", "envpass")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.OpenAI.APIKey)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "envpass", cfg.Database.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDSNHelpers(t *testing.T) {
	var cfg Config
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = 3306
	cfg.Database.User = "app"
	cfg.Database.Password = "pw"
	cfg.Database.Name = "safesight"

	assert.Equal(t,
		"app:pw@tcp(db.internal:3306)/safesight?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN())

	cfg.Database.Port = 5432
	assert.Equal(t,
		"host=db.internal port=5432 user=app password=pw dbname=safesight sslmode=disable",
		cfg.PostgresDSN())

	cfg.Database.SSLMode = "require"
	assert.Contains(t, cfg.PostgresDSN(), "sslmode=require")
}
