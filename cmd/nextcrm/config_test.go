package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("NEXTCRM_BASE_URL", "")
	t.Setenv("NEXTCRM_STATE_DIR", t.TempDir())

	cfg, err := loadConfig("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, cfg.Gateway.BaseURL)
	assert.Equal(t, "cli", cfg.CLI.SessionID)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nextcrm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateway:
  base_url: https://crm.example.com
  request_timeout: 20s
session:
  redis_prefix: "crm:snap:"
cli:
  state_dir: /var/lib/nextcrm
  username: trader1
`), 0o600))

	t.Setenv("NEXTCRM_REFRESH_TIMEOUT", "3s")
	t.Setenv("NEXTCRM_USERNAME", "ana")

	cfg, err := loadConfig(path, "")
	require.NoError(t, err)
	assert.Equal(t, "https://crm.example.com", cfg.Gateway.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.Gateway.RequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.Gateway.RefreshTimeout)
	assert.Equal(t, "crm:snap:", cfg.Session.RedisPrefix)
	assert.Equal(t, "/var/lib/nextcrm", cfg.CLI.StateDir)
	assert.Equal(t, "ana", cfg.CLI.Username)
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("NEXTCRM_REDIS_ADDR=localhost:6380\n"), 0o600))
	t.Setenv("NEXTCRM_STATE_DIR", dir)
	// godotenv never overrides variables that are already set.
	t.Setenv("NEXTCRM_REDIS_ADDR", "")
	require.NoError(t, os.Unsetenv("NEXTCRM_REDIS_ADDR"))

	cfg, err := loadConfig("", envPath)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", cfg.CLI.RedisAddr)
}

func TestLoadConfigBadDuration(t *testing.T) {
	t.Setenv("NEXTCRM_STATE_DIR", t.TempDir())
	t.Setenv("NEXTCRM_REQUEST_TIMEOUT", "soon")

	_, err := loadConfig("", "")
	assert.ErrorContains(t, err, "NEXTCRM_REQUEST_TIMEOUT")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}
