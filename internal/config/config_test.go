package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
mysql:
  dsn: "user:pass@tcp(localhost:3306)/plantgate?parseTime=true"
  replicas:
    - "user:pass@tcp(replica:3306)/plantgate?parseTime=true"
cacheKey: "MDEyMzQ1Njc4OWFiY2RlZg=="
external:
  loginURL: "https://login.example.com/"
  clientID: "client"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, "EdDSA", cfg.JWT.Algorithm)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.JWT.RefreshTokenTTL)
	assert.False(t, cfg.JWT.RefreshTokenRotation)
	assert.Len(t, cfg.MySQL.Replicas, 1)
	assert.Equal(t, "https://login.example.com", cfg.External.LoginURL)
	assert.Equal(t, "https://login.example.com", cfg.External.InstanceURL)
	assert.Equal(t, time.Minute, cfg.External.CacheTTL)
	assert.True(t, cfg.External.Enabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
listenAddr: ":8080"
mysql:
  dsn: "dsn"
cacheKey: "key"
jwt:
  algorithm: "RS256"
  accessTokenTTL: "5m"
  refreshTokenRotation: true
`)
	t.Setenv("JWT_ALGORITHM", "ES256")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "ES256", cfg.JWT.Algorithm)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.True(t, cfg.JWT.RefreshTokenRotation)
	assert.False(t, cfg.External.Enabled())
}

func TestSanitizeRequiresSecrets(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Sanitize(), ErrMissingDsn)

	cfg = &Config{MySQL: MySQLConfig{Dsn: "dsn"}}
	assert.ErrorIs(t, cfg.Sanitize(), ErrMissingCacheKey)
}
