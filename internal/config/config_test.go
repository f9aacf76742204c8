package config

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"HYPERZOD_BASE_URL", "HYPERZOD_API_KEY", "HYPERZOD_TENANT_ID", "MERCHANTS_FILE",
		"UPDATE_TIMEOUT_SECONDS", "UPDATE_CONCURRENCY", "UPDATE_RATE_PER_SECOND", "LOG_LEVEL", "APP_ENV"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://api.hyperzod.app", cfg.CatalogBaseURL)
	assert.Equal(t, "merchants.yaml", cfg.MerchantsFile)
	assert.Equal(t, 10*time.Second, cfg.UpdateTimeout)
	assert.Equal(t, 1, cfg.UpdateConcurrency)
	assert.Equal(t, float64(0), cfg.UpdateRate)
	assert.Equal(t, "info", cfg.LogLevel)

	err = cfg.RequireCatalog()
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "HYPERZOD_API_KEY, HYPERZOD_TENANT_ID", cerr.Key)
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "Should reject zero timeout", key: "UPDATE_TIMEOUT_SECONDS", val: "0"},
		{name: "Should reject non-numeric concurrency", key: "UPDATE_CONCURRENCY", val: "many"},
		{name: "Should reject negative rate", key: "UPDATE_RATE_PER_SECOND", val: "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := FromEnv()
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.key, cerr.Key)
		})
	}
}

func TestRequireCatalog(t *testing.T) {
	t.Setenv("HYPERZOD_API_KEY", " key ")
	t.Setenv("HYPERZOD_TENANT_ID", "tenant")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.APIKey)
	assert.NoError(t, cfg.RequireCatalog())
}

func TestRequireServer(t *testing.T) {
	hash := base64.StdEncoding.EncodeToString(make([]byte, 32))
	block := base64.RawStdEncoding.EncodeToString(make([]byte, 16))

	path := filepath.Join(t.TempDir(), "hash")
	require.NoError(t, os.WriteFile(path, []byte(hash+"\n"), 0o600))

	t.Setenv("DATABASE_URL", "postgres://localhost/menusched")
	t.Setenv("COOKIE_HASH_KEY", path)
	t.Setenv("COOKIE_BLOCK_KEY", block)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.RequireServer())
	assert.Len(t, cfg.CookieHashKey, 32)
	assert.Len(t, cfg.CookieBlockKey, 16)

	t.Setenv("COOKIE_BLOCK_KEY", base64.StdEncoding.EncodeToString(make([]byte, 10)))
	assert.Error(t, cfg.RequireServer())
}
