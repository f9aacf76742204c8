package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigurationError is fatal: it aborts a run before any update is attempted.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}

type Config struct {
	// catalog
	CatalogBaseURL string
	APIKey         string
	TenantID       string

	MerchantsFile string

	// executor
	UpdateTimeout     time.Duration
	UpdateConcurrency int
	UpdateRate        float64

	// logging
	LogLevel string
	Env      string

	// optional collaborators
	DatabaseURL     string
	SlackWebhookURL string

	// server
	ListenAddr     string
	CookieHashKey  []byte
	CookieBlockKey []byte
}

func FromEnv() (Config, error) {
	cfg := Config{
		CatalogBaseURL:  getenv("HYPERZOD_BASE_URL", "https://api.hyperzod.app"),
		APIKey:          strings.TrimSpace(os.Getenv("HYPERZOD_API_KEY")),
		TenantID:        strings.TrimSpace(os.Getenv("HYPERZOD_TENANT_ID")),
		MerchantsFile:   getenv("MERCHANTS_FILE", "merchants.yaml"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		Env:             getenv("APP_ENV", "development"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SlackWebhookURL: strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL")),
		ListenAddr:      getenv("LISTEN_ADDR", ":8080"),
	}

	timeoutSec, err := strconv.Atoi(getenv("UPDATE_TIMEOUT_SECONDS", "10"))
	if err != nil || timeoutSec < 1 {
		return Config{}, &ConfigurationError{Key: "UPDATE_TIMEOUT_SECONDS", Reason: "must be a positive integer"}
	}
	cfg.UpdateTimeout = time.Duration(timeoutSec) * time.Second

	cfg.UpdateConcurrency, err = strconv.Atoi(getenv("UPDATE_CONCURRENCY", "1"))
	if err != nil || cfg.UpdateConcurrency < 1 {
		return Config{}, &ConfigurationError{Key: "UPDATE_CONCURRENCY", Reason: "must be a positive integer"}
	}

	cfg.UpdateRate, err = strconv.ParseFloat(getenv("UPDATE_RATE_PER_SECOND", "0"), 64)
	if err != nil || cfg.UpdateRate < 0 {
		return Config{}, &ConfigurationError{Key: "UPDATE_RATE_PER_SECOND", Reason: "must be a non-negative number"}
	}

	return cfg, nil
}

// RequireCatalog checks the credentials needed to call the catalog service.
func (c Config) RequireCatalog() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "HYPERZOD_API_KEY")
	}
	if c.TenantID == "" {
		missing = append(missing, "HYPERZOD_TENANT_ID")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Key: strings.Join(missing, ", "), Reason: "required"}
	}
	return nil
}

// RequireServer loads the session cookie keys and checks the database is set.
func (c *Config) RequireServer() error {
	if c.DatabaseURL == "" {
		return &ConfigurationError{Key: "DATABASE_URL", Reason: "required for the server"}
	}
	hashKey := os.Getenv("COOKIE_HASH_KEY")
	blockKey := os.Getenv("COOKIE_BLOCK_KEY")
	if hashKey == "" || blockKey == "" {
		return &ConfigurationError{Key: "COOKIE_HASH_KEY, COOKIE_BLOCK_KEY", Reason: "required (base64, 32 and 16/24/32 bytes)"}
	}
	var err error
	if c.CookieHashKey, err = decodeB64(hashKey); err != nil {
		return &ConfigurationError{Key: "COOKIE_HASH_KEY", Reason: err.Error()}
	}
	if c.CookieBlockKey, err = decodeB64(blockKey); err != nil {
		return &ConfigurationError{Key: "COOKIE_BLOCK_KEY", Reason: err.Error()}
	}
	switch len(c.CookieBlockKey) {
	case 16, 24, 32:
	default:
		return &ConfigurationError{Key: "COOKIE_BLOCK_KEY", Reason: fmt.Sprintf("must decode to 16, 24 or 32 bytes (got %d)", len(c.CookieBlockKey))}
	}
	return nil
}

func decodeB64(s string) ([]byte, error) {
	// allow pointing to a file path for k8s secret mounts
	if b, err := os.ReadFile(s); err == nil {
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
