// Package testsupport provides shared fixtures for shuttle's tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"shuttle/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.API.AdminToken = "test-admin-token"
	cfg.API.TokenSecret = "test-token-secret"
	cfg.Credentials.Secret = "test-credentials-secret"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithDueOnly toggles the due-only dispatch policy on the test config.
func WithDueOnly(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Dispatch.DueOnly = enabled
	}
}

// WithThresholds overrides the queue-health thresholds on the test config.
func WithThresholds(warning, critical int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Monitor.WarningThreshold = warning
		cfg.Monitor.CriticalThreshold = critical
	}
}
