// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"modelshelf/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The catalog is disabled by default so tests never reach the network.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ModelRoots = []string{filepath.Join(base, "models")}
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Catalog.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithModelRoots overrides the model root folders on the test config.
func WithModelRoots(roots ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.ModelRoots = roots
	}
}

// WithNetworkFailureThreshold overrides the consecutive-failure threshold.
func WithNetworkFailureThreshold(threshold int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scanner.NetworkFailureThreshold = threshold
	}
}

// WithBlacklistAfterNotFound overrides the not-found blacklist threshold.
func WithBlacklistAfterNotFound(count int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scanner.BlacklistAfterNotFound = count
	}
}
