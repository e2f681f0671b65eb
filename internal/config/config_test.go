package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing config")
	}
	if cfg.Catalog.BaseURL != defaultCatalogBaseURL {
		t.Errorf("catalog base url: got %q, want %q", cfg.Catalog.BaseURL, defaultCatalogBaseURL)
	}
	if cfg.Scanner.NetworkFailureThreshold != defaultNetworkFailureThreshold {
		t.Errorf("network failure threshold: got %d, want %d",
			cfg.Scanner.NetworkFailureThreshold, defaultNetworkFailureThreshold)
	}
}

func TestLoadExpandsAndDeduplicatesRoots(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
[paths]
model_roots = ["` + dir + `/models", "` + dir + `/models", "  "]
cache_dir = "` + dir + `/cache"
log_dir = "` + dir + `/logs"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Errorf("resolved path: got %q, want %q", resolved, configPath)
	}
	if len(cfg.Paths.ModelRoots) != 1 {
		t.Fatalf("expected 1 deduplicated root, got %d: %v", len(cfg.Paths.ModelRoots), cfg.Paths.ModelRoots)
	}
	if !filepath.IsAbs(cfg.Paths.ModelRoots[0]) {
		t.Errorf("root not absolute: %q", cfg.Paths.ModelRoots[0])
	}
}

func TestValidateRejectsAggressiveRateLimit(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	cfg.Catalog.RequestDelayMS = 50
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for request_delay_ms below minimum")
	}
	if !strings.Contains(err.Error(), "request_delay_ms") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown log format")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.CacheDir = filepath.Join(dir, "cache")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, sub := range []string{"cache", "logs"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			t.Errorf("directory %q not created", sub)
		}
	}
}

func TestSocketAndDatabasePathsDeriveFromCacheDir(t *testing.T) {
	cfg := Default()
	cfg.Paths.CacheDir = "/tmp/shelf-cache"
	if got := cfg.DatabasePath(); got != "/tmp/shelf-cache/modelcache.db" {
		t.Errorf("DatabasePath: got %q", got)
	}
	if got := cfg.SocketPath(); got != "/tmp/shelf-cache/modelshelfd.sock" {
		t.Errorf("SocketPath: got %q", got)
	}
}
