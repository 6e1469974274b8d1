package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shuttle/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.APIBind = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate with API disabled: %v", err)
	}
}

func TestAdminTokenRequiredWhenAPIEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.API.AdminToken = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when api_bind is set without admin_token")
	}
	if !strings.Contains(err.Error(), "admin_token") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMonitorThresholdsMustBeMonotonic(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.APIBind = ""
	cfg.Monitor.WarningThreshold = 30
	cfg.Monitor.CriticalThreshold = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for inverted thresholds")
	}
}

func TestUnknownPlatformRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.APIBind = ""
	cfg.Platforms.Enabled = []string{"myspace"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown platform")
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = ""

[platforms]
enabled = ["TikTok", "tiktok", " youtube "]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	want := []string{"tiktok", "youtube"}
	if len(cfg.Platforms.Enabled) != len(want) {
		t.Fatalf("expected platforms %v, got %v", want, cfg.Platforms.Enabled)
	}
	for i, name := range want {
		if cfg.Platforms.Enabled[i] != name {
			t.Fatalf("expected platforms %v, got %v", want, cfg.Platforms.Enabled)
		}
	}
	// Defaults fill in untouched sections.
	if cfg.Dispatch.BatchSize != 10 {
		t.Fatalf("expected default batch size, got %d", cfg.Dispatch.BatchSize)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[dispatch]") {
		t.Fatal("sample config missing dispatch section")
	}
}
