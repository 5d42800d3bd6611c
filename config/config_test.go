package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadAppliesFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkdee.yaml")
	yamlBody := strings.TrimSpace(`
server:
  port: "9090"
  allowed_origins:
    - https://admin.example.com
database:
  driver: sqlite
  url: "file::memory:"
lifecycle:
  enforce_photo_counts: true
  min_radius_meters: 10
  max_radius_meters: 5000
`)
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("expected env to override port, got %q", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected driver from file, got %q", cfg.Database.Driver)
	}
	if !cfg.Lifecycle.EnforcePhotoCounts {
		t.Fatalf("expected photo count enforcement from file")
	}
	if cfg.Lifecycle.MaxRadiusMeters != 5000 {
		t.Fatalf("expected max radius 5000, got %v", cfg.Lifecycle.MaxRadiusMeters)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://admin.example.com" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "mysql"
	cfg.Lifecycle.MinRadiusMeters = 500
	cfg.Lifecycle.MaxRadiusMeters = 100

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"DB_DRIVER", "DB_URL", "JWT_SECRET", "radius"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("CHECKDEE_INT", "abc")
	t.Setenv("CHECKDEE_BOOL", "maybe")
	t.Setenv("CHECKDEE_LIST", " a, ,b ")

	if got := getEnvAsInt("CHECKDEE_INT", 3); got != 3 {
		t.Fatalf("expected fallback 3, got %d", got)
	}
	if got := getEnvAsBool("CHECKDEE_BOOL", true); !got {
		t.Fatalf("expected fallback true")
	}
	if got := splitList(os.Getenv("CHECKDEE_LIST")); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list %v", got)
	}
}
