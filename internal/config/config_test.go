package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seedwright.yaml")

	content := `version: 1
target:
  host: localhost
  port: 5432
  database: testdb
  username: testuser
  password: testpass
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}
	if cfg.Target.Schema != "public" {
		t.Errorf("expected default schema public, got %s", cfg.Target.Schema)
	}
	if cfg.Target.MaxConnections != 10 {
		t.Errorf("expected default max_connections 10, got %d", cfg.Target.MaxConnections)
	}
	if cfg.Seed.Mode != "auto_fix" {
		t.Errorf("expected default seed mode auto_fix, got %s", cfg.Seed.Mode)
	}
	if cfg.Seed.BatchSize != 100 {
		t.Errorf("expected default batch_size 100, got %d", cfg.Seed.BatchSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadInvalidVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seedwright.yaml")

	content := `version: 99
target:
  host: localhost
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for unsupported version")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestResolveEnvSecret(t *testing.T) {
	t.Setenv("SEEDWRIGHT_TEST_PASSWORD", "hunter2")

	dir := t.TempDir()
	path := filepath.Join(dir, "seedwright.yaml")

	content := `version: 1
target:
  host: localhost
  database: testdb
  username: testuser
  password: ${ENV:SEEDWRIGHT_TEST_PASSWORD}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Target.Password != "hunter2" {
		t.Errorf("expected resolved password, got %q", cfg.Target.Password)
	}
}

func TestResolveEnvSecretMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seedwright.yaml")

	content := `version: 1
target:
  password: ${ENV:SEEDWRIGHT_DEFINITELY_NOT_SET}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for unset env var")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seedwright.yaml")

	cfg := &Config{
		Version: 1,
		Target: TargetConfig{
			Host:     "db.example.com",
			Port:     5433,
			Database: "appdb",
			Username: "seeder",
		},
	}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Target.Host != "db.example.com" || loaded.Target.Port != 5433 {
		t.Errorf("round trip mismatch: %+v", loaded.Target)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	got := ExpandHome("~/.seedwright/seedwright.yaml")
	want := filepath.Join(home, ".seedwright", "seedwright.yaml")
	if got != want {
		t.Errorf("ExpandHome = %q, want %q", got, want)
	}

	if got := ExpandHome("/absolute/path"); got != "/absolute/path" {
		t.Errorf("absolute path should pass through, got %q", got)
	}
}
