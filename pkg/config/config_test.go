package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithNoFileOrEnv(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseDir != "." {
		t.Errorf("base dir: got %q", cfg.BaseDir)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("fetch timeout: got %v", cfg.FetchTimeout)
	}
	if cfg.SessionConcurrency != 1 {
		t.Errorf("session concurrency: got %d", cfg.SessionConcurrency)
	}
	if cfg.LoaderConcurrency != 8 {
		t.Errorf("loader concurrency: got %d", cfg.LoaderConcurrency)
	}
}

func TestLoad_YAMLFileIsRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "base_dir: /rigs\nsession_concurrency: 4\nregistry_templates:\n  - https://example.com/{publisher}/{name}/{version}.tar\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseDir != "/rigs" {
		t.Errorf("base dir: got %q", cfg.BaseDir)
	}
	if cfg.SessionConcurrency != 4 {
		t.Errorf("session concurrency: got %d", cfg.SessionConcurrency)
	}
	if len(cfg.RegistryTemplates) != 1 {
		t.Fatalf("registry templates: got %v", cfg.RegistryTemplates)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("session_concurrency: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SLIPWAY_SESSION_CONCURRENCY", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SessionConcurrency != 2 {
		t.Errorf("expected env to win, got %d", cfg.SessionConcurrency)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheDir == "" {
		t.Error("expected default cache dir")
	}
}
