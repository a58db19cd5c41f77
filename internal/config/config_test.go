package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", cfg.Project.Version)
	}
	if cfg.Project.Oracle.Backend != BackendHTTP || cfg.Project.Oracle.Model != defaultModel {
		t.Fatalf("unexpected oracle defaults: %+v", cfg.Project.Oracle)
	}
	if cfg.Debounce() != 800*time.Millisecond {
		t.Fatalf("debounce = %s, want 800ms", cfg.Debounce())
	}
	if cfg.Retries() != 2 {
		t.Fatalf("retries = %d, want 2", cfg.Retries())
	}
	if cfg.Project.Bridge.Enabled || cfg.Project.Bridge.Port != defaultBridgePort {
		t.Fatalf("unexpected bridge defaults: %+v", cfg.Project.Bridge)
	}
}

func TestInitDirWritesParsableTemplate(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(projectDir, Dir, "logs")); err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("template did not parse: %v", err)
	}
	if cfg.Project.Oracle.Timeout.Std() != 30*time.Second {
		t.Fatalf("timeout = %s, want 30s", cfg.Project.Oracle.Timeout.Std())
	}
	// A second init must not clobber user edits.
	path := cfg.ProjectConfigPath()
	if err := os.WriteFile(path, []byte("version: 1\npipeline:\n  debounce: 250ms\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("second InitDir: %v", err)
	}
	cfg, err = NewConfig(projectDir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Debounce() != 250*time.Millisecond {
		t.Fatalf("debounce = %s, want 250ms", cfg.Debounce())
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
oracle:
  backend: Script
  script: scripts/oracle.go
  max_retries: 0
pipeline:
  debounce: 1500
bridge:
  enabled: true
  port: 9000
logging:
  level: DEBUG
  format: json
`)
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Project.Oracle.Backend != BackendScript {
		t.Fatalf("backend = %q, want script", cfg.Project.Oracle.Backend)
	}
	if want := filepath.Join(projectDir, "scripts", "oracle.go"); cfg.Project.Oracle.Script != want {
		t.Fatalf("script = %q, want %q", cfg.Project.Oracle.Script, want)
	}
	if cfg.Retries() != 0 {
		t.Fatalf("explicit max_retries: 0 was overwritten: %d", cfg.Retries())
	}
	if cfg.Debounce() != 1500*time.Millisecond {
		t.Fatalf("integer debounce should read as milliseconds, got %s", cfg.Debounce())
	}
	if !cfg.Project.Bridge.Enabled || cfg.Project.Bridge.Port != 9000 {
		t.Fatalf("unexpected bridge: %+v", cfg.Project.Bridge)
	}
	if cfg.Project.Logging.Level != "debug" || cfg.Project.Logging.Format != "json" {
		t.Fatalf("unexpected logging: %+v", cfg.Project.Logging)
	}
}

func TestValidateRejectsScriptBackendWithoutScript(t *testing.T) {
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte("oracle:\n  backend: script\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewConfig(projectDir); err == nil || !strings.Contains(err.Error(), "oracle.script") {
		t.Fatalf("expected oracle.script error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GREENLIGHT_ORACLE_MODEL", "local-llama")
	t.Setenv("GREENLIGHT_BRIDGE_ENABLED", "true")
	t.Setenv("GREENLIGHT_BRIDGE_PORT", "9911")
	t.Setenv("GREENLIGHT_LOG_LEVEL", "WARN")
	t.Setenv("GREENLIGHT_API_KEY", " sk-test ")
	cfg, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Project.Oracle.Model != "local-llama" || !cfg.Project.Bridge.Enabled || cfg.Project.Bridge.Port != 9911 {
		t.Fatalf("env overrides not applied: %+v", cfg.Project)
	}
	if cfg.Project.Logging.Level != "warn" {
		t.Fatalf("log level = %q, want warn", cfg.Project.Logging.Level)
	}
	if cfg.APIKey() != "sk-test" {
		t.Fatalf("api key = %q", cfg.APIKey())
	}
}
