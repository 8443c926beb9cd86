package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ":memory:"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 8084 {
		t.Errorf("expected default port 8084, got %d", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("expected default cache backend, got %q", cfg.Cache.Backend)
	}
	if cfg.Consistency.CheckInterval != time.Minute {
		t.Errorf("expected default check interval, got %s", cfg.Consistency.CheckInterval)
	}
	if cfg.Consistency.TransactionTimeout != 5*time.Minute {
		t.Errorf("expected default transaction timeout, got %s", cfg.Consistency.TransactionTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level, got %q", cfg.Logging.Level)
	}
	if cfg.Shutdown.Timeout != 30*time.Second {
		t.Errorf("expected default shutdown timeout, got %s", cfg.Shutdown.Timeout)
	}
}

func TestLoad_NormalizesJobs(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ":memory:"
consistency:
  jobs:
    - id: nightly
      enabled: true
    - id: weekly
      interval: 168h
      strategy: manual_review
      enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Consistency.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(cfg.Consistency.Jobs))
	}

	nightly := cfg.Consistency.Jobs[0]
	if nightly.Interval != 15*time.Minute {
		t.Errorf("expected default job interval, got %s", nightly.Interval)
	}
	if nightly.Strategy != "database_wins" {
		t.Errorf("expected default strategy, got %q", nightly.Strategy)
	}
	if !nightly.Enabled {
		t.Error("expected nightly enabled")
	}

	weekly := cfg.Consistency.Jobs[1]
	if weekly.Interval != 168*time.Hour || weekly.Strategy != "manual_review" {
		t.Errorf("expected explicit values preserved, got %+v", weekly)
	}
	if weekly.Enabled {
		t.Error("expected explicit enabled=false preserved")
	}
}

func TestLoad_RejectsUnknownStrategy(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ":memory:"
consistency:
  jobs:
    - id: nightly
      strategy: coin_flip
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation failure for unknown strategy")
	}
}

func TestLoad_RejectsDuplicateJobIDs(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ":memory:"
consistency:
  jobs:
    - id: nightly
    - id: nightly
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate job id") {
		t.Fatalf("expected duplicate job id error, got %v", err)
	}
}

func TestValidate_AuthRequiresSecret(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}
	cfg.Auth.Enabled = true

	if err := Validate(cfg); err == nil {
		t.Fatal("expected missing jwt secret to fail validation")
	}

	cfg.Auth.JWTSecret = "test-secret"
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestDump_RedactsSecrets(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}
	cfg.Auth.JWTSecret = "super-secret"
	cfg.Cache.Redis.Password = "hunter2"

	out, err := cfg.Dump()
	if err != nil {
		t.Fatalf("Dump() failed: %v", err)
	}
	if strings.Contains(out, "super-secret") || strings.Contains(out, "hunter2") {
		t.Error("expected secrets redacted in dump")
	}
	if !strings.Contains(out, "[redacted]") {
		t.Error("expected redaction marker in dump")
	}
}
