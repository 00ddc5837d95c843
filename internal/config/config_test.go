package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Name != "selene" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.StateDir != ".selene" {
		t.Errorf("state dir = %q", cfg.StateDir)
	}
	if cfg.Pipeline.MaxRepairAttempts != 2 {
		t.Errorf("max repair attempts = %d, want 2", cfg.Pipeline.MaxRepairAttempts)
	}
	if cfg.Router.ConfidenceThreshold != 0.6 {
		t.Errorf("confidence threshold = %v, want 0.6", cfg.Router.ConfidenceThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config file must not be an error: %v", err)
	}
	if cfg.Version != Default().Version {
		t.Errorf("version = %q", cfg.Version)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `state_dir: /tmp/selene-test
pipeline:
  max_repair_attempts: 3
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StateDir != "/tmp/selene-test" {
		t.Errorf("state dir = %q", cfg.StateDir)
	}
	if cfg.Pipeline.MaxRepairAttempts != 3 {
		t.Errorf("max repair attempts = %d", cfg.Pipeline.MaxRepairAttempts)
	}
	// Untouched fields keep their defaults.
	if cfg.Critique.WorkerCount != Default().Critique.WorkerCount {
		t.Errorf("worker count = %d", cfg.Critique.WorkerCount)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SELENE_STATE_DIR", "/var/lib/selene")
	t.Setenv("SELENE_DB_PATH", "/var/lib/selene/db.sqlite")
	t.Setenv("SELENE_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StateDir != "/var/lib/selene" {
		t.Errorf("state dir = %q", cfg.StateDir)
	}
	if cfg.Store.DatabasePath != "/var/lib/selene/db.sqlite" {
		t.Errorf("db path = %q", cfg.Store.DatabasePath)
	}
	if !cfg.Logging.DebugMode {
		t.Error("SELENE_DEBUG did not enable debug mode")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MaxRepairAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero repair attempts must be rejected")
	}

	cfg = Default()
	cfg.Router.ConfidenceThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("confidence threshold above 1 must be rejected")
	}

	cfg = Default()
	cfg.Critique.WorkerCount = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero workers must be rejected")
	}
}

func TestParseDuration(t *testing.T) {
	if got := parseDuration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("parseDuration(250ms) = %v", got)
	}
	if got := parseDuration("", time.Second); got != time.Second {
		t.Errorf("empty input must return fallback, got %v", got)
	}
	if got := parseDuration("garbage", 2*time.Second); got != 2*time.Second {
		t.Errorf("malformed input must return fallback, got %v", got)
	}
}
