package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != Default().Workers {
		t.Fatalf("Workers = %d, want default %d", cfg.Workers, Default().Workers)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bang.toml")
	body := "workers = 8\nmeta_root = \"/tmp/meta\"\nexclude_globs = [\"**/*.core\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 8 {
		t.Fatalf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.MetaRoot != "/tmp/meta" {
		t.Fatalf("MetaRoot = %q", cfg.MetaRoot)
	}
	if !cfg.Excluded("dumps/app.core") {
		t.Fatalf("expected dumps/app.core to match exclude glob")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := Default()
	cfg.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for zero workers")
	}

	cfg = Default()
	cfg.ExcludeGlobs = []string{"[invalid"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for invalid glob")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("BANG_WORKERS", "16")
	t.Setenv("BANG_META_ROOT", "/var/bang-meta")

	cfg := Default().ApplyEnv()
	if cfg.Workers != 16 {
		t.Fatalf("Workers = %d, want 16", cfg.Workers)
	}
	if cfg.MetaRoot != "/var/bang-meta" {
		t.Fatalf("MetaRoot = %q", cfg.MetaRoot)
	}
}
