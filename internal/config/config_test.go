package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Catalog.Path != filepath.Join(cfg.DataDir, "catalog.db") {
		t.Errorf("catalog path = %q", cfg.Catalog.Path)
	}
	if cfg.Results.DSN != filepath.Join(cfg.DataDir, "results.db") {
		t.Errorf("results dsn = %q", cfg.Results.DSN)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "s3"
	cfg.Results.Driver = "mysql"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"s3.bucket", "results driver", "log format"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should mention %q", msg, want)
		}
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lakestage.yaml")
	content := `
data_dir: /var/lib/lakestage
storage:
  type: s3
  s3:
    bucket: lake
    region: eu-west-1
    use_path_style: true
results:
  driver: postgres
  dsn: postgres://localhost/dq
purge:
  concurrency: 4
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Storage.S3.Bucket != "lake" || !cfg.Storage.S3.UsePathStyle {
		t.Errorf("unexpected s3 config: %+v", cfg.Storage.S3)
	}
	if cfg.Results.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Results.Driver)
	}
	// untouched fields keep defaults
	if cfg.Artifacts.SpecPrefix != "etl/transformation-spec" {
		t.Errorf("spec prefix = %q", cfg.Artifacts.SpecPrefix)
	}
	if cfg.Purge.Concurrency != 4 {
		t.Errorf("purge concurrency = %d", cfg.Purge.Concurrency)
	}
}

func TestLoadFromFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected error for .toml config")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LAKESTAGE_STORAGE_TYPE", "s3")
	t.Setenv("LAKESTAGE_S3_BUCKET", "env-bucket")
	t.Setenv("LAKESTAGE_PURGE_CONCURRENCY", "16")
	t.Setenv("LAKESTAGE_LOG_FORMAT", "json")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Storage.Type != "s3" || cfg.Storage.S3.Bucket != "env-bucket" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Purge.Concurrency != 16 {
		t.Errorf("purge concurrency = %d", cfg.Purge.Concurrency)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %q", cfg.Log.Format)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "lake")
	cfg.Resolve()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if _, err := os.Stat(cfg.Storage.Path); err != nil {
		t.Errorf("storage path not created: %v", err)
	}
}
