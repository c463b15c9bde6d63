package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"videofront/internal/config"
)

func TestLoadEnvFileFeedsRedisFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("REDIS_ADDR", "")
	os.Unsetenv("REDIS_ADDR")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("REDIS_ADDR=10.0.0.5:6379\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := config.LoadEnvFile(""); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.Addr != "10.0.0.5:6379" {
		t.Fatalf("expected redis addr from .env, got %q", cfg.Redis.Addr)
	}
}

func TestLoadEnvFileKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.env")
	if err := os.WriteFile(path, []byte("SQS_QUEUE_URL=https://from-file\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SQS_QUEUE_URL", "https://from-shell")
	if err := config.LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("SQS_QUEUE_URL"); got != "https://from-shell" {
		t.Fatalf("expected shell value to win, got %q", got)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := config.LoadEnvFile(""); err != nil {
		t.Fatalf("missing default .env should be ignored: %v", err)
	}
	if err := config.LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}
