package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"videofront/internal/config"
	"videofront/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("disk", dir, 0); !result.Passed {
		t.Fatalf("expected zero minimum to pass, got %s", result.Detail)
	}
	if result := CheckFreeSpace("disk", dir, 1<<30); result.Passed {
		t.Fatal("expected an exabyte minimum to fail")
	}
	if result := CheckFreeSpace("disk", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected statfs failure for missing path")
	}
}

func TestCheckRedis(t *testing.T) {
	server := miniredis.RunT(t)
	if result := CheckRedis(context.Background(), config.Redis{Addr: server.Addr()}); !result.Passed {
		t.Fatalf("expected reachable redis, got %s", result.Detail)
	}
	addr := server.Addr()
	server.Close()
	if result := CheckRedis(context.Background(), config.Redis{Addr: addr}); result.Passed {
		t.Fatal("expected closed redis to fail")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_LocalBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Local.MinFreeGiB = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected state, storage and disk checks, got %#v", results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %#v", failed)
	}
}

func TestRunAll_IncludesRedisWhenConfigured(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := testsupport.NewConfig(t, testsupport.WithRedis(server.Addr()), testsupport.WithBackend(config.BackendAWS))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 2 || results[1].Name != "Redis" || !results[1].Passed {
		t.Fatalf("unexpected results %#v", results)
	}
}
