package preflight

import (
	"context"
	"strings"

	"videofront/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if cfg.Backend.Kind == config.BackendLocal {
		results = append(results, CheckDirectoryAccess("Storage root", cfg.Local.StorageRoot))
		results = append(results, CheckFreeSpace("Storage free space", cfg.Local.StorageRoot, cfg.Local.MinFreeGiB))
	}

	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		results = append(results, CheckRedis(ctx, cfg.Redis))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
