package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"videofront/internal/api"
	"videofront/internal/config"
	"videofront/internal/daemonrun"
	"videofront/internal/preflight"
	"videofront/internal/store"
)

// Snapshot summarizes daemon and environment state for the status command.
type Snapshot struct {
	Running      bool
	PID          int
	LockFilePath string
	DatabasePath string
	APIBind      string
	Health       string
	HealthDetail string
	VideoCounts  map[string]int
	Dependencies []api.DependencyStatus
	Checks       []preflight.Result
}

// ProcessInfo reports whether a daemon holds the state directory lock and,
// when it does, the pid it recorded.
func ProcessInfo(cfg *config.Config) (bool, int, error) {
	lockPath := cfg.DaemonLockPath()
	if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
		return false, 0, nil
	}
	probe := flock.New(lockPath)
	ok, err := probe.TryLock()
	if err != nil {
		return false, 0, fmt.Errorf("probe daemon lock: %w", err)
	}
	if ok {
		_ = probe.Unlock()
		return false, 0, nil
	}
	return true, readPID(filepath.Join(cfg.Paths.LogDir, daemonrun.PIDFileName)), nil
}

func readPID(path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0
	}
	return pid
}

// BuildStatusSnapshot gathers daemon liveness, HTTP health, per-status video
// counts, dependency availability, and preflight results.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{
		LockFilePath: cfg.DaemonLockPath(),
		DatabasePath: cfg.DatabasePath(),
		APIBind:      cfg.Paths.APIBind,
		VideoCounts:  map[string]int{},
	}

	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return nil, err
	}
	snap.Running = running
	snap.PID = pid
	if running {
		snap.Health, snap.HealthDetail = probeHealth(ctx, cfg.Paths.APIBind)
	} else {
		snap.Health = "stopped"
	}

	if _, statErr := os.Stat(cfg.DatabasePath()); statErr == nil {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if st, openErr := store.Open(cfg); openErr == nil {
			if rows, listErr := st.ListVideos(queryCtx); listErr == nil {
				for _, row := range api.FromSummaries(rows) {
					snap.VideoCounts[row.Status]++
				}
			}
			_ = st.Close()
		}
	}

	for _, dep := range preflight.CheckSystemDeps(cfg) {
		snap.Dependencies = append(snap.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	snap.Checks = preflight.RunAll(ctx, cfg)
	return snap, nil
}

// probeHealth queries the daemon's /healthz endpoint.
func probeHealth(ctx context.Context, bind string) (string, string) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return "unknown", "api_bind is empty"
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "unknown", err.Error()
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+net.JoinHostPort(host, port)+"/healthz", nil)
	if err != nil {
		return "unknown", err.Error()
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "unreachable", err.Error()
	}
	defer resp.Body.Close()
	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "unknown", fmt.Sprintf("decode health: %v", err)
	}
	return health.Status, health.Detail
}
