package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"videofront/internal/api"
	"videofront/internal/logging"
	"videofront/internal/services"
)

type stubRestarter struct {
	ids []string
	err error
}

func (s *stubRestarter) RequestRestart(_ context.Context, videoID string) error {
	s.ids = append(s.ids, videoID)
	return s.err
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouterVideoEndpoints(t *testing.T) {
	f := newFixture(t)
	f.transcoded(t, "vid")
	restarter := &stubRestarter{}
	router := api.NewRouter(api.RouterOptions{Views: f.views, Restarter: restarter, Logger: logging.NewNop()})

	rec := serve(t, router, http.MethodGet, "/api/v1/videos/vid")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET video: status %d body %s", rec.Code, rec.Body.String())
	}
	var view api.Video
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID != "vid" || len(view.Formats) != 2 {
		t.Fatalf("unexpected view %#v", view)
	}

	if rec := serve(t, router, http.MethodGet, "/api/v1/videos/missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = serve(t, router, http.MethodPost, "/api/v1/videos/vid/restart")
	if rec.Code != http.StatusAccepted || len(restarter.ids) != 1 || restarter.ids[0] != "vid" {
		t.Fatalf("restart: status %d ids %v", rec.Code, restarter.ids)
	}

	restarter.err = services.Wrap(services.ErrNotFound, "test", "restart", "gone", nil)
	if rec := serve(t, router, http.MethodPost, "/api/v1/videos/gone/restart"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on restart of missing video, got %d", rec.Code)
	}

	if rec := serve(t, router, http.MethodDelete, "/api/v1/videos/vid"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if rec := serve(t, router, http.MethodGet, "/api/v1/videos/vid/restart"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET on restart, got %d", rec.Code)
	}
	if rec := serve(t, router, http.MethodGet, "/api/v1/nothing"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", rec.Code)
	}
}

func TestRouterHealthz(t *testing.T) {
	ok := api.PingFunc(func(context.Context) error { return nil })
	router := api.NewRouter(api.RouterOptions{Health: []api.Pinger{ok}, Logger: logging.NewNop()})
	if rec := serve(t, router, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	down := api.PingFunc(func(context.Context) error { return errors.New("redis down") })
	router = api.NewRouter(api.RouterOptions{Health: []api.Pinger{ok, down}, Logger: logging.NewNop()})
	rec := serve(t, router, http.MethodGet, "/healthz")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "redis down") {
		t.Fatalf("expected degraded health, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouterMetrics(t *testing.T) {
	router := api.NewRouter(api.RouterOptions{Logger: logging.NewNop()})
	serve(t, router, http.MethodGet, "/healthz")
	rec := serve(t, router, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "videofront_http_requests_total") {
		t.Fatalf("expected prometheus exposition, got %d", rec.Code)
	}
}

func TestRouterServesStorage(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "videos", "vid"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "videos", "vid", "LD.mp4"), []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}
	router := api.NewRouter(api.RouterOptions{StorageRoot: root, StoragePrefix: "/storage", Logger: logging.NewNop()})

	rec := serve(t, router, http.MethodGet, "/storage/videos/vid/LD.mp4")
	if rec.Code != http.StatusOK || rec.Body.String() != "mp4" {
		t.Fatalf("expected file, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(t, router, http.MethodGet, "/storage/videos/vid/"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected directory listing to be refused, got %d", rec.Code)
	}
}
