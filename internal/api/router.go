package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"videofront/internal/logging"
	"videofront/internal/metrics"
	"videofront/internal/services"
)

// Restarter requests a new transcoding attempt for a video.
type Restarter interface {
	RequestRestart(ctx context.Context, videoID string) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RouterOptions wires the HTTP surface.
type RouterOptions struct {
	Views     *Views
	Restarter Restarter
	Health    []Pinger
	// StorageRoot, when set, is served read-only under StoragePrefix.
	StorageRoot   string
	StoragePrefix string
	Logger        *slog.Logger
}

type handlers struct {
	views     *Views
	restarter Restarter
	health    []Pinger
	logger    *slog.Logger
}

// NewRouter builds the daemon's HTTP routes.
func NewRouter(opts RouterOptions) *mux.Router {
	h := &handlers{
		views:     opts.Views,
		restarter: opts.Restarter,
		health:    opts.Health,
		logger:    logging.NewComponentLogger(opts.Logger, "http"),
	}

	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Full paths on the root router keep mux's 405 for a method mismatch.
	r.HandleFunc("/api/v1/videos/{id}", h.getVideo).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/videos/{id}/restart", h.restartVideo).Methods(http.MethodPost)

	if root := strings.TrimSpace(opts.StorageRoot); root != "" {
		prefix := "/" + strings.Trim(opts.StoragePrefix, "/")
		if prefix == "/" {
			prefix = "/storage"
		}
		files := http.StripPrefix(prefix, noDirectoryListing(http.FileServer(http.Dir(root))))
		r.PathPrefix(prefix + "/").Handler(files).Methods(http.MethodGet, http.MethodHead)
	}
	return r
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, p := range h.health {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			writeJSONStatus(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Detail: err.Error()})
			return
		}
	}
	writeJSONStatus(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *handlers) getVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	view, err := h.views.Video(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, view)
}

func (h *handlers) restartVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if h.restarter == nil {
		writeJSONStatus(w, http.StatusNotImplemented, ErrorResponse{Error: "restart is not available"})
		return
	}
	if err := h.restarter.RequestRestart(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, RestartResponse{ID: id, Status: "restart-requested"})
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(h.logger, "request failed", "http_request_failed",
			logging.String(logging.FieldErrorHint, "inspect the daemon log for the underlying failure"),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	writeJSONStatus(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records request counts and latency by route template so
// video ids do not explode label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if route == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(wrapped, r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
