package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"videofront/internal/api"
	"videofront/internal/app"
	"videofront/internal/config"
	"videofront/internal/logging"
)

const shutdownTimeout = 10 * time.Second

type apiServer struct {
	bind   string
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, a *app.App, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	opts := api.RouterOptions{
		Views:     a.Views,
		Restarter: a.Coordinator,
		Health:    []api.Pinger{api.PingFunc(a.Ping)},
		Logger:    logger,
	}
	if cfg.Backend.Kind == config.BackendLocal {
		opts.StorageRoot = cfg.Local.StorageRoot
		opts.StoragePrefix = storagePrefix(cfg.Local.BaseURL)
	}
	return &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		server: &http.Server{
			Handler:           api.NewRouter(opts),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// storagePrefix is the path part of the local backend's base URL; files are
// only served by the daemon when that URL points back at it.
func storagePrefix(baseURL string) string {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || strings.Trim(u.Path, "/") == "" {
		return "/storage"
	}
	return "/" + strings.Trim(u.Path, "/")
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.String(logging.FieldErrorHint, "check the api_bind address"),
				logging.Error(err),
			)
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
