package subtitles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"videofront/internal/backend"
	"videofront/internal/cache"
	"videofront/internal/language"
	"videofront/internal/logging"
	"videofront/internal/services"
	"videofront/internal/store"
)

// DefaultMaxBytes bounds the size of an uploaded subtitle file.
const DefaultMaxBytes = 5 * 1024 * 1024

// Service attaches normalized subtitles to videos.
type Service struct {
	store    *store.Store
	backend  backend.Backend
	cache    *cache.VideoCache
	maxBytes int64
	logger   *slog.Logger
}

// NewService wires a subtitle service. A non-positive maxBytes selects
// DefaultMaxBytes.
func NewService(st *store.Store, b backend.Backend, vc *cache.VideoCache, maxBytes int64, logger *slog.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{
		store:    st,
		backend:  b,
		cache:    vc,
		maxBytes: maxBytes,
		logger:   logging.NewComponentLogger(logger, "subtitles"),
	}
}

// Upload normalizes raw, stores it under a fresh subtitle id, and records it.
// ErrFormatUndetected is returned unwrapped so its message reaches users as is;
// input that is not UTF-8 fails with ErrInvalidEncoding and no domain marker.
func (s *Service) Upload(ctx context.Context, videoID, lang string, raw []byte) (*store.Subtitle, error) {
	ctx = services.WithVideoID(ctx, videoID)
	if int64(len(raw)) > s.maxBytes {
		return nil, services.Wrap(services.ErrValidation, "subtitles", "upload",
			fmt.Sprintf("subtitle file is %d bytes, limit is %d", len(raw), s.maxBytes), nil)
	}
	code, err := language.ToISO2(lang)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "subtitles", "upload", "invalid language", err)
	}
	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrNotFound, "subtitles", "upload", "video "+videoID+" does not exist", nil)
	}

	content, err := Normalize(raw)
	if errors.Is(err, ErrFormatUndetected) {
		return nil, err
	}
	if err != nil {
		// Undecodable bytes are a hard failure, not a domain validation error.
		return nil, fmt.Errorf("subtitles: upload: decode subtitle: %w", err)
	}

	subtitleID := store.NewPublicID()
	if err := s.backend.UploadSubtitle(ctx, videoID, subtitleID, code, content); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "subtitles", "upload", "store subtitle file", err)
	}
	sub, _, err := s.store.CreateSubtitle(ctx, videoID, subtitleID, code)
	if err != nil {
		if cleanupErr := s.backend.DeleteSubtitle(ctx, videoID, subtitleID); cleanupErr != nil {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "orphaned subtitle file", "subtitle_cleanup_failed",
				logging.String("subtitle_id", subtitleID),
				logging.Error(cleanupErr),
			)
		}
		return nil, fmt.Errorf("record subtitle: %w", err)
	}
	s.cache.Invalidate(ctx, videoID)
	logging.WithContext(ctx, s.logger).Info("subtitle added",
		logging.String(logging.FieldEventType, "subtitle_added"),
		logging.String("subtitle_id", subtitleID),
		logging.String("language", code),
		logging.Int("bytes", len(content)),
	)
	return sub, nil
}

// Delete removes a subtitle from the backend and the catalog.
func (s *Service) Delete(ctx context.Context, subtitleID string) error {
	sub, err := s.store.GetSubtitle(ctx, subtitleID)
	if err != nil {
		return err
	}
	if sub == nil {
		return services.Wrap(services.ErrNotFound, "subtitles", "delete", "subtitle "+subtitleID+" does not exist", nil)
	}
	ctx = services.WithVideoID(ctx, sub.VideoID)
	if err := s.backend.DeleteSubtitle(ctx, sub.VideoID, sub.PublicID); err != nil {
		return services.Wrap(services.ErrExternalTool, "subtitles", "delete", "remove subtitle file", err)
	}
	if err := s.store.DeleteSubtitle(ctx, sub.PublicID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.cache.Invalidate(ctx, sub.VideoID)
	logging.WithContext(ctx, s.logger).Info("subtitle deleted",
		logging.String(logging.FieldEventType, "subtitle_deleted"),
		logging.String("subtitle_id", sub.PublicID),
	)
	return nil
}
