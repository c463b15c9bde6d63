package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"videofront/internal/backend"
	"videofront/internal/cache"
	"videofront/internal/logging"
	"videofront/internal/metrics"
	"videofront/internal/services"
	"videofront/internal/store"
)

// Views assembles and caches video read models.
type Views struct {
	store   *store.Store
	backend backend.Backend
	cache   *cache.VideoCache
	logger  *slog.Logger
}

// NewViews constructs Views. A nil cache disables caching.
func NewViews(st *store.Store, b backend.Backend, vc *cache.VideoCache, logger *slog.Logger) *Views {
	return &Views{store: st, backend: b, cache: vc, logger: logging.NewComponentLogger(logger, "views")}
}

// Video returns the read model of videoID, from the cache when possible.
func (v *Views) Video(ctx context.Context, videoID string) (*Video, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, services.Wrap(services.ErrValidation, "views", "video", "video id is required", nil)
	}
	logger := logging.WithContext(services.WithVideoID(ctx, videoID), v.logger)

	if v.cache != nil {
		var cached Video
		hit, err := v.cache.Get(ctx, videoID, &cached)
		switch {
		case err != nil:
			metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
			logging.WarnWithContext(logger, "video cache read failed", "cache_read_failed",
				logging.String(logging.FieldErrorHint, "check redis connectivity"),
				logging.String(logging.FieldImpact, "views are rebuilt from the database"),
				logging.Error(err),
			)
		case hit:
			metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
			return &cached, nil
		default:
			metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		}
	}

	var (
		generation int64
		cacheable  = v.cache != nil
	)
	if cacheable {
		var err error
		if generation, err = v.cache.Generation(ctx, videoID); err != nil {
			logger.Debug("video cache generation read failed", logging.Error(err))
			cacheable = false
		}
	}
	view, err := v.build(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := v.cache.Set(ctx, videoID, generation, view); err != nil {
			logger.Debug("video cache write failed", logging.Error(err))
		}
	}
	return view, nil
}

func (v *Views) build(ctx context.Context, videoID string) (*Video, error) {
	video, err := v.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, notFound(videoID)
	}
	state, err := v.store.GetProcessingState(ctx, videoID)
	if err != nil {
		return nil, err
	}
	formats, err := v.store.ListFormats(ctx, videoID)
	if err != nil {
		return nil, err
	}
	subs, err := v.store.ListSubtitles(ctx, videoID)
	if err != nil {
		return nil, err
	}
	playlists, err := v.store.VideoPlaylistIDs(ctx, videoID)
	if err != nil {
		return nil, err
	}
	view := &Video{
		ID:          video.PublicID,
		Title:       video.Title,
		Owner:       video.Owner,
		Processing:  FromProcessingState(state),
		Formats:     FromFormats(v.backend, videoID, formats),
		Subtitles:   FromSubtitles(v.backend, videoID, subs),
		PlaylistIDs: playlists,
		CreatedAt:   FormatTime(video.CreatedAt),
		UpdatedAt:   FormatTime(video.UpdatedAt),
	}
	if video.ThumbnailID != "" {
		view.ThumbnailURL = v.backend.ThumbnailURL(videoID, video.ThumbnailID)
	}
	return view, nil
}

// List returns video summaries, optionally filtered by status.
func (v *Views) List(ctx context.Context, statuses ...store.Status) ([]VideoSummary, error) {
	rows, err := v.store.ListVideos(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromSummaries(rows), nil
}

// Delete removes a video's stored assets and its catalog entry.
func (v *Views) Delete(ctx context.Context, videoID string) error {
	video, err := v.store.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if video == nil {
		return notFound(videoID)
	}
	defer v.cache.Invalidate(ctx, videoID)
	if err := v.backend.DeleteVideo(ctx, videoID); err != nil {
		return services.Wrap(services.ErrExternalTool, "views", "delete assets", videoID, err)
	}
	if _, err := v.store.DeleteVideo(ctx, videoID); err != nil {
		return err
	}
	logging.WithContext(services.WithVideoID(ctx, videoID), v.logger).Info("video deleted",
		logging.String(logging.FieldEventType, "video_deleted"))
	return nil
}

// Rename changes the title of a video.
func (v *Views) Rename(ctx context.Context, videoID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return services.Wrap(services.ErrValidation, "views", "rename", "title is required", nil)
	}
	if err := v.store.UpdateVideoTitle(ctx, videoID, title); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(videoID)
		}
		return err
	}
	v.cache.Invalidate(ctx, videoID)
	return nil
}

func notFound(videoID string) error {
	return services.Wrap(services.ErrNotFound, "views", "video", fmt.Sprintf("video %s does not exist", videoID), nil)
}
