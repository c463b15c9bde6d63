package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"videofront/internal/logging"
)

// VideoKeyPrefix prefixes every cached video view.
const VideoKeyPrefix = "VIDEO:"

// DefaultTTL is the lifetime of a cached video view.
const DefaultTTL = time.Hour

// GenerationKeyPrefix prefixes the invalidation counter of a video.
const GenerationKeyPrefix = "VIDEO_GEN:"

// VideoKey returns the cache key of a video.
func VideoKey(videoID string) string {
	return VideoKeyPrefix + videoID
}

// GenerationKey returns the key of a video's invalidation counter.
func GenerationKey(videoID string) string {
	return GenerationKeyPrefix + videoID
}

// entry is the stored form of a view, tagged with the generation that was
// current before the view was read from the database.
type entry struct {
	Generation int64           `json:"gen"`
	View       json.RawMessage `json:"view"`
}

// VideoCache stores assembled video views as JSON.
type VideoCache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewVideoCache wraps store. A non-positive ttl selects DefaultTTL.
func NewVideoCache(store Store, ttl time.Duration, logger *slog.Logger) *VideoCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &VideoCache{store: store, ttl: ttl, logger: logging.NewComponentLogger(logger, "cache")}
}

// Get decodes the cached view of videoID into dest. It reports false on a
// miss. Undecodable entries are dropped and treated as a miss; entries
// written under an older generation are a miss.
func (c *VideoCache) Get(ctx context.Context, videoID string, dest any) (bool, error) {
	raw, err := c.store.Get(ctx, VideoKey(videoID))
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err == nil {
		err = json.Unmarshal(e.View, dest)
	}
	if err != nil {
		c.logger.Debug("dropping undecodable cache entry",
			logging.String(logging.FieldVideoID, videoID), logging.Error(err))
		_ = c.store.Delete(ctx, VideoKey(videoID))
		return false, nil
	}
	current, err := c.Generation(ctx, videoID)
	if err != nil {
		return false, err
	}
	return e.Generation == current, nil
}

// Generation returns the invalidation counter of videoID. Read it before
// loading the data passed to Set.
func (c *VideoCache) Generation(ctx context.Context, videoID string) (int64, error) {
	raw, err := c.store.Get(ctx, GenerationKey(videoID))
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode generation of %s: %w", videoID, err)
	}
	return n, nil
}

// Set stores value as the view of videoID, built from data read after
// generation was observed. An Invalidate in between makes the entry stale.
func (c *VideoCache) Set(ctx context.Context, videoID string, generation int64, value any) error {
	view, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode video view: %w", err)
	}
	raw, err := json.Marshal(entry{Generation: generation, View: view})
	if err != nil {
		return fmt.Errorf("encode video view: %w", err)
	}
	return c.store.Set(ctx, VideoKey(videoID), raw, c.ttl)
}

// Invalidate advances the generation of videoID and drops its cached view.
// Failures are logged, not returned: a stale view expires after the TTL.
func (c *VideoCache) Invalidate(ctx context.Context, videoID string) {
	if c == nil {
		return
	}
	_, err := c.store.Incr(ctx, GenerationKey(videoID), 2*c.ttl)
	if err == nil {
		err = c.store.Delete(ctx, VideoKey(videoID))
	}
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "cache invalidation failed", "cache_invalidate_failed",
			logging.String(logging.FieldVideoID, videoID),
			logging.String(logging.FieldImpact, "clients may see a stale video view until the entry expires"),
			logging.Error(err),
		)
	}
}
