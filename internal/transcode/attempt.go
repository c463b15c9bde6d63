package transcode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"videofront/internal/backend"
	"videofront/internal/logging"
	"videofront/internal/metrics"
	"videofront/internal/services"
	"videofront/internal/store"
)

// interruptedMessage is stored when shutdown cuts an attempt short; the
// restart sweep picks the video up again.
const interruptedMessage = "transcoding interrupted; restart requested"

func (c *Coordinator) attempt(ctx context.Context, videoID string, deleteOnFailure bool) error {
	logger := logging.WithContext(ctx, c.logger)
	video, err := c.store.GetVideo(ctx, videoID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "transcode", "load video", "Failed to load video", err)
	}
	if video == nil {
		metrics.TranscodeAttemptsTotal.WithLabelValues("skipped").Inc()
		logging.WarnWithContext(logger, "video does not exist; nothing to transcode", "transcode_video_missing",
			logging.String(logging.FieldErrorHint, "the video was deleted before the attempt started"),
		)
		return nil
	}

	startedAt := c.now()
	c.cache.Invalidate(ctx, videoID)
	defer c.cache.Invalidate(context.WithoutCancel(ctx), videoID)
	defer func() {
		metrics.TranscodeAttemptDuration.Observe(c.now().Sub(startedAt).Seconds())
	}()

	if err := c.store.ResetProcessing(ctx, videoID, startedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.purgeVanished(context.WithoutCancel(ctx), videoID)
			return nil
		}
		return services.Wrap(services.ErrTransient, "transcode", "reset state", "Failed to reset processing state", err)
	}
	logger.Info("transcoding started",
		logging.String(logging.FieldEventType, "transcode_started"),
		logging.Bool("delete_on_failure", deleteOnFailure),
	)

	failures, runErr := c.run(ctx, videoID)

	// Outcome writes must land even when the caller is shutting down.
	wctx := context.WithoutCancel(ctx)
	if current, err := c.store.GetVideo(wctx, videoID); err == nil && current == nil {
		c.purgeVanished(wctx, videoID)
		if runErr != nil && ctx.Err() == nil {
			return runErr
		}
		return nil
	}

	switch {
	case runErr != nil && ctx.Err() != nil:
		return c.interrupted(wctx, videoID, runErr)
	case runErr != nil:
		return c.aborted(wctx, videoID, failures, runErr)
	case len(failures) > 0:
		return c.failed(wctx, video, failures, deleteOnFailure)
	default:
		return c.succeeded(wctx, video, startedAt)
	}
}

// run starts the jobs and polls them until each has finished or failed. It
// returns the failure message of every failed job. A non-nil error means the
// backend misbehaved outside its contract or ctx ended.
func (c *Coordinator) run(ctx context.Context, videoID string) ([]string, error) {
	jobs, err := c.backend.StartTranscoding(ctx, videoID)
	if msg, ok := backend.IsTranscodingFailed(err); ok {
		return []string{msg}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("start transcoding: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	var (
		progress  = make([]float64, len(jobs))
		resolved  = make([]bool, len(jobs))
		remaining = len(jobs)
		failures  []string
	)
	for {
		for i, job := range jobs {
			if resolved[i] {
				continue
			}
			pct, finished, err := c.backend.CheckProgress(ctx, job)
			if msg, ok := backend.IsTranscodingFailed(err); ok {
				// The job keeps the last progress it reported.
				resolved[i] = true
				remaining--
				failures = append(failures, msg)
				metrics.TranscodeJobsFailedTotal.Inc()
				logging.WarnWithContext(logging.WithContext(ctx, c.logger), "transcoding job failed", "transcode_job_failed",
					logging.String(logging.FieldErrorHint, "the attempt continues until every job resolves"),
					logging.String("job_id", job.ID),
					logging.String("format", job.Format),
					logging.String("reason", msg),
				)
				continue
			}
			if err != nil {
				return failures, fmt.Errorf("check progress of job %s: %w", job.ID, err)
			}
			if finished {
				resolved[i] = true
				remaining--
				progress[i] = 100
				continue
			}
			progress[i] = clamp(pct, progress[i])
		}

		overall := mean(progress)
		if err := c.store.UpdateProgress(ctx, videoID, overall); err != nil && !errors.Is(err, store.ErrNotFound) {
			return failures, fmt.Errorf("record progress: %w", err)
		}
		c.cache.Invalidate(ctx, videoID)
		if remaining == 0 {
			return failures, nil
		}
		if err := c.sleep(ctx); err != nil {
			return failures, err
		}
	}
}

// clamp keeps a job's progress inside [floor, 100] so the aggregate never
// moves backward within an attempt.
func clamp(value, floor float64) float64 {
	if value > 100 {
		value = 100
	}
	if value < floor {
		return floor
	}
	return value
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func (c *Coordinator) failed(ctx context.Context, video *store.Video, failures []string, deleteOnFailure bool) error {
	logger := logging.WithContext(ctx, c.logger)
	message := strings.Join(failures, "\n")
	metrics.TranscodeAttemptsTotal.WithLabelValues("failed").Inc()
	if err := c.store.FailProcessing(ctx, video.PublicID, message); err != nil && !errors.Is(err, store.ErrNotFound) {
		return services.Wrap(services.ErrTransient, "transcode", "record failure", "Failed to record transcoding failure", err)
	}
	logging.WarnWithContext(logger, "transcoding failed", "transcode_failed",
		logging.String(logging.FieldErrorHint, "inspect the processing message; request a restart once the source is fixed"),
		logging.Int("failed_jobs", len(failures)),
		logging.Bool("delete_on_failure", deleteOnFailure),
		logging.String("message", message),
	)
	if !deleteOnFailure {
		return nil
	}
	if err := c.backend.DeleteVideo(ctx, video.PublicID); err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "purge assets", "Failed to delete assets of failed video", err)
	}
	if _, err := c.store.DeleteVideo(ctx, video.PublicID); err != nil {
		return services.Wrap(services.ErrTransient, "transcode", "purge video", "Failed to delete failed video", err)
	}
	logger.Info("failed video purged",
		logging.String(logging.FieldEventType, "video_purged"),
	)
	return nil
}

func (c *Coordinator) aborted(ctx context.Context, videoID string, failures []string, cause error) error {
	message := strings.Join(append(failures, cause.Error()), "\n")
	metrics.TranscodeAttemptsTotal.WithLabelValues("error").Inc()
	if err := c.store.FailProcessing(ctx, videoID, message); err != nil && !errors.Is(err, store.ErrNotFound) {
		return errors.Join(cause, err)
	}
	logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "transcoding attempt aborted", "transcode_error",
		logging.String(logging.FieldErrorHint, "the task is retried; check backend connectivity if this repeats"),
		logging.String(logging.FieldImpact, "video stays failed until a retry succeeds"),
		logging.Error(cause),
	)
	return services.Wrap(services.ErrTransient, "transcode", "attempt", "Transcoding attempt aborted", cause)
}

func (c *Coordinator) interrupted(ctx context.Context, videoID string, cause error) error {
	metrics.TranscodeAttemptsTotal.WithLabelValues("error").Inc()
	if err := c.store.RequestRestart(ctx, videoID, interruptedMessage); err != nil && !errors.Is(err, store.ErrNotFound) {
		return errors.Join(cause, err)
	}
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), "transcoding interrupted", "transcode_interrupted",
		logging.String(logging.FieldErrorHint, "the restart sweep resumes the video"),
	)
	return cause
}

func (c *Coordinator) succeeded(ctx context.Context, video *store.Video, startedAt time.Time) error {
	logger := logging.WithContext(ctx, c.logger)
	var notes []string
	if err := c.refreshThumbnail(ctx, video); err != nil {
		notes = append(notes, "thumbnail: "+err.Error())
		logging.WarnWithContext(logger, "thumbnail creation failed", "thumbnail_failed",
			logging.String(logging.FieldErrorHint, "the video is playable; the thumbnail is retried on the next attempt"),
			logging.Error(err),
		)
	}

	available, err := c.backend.AvailableFormats(ctx, video.PublicID)
	if err != nil {
		return c.aborted(ctx, video.PublicID, nil, fmt.Errorf("list formats: %w", err))
	}
	formats := make([]store.VideoFormat, 0, len(available))
	for _, f := range available {
		formats = append(formats, store.VideoFormat{Name: f.Name, Bitrate: f.Bitrate})
	}
	if err := c.store.CompleteProcessing(ctx, video.PublicID, formats, strings.Join(notes, "\n")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.purgeVanished(ctx, video.PublicID)
			return nil
		}
		return c.aborted(ctx, video.PublicID, nil, fmt.Errorf("record success: %w", err))
	}
	metrics.TranscodeAttemptsTotal.WithLabelValues("success").Inc()
	logger.Info("transcoding succeeded",
		logging.String(logging.FieldEventType, "transcode_succeeded"),
		logging.Int("formats", len(formats)),
		logging.Duration("elapsed", c.now().Sub(startedAt)),
	)
	return nil
}

// refreshThumbnail creates a thumbnail under a new id and drops the old one.
func (c *Coordinator) refreshThumbnail(ctx context.Context, video *store.Video) error {
	thumbnailID := store.NewPublicID()
	if err := c.backend.CreateThumbnail(ctx, video.PublicID, thumbnailID); err != nil {
		return err
	}
	if err := c.store.SetThumbnail(ctx, video.PublicID, thumbnailID); err != nil {
		return err
	}
	if video.ThumbnailID != "" && video.ThumbnailID != thumbnailID {
		if err := c.backend.DeleteThumbnail(ctx, video.PublicID, video.ThumbnailID); err != nil {
			c.logger.Debug("stale thumbnail not deleted",
				logging.String(logging.FieldVideoID, video.PublicID),
				logging.String("thumbnail_id", video.ThumbnailID),
				logging.Error(err),
			)
		}
	}
	return nil
}

// purgeVanished removes the assets of a video whose row was deleted while an
// attempt was in flight.
func (c *Coordinator) purgeVanished(ctx context.Context, videoID string) {
	logger := logging.WithContext(ctx, c.logger)
	metrics.TranscodeAttemptsTotal.WithLabelValues("skipped").Inc()
	if err := c.backend.DeleteVideo(ctx, videoID); err != nil {
		logging.WarnWithContext(logger, "orphaned assets not deleted", "orphan_cleanup_failed",
			logging.String(logging.FieldErrorHint, "delete the video's storage prefix manually"),
			logging.Error(err),
		)
		return
	}
	logger.Info("video deleted during transcoding; assets removed",
		logging.String(logging.FieldEventType, "orphan_assets_deleted"),
	)
}
