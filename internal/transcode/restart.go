package transcode

import (
	"context"
	"errors"

	"videofront/internal/logging"
	"videofront/internal/services"
	"videofront/internal/store"
)

// RequestRestartMessage is stored on videos marked by an operator.
const RequestRestartMessage = "restart requested"

// RequestRestart marks videoID for the restart sweep.
func (c *Coordinator) RequestRestart(ctx context.Context, videoID string) error {
	ctx = services.WithVideoID(ctx, videoID)
	if err := c.store.RequestRestart(ctx, videoID, RequestRestartMessage); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return services.Wrap(services.ErrNotFound, "transcode", "request restart", "video "+videoID+" does not exist", nil)
		}
		return services.Wrap(services.ErrTransient, "transcode", "request restart", "Failed to mark video for restart", err)
	}
	c.cache.Invalidate(ctx, videoID)
	logging.WithContext(ctx, c.logger).Info("restart requested",
		logging.String(logging.FieldEventType, "restart_requested"),
	)
	return nil
}

// RestartRequested runs an attempt for every video marked restart-requested.
// Assets are kept when such an attempt fails. Videos whose lock is held are
// skipped and stay marked. It returns the number of attempts started; errors
// of individual attempts are joined.
func (c *Coordinator) RestartRequested(ctx context.Context) (int, error) {
	ids, err := c.store.VideoIDsWithStatus(ctx, store.StatusRestartRequested)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "transcode", "restart sweep", "Failed to list restart requests", err)
	}
	var (
		started int
		errs    []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return started, err
		}
		running, err := c.Running(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if running {
			continue
		}
		started++
		if err := c.Transcode(ctx, id, false); err != nil {
			errs = append(errs, err)
		}
	}
	return started, errors.Join(errs...)
}
