package tasks

import (
	"context"

	"videofront/internal/uploads"
)

// UploadMonitor is the upload side of the orchestrator.
type UploadMonitor interface {
	Reconcile(ctx context.Context, publicVideoIDs ...string) (uploads.Result, error)
	ReconcileLocked(ctx context.Context) (uploads.Result, error)
	PruneExpired(ctx context.Context) (int64, error)
}

// Transcoder is the transcoding side of the orchestrator.
type Transcoder interface {
	Transcode(ctx context.Context, videoID string, deleteOnFailure bool) error
	RestartRequested(ctx context.Context) (int, error)
}

// Handlers maps every task name onto the orchestrator.
//
// A reconcile task without ids is the periodic sweep and runs under the
// monitor lock; one with ids is an on-demand check and does not.
func Handlers(monitor UploadMonitor, transcoder Transcoder) map[Name]Handler {
	return map[Name]Handler{
		ReconcileUploads: func(ctx context.Context, t Task) error {
			if len(t.VideoIDs) > 0 {
				_, err := monitor.Reconcile(ctx, t.VideoIDs...)
				return err
			}
			_, err := monitor.ReconcileLocked(ctx)
			return err
		},
		TranscodeVideo: func(ctx context.Context, t Task) error {
			return transcoder.Transcode(ctx, t.VideoID, t.DeleteOnFailure)
		},
		RestartTranscodes: func(ctx context.Context, _ Task) error {
			_, err := transcoder.RestartRequested(ctx)
			return err
		},
		PruneReservations: func(ctx context.Context, _ Task) error {
			_, err := monitor.PruneExpired(ctx)
			return err
		},
	}
}

// Enqueuer adapts q to the upload monitor's transcode hook.
func Enqueuer(q Queue) uploads.EnqueueFunc {
	return func(ctx context.Context, videoID string, deleteOnFailure bool) error {
		return q.Enqueue(ctx, Transcode(videoID, deleteOnFailure))
	}
}
