package backend

import (
	"context"
	"errors"
	"io"
)

// ErrNotUploaded reports that no source file exists yet for a video.
var ErrNotUploaded = errors.New("video not uploaded")

// TranscodingFailedError is the terminal failure of one transcoding job.
type TranscodingFailedError struct {
	Message string
}

func (e *TranscodingFailedError) Error() string {
	return e.Message
}

// Failed returns a TranscodingFailedError carrying message.
func Failed(message string) error {
	return &TranscodingFailedError{Message: message}
}

// Job is the handle of one provider-side transcoding job.
type Job struct {
	ID     string `json:"id"`
	Format string `json:"format"`
}

// Format is one available rendition of a video.
type Format struct {
	Name    string
	Bitrate float64
}

// Backend is the provider capability used by the upload monitor, the
// transcoding coordinator, and the subtitle service.
type Backend interface {
	// Upload stores the source file of a video.
	Upload(ctx context.Context, videoID, filename string, r io.Reader) error
	// StartTranscoding starts one job per output format.
	StartTranscoding(ctx context.Context, videoID string) ([]Job, error)
	// CheckProgress reports a job's percent complete and whether it finished.
	// A terminal job failure is returned as *TranscodingFailedError.
	CheckProgress(ctx context.Context, job Job) (float64, bool, error)
	// AvailableFormats lists the renditions that exist for a video.
	AvailableFormats(ctx context.Context, videoID string) ([]Format, error)
	CreateThumbnail(ctx context.Context, videoID, thumbnailID string) error
	// DeleteVideo removes every stored asset of a video.
	DeleteVideo(ctx context.Context, videoID string) error
	DeleteThumbnail(ctx context.Context, videoID, thumbnailID string) error
	// CheckUploaded returns ErrNotUploaded while the source file is absent.
	CheckUploaded(ctx context.Context, videoID string) error
	UploadSubtitle(ctx context.Context, videoID, subtitleID, language string, content []byte) error
	DeleteSubtitle(ctx context.Context, videoID, subtitleID string) error
	StreamingURL(videoID, format string) string
	SubtitleURL(videoID, subtitleID, language string) string
	ThumbnailURL(videoID, thumbnailID string) string
}

// IsTranscodingFailed reports whether err is a job failure and returns its
// message.
func IsTranscodingFailed(err error) (string, bool) {
	var failed *TranscodingFailedError
	if errors.As(err, &failed) {
		return failed.Message, true
	}
	return "", false
}
