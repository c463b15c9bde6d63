package store

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a video's processing state.
type Status string

const (
	StatusPending          Status = "pending"
	StatusProcessing       Status = "processing"
	StatusSuccess          Status = "success"
	StatusFailed           Status = "failed"
	StatusRestartRequested Status = "restart-requested"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusSuccess,
	StatusFailed,
	StatusRestartRequested,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[status]; !ok {
		return "", fmt.Errorf("unknown status %q", value)
	}
	return status, nil
}

// IsTerminal reports whether an attempt has finished in this status.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Video is the catalog entry created once an upload is confirmed.
type Video struct {
	ID          int64
	PublicID    string
	Title       string
	Owner       string
	ThumbnailID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProcessingState tracks the current transcoding attempt of a video.
type ProcessingState struct {
	Status    Status
	Progress  float64
	StartedAt *time.Time
	Message   string
	UpdatedAt time.Time
}

// VideoFormat is one transcoded rendition.
type VideoFormat struct {
	Name    string
	Bitrate float64
}

// Subtitle is an immutable caption track attached to a video.
type Subtitle struct {
	ID        int64
	PublicID  string
	VideoID   string
	Language  string
	CreatedAt time.Time
}

// Playlist groups videos.
type Playlist struct {
	ID        int64
	PublicID  string
	Name      string
	Owner     string
	CreatedAt time.Time
}

// Reservation is a pre-allocated upload slot.
type Reservation struct {
	ID            int64
	PublicVideoID string
	ExpiresAt     time.Time
	WasUsed       bool
	LastChecked   *time.Time
	Owner         string
	Filename      string
	PlaylistID    string
	CreatedAt     time.Time
}

// Available reports whether the reservation is unconsumed and still inside
// its grace window.
func (r *Reservation) Available(now time.Time, grace time.Duration) bool {
	return !r.WasUsed && r.ExpiresAt.After(now.Add(-grace))
}

// VideoSummary joins a video with its processing state for listings.
type VideoSummary struct {
	Video
	Status   Status
	Progress float64
	Message  string
}
