package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Name identifies a task handler.
type Name string

const (
	ReconcileUploads  Name = "reconcile_uploads"
	TranscodeVideo    Name = "transcode_video"
	RestartTranscodes Name = "restart_transcodes"
	PruneReservations Name = "prune_reservations"
)

// Names lists every task in a stable order.
func Names() []Name {
	return []Name{ReconcileUploads, TranscodeVideo, RestartTranscodes, PruneReservations}
}

// ParseName validates a task name.
func ParseName(value string) (Name, error) {
	name := Name(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Names() {
		if name == known {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown task %q", value)
}

// Task is one unit of queued work.
type Task struct {
	ID              string    `json:"id"`
	Name            Name      `json:"name"`
	VideoID         string    `json:"video_id,omitempty"`
	VideoIDs        []string  `json:"video_ids,omitempty"`
	DeleteOnFailure bool      `json:"delete_on_failure,omitempty"`
	Attempt         int       `json:"attempt,omitempty"`
	EnqueuedAt      time.Time `json:"enqueued_at"`
}

func newTask(name Name) Task {
	return Task{ID: uuid.NewString(), Name: name, EnqueuedAt: time.Now().UTC()}
}

// Reconcile builds a reconcile_uploads task, optionally limited to videoIDs.
func Reconcile(videoIDs ...string) Task {
	t := newTask(ReconcileUploads)
	t.VideoIDs = videoIDs
	return t
}

// Transcode builds a transcode_video task.
func Transcode(videoID string, deleteOnFailure bool) Task {
	t := newTask(TranscodeVideo)
	t.VideoID = videoID
	t.DeleteOnFailure = deleteOnFailure
	return t
}

// Restart builds a restart_transcodes task.
func Restart() Task {
	return newTask(RestartTranscodes)
}

// Prune builds a prune_reservations task.
func Prune() Task {
	return newTask(PruneReservations)
}

// Retry returns a copy of t for the next delivery attempt.
func (t Task) Retry() Task {
	next := t
	next.Attempt++
	next.EnqueuedAt = time.Now().UTC()
	return next
}

// Encode serializes t for a queue.
func (t Task) Encode() ([]byte, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return json.Marshal(t)
}

// Decode parses a queued task.
func Decode(raw []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if _, err := ParseName(string(t.Name)); err != nil {
		return Task{}, err
	}
	if t.Name == TranscodeVideo && strings.TrimSpace(t.VideoID) == "" {
		return Task{}, fmt.Errorf("decode task: %s requires a video id", t.Name)
	}
	return t, nil
}
