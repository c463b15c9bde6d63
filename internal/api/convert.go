package api

import (
	"time"

	"videofront/internal/backend"
	"videofront/internal/store"
)

// FormatTime renders t for API payloads; the zero time renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

// FromProcessingState converts a stored state. A video that was never
// queued reports pending with zero progress.
func FromProcessingState(state *store.ProcessingState) ProcessingState {
	if state == nil {
		return ProcessingState{Status: string(store.StatusPending)}
	}
	return ProcessingState{
		Status:    string(state.Status),
		Progress:  state.Progress,
		Message:   state.Message,
		StartedAt: formatOptionalTime(state.StartedAt),
		UpdatedAt: FormatTime(state.UpdatedAt),
	}
}

// FromFormats attaches streaming URLs to stored formats.
func FromFormats(b backend.Backend, videoID string, formats []store.VideoFormat) []Format {
	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		out = append(out, Format{Name: f.Name, Bitrate: f.Bitrate, URL: b.StreamingURL(videoID, f.Name)})
	}
	return out
}

// FromSubtitles attaches download URLs to stored subtitles.
func FromSubtitles(b backend.Backend, videoID string, subs []*store.Subtitle) []Subtitle {
	out := make([]Subtitle, 0, len(subs))
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		out = append(out, Subtitle{ID: sub.PublicID, Language: sub.Language, URL: b.SubtitleURL(videoID, sub.PublicID, sub.Language)})
	}
	return out
}

// FromSummaries converts listing rows.
func FromSummaries(rows []*store.VideoSummary) []VideoSummary {
	out := make([]VideoSummary, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		status := string(row.Status)
		if status == "" {
			status = string(store.StatusPending)
		}
		out = append(out, VideoSummary{
			ID:        row.PublicID,
			Title:     row.Title,
			Owner:     row.Owner,
			Status:    status,
			Progress:  row.Progress,
			Message:   row.Message,
			CreatedAt: FormatTime(row.CreatedAt),
		})
	}
	return out
}
