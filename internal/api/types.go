package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Video is the read model of one video.
type Video struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Owner        string          `json:"owner,omitempty"`
	Processing   ProcessingState `json:"processing"`
	Formats      []Format        `json:"formats"`
	Subtitles    []Subtitle      `json:"subtitles"`
	ThumbnailURL string          `json:"thumbnailUrl,omitempty"`
	PlaylistIDs  []string        `json:"playlistIds,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
}

// ProcessingState captures the current transcoding attempt of a video.
type ProcessingState struct {
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message"`
	StartedAt string  `json:"startedAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// Format is one playable rendition.
type Format struct {
	Name    string  `json:"name"`
	Bitrate float64 `json:"bitrate"`
	URL     string  `json:"url"`
}

// Subtitle is one caption track.
type Subtitle struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	URL      string `json:"url"`
}

// VideoSummary is a listing row.
type VideoSummary struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Owner     string  `json:"owner,omitempty"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// RestartResponse acknowledges a restart request.
type RestartResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
