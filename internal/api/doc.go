// Package api defines the wire-format types and the read-only HTTP surface
// of the daemon. It translates store rows into transport-friendly DTOs that
// players and operator tooling can render without coupling to internal types.
//
// # Key Types
//
// Video: the assembled read model of one video, with processing state,
// formats and their streaming URLs, subtitles, and the thumbnail URL.
//
// Views: builds Video values, consulting the video cache first and
// populating it on a miss. Mutations that go through Views (delete, rename)
// invalidate the cached entry.
//
// # Routes
//
// NewRouter mounts /healthz, /metrics, GET /api/v1/videos/{id} and
// POST /api/v1/videos/{id}/restart, plus a file server for the local
// backend's storage root when one is configured.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Statuses are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds.
package api
