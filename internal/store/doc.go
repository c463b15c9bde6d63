// Package store persists the video catalog in SQLite.
//
// It owns the schema (videos, processing states, formats, subtitles,
// playlists, and upload reservations), retries writes that hit SQLITE_BUSY,
// and exposes narrowly scoped methods whose SQL encodes the orchestrator's
// race-tolerant update patterns: get-or-create on public ids, monotonic
// last_checked stamps, and delete-then-insert format replacement.
//
// Lookups return (nil, nil) when a row does not exist; mutations that target
// a missing video return ErrNotFound.
package store
