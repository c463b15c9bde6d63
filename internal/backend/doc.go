// Package backend defines the storage and transcoding capability the
// orchestrator programs against.
//
// A Backend stores uploaded sources, subtitles, and thumbnails, starts one
// transcoding job per output format, reports job progress, and enumerates the
// formats that exist once transcoding finishes. Two implementations ship with
// videofront: backend/local (filesystem + ffmpeg) and backend/aws (S3 +
// Elastic Transcoder). The daemon picks one at startup from backend.kind.
package backend
