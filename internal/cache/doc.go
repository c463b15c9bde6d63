// Package cache holds the shared read-model cache for assembled video views.
//
// Entries are JSON documents keyed "VIDEO:<public-id>" with a fixed TTL.
// Nothing here invalidates implicitly: every code path that mutates a video,
// its processing state, formats, or subtitles calls VideoCache.Invalidate.
package cache
