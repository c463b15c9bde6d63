// Package aws implements backend.Backend with S3 for storage and Elastic
// Transcoder for renditions.
//
// Object layout in the bucket:
//
//	videos/<id>/src/<filename>
//	videos/<id>/<format>.mp4
//	videos/<id>/subs/<subtitle-id>.<lang>.vtt
//	videos/<id>/thumbs/00001.png ...
//
// Thumbnails are produced by Elastic Transcoder itself through the
// thumbnail pattern attached to the designated preset's output.
package aws
