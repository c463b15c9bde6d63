// Package ffprobe runs ffprobe and reduces its JSON report to the duration,
// bitrate, and stream facts the local backend needs for progress reporting
// and thumbnail placement.
package ffprobe
