// Package local implements backend.Backend on the local filesystem with
// ffmpeg as the transcoder.
//
// Everything lives under <storage_root>/videos/<video-id>/:
//
//	src/<filename>            uploaded source
//	<format>.mp4              one rendition per configured preset
//	subs/<id>.<lang>.vtt      subtitles
//	thumbs/<id>.jpg           thumbnails
//
// Transcoding jobs run as ffmpeg child processes owned by the Backend; their
// progress is read back from ffmpeg's -progress report.
package local
