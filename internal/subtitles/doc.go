// Package subtitles converts uploaded caption files to WebVTT and stores them
// through the configured backend.
//
// Normalize is a pure function: identical input always yields identical
// output, and WebVTT input comes back unchanged once the BOM and leading
// blank lines are stripped. SRT input is converted cue by cue. Anything else
// fails with ErrFormatUndetected, whose message is shown to users as is.
package subtitles
