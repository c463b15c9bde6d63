// Package language normalizes subtitle language codes on top of
// golang.org/x/text/language. Subtitles are always stored under their
// two-letter ISO 639-1 code.
package language
