package subtitles

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrFormatUndetected is returned for input that is neither WebVTT nor SRT.
var ErrFormatUndetected = errors.New("Could not detect subtitle format")

// ErrInvalidEncoding is returned for input that is not valid UTF-8.
var ErrInvalidEncoding = errors.New("subtitle file is not valid UTF-8")

const (
	byteOrderMark = "\ufeff"
	vttHeader     = "WEBVTT"
)

var srtTiming = regexp.MustCompile(`^\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})\s*-->\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})`)

// Normalize returns raw as WebVTT.
func Normalize(raw []byte) ([]byte, error) {
	if !utf8.Valid(raw) {
		return nil, ErrInvalidEncoding
	}
	text := strings.TrimPrefix(string(raw), byteOrderMark)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimLeft(text, "\n")

	switch {
	case isWebVTT(text):
		return []byte(text), nil
	case isSRT(text):
		return []byte(srtToWebVTT(text)), nil
	default:
		return nil, ErrFormatUndetected
	}
}

func isWebVTT(text string) bool {
	if !strings.HasPrefix(text, vttHeader) {
		return false
	}
	rest := text[len(vttHeader):]
	return rest == "" || rest[0] == '\n' || rest[0] == ' ' || rest[0] == '\t'
}

func isSRT(text string) bool {
	for _, block := range splitBlocks(text) {
		lines := strings.Split(block, "\n")
		if _, _, ok := findTiming(lines); ok {
			return true
		}
	}
	return false
}

func splitBlocks(text string) []string {
	var blocks []string
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, strings.Trim(block, "\n"))
		}
	}
	return blocks
}

// findTiming locates the timing line of an SRT block. The optional cue number
// may only precede it.
func findTiming(lines []string) (int, []string, bool) {
	for i, line := range lines {
		if i > 1 {
			break
		}
		if m := srtTiming.FindStringSubmatch(line); m != nil {
			return i, m, true
		}
		if _, err := strconv.Atoi(strings.TrimSpace(line)); err != nil {
			break
		}
	}
	return 0, nil, false
}

func srtToWebVTT(text string) string {
	var cues []string
	for _, block := range splitBlocks(text) {
		lines := strings.Split(block, "\n")
		idx, m, ok := findTiming(lines)
		if !ok {
			continue
		}
		var body []string
		for _, line := range lines[idx+1:] {
			if line = strings.TrimRight(line, " \t"); line != "" {
				body = append(body, line)
			}
		}
		if len(body) == 0 {
			continue
		}
		start := timestampMillis(m[1], m[2], m[3], m[4])
		end := timestampMillis(m[5], m[6], m[7], m[8])
		cues = append(cues, formatTimestamp(start)+" --> "+formatTimestamp(end)+"\n"+strings.Join(body, "\n"))
	}
	if len(cues) == 0 {
		return vttHeader + "\n"
	}
	return vttHeader + "\n\n" + strings.Join(cues, "\n\n") + "\n"
}

func timestampMillis(h, m, s, frac string) int64 {
	hours, _ := strconv.ParseInt(h, 10, 64)
	minutes, _ := strconv.ParseInt(m, 10, 64)
	seconds, _ := strconv.ParseInt(s, 10, 64)
	// "5" after the separator means 500 ms, not 5 ms.
	for len(frac) < 3 {
		frac += "0"
	}
	millis, _ := strconv.ParseInt(frac, 10, 64)
	return ((hours*60+minutes)*60+seconds)*1000 + millis
}

// formatTimestamp renders MM:SS.mmm, adding hours only when non-zero.
func formatTimestamp(ms int64) string {
	hours := ms / 3_600_000
	minutes := ms / 60_000 % 60
	seconds := ms / 1000 % 60
	millis := ms % 1000
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
	}
	return fmt.Sprintf("%02d:%02d.%03d", minutes, seconds, millis)
}
