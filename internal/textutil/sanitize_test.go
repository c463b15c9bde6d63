package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCleanUploadName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"lecture.mp4", "lecture.mp4"},
		{"/tmp/lecture.mp4", "lecture.mp4"},
		{`C:\Users\bob\My Talk.mov`, "My Talk.mov"},
		{"  spaced \t  out  .mkv ", "spaced out .mkv"},
		{"what?<now>.mp4", "whatnow.mp4"},
		{"12:30 * recap.mp4", "12-30 - recap.mp4"},
		{"bell\a.mp4", "bell.mp4"},
		{"   ", ""},
		{"..", ""},
		{"dir/", ""},
	}
	for _, tc := range cases {
		if got := CleanUploadName(tc.in); got != tc.want {
			t.Fatalf("CleanUploadName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanUploadNameTruncatesKeepingExtension(t *testing.T) {
	long := strings.Repeat("é", 200) + ".webm"
	got := CleanUploadName(long)
	if len(got) > MaxFileNameBytes {
		t.Fatalf("expected at most %d bytes, got %d", MaxFileNameBytes, len(got))
	}
	if !strings.HasSuffix(got, ".webm") {
		t.Fatalf("expected extension kept, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid utf-8, got %q", got)
	}
}
