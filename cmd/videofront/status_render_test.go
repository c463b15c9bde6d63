package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"videofront/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Videofront", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Videofront:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Videofront", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []api.DependencyStatus{
		{Name: "FFmpeg", Available: false},
		{Name: "FFprobe", Available: true, Command: "/usr/bin/ffprobe"},
		{Name: "Extra", Available: false, Optional: true, Detail: "not configured"},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[ERROR] not available") {
		t.Fatalf("expected error detail first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (command: /usr/bin/ffprobe)") {
		t.Fatalf("expected ready detail, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] not configured") {
		t.Fatalf("expected optional dependency as warning, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "Missing dependencies") || strings.Contains(lines[3], "Extra") {
		t.Fatalf("expected only required dependencies in summary, got %q", lines[3])
	}
}

func TestColorizeStatus(t *testing.T) {
	if got := colorizeStatus("failed", false); got != "failed" {
		t.Fatalf("expected plain status, got %q", got)
	}
	if got := colorizeStatus("failed", true); got != ansiRed+"failed"+ansiReset {
		t.Fatalf("expected red failed status, got %q", got)
	}
	if videoStatusKind("restart-requested") != statusWarn || videoStatusKind("pending") != statusInfo {
		t.Fatal("unexpected status kinds")
	}
}

func TestRenderTable(t *testing.T) {
	cols := rightAligned(columns("ID", "Progress"), "Progress")
	if cols[0].Align != alignLeft || cols[1].Align != alignRight {
		t.Fatalf("unexpected alignment %+v", cols)
	}
	out := renderTable(cols, [][]string{{"abc", "50%"}, {"def"}}, false)
	for _, want := range []string{"ID", "Progress", "abc", "50%", "def"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
	if strings.Contains(out, "PROGRESS") {
		t.Fatalf("expected headers kept as written:\n%s", out)
	}
	if renderTable(nil, nil, false) != "" {
		t.Fatal("expected empty table without headers")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
