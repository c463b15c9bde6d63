package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"videofront/internal/config"
)

// ResolveBinary returns the absolute path of command when it can be found,
// either as a path to an executable file or on PATH. Otherwise the trimmed
// command is returned unchanged so status output shows what was looked for.
func ResolveBinary(command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	if strings.ContainsRune(command, filepath.Separator) {
		if info, err := os.Stat(command); err == nil && isExecutable(info) {
			if abs, err := filepath.Abs(command); err == nil {
				return abs
			}
		}
		return command
	}
	if resolved, err := exec.LookPath(command); err == nil {
		return resolved
	}
	return command
}

// Requirements lists the external binaries the configured backend needs.
// The aws backend transcodes remotely and needs none.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil || cfg.Backend.Kind != config.BackendLocal {
		return nil
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ResolveBinary(cfg.Local.FFmpegBinary),
			Description: "Required for local transcoding and thumbnails",
		},
		{
			Name:        "FFprobe",
			Command:     ResolveBinary(cfg.Local.FFprobeBinary),
			Description: "Required to read source durations for progress",
		},
	}
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
