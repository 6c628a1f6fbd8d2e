package mux

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FFmpegRunner wraps the ffmpeg/ffprobe subprocesses used for
// concatenation and duration probing (spec.md §6 "Audio tools"). The
// core consumes these as external processes and never depends on their
// internal APIs.
type FFmpegRunner struct {
	audioDir string
}

func NewFFmpegRunner(audioDir string) *FFmpegRunner {
	return &FFmpegRunner{audioDir: audioDir}
}

// ProbeDurationMS invokes ffprobe to measure a file's exact duration.
// Durations are measured, never estimated from text or byte length
// (spec.md §4.6).
func (r *FFmpegRunner) ProbeDurationMS(ctx context.Context, path string) (int64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, stderr.String())
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", out.String(), err)
	}
	return int64(seconds * 1000), nil
}

// Concatenate joins clipPaths in order into audioDir/basename using
// ffmpeg's concat demuxer, re-encoding to the uniform target (clips may
// differ in sample rate, channel count, or codec; spec.md §4.6). Writes
// via temp-then-rename so a half-written merged file is never observable
// under its final name.
func (r *FFmpegRunner) Concatenate(ctx context.Context, basename string, clipPaths []string) (string, error) {
	if len(clipPaths) == 0 {
		return "", fmt.Errorf("concatenate requires at least one clip")
	}

	listFile, err := os.CreateTemp(r.audioDir, ".concat-list-*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list file: %w", err)
	}
	defer os.Remove(listFile.Name())

	var list strings.Builder
	for _, p := range clipPaths {
		list.WriteString(fmt.Sprintf("file '%s'\n", escapeConcatPath(p)))
	}
	if _, err := listFile.WriteString(list.String()); err != nil {
		listFile.Close()
		return "", fmt.Errorf("write concat list file: %w", err)
	}
	if err := listFile.Close(); err != nil {
		return "", fmt.Errorf("close concat list file: %w", err)
	}

	finalPath := filepath.Join(r.audioDir, basename)
	tmpOut, err := os.CreateTemp(r.audioDir, ".tmp-merge-*.mp3")
	if err != nil {
		return "", fmt.Errorf("create temp merge output: %w", err)
	}
	tmpOutPath := tmpOut.Name()
	tmpOut.Close()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", listFile.Name(),
		"-ar", "44100", "-b:a", "160k",
		tmpOutPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(tmpOutPath)
		return "", fmt.Errorf("ffmpeg concat failed: %w: %s", err, stderr.String())
	}

	if err := os.Rename(tmpOutPath, finalPath); err != nil {
		os.Remove(tmpOutPath)
		return "", fmt.Errorf("rename merged output: %w", err)
	}
	return finalPath, nil
}

func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
