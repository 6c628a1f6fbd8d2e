// Package mux concatenates per-line audio clips into one artifact and
// annotates chapter boundaries from measured clip durations (spec.md
// §4.6, component C6).
package mux

import (
	"context"
	"fmt"
	"log/slog"
)

// Chapter is one annotated segment of the final (or degraded) artifact.
type Chapter struct {
	Index   int
	Speaker string
	Text    string
	StartMS int64
	EndMS   int64
	PartURL string
}

// Clip is one input to the muxer: a clip's file path plus the line it
// renders (for chapter labeling).
type Clip struct {
	Path    string
	URL     string
	Speaker string
	Text    string
}

// Artifact is the final product of a generate-audio request.
type Artifact struct {
	URL        string
	Parts      []string // populated only in degraded mode
	Chapters   []Chapter
	DurationMS int64
	Degraded   bool
}

// Muxer concatenates clips via ffmpeg and probes exact durations via
// ffprobe.
type Muxer struct {
	ffmpeg *FFmpegRunner
	log    *slog.Logger
}

func New(audioDir string, log *slog.Logger) *Muxer {
	if log == nil {
		log = slog.Default()
	}
	return &Muxer{ffmpeg: NewFFmpegRunner(audioDir), log: log}
}

// ProbeSingleClipDurationMS exposes the ffprobe duration measurement for a
// single file, for callers (e.g. multi-speaker one-call synthesis) that
// bypass concatenation entirely but still need a measured duration.
func (m *Muxer) ProbeSingleClipDurationMS(ctx context.Context, path string) (int64, error) {
	return m.ffmpeg.ProbeDurationMS(ctx, path)
}

// Mux concatenates clips in input order into a single artifact. clips[i]
// corresponds to lines[i] by construction — callers build Clip.Speaker
// and Clip.Text from the same Line slice used to synthesize the clips.
//
// If concatenation fails, Mux degrades gracefully: it returns an Artifact
// whose URL is the first clip's URL, Parts lists every clip's URL,
// Chapters are still populated (but timestamps are then relative to each
// clip rather than the merged file), and Degraded is true (spec.md §4.6
// "fallback to parts").
func (m *Muxer) Mux(ctx context.Context, basename string, clips []Clip) (Artifact, error) {
	if len(clips) == 0 {
		return Artifact{}, fmt.Errorf("mux requires at least one clip")
	}

	durations := make([]int64, len(clips))
	for i, c := range clips {
		d, err := m.ffmpeg.ProbeDurationMS(ctx, c.Path)
		if err != nil {
			m.log.Warn("duration probe failed, degrading to parts", "clip", c.Path, "error", err)
			return m.degrade(clips, nil), nil
		}
		durations[i] = d
	}

	if len(clips) == 1 {
		return Artifact{
			URL:        clips[0].URL,
			Chapters:   []Chapter{chapterAt(0, clips[0], 0, durations[0], clips[0].URL)},
			DurationMS: durations[0],
		}, nil
	}

	mergedPath, err := m.ffmpeg.Concatenate(ctx, basename, clipPaths(clips))
	if err != nil {
		m.log.Warn("ffmpeg concat failed, degrading to parts", "error", err)
		return m.degrade(clips, durations), nil
	}

	mergedDuration, err := m.ffmpeg.ProbeDurationMS(ctx, mergedPath)
	if err != nil {
		m.log.Warn("post-concat duration probe failed, degrading to parts", "error", err)
		return m.degrade(clips, durations), nil
	}

	chapters := make([]Chapter, len(clips))
	var cursor int64
	mergedURL := "/audio/" + basename
	for i, c := range clips {
		chapters[i] = chapterAt(i, c, cursor, cursor+durations[i], mergedURL)
		cursor += durations[i]
	}

	return Artifact{
		URL:        mergedURL,
		Chapters:   chapters,
		DurationMS: mergedDuration,
	}, nil
}

// degrade builds the "fallback to parts" Artifact: chapters are still
// populated, but timestamps are relative to each clip: start_ms is always
// 0, and end_ms is the clip's own duration (0 when durations is nil
// because a probe failed).
func (m *Muxer) degrade(clips []Clip, durations []int64) Artifact {
	chapters := make([]Chapter, len(clips))
	parts := make([]string, len(clips))
	var total int64
	for i, c := range clips {
		var d int64
		if durations != nil {
			d = durations[i]
		}
		chapters[i] = chapterAt(i, c, 0, d, c.URL)
		parts[i] = c.URL
		total += d
	}
	return Artifact{
		URL:        clips[0].URL,
		Parts:      parts,
		Chapters:   chapters,
		DurationMS: total,
		Degraded:   true,
	}
}

func chapterAt(index int, c Clip, startMS, endMS int64, partURL string) Chapter {
	return Chapter{
		Index:   index,
		Speaker: c.Speaker,
		Text:    c.Text,
		StartMS: startMS,
		EndMS:   endMS,
		PartURL: partURL,
	}
}

func clipPaths(clips []Clip) []string {
	paths := make([]string, len(clips))
	for i, c := range clips {
		paths[i] = c.Path
	}
	return paths
}
