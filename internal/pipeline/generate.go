// Package pipeline orchestrates a generate-audio request end-to-end:
// ScriptSynth → TTSDispatcher → Muxer, per the state machine in spec.md
// §4.6, with CacheKey-based request coalescing (spec.md §5).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/pagecast/pagecast/internal/mux"
	"github.com/pagecast/pagecast/internal/scriptsynth"
	"github.com/pagecast/pagecast/internal/tts"
)

// Request is the resolved input to a generate-audio call: exactly one
// source of text has already been selected by the caller (raw text, or a
// page/whole-document lookup against the library+index), per spec.md §6.
type Request struct {
	SourceText      string
	Podcast         bool
	TwoSpeakers     bool
	Accent          string
	Style           string
	Expressiveness  string
	SpeakersOverride map[string]string // label -> voice
	DefaultVoiceA   string
	DefaultVoiceB   string
}

// Artifact is the pipeline's response shape, mirroring mux.Artifact plus
// the originating CacheKey for observability.
type Artifact struct {
	URL        string
	Parts      []string
	Chapters   []mux.Chapter
	DurationMS int64
	Degraded   bool
	CacheKey   string
}

// Pipeline wires the three core components and coalesces concurrent
// identical requests by CacheKey.
type Pipeline struct {
	synth      *scriptsynth.Synthesizer
	dispatcher *tts.Dispatcher
	muxer      *mux.Muxer
	artifacts  *artifactCache
	flight     singleflight.Group
	log        *slog.Logger
}

// New constructs a Pipeline. audioDir backs the artifact manifest cache
// that lets a repeat request with the same script CacheKey short-circuit
// the LLM and every TTS provider after a restart (spec.md §5/§8).
func New(synth *scriptsynth.Synthesizer, dispatcher *tts.Dispatcher, muxer *mux.Muxer, audioDir string, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{synth: synth, dispatcher: dispatcher, muxer: muxer, artifacts: newArtifactCache(audioDir), log: log}
}

// Generate runs the full state machine for one request. Concurrent calls
// sharing a script CacheKey coalesce onto one computation (spec.md §5:
// "duplicate LLM/TTS work is forbidden"), and a CacheKey whose artifact is
// already on disk (from this process or a prior one) short-circuits before
// the coalesced computation ever calls the LLM or a TTS provider.
func (p *Pipeline) Generate(ctx context.Context, req Request) (Artifact, error) {
	if req.SourceText == "" {
		return Artifact{}, apierr.New(apierr.CodeInvalidRequest, "source text must not be empty")
	}

	mode := scriptsynth.ModeNarration
	if req.TwoSpeakers {
		mode = scriptsynth.ModeDialogue
	}
	hints := scriptsynth.StyleHints{
		Podcast:        req.Podcast,
		TwoSpeakers:    req.TwoSpeakers,
		Accent:         req.Accent,
		Style:          req.Style,
		Expressiveness: req.Expressiveness,
	}
	cacheKey := scriptsynth.ComputeCacheKey(req.SourceText, mode, hints)

	if artifact, ok := p.artifacts.get(cacheKey); ok {
		return artifact, nil
	}

	result, err, _ := p.flight.Do(cacheKey, func() (any, error) {
		return p.generateUncoalesced(ctx, req, mode, hints, cacheKey)
	})
	if err != nil {
		return Artifact{}, err
	}
	return result.(Artifact), nil
}

func (p *Pipeline) generateUncoalesced(ctx context.Context, req Request, mode scriptsynth.Mode, hints scriptsynth.StyleHints, cacheKey string) (Artifact, error) {
	// Re-check inside the coalescing group: another goroutine may have
	// populated the manifest (and lost the singleflight race to get here
	// first) between the pre-check above and this call actually running.
	if artifact, ok := p.artifacts.get(cacheKey); ok {
		return artifact, nil
	}

	script, err := p.synth.Synthesize(ctx, req.SourceText, mode, hints)
	if err != nil {
		return Artifact{}, err
	}

	style := req.Style

	var result Artifact
	if script.Mode == scriptsynth.ModeNarration {
		voice := req.DefaultVoiceA
		if v, ok := req.SpeakersOverride["Speaker 1"]; ok {
			voice = v
		}
		clip, err := p.dispatcher.SynthesizeLine(ctx, script.Narration, voice, style)
		if err != nil {
			return Artifact{}, err
		}
		artifact, err := p.muxer.Mux(ctx, cacheKey+"-merged.mp3", []mux.Clip{
			{Path: clip.Path, URL: clip.URL, Speaker: "Speaker 1", Text: script.Narration},
		})
		if err != nil {
			return Artifact{}, err
		}
		result = toArtifact(artifact, cacheKey)
	} else {
		dialogueResult, err := p.generateDialogue(ctx, script, req, style, cacheKey)
		if err != nil {
			return Artifact{}, err
		}
		result = dialogueResult
	}

	if err := p.artifacts.put(cacheKey, result); err != nil {
		p.log.Warn("failed to persist artifact manifest, restart short-circuit unavailable for this request", "cache_key", cacheKey, "error", err)
	}
	return result, nil
}

func (p *Pipeline) generateDialogue(ctx context.Context, script scriptsynth.Script, req Request, style, cacheKey string) (Artifact, error) {
	lines := make([]tts.MultiSpeakerLine, len(script.Lines))
	for i, l := range script.Lines {
		voice := req.DefaultVoiceA
		if l.Speaker == "Speaker 2" {
			voice = req.DefaultVoiceB
		}
		if v, ok := req.SpeakersOverride[l.Speaker]; ok {
			voice = v
		}
		lines[i] = tts.MultiSpeakerLine{Speaker: l.Speaker, Text: l.Text, Voice: voice}
	}

	if clip, err := p.dispatcher.SynthesizeMultispeaker(ctx, lines, style); err == nil {
		chapters := make([]mux.Chapter, len(script.Lines))
		for i, l := range script.Lines {
			chapters[i] = mux.Chapter{Index: i, Speaker: l.Speaker, Text: l.Text, PartURL: clip.URL}
		}
		// A single multi-speaker blob has no internal timestamps to probe
		// per line, so chapter boundaries are estimated by distributing the
		// measured whole-clip duration across chapters proportional to each
		// line's text length. This keeps the contiguity invariant (start_ms
		// of chapter i+1 == end_ms of chapter i) intact at the cost of exact
		// per-line boundaries, which only the fan-out path can measure.
		duration, probeErr := p.muxer.ProbeSingleClipDurationMS(ctx, clip.Path)
		degraded := probeErr != nil
		if probeErr == nil && len(chapters) > 0 {
			distributeChapterTimestamps(chapters, duration)
		}
		return Artifact{
			URL:        clip.URL,
			Chapters:   chapters,
			DurationMS: duration,
			Degraded:   degraded,
			CacheKey:   cacheKey,
		}, nil
	}

	results, err := p.dispatcher.FanOutLines(ctx, lines, style)
	if err != nil {
		return Artifact{}, err
	}

	clips := make([]mux.Clip, 0, len(results))
	for i, r := range results {
		if r.Err != nil {
			p.log.Warn("line synthesis failed, omitting from mux input", "index", i, "error", r.Err)
			continue
		}
		clips = append(clips, mux.Clip{
			Path:    r.Clip.Path,
			URL:     r.Clip.URL,
			Speaker: lines[i].Speaker,
			Text:    lines[i].Text,
		})
	}
	if len(clips) == 0 {
		return Artifact{}, apierr.New(apierr.CodeAllProvidersFailed, "no lines synthesized successfully")
	}

	artifact, err := p.muxer.Mux(ctx, cacheKey+"-merged.mp3", clips)
	if err != nil {
		return Artifact{}, fmt.Errorf("mux dialogue clips: %w", err)
	}
	return toArtifact(artifact, cacheKey), nil
}

// distributeChapterTimestamps allocates totalMS across chapters
// proportional to each chapter's text length, so every chapter gets a
// contiguous, monotonically increasing [StartMS, EndMS) range even though
// none of them were individually measured. The last chapter's EndMS is
// pinned to totalMS exactly to absorb any rounding remainder.
func distributeChapterTimestamps(chapters []mux.Chapter, totalMS int64) {
	totalChars := 0
	for _, c := range chapters {
		totalChars += len([]rune(c.Text))
	}
	if totalChars == 0 {
		return
	}

	var cursor int64
	for i := range chapters {
		share := int64(float64(len([]rune(chapters[i].Text))) / float64(totalChars) * float64(totalMS))
		chapters[i].StartMS = cursor
		cursor += share
		chapters[i].EndMS = cursor
	}
	chapters[len(chapters)-1].EndMS = totalMS
}

func toArtifact(a mux.Artifact, cacheKey string) Artifact {
	return Artifact{
		URL:        a.URL,
		Parts:      a.Parts,
		Chapters:   a.Chapters,
		DurationMS: a.DurationMS,
		Degraded:   a.Degraded,
		CacheKey:   cacheKey,
	}
}
