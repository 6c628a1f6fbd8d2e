package scriptsynth

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/pagecast/pagecast/internal/llm"
)

// Synthesizer produces Scripts from source text, caching by CacheKey and
// coalescing concurrent identical requests (spec.md §4.4, §5 "duplicate
// LLM/TTS work is forbidden").
type Synthesizer struct {
	client llm.Client
	cache  *cache
	flight singleflight.Group
}

// New constructs a Synthesizer backed by the given LLM client.
func New(client llm.Client) *Synthesizer {
	return &Synthesizer{client: client, cache: newCache()}
}

// Synthesize returns the cached Script for (sourceText, mode, hints) if
// present, otherwise prompts the LLM, parses the response, caches it, and
// returns it. Concurrent calls sharing a CacheKey coalesce onto a single
// LLM call.
func (s *Synthesizer) Synthesize(ctx context.Context, sourceText string, mode Mode, hints StyleHints) (Script, error) {
	key := ComputeCacheKey(sourceText, mode, hints)

	if cached, ok := s.cache.get(key); ok {
		return cached, nil
	}

	result, err, _ := s.flight.Do(key, func() (any, error) {
		if cached, ok := s.cache.get(key); ok {
			return cached, nil
		}

		raw, err := s.client.Generate(ctx, buildPrompt(sourceText, mode, hints), llm.GenerateOptions{
			Temperature: expressivenessTemperature(hints.Expressiveness),
			MaxTokens:   maxTokensForMode(mode, hints.EntirePDF),
		})
		if err != nil {
			if _, ok := apierr.As(err); ok {
				return Script{}, err
			}
			return Script{}, apierr.Wrap(apierr.CodeScriptSynthFailed, "llm generation failed", err)
		}

		script, err := parseScript(raw, mode, key)
		if err != nil {
			return Script{}, err
		}

		s.cache.put(key, script)
		return script, nil
	})
	if err != nil {
		return Script{}, err
	}
	return result.(Script), nil
}

func parseScript(raw string, mode Mode, cacheKey string) (Script, error) {
	switch mode {
	case ModeNarration:
		if raw == "" {
			return Script{}, apierr.New(apierr.CodeScriptSynthFailed, "llm returned an empty narration")
		}
		return Script{Mode: ModeNarration, Narration: raw, CacheKey: cacheKey}, nil
	case ModeDialogue:
		lines, err := ParseDialogue(raw)
		if err != nil {
			return Script{}, err
		}
		return Script{Mode: ModeDialogue, Lines: lines, CacheKey: cacheKey}, nil
	default:
		return Script{}, fmt.Errorf("unknown script mode %q", mode)
	}
}

func buildPrompt(sourceText string, mode Mode, hints StyleHints) []llm.Message {
	system := "You turn source material into natural spoken-word scripts. " +
		"Stay grounded in the provided source text; do not invent facts."

	var instructions string
	switch mode {
	case ModeDialogue:
		instructions = "Write a two-speaker podcast-style dialogue. Alternate strictly between " +
			"exactly two speakers labeled \"Speaker 1:\" and \"Speaker 2:\" at the start of every line. " +
			"Include natural interruptions and reactions. Do not introduce a third speaker."
	default:
		instructions = "Write a single-narrator prose script suitable for text-to-speech. " +
			"Do not include speaker labels."
	}

	instructions += fmt.Sprintf(" Style: accent=%q, style=%q, expressiveness=%q.",
		hints.Accent, hints.Style, hints.Expressiveness)
	if hints.Podcast {
		instructions += " This is for a podcast-style episode; keep the tone conversational."
	}

	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: instructions + "\n\nSource text:\n" + sourceText},
	}
}

func expressivenessTemperature(expressiveness string) float32 {
	switch expressiveness {
	case "high":
		return 0.9
	case "low":
		return 0.3
	default:
		return 0.6
	}
}

func maxTokensForMode(mode Mode, entirePDF bool) int {
	base := 1024
	if mode == ModeDialogue {
		base = 2048
	}
	if entirePDF {
		base *= 4
	}
	return base
}
