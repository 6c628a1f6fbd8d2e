// Package scriptsynth turns source text into a Narration or Dialogue
// Script by prompting an LLM, with a signature-keyed cache so identical
// requests never call the model twice (spec.md §4.4, component C4).
package scriptsynth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Mode selects the shape of script requested from the LLM.
type Mode string

const (
	ModeNarration Mode = "narration"
	ModeDialogue  Mode = "dialogue"
)

// Line is one speaker turn in a Dialogue script.
type Line struct {
	Speaker string // canonical "Speaker 1" or "Speaker 2"
	Text    string
}

// Script is the synthesized result: either prose (Narration) or an
// ordered sequence of speaker-labeled lines (Dialogue).
type Script struct {
	Mode      Mode
	Narration string
	Lines     []Line
	CacheKey  string
}

// StyleHints parameterizes both the LLM prompt and the CacheKey.
type StyleHints struct {
	Podcast       bool
	TwoSpeakers   bool
	EntirePDF     bool
	Accent        string
	Style         string
	Expressiveness string
}

// cacheKeySampleChars is N in "hash of the first N characters of
// normalized source text" (spec.md §3).
const cacheKeySampleChars = 1000

// ComputeCacheKey derives the deterministic signature for a
// (sourceText, mode, hints) triple: a hash of the first ~1000 characters
// of normalized source text, plus the boolean and string style flags.
// Two inputs yielding the same key always yield the same Script.
func ComputeCacheKey(sourceText string, mode Mode, hints StyleHints) string {
	normalized := norm.NFC.String(sourceText)
	sample := normalized
	if runes := []rune(normalized); len(runes) > cacheKeySampleChars {
		sample = string(runes[:cacheKeySampleChars])
	}

	h := sha256.New()
	fmt.Fprintf(h, "mode=%s\x00sample=%s\x00podcast=%t\x00two_speakers=%t\x00entire_pdf=%t\x00accent=%s\x00style=%s\x00expr=%s\x00",
		mode, sample, hints.Podcast, hints.TwoSpeakers, hints.EntirePDF, hints.Accent, hints.Style, hints.Expressiveness)
	return hex.EncodeToString(h.Sum(nil))
}
