package ingest

import (
	"strings"
	"unicode"
)

// Chunk is one extracted text fragment (spec.md §3).
type Chunk struct {
	Text         string
	Filename     string
	PageNumber   int
	SectionIndex int
	SectionTitle string
}

const (
	targetTokens  = 500
	overlapTokens = 50
	// maxChunkChars bounds chunk text length (spec.md §3 invariant).
	maxChunkChars = 8000
)

// chunkPage splits one page's text into overlapping chunks targeting
// ~500 tokens with ~50 tokens of overlap, preferring sentence boundaries,
// per spec.md §4.1. Token counts are approximated by whitespace-delimited
// words, which is the same approximation the chunking heuristics in the
// retrieved RAG pipelines use when no tokenizer is wired in.
func chunkPage(filename string, pageNumber int, text string) []Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	var current []string
	currentTokens := 0
	sectionIndex := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		body := strings.TrimSpace(strings.Join(current, " "))
		if body == "" {
			return
		}
		if len(body) > maxChunkChars {
			body = body[:maxChunkChars]
		}
		chunks = append(chunks, Chunk{
			Text:         body,
			Filename:     filename,
			PageNumber:   pageNumber,
			SectionIndex: sectionIndex,
			SectionTitle: deriveTitle(body),
		})
		sectionIndex++
	}

	for _, sentence := range sentences {
		words := wordCount(sentence)

		// A sentence boundary within ±20% of the target closes the chunk
		// before adding the next sentence, never mid-sentence (spec.md §4.1).
		if currentTokens > 0 && currentTokens+words > targetTokens+targetTokens/5 {
			flush()
			current = overlapTail(current, overlapTokens)
			currentTokens = wordCount(strings.Join(current, " "))
		}

		current = append(current, sentence)
		currentTokens += words
	}
	flush()

	return chunks
}

// overlapTail returns the trailing sentences of the current chunk that sum
// to approximately n tokens, to seed the next chunk's overlap.
func overlapTail(sentences []string, n int) []string {
	if n <= 0 || len(sentences) == 0 {
		return nil
	}
	total := 0
	start := len(sentences)
	for start > 0 {
		total += wordCount(sentences[start-1])
		if total >= n {
			break
		}
		start--
	}
	tail := make([]string, len(sentences)-start)
	copy(tail, sentences[start:])
	return tail
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// splitSentences splits text at sentence-ending punctuation, keeping the
// punctuation attached to the preceding sentence. Mirrors the sentence
// splitter used for TTS chunking elsewhere in the pipeline so that both
// "don't split mid-sentence" rules behave identically.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		b.WriteRune(r)
		if isSentenceEnd(r) {
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
				b.WriteRune(runes[i])
			}
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// deriveTitle heuristically derives a short section label from the
// beginning of a chunk's text: the first short, capitalized line stands in
// for a heading when one is present; otherwise the title is left empty.
func deriveTitle(text string) string {
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	} else if idx := strings.Index(text, ". "); idx >= 0 && idx < 80 {
		firstLine = text[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)

	if firstLine == "" || len(firstLine) > 80 {
		return ""
	}
	words := strings.Fields(firstLine)
	if len(words) == 0 || len(words) > 12 {
		return ""
	}
	upperWords := 0
	for _, w := range words {
		r := []rune(w)
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			upperWords++
		}
	}
	if upperWords < (len(words)+1)/2 {
		return ""
	}
	return firstLine
}
