package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkPageProducesAscendingSectionIndex(t *testing.T) {
	text := strings.Repeat("This is a sentence about photosynthesis and energy. ", 200)
	chunks := chunkPage("doc.pdf", 3, text)

	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.SectionIndex)
		assert.Equal(t, "doc.pdf", c.Filename)
		assert.Equal(t, 3, c.PageNumber)
		assert.NotEmpty(t, c.Text)
		assert.LessOrEqual(t, len(c.Text), maxChunkChars)
	}
}

func TestChunkPageEmptyTextYieldsNoChunks(t *testing.T) {
	chunks := chunkPage("doc.pdf", 1, "   ")
	assert.Empty(t, chunks)
}

func TestChunkPageNeverBreaksMidSentence(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma delta epsilon. ", 100)
	chunks := chunkPage("doc.pdf", 1, text)
	for _, c := range chunks {
		trimmed := strings.TrimSpace(c.Text)
		require.NotEmpty(t, trimmed)
		last := trimmed[len(trimmed)-1]
		assert.True(t, last == '.' || last == '!' || last == '?',
			"chunk must end at a sentence boundary, got: %q", trimmed)
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", SanitizeFilename("report.pdf"))
	assert.Equal(t, "passwd.pdf", SanitizeFilename("../../etc/passwd.pdf")) // Base() strips dirs first
}

func TestDeriveTitleHeuristic(t *testing.T) {
	title := deriveTitle("Introduction To Biology\nSome following body text that continues on.")
	assert.Equal(t, "Introduction To Biology", title)

	noTitle := deriveTitle("this sentence starts lowercase and has no heading at all really.")
	assert.Empty(t, noTitle)
}
