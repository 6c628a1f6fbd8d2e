package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegradeUsesFirstClipURLAndListsAllParts(t *testing.T) {
	m := New(t.TempDir(), nil)
	clips := []Clip{
		{Path: "a.mp3", URL: "/audio/a.mp3", Speaker: "Speaker 1", Text: "Hello."},
		{Path: "b.mp3", URL: "/audio/b.mp3", Speaker: "Speaker 2", Text: "Hi there."},
	}

	artifact := m.degrade(clips, []int64{1000, 1500})

	assert.True(t, artifact.Degraded)
	assert.Equal(t, "/audio/a.mp3", artifact.URL)
	require.Len(t, artifact.Parts, 2)
	assert.Equal(t, []string{"/audio/a.mp3", "/audio/b.mp3"}, artifact.Parts)
	assert.Equal(t, int64(2500), artifact.DurationMS)
}

func TestDegradeChaptersAreRelativeToEachClip(t *testing.T) {
	m := New(t.TempDir(), nil)
	clips := []Clip{
		{Path: "a.mp3", URL: "/audio/a.mp3", Speaker: "Speaker 1", Text: "First line."},
		{Path: "b.mp3", URL: "/audio/b.mp3", Speaker: "Speaker 2", Text: "Second line."},
	}

	artifact := m.degrade(clips, []int64{800, 1200})

	require.Len(t, artifact.Chapters, 2)
	// Degraded chapters restart at 0 for each clip, not a cumulative sum.
	assert.Equal(t, int64(0), artifact.Chapters[0].StartMS)
	assert.Equal(t, int64(0), artifact.Chapters[1].StartMS)
	assert.Equal(t, "First line.", artifact.Chapters[0].Text)
	assert.Equal(t, "Second line.", artifact.Chapters[1].Text)
}

func TestChapterAtBuildsExpectedFields(t *testing.T) {
	c := Clip{Path: "x.mp3", URL: "/audio/x.mp3", Speaker: "Speaker 1", Text: "line text"}
	ch := chapterAt(3, c, 1000, 2500, "/audio/merged.mp3")

	assert.Equal(t, 3, ch.Index)
	assert.Equal(t, "Speaker 1", ch.Speaker)
	assert.Equal(t, "line text", ch.Text)
	assert.Equal(t, int64(1000), ch.StartMS)
	assert.Equal(t, int64(2500), ch.EndMS)
	assert.Equal(t, "/audio/merged.mp3", ch.PartURL)
}

func TestClipPathsPreservesOrder(t *testing.T) {
	clips := []Clip{{Path: "a"}, {Path: "b"}, {Path: "c"}}
	assert.Equal(t, []string{"a", "b", "c"}, clipPaths(clips))
}
