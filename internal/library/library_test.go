package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePDFWritesUnderSanitizedFilename(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "document_library"), filepath.Join(dir, "audio"))
	require.NoError(t, err)

	sanitized, err := m.StorePDF("../../etc/passwd.pdf", []byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.Equal(t, "passwd.pdf", sanitized)

	data, err := os.ReadFile(m.PDFPath(sanitized))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
}

func TestStorePDFLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	libraryDir := filepath.Join(dir, "document_library")
	m, err := NewManager(libraryDir, filepath.Join(dir, "audio"))
	require.NoError(t, err)

	_, err = m.StorePDF("paper.pdf", []byte("content"))
	require.NoError(t, err)

	entries, err := os.ReadDir(libraryDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "paper.pdf", entries[0].Name())
}

func TestListPDFsOnlyReturnsPDFExtension(t *testing.T) {
	dir := t.TempDir()
	libraryDir := filepath.Join(dir, "document_library")
	m, err := NewManager(libraryDir, filepath.Join(dir, "audio"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(libraryDir, "a.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(libraryDir, "notes.txt"), []byte("x"), 0o644))

	names, err := m.ListPDFs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, names)
}

func TestListAudioBasenamesSkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	audioDir := filepath.Join(dir, "audio")
	m, err := NewManager(filepath.Join(dir, "document_library"), audioDir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "clip1.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, ".tmp-abc.mp3"), []byte("x"), 0o644))

	names, err := m.ListAudioBasenames()
	require.NoError(t, err)
	assert.Equal(t, []string{"clip1.mp3"}, names)
}

func TestRehydrateAudioCacheBuildsURLFromBasename(t *testing.T) {
	dir := t.TempDir()
	audioDir := filepath.Join(dir, "audio")
	m, err := NewManager(filepath.Join(dir, "document_library"), audioDir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "deadbeef-gemini.mp3"), []byte("x"), 0o644))

	seeds, err := m.RehydrateAudioCache()
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, "/audio/deadbeef-gemini.mp3", seeds[0].URL)
}
