// Package library manages the two persisted-state directories the core
// depends on (spec.md §6): document_library/ for uploaded PDFs, and
// audio/ for cached clips and merged artifacts. It also implements
// startup rehydration — rebuilding in-memory structures by enumerating
// disk rather than replaying a log.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagecast/pagecast/internal/ingest"
)

// Manager owns the document_library/ directory: storing uploaded PDFs
// under their sanitized filename and listing what is already present.
type Manager struct {
	libraryDir string
	audioDir   string
}

func NewManager(libraryDir, audioDir string) (*Manager, error) {
	if err := os.MkdirAll(libraryDir, 0o755); err != nil {
		return nil, fmt.Errorf("create document library directory: %w", err)
	}
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}
	return &Manager{libraryDir: libraryDir, audioDir: audioDir}, nil
}

// StorePDF writes data under document_library/<sanitizedFilename> using
// temp-then-rename semantics so a half-written file is never observable
// under its final name (spec.md §5). Returns the sanitized filename.
func (m *Manager) StorePDF(originalFilename string, data []byte) (string, error) {
	sanitized := ingest.SanitizeFilename(originalFilename)
	finalPath := filepath.Join(m.libraryDir, sanitized)

	tmp, err := os.CreateTemp(m.libraryDir, ".tmp-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp document file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write temp document file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp document file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename temp document file: %w", err)
	}
	return sanitized, nil
}

// PDFPath returns the on-disk path for a previously stored (sanitized)
// filename.
func (m *Manager) PDFPath(sanitizedFilename string) string {
	return filepath.Join(m.libraryDir, sanitizedFilename)
}

// AudioPath returns the on-disk path for a clip or merged artifact
// basename under audio/.
func (m *Manager) AudioPath(basename string) string {
	return filepath.Join(m.audioDir, basename)
}

// ListPDFs enumerates every .pdf file currently in document_library/.
func (m *Manager) ListPDFs() ([]string, error) {
	entries, err := os.ReadDir(m.libraryDir)
	if err != nil {
		return nil, fmt.Errorf("read document library directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ListAudioBasenames enumerates every clip/artifact currently in audio/,
// used to rebuild the clip-cache map without re-synthesis on startup
// (spec.md §6).
func (m *Manager) ListAudioBasenames() ([]string, error) {
	entries, err := os.ReadDir(m.audioDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read audio directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
