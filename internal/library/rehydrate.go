package library

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/pagecast/pagecast/internal/embeddings"
	"github.com/pagecast/pagecast/internal/ingest"
	"github.com/pagecast/pagecast/internal/vectorindex"
)

// RehydrateIndex implements spec.md §6's startup step (a): enumerate
// document_library/ and re-ingest any PDF not already represented in the
// index. A PDF whose filename already has chunks in the index is skipped
// without re-ingesting; vectorindex.Index.Add also ignores any chunk
// already seen for the same (filename, page, section).
func (m *Manager) RehydrateIndex(ctx context.Context, idx *vectorindex.Index, ingestor *ingest.Ingestor, embedder embeddings.Embedder, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	names, err := m.ListPDFs()
	if err != nil {
		return err
	}

	for _, name := range names {
		if idx.HasFilename(name) {
			continue
		}

		path := filepath.Join(m.libraryDir, name)
		chunks, err := ingestor.Ingest(path)
		if err != nil {
			log.Warn("rehydrate: skipping document that failed to re-ingest", "filename", name, "error", err)
			continue
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err := embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			log.Warn("rehydrate: skipping document that failed to embed", "filename", name, "error", err)
			continue
		}

		if err := idx.Add(chunks, vectors); err != nil {
			log.Warn("rehydrate: skipping document that failed to index", "filename", name, "error", err)
			continue
		}
		log.Info("rehydrate: re-indexed document from disk", "filename", name, "chunks", len(chunks))
	}

	return nil
}

// ClipCacheSeed is the minimal information a rehydrated clip-cache entry
// needs — enough to answer "does this CacheKey already have a file" from
// the deterministic basename alone, per spec.md §6 step (b).
type ClipCacheSeed struct {
	Basename string
	URL      string
}

// RehydrateAudioCache implements spec.md §6's startup step (b): enumerate
// audio/ and return the basenames present, so the TTS dispatcher's
// in-process cache can be rebuilt without re-synthesis. The dispatcher's
// own disk-stat fallback (internal/tts clipCache.get) makes this step an
// optimization rather than a correctness requirement, but doing it
// eagerly avoids the first request after restart paying a stat() per
// candidate basename.
func (m *Manager) RehydrateAudioCache() ([]ClipCacheSeed, error) {
	basenames, err := m.ListAudioBasenames()
	if err != nil {
		return nil, fmt.Errorf("rehydrate audio cache: %w", err)
	}

	seeds := make([]ClipCacheSeed, 0, len(basenames))
	for _, b := range basenames {
		seeds = append(seeds, ClipCacheSeed{Basename: b, URL: "/audio/" + b})
	}
	return seeds, nil
}
