// Package vectorindex is the in-process store of (Chunk, Vector) pairs
// supporting page-deduplicated top-k similarity search (spec.md §4.3,
// component C3).
//
// Search is deliberately brute-force rather than an approximate index
// (e.g. coder/hnsw, considered and rejected — see DESIGN.md): spec.md
// requires exact inner-product ranking with insertion-order tie-breaking,
// which an ANN graph cannot guarantee bit-for-bit across runs.
package vectorindex

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/pagecast/pagecast/internal/ingest"
)

// Entry is one (Chunk, Vector) pair, identified by its insertion index.
type Entry struct {
	Chunk  ingest.Chunk
	Vector []float32
	id     int
}

// Result is one ranked search hit.
type Result struct {
	Chunk    ingest.Chunk
	Score    float32 // inner product, in [-1, 1] for unit vectors
	Distance float32 // 1 - Score
}

// PageKey identifies a (filename, page) pair for dedup/exclude purposes.
type PageKey struct {
	Filename   string
	PageNumber int
}

// Index is the in-memory vector store. Many concurrent readers; writers
// (Add) are serialized against readers (spec.md §5).
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []Entry
	nextID    int

	// seen dedups re-ingestion by (filename, page, section_index) so
	// re-ingesting an unchanged PDF does not grow the index (spec.md §8
	// "Re-ingesting the same PDF").
	seen map[seenKey]bool
}

type seenKey struct {
	filename string
	page     int
	section  int
}

// New constructs an empty Index fixed at the given dimension.
func New(dimension int) *Index {
	return &Index{
		dimension: dimension,
		seen:      make(map[seenKey]bool),
	}
}

// Dimension returns the index's fixed vector dimension.
func (idx *Index) Dimension() int { return idx.dimension }

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Add appends chunks and their vectors to the index. Fails with
// apierr.CodeDimensionMismatch if any vector's dimension differs from the
// index's fixed dimension. Entries already seen for the same
// (filename, page, section_index) are skipped (idempotent re-ingest).
func (idx *Index) Add(chunks []ingest.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != idx.dimension {
			return apierr.New(apierr.CodeDimensionMismatch,
				fmt.Sprintf("expected dimension %d, got %d", idx.dimension, len(v)))
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, c := range chunks {
		key := seenKey{filename: c.Filename, page: c.PageNumber, section: c.SectionIndex}
		if idx.seen[key] {
			continue
		}
		idx.seen[key] = true
		idx.entries = append(idx.entries, Entry{
			Chunk:  c,
			Vector: vectors[i],
			id:     idx.nextID,
		})
		idx.nextID++
	}
	return nil
}

// HasFilename reports whether any chunk from filename is already indexed,
// for the "pre-check by filename" re-ingest dedup strategy (spec.md §8).
func (idx *Index) HasFilename(filename string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, e := range idx.entries {
		if e.Chunk.Filename == filename {
			return true
		}
	}
	return false
}

// TextForFilename concatenates, in page then section order, every indexed
// chunk's text belonging to filename — the "entire_pdf=true" source
// resolution path for GenerateAudioRequest (spec.md §6). Reports false if
// no chunk for filename is indexed.
func (idx *Index) TextForFilename(filename string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := idx.matchingEntries(func(c ingest.Chunk) bool { return c.Filename == filename })
	if len(matches) == 0 {
		return "", false
	}
	return joinChunkText(matches), true
}

// TextForPage concatenates, in section order, every indexed chunk's text
// belonging to one (filename, page_number) pair — the "(filename,
// page_number)" source resolution path for GenerateAudioRequest.
func (idx *Index) TextForPage(filename string, page int) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := idx.matchingEntries(func(c ingest.Chunk) bool {
		return c.Filename == filename && c.PageNumber == page
	})
	if len(matches) == 0 {
		return "", false
	}
	return joinChunkText(matches), true
}

func (idx *Index) matchingEntries(keep func(ingest.Chunk) bool) []ingest.Chunk {
	var matches []ingest.Chunk
	for _, e := range idx.entries {
		if keep(e.Chunk) {
			matches = append(matches, e.Chunk)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].PageNumber != matches[j].PageNumber {
			return matches[i].PageNumber < matches[j].PageNumber
		}
		return matches[i].SectionIndex < matches[j].SectionIndex
	})
	return matches
}

func joinChunkText(chunks []ingest.Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(c.Text)
	}
	return b.String()
}

// SearchOptions configures Search.
type SearchOptions struct {
	K        int
	FetchK   int // default 3*K
	MinScore *float32
	Exclude  func(PageKey) bool
}

// Search ranks all entries by inner product against query, applies the
// exclude predicate, takes the top FetchK, deduplicates to one result per
// (filename, page_number) keeping the highest score, then truncates to K
// (spec.md §4.3).
func (idx *Index) Search(query []float32, opts SearchOptions) ([]Result, error) {
	if len(query) != idx.dimension {
		return nil, apierr.New(apierr.CodeDimensionMismatch,
			fmt.Sprintf("query dimension %d does not match index dimension %d", len(query), idx.dimension))
	}

	k := opts.K
	if k <= 0 {
		return nil, nil
	}
	fetchK := opts.FetchK
	if fetchK <= 0 {
		fetchK = 3 * k
	}

	idx.mu.RLock()
	type scored struct {
		Entry
		score float32
	}
	candidates := make([]scored, 0, len(idx.entries))
	for _, e := range idx.entries {
		key := PageKey{Filename: e.Chunk.Filename, PageNumber: e.Chunk.PageNumber}
		if opts.Exclude != nil && opts.Exclude(key) {
			continue
		}
		candidates = append(candidates, scored{Entry: e, score: dot(query, e.Vector)})
	}
	idx.mu.RUnlock()

	// Stable sort descending by score; ties keep ascending insertion
	// order because sort.SliceStable preserves relative order of equal
	// elements and candidates were appended in insertion order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > fetchK {
		candidates = candidates[:fetchK]
	}

	// Page-level dedup: keep the highest-scoring entry per (filename, page).
	bestForPage := make(map[PageKey]int) // PageKey -> index into deduped
	var deduped []scored
	for _, c := range candidates {
		key := PageKey{Filename: c.Chunk.Filename, PageNumber: c.Chunk.PageNumber}
		if existingIdx, ok := bestForPage[key]; ok {
			if c.score > deduped[existingIdx].score {
				deduped[existingIdx] = c
			}
			continue
		}
		bestForPage[key] = len(deduped)
		deduped = append(deduped, c)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].score > deduped[j].score
	})

	if len(deduped) > k {
		deduped = deduped[:k]
	}

	results := make([]Result, 0, len(deduped))
	for _, d := range deduped {
		if opts.MinScore != nil && d.score < *opts.MinScore {
			continue
		}
		results = append(results, Result{
			Chunk:    d.Chunk,
			Score:    d.score,
			Distance: 1 - d.score,
		})
	}
	return results, nil
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// ExcludePage builds an Exclude predicate that drops a single
// (filename, page) pair — used to exclude the query's own page.
func ExcludePage(filename string, page int) func(PageKey) bool {
	return func(k PageKey) bool {
		return k.Filename == filename && k.PageNumber == page
	}
}
