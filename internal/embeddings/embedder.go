// Package embeddings maps text to fixed-dimension, unit-norm vectors
// (spec.md §4.2, component C2).
package embeddings

import (
	"context"
	"math"
)

// Embedder maps text chunks and queries to L2-normalized, fixed-dimension
// vectors. Implementations MAY call a local model or a remote embedding
// service; callers only ever see vectors.
type Embedder interface {
	// EmbedDocuments embeds a batch of chunk texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the fixed vector dimension this embedder produces.
	Dimension() int
}

// normalize returns v scaled to unit L2 norm. A zero vector is returned
// unchanged (norm zero is a degenerate backend response, not something to
// divide by).
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
