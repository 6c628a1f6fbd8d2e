package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	dim   int
	calls int
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(len(text) + i)
	}
	return normalize(v), nil
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestNormalizeProducesUnitVector(t *testing.T) {
	v := normalize([]float32{3, 4})
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSq, 1e-6)
}

func TestCachedEmbedderSkipsBackendOnHit(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	cached := NewCachedEmbedder(fake, 10)

	ctx := context.Background()
	v1, err := cached.EmbedQuery(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	v2, err := cached.EmbedQuery(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls, "second identical query must hit the cache")
	assert.Equal(t, v1, v2)
}

func TestCachedEmbedderBatchPartialHit(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	cached := NewCachedEmbedder(fake, 10)
	ctx := context.Background()

	_, err := cached.EmbedDocuments(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)

	_, err = cached.EmbedDocuments(ctx, []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, fake.calls, "only the uncached text should hit the backend")
}
