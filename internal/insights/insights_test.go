package insights

import (
	"context"
	"testing"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/pagecast/pagecast/internal/ingest"
	"github.com/pagecast/pagecast/internal/llm"
	"github.com/pagecast/pagecast/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	v[0] = 1
	return v, nil
}
func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = f.EmbedQuery(ctx, texts[i])
	}
	return out, nil
}

type fakeLLM struct{ response string }

func (f *fakeLLM) Generate(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	return f.response, nil
}

func buildIndex(t *testing.T) *vectorindex.Index {
	idx := vectorindex.New(2)
	chunks := []ingest.Chunk{
		{Text: "Photosynthesis overview.", Filename: "bio.pdf", PageNumber: 1, SectionIndex: 0},
		{Text: "Cellular respiration detail.", Filename: "bio.pdf", PageNumber: 2, SectionIndex: 0},
	}
	vectors := [][]float32{{1, 0}, {0.9, 0.1}}
	require.NoError(t, idx.Add(chunks, vectors))
	return idx
}

func TestGenerateRequiresAnchor(t *testing.T) {
	idx := buildIndex(t)
	engine := New(idx, &fakeEmbedder{dim: 2}, &fakeLLM{response: "answer"})

	_, err := engine.Generate(context.Background(), Request{})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeInvalidRequest, apiErr.Code)
}

func TestGenerateReturnsAnswerWithCitations(t *testing.T) {
	idx := buildIndex(t)
	engine := New(idx, &fakeEmbedder{dim: 2}, &fakeLLM{response: "Photosynthesis converts light to energy [1]."})

	result, err := engine.Generate(context.Background(), Request{Text: "how does photosynthesis work", K: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Answer)
	assert.NotEmpty(t, result.Citations)
}

func TestGenerateCrossRequiresFilenames(t *testing.T) {
	idx := buildIndex(t)
	engine := New(idx, &fakeEmbedder{dim: 2}, &fakeLLM{response: ""})

	_, err := engine.GenerateCross(context.Background(), CrossRequest{})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeInvalidRequest, apiErr.Code)
}

func TestParseCrossResponseSeparatesAgreementsAndContradictions(t *testing.T) {
	citations := []Citation{{Filename: "bio.pdf", PageNumber: 1}, {Filename: "chem.pdf", PageNumber: 3}}
	raw := "Agreement: Both sources describe energy conversion. [1][2]\nContradiction: Sources disagree on rate. [2]"

	result := parseCrossResponse(raw, citations)
	require.Len(t, result.Agreements, 1)
	require.Len(t, result.Contradictions, 1)
	assert.Len(t, result.Agreements[0].Citations, 2)
	assert.Len(t, result.Contradictions[0].Citations, 1)
}
