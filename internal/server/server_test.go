package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecast/pagecast/internal/insights"
	"github.com/pagecast/pagecast/internal/library"
	"github.com/pagecast/pagecast/internal/llm"
	"github.com/pagecast/pagecast/internal/mux"
	"github.com/pagecast/pagecast/internal/pipeline"
	"github.com/pagecast/pagecast/internal/scriptsynth"
	"github.com/pagecast/pagecast/internal/tts"
	"github.com/pagecast/pagecast/internal/vectorindex"
	pcingest "github.com/pagecast/pagecast/internal/ingest"
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

type fakeProvider struct{}

func (fakeProvider) Name() string              { return "fake" }
func (fakeProvider) SupportsMultispeaker() bool { return false }
func (fakeProvider) Synthesize(ctx context.Context, text, voice string) (tts.SynthesizedAudio, error) {
	return tts.SynthesizedAudio{Bytes: []byte("fake-mp3"), Format: tts.FormatMP3}, nil
}
func (fakeProvider) SynthesizeMultispeaker(ctx context.Context, lines []tts.MultiSpeakerLine) (tts.SynthesizedAudio, error) {
	return tts.SynthesizedAudio{}, &tts.ProviderError{Provider: "fake", Kind: tts.FailurePermanent, Reason: "unsupported"}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	lib, err := library.NewManager(dir+"/document_library", dir+"/audio")
	require.NoError(t, err)

	idx := vectorindex.New(2)
	embedder := &fakeEmbedder{dim: 2}
	ingestor := pcingest.New(nil)

	synth := scriptsynth.New(&fakeLLM{response: "narration"})
	dispatcher := tts.New([]tts.Provider{fakeProvider{}}, dir+"/audio", 2, nil)
	muxer := mux.New(dir+"/audio", nil)
	pl := pipeline.New(synth, dispatcher, muxer, dir+"/audio", nil)

	ins := insights.New(idx, embedder, &fakeLLM{response: "answer"})

	return New(lib, ingestor, embedder, idx, pl, ins, nil)
}

func TestHandleHealthReturnsOK(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGenerateAudioRejectsMultipleSources(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(generateAudioRequest{Text: "hello", Filename: "doc.pdf"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/audio/generate", bytes.NewReader(body))

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var decoded map[string]map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decoded))
	assert.Equal(t, "invalid_request", decoded["error"]["code"])
	assert.NotEmpty(t, decoded["error"]["correlation_id"])
}

func TestHandleSearchRequiresAnchor(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(searchRequest{K: 3})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body))

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngestDocumentsRequiresFiles(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/library/documents", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleInsightsCrossRequiresFilenames(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(crossInsightsRequest{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/insights/cross", bytes.NewReader(body))

	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
