package pipeline

import (
	"context"
	"os/exec"
	"testing"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/pagecast/pagecast/internal/llm"
	"github.com/pagecast/pagecast/internal/mux"
	"github.com/pagecast/pagecast/internal/scriptsynth"
	"github.com/pagecast/pagecast/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	response string
	calls    int
}

func (f *fakeLLM) Generate(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	f.calls++
	return f.response, nil
}

type fakeProvider struct{}

func (fakeProvider) Name() string                     { return "fake" }
func (fakeProvider) SupportsMultispeaker() bool        { return false }
func (fakeProvider) Synthesize(ctx context.Context, text, voice string) (tts.SynthesizedAudio, error) {
	return tts.SynthesizedAudio{Bytes: []byte("fake-mp3"), Format: tts.FormatMP3}, nil
}
func (fakeProvider) SynthesizeMultispeaker(ctx context.Context, lines []tts.MultiSpeakerLine) (tts.SynthesizedAudio, error) {
	return tts.SynthesizedAudio{}, &tts.ProviderError{Provider: "fake", Kind: tts.FailurePermanent, Reason: "unsupported"}
}

func requireFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available in this environment")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available in this environment")
	}
}

func TestGenerateRejectsEmptySourceText(t *testing.T) {
	dir := t.TempDir()
	synth := scriptsynth.New(&fakeLLM{response: "narration"})
	dispatcher := tts.New([]tts.Provider{fakeProvider{}}, dir, 2, nil)
	muxer := mux.New(dir, nil)
	p := New(synth, dispatcher, muxer, dir, nil)

	_, err := p.Generate(context.Background(), Request{SourceText: ""})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeInvalidRequest, apiErr.Code)
}

func TestGenerateNarrationProducesSingleChapterArtifact(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	synth := scriptsynth.New(&fakeLLM{response: "Photosynthesis converts light into chemical energy."})
	dispatcher := tts.New([]tts.Provider{fakeProvider{}}, dir, 2, nil)
	muxer := mux.New(dir, nil)
	p := New(synth, dispatcher, muxer, dir, nil)

	artifact, err := p.Generate(context.Background(), Request{
		SourceText:    "Photosynthesis converts light into chemical energy.",
		DefaultVoiceA: "voice-a",
	})
	require.NoError(t, err)
	require.Len(t, artifact.Chapters, 1)
	assert.Equal(t, int64(0), artifact.Chapters[0].StartMS)
	assert.Contains(t, artifact.Chapters[0].Text, "Photosynthesis")
	assert.NotEmpty(t, artifact.URL)
}

func TestGenerateIsIdempotentForIdenticalRequests(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	synth := scriptsynth.New(&fakeLLM{response: "Photosynthesis converts light into chemical energy."})
	dispatcher := tts.New([]tts.Provider{fakeProvider{}}, dir, 2, nil)
	muxer := mux.New(dir, nil)
	p := New(synth, dispatcher, muxer, dir, nil)

	req := Request{SourceText: "Photosynthesis converts light into chemical energy.", DefaultVoiceA: "voice-a"}
	first, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	second, err := p.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.URL, second.URL, "re-issuing an identical request must return the same cached URL")
}

func TestGenerateSurvivesRestartWithoutCallingLLMAgain(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	req := Request{SourceText: "Photosynthesis converts light into chemical energy.", DefaultVoiceA: "voice-a"}

	llmClient := &fakeLLM{response: "Photosynthesis converts light into chemical energy."}
	synth := scriptsynth.New(llmClient)
	dispatcher := tts.New([]tts.Provider{fakeProvider{}}, dir, 2, nil)
	muxer := mux.New(dir, nil)
	p1 := New(synth, dispatcher, muxer, dir, nil)

	first, err := p1.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, llmClient.calls)

	// A fresh Pipeline (and fresh Synthesizer, so its in-process script
	// cache is empty too) simulates a process restart: the only surviving
	// state is what's on disk. Generate must find the persisted artifact
	// manifest by script CacheKey and return it without calling the LLM.
	synth2 := scriptsynth.New(llmClient)
	p2 := New(synth2, dispatcher, muxer, dir, nil)

	second, err := p2.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, llmClient.calls, "a cache hit after restart must not call the LLM again")
	assert.Equal(t, first.URL, second.URL)
}
