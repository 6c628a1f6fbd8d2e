package scriptsynth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/pagecast/pagecast/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	calls    int32
	response string
	err      error
}

func (f *fakeLLM) Generate(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestComputeCacheKeyIsDeterministic(t *testing.T) {
	hints := StyleHints{Podcast: true, TwoSpeakers: true, Accent: "neutral", Style: "casual", Expressiveness: "high"}
	k1 := ComputeCacheKey("Photosynthesis converts light into chemical energy.", ModeNarration, hints)
	k2 := ComputeCacheKey("Photosynthesis converts light into chemical energy.", ModeNarration, hints)
	assert.Equal(t, k1, k2)
}

func TestComputeCacheKeyChangesWithStyleFlags(t *testing.T) {
	base := StyleHints{Style: "casual"}
	changed := StyleHints{Style: "formal"}
	k1 := ComputeCacheKey("same text", ModeNarration, base)
	k2 := ComputeCacheKey("same text", ModeNarration, changed)
	assert.NotEqual(t, k1, k2)
}

func TestSynthesizeNarrationCachesAfterFirstCall(t *testing.T) {
	fake := &fakeLLM{response: "Photosynthesis converts light into chemical energy."}
	synth := New(fake)

	script1, err := synth.Synthesize(context.Background(), "Photosynthesis converts light into chemical energy.", ModeNarration, StyleHints{})
	require.NoError(t, err)
	assert.Equal(t, ModeNarration, script1.Mode)
	assert.EqualValues(t, 1, fake.calls)

	script2, err := synth.Synthesize(context.Background(), "Photosynthesis converts light into chemical energy.", ModeNarration, StyleHints{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, fake.calls, "second identical request must hit the cache, not the LLM")
	assert.Equal(t, script1.Narration, script2.Narration)
}

func TestSynthesizeDialogueParsesLabeledLines(t *testing.T) {
	fake := &fakeLLM{response: "Speaker 1: Welcome to the show.\nSpeaker 2: Glad to be here.\nSpeaker 1: Let's dive in."}
	synth := New(fake)

	script, err := synth.Synthesize(context.Background(), "source", ModeDialogue, StyleHints{Podcast: true, TwoSpeakers: true})
	require.NoError(t, err)
	require.Len(t, script.Lines, 3)
	assert.Equal(t, "Speaker 1", script.Lines[0].Speaker)
	assert.Equal(t, "Speaker 2", script.Lines[1].Speaker)
}

func TestSynthesizeDialogueFailsWithOneSpeaker(t *testing.T) {
	fake := &fakeLLM{response: "Speaker 1: Only one voice here.\nSpeaker 1: Still just one."}
	synth := New(fake)

	_, err := synth.Synthesize(context.Background(), "source", ModeDialogue, StyleHints{})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeMalformedScript, apiErr.Code)
}

func TestSynthesizeConcurrentIdenticalRequestsCoalesce(t *testing.T) {
	fake := &fakeLLM{response: "Speaker 1: Hi.\nSpeaker 2: Hello."}
	synth := New(fake)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := synth.Synthesize(context.Background(), "shared source", ModeDialogue, StyleHints{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, fake.calls, int32(2), "concurrent identical requests must coalesce onto at most a couple of LLM calls")
}
