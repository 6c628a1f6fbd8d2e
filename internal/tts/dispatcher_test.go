package tts

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider never calls a subprocess; it returns pre-decided audio or
// a ProviderError so dispatcher fallback logic can be tested without
// ffmpeg or network access.
type fakeProvider struct {
	name          string
	multispeaker  bool
	failWith      *ProviderError
	calls         int
	multiCalls    int
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) SupportsMultispeaker() bool { return f.multispeaker }

func (f *fakeProvider) Synthesize(ctx context.Context, text, voice string) (SynthesizedAudio, error) {
	f.calls++
	if f.failWith != nil {
		return SynthesizedAudio{}, f.failWith
	}
	return SynthesizedAudio{Bytes: []byte("fake-mp3-bytes"), Format: FormatMP3}, nil
}

func (f *fakeProvider) SynthesizeMultispeaker(ctx context.Context, lines []MultiSpeakerLine) (SynthesizedAudio, error) {
	f.multiCalls++
	if f.failWith != nil {
		return SynthesizedAudio{}, f.failWith
	}
	return SynthesizedAudio{Bytes: []byte("fake-multi-mp3"), Format: FormatMP3}, nil
}

// requireFFmpeg skips a test when ffmpeg is not on PATH. Any test in which
// a provider succeeds needs it: SynthesizeLine passes every successful
// provider's output through Normalize, which always runs ffmpeg.
func requireFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available in this environment")
	}
}

func TestDispatcherFallsBackToNextProviderOnTransientFailure(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	failing := &fakeProvider{name: "first", failWith: &ProviderError{Provider: "first", Kind: FailureTransient, Reason: "rate limited"}}
	working := &fakeProvider{name: "second"}

	d := New([]Provider{failing, working}, dir, 2, nil)
	_, err := d.SynthesizeLine(context.Background(), "hello world", "voice-a", "")
	require.NoError(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls)
}

func TestDispatcherFailsWithAllProvidersFailedWhenChainExhausted(t *testing.T) {
	dir := t.TempDir()
	p1 := &fakeProvider{name: "first", failWith: &ProviderError{Provider: "first", Kind: FailurePermanent, Reason: "bad voice"}}
	p2 := &fakeProvider{name: "second", failWith: &ProviderError{Provider: "second", Kind: FailureTimeout, Reason: "timed out"}}

	d := New([]Provider{p1, p2}, dir, 2, nil)
	_, err := d.SynthesizeLine(context.Background(), "hello world", "voice-a", "")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeAllProvidersFailed, apiErr.Code)
}

func TestSynthesizeLineSurvivesRestartWithoutCallingProviderAgain(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	provider := &fakeProvider{name: "first"}

	d1 := New([]Provider{provider}, dir, 2, nil)
	_, err := d1.SynthesizeLine(context.Background(), "hello world", "voice-a", "")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)

	// A fresh Dispatcher simulates a process restart: no in-process cache
	// entries, only whatever clip writeClip left on disk. The lookup must
	// find it via the provider-tagged basename rather than missing and
	// resynthesizing.
	d2 := New([]Provider{provider}, dir, 2, nil)
	_, err = d2.SynthesizeLine(context.Background(), "hello world", "voice-a", "")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls, "a cache hit after restart must not call the provider again")
}

func TestSeedCachePopulatesInProcessLookup(t *testing.T) {
	dir := t.TempDir()
	provider := &fakeProvider{name: "first"}
	basename := ClipCacheKey("hello world", "voice-a", "first", "") + ".mp3"
	require.NoError(t, os.WriteFile(dir+"/"+basename, []byte("fake-mp3-bytes"), 0o644))

	d := New([]Provider{provider}, dir, 2, nil)
	d.SeedCache([]CacheSeed{{Basename: basename, URL: "/audio/" + basename}})

	ref, err := d.SynthesizeLine(context.Background(), "hello world", "voice-a", "")
	require.NoError(t, err)
	assert.Equal(t, 0, provider.calls, "a seeded cache entry must short-circuit synthesis entirely")
	assert.Equal(t, "/audio/"+basename, ref.URL)
}

func TestClipCacheKeyIsDeterministic(t *testing.T) {
	k1 := ClipCacheKey("hello", "voice-a", "gemini", "casual")
	k2 := ClipCacheKey("hello", "voice-a", "gemini", "casual")
	assert.Equal(t, k1, k2)

	k3 := ClipCacheKey("hello", "voice-b", "gemini", "casual")
	assert.NotEqual(t, k1, k3)
}

func TestWriteClipUsesTempThenRename(t *testing.T) {
	dir := t.TempDir()
	path, err := writeClip(dir, "clip.mp3", []byte("data"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the final renamed file should remain, no leftover temp file")
	assert.Equal(t, "clip.mp3", entries[0].Name())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
