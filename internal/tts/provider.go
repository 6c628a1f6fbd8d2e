// Package tts dispatches synthesis requests across an ordered chain of
// text-to-speech providers, tolerating individual provider failures, and
// normalizes every clip to a uniform output format (spec.md §4.5,
// component C5).
package tts

import "context"

// Failure classifies why a provider call did not produce audio. The
// dispatcher uses this to decide whether to retry the next provider
// immediately or log-and-move-on (spec.md §4.5).
type Failure string

const (
	FailureRateLimited  Failure = "rate_limited"
	FailureAuthFailure  Failure = "auth_failure"
	FailureTimeout      Failure = "timeout"
	FailureInvalidVoice Failure = "invalid_voice"
	FailureTransient    Failure = "transient"
	FailurePermanent    Failure = "permanent"
)

// ProviderError carries a Failure classification so the dispatcher's
// fallback algorithm can branch on it without string matching.
type ProviderError struct {
	Provider string
	Kind     Failure
	Reason   string
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + string(e.Kind) + ": " + e.Reason
}

// advancesImmediately reports whether this failure should move to the
// next provider with no backoff (RateLimited/Timeout/Transient) as
// opposed to log-and-move-on (Permanent/InvalidVoice/AuthFailure) — per
// spec.md §4.5 both paths end up at "try the next provider", so the
// dispatcher's fallback control flow treats them identically and only
// Dispatcher.logProviderFailure branches on it, to vary log severity.
func (e *ProviderError) advancesImmediately() bool {
	switch e.Kind {
	case FailureRateLimited, FailureTimeout, FailureTransient:
		return true
	default:
		return false
	}
}

// Format is the audio container/encoding a provider returns before
// normalization.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
	FormatPCM Format = "pcm"
)

// SynthesizedAudio is what a Provider returns from a single synthesis call.
type SynthesizedAudio struct {
	Bytes      []byte
	Format     Format
	SampleRate int // only meaningful when Format == FormatPCM
	BitDepth   int // only meaningful when Format == FormatPCM
}

// MultiSpeakerLine is one line of a multi-speaker synthesis request.
type MultiSpeakerLine struct {
	Speaker string // canonical "Speaker 1" / "Speaker 2"
	Text    string
	Voice   string
}

// Provider is one TTS backend in the fallback chain.
type Provider interface {
	Name() string
	SupportsMultispeaker() bool
	Synthesize(ctx context.Context, text, voice string) (SynthesizedAudio, error)
	// SynthesizeMultispeaker renders every line in one call. Only called
	// when SupportsMultispeaker() is true.
	SynthesizeMultispeaker(ctx context.Context, lines []MultiSpeakerLine) (SynthesizedAudio, error)
}
