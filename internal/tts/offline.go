package tts

import (
	"context"
	"math"
)

// OfflineProvider is the last-resort provider in the default fallback
// chain: it never calls a network service and never fails, guaranteeing
// AllProvidersFailed is reachable only through explicit configuration
// (forcing a single non-offline provider). It synthesizes a flat,
// deterministic tone scaled to the requested text's length so identical
// inputs always produce byte-identical output, preserving the CacheKey
// determinism contract (spec.md §8 scenario D).
type OfflineProvider struct {
	sampleRate int
}

func NewOfflineProvider() *OfflineProvider {
	return &OfflineProvider{sampleRate: 24000}
}

func (p *OfflineProvider) Name() string { return "offline" }

func (p *OfflineProvider) SupportsMultispeaker() bool { return false }

// wordsPerMinute approximates spoken pace for sizing the placeholder tone.
const wordsPerMinute = 150

func (p *OfflineProvider) Synthesize(ctx context.Context, text, voice string) (SynthesizedAudio, error) {
	return SynthesizedAudio{
		Bytes:      p.renderTone(text),
		Format:     FormatPCM,
		SampleRate: p.sampleRate,
		BitDepth:   16,
	}, nil
}

func (p *OfflineProvider) SynthesizeMultispeaker(ctx context.Context, lines []MultiSpeakerLine) (SynthesizedAudio, error) {
	var combined []byte
	for _, line := range lines {
		combined = append(combined, p.renderTone(line.Text)...)
	}
	return SynthesizedAudio{
		Bytes:      combined,
		Format:     FormatPCM,
		SampleRate: p.sampleRate,
		BitDepth:   16,
	}, nil
}

// renderTone generates a low-amplitude 220Hz sine wave whose duration is
// proportional to the word count of text, as 16-bit little-endian PCM.
func (p *OfflineProvider) renderTone(text string) []byte {
	words := wordCount(text)
	if words == 0 {
		words = 1
	}
	durationSeconds := float64(words) / wordsPerMinute * 60
	if durationSeconds < 0.5 {
		durationSeconds = 0.5
	}
	numSamples := int(durationSeconds * float64(p.sampleRate))

	const freqHz = 220.0
	const amplitude = 3000 // well below int16 max, avoids clipping on re-encode

	out := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(p.sampleRate)
		sample := int16(amplitude * math.Sin(2*math.Pi*freqHz*t))
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
	return out
}

func wordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}
