package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
)

// TargetSampleRate and TargetBitrateKbps define the uniform output format
// every clip is normalized to before it is counted as a clip (spec.md
// §4.5: "MP3, 44.1 kHz, 160 kbps, mono or stereo preserved").
const (
	TargetSampleRate  = 44100
	TargetBitrateKbps = 160
)

// Normalize converts synthesized audio to the uniform MP3 target via
// ffmpeg. Every input is re-encoded, MP3 included. Raw PCM is first
// wrapped in a WAV header derived from the provider-reported sample rate
// and bit depth so ffmpeg can decode it.
func Normalize(ctx context.Context, audio SynthesizedAudio) ([]byte, error) {
	input := audio.Bytes
	inputFormat := "mp3"

	switch audio.Format {
	case FormatPCM:
		input = wrapPCMInWAV(audio.Bytes, audio.SampleRate, audio.BitDepth)
		inputFormat = "wav"
	case FormatWAV:
		inputFormat = "wav"
	case FormatMP3:
		inputFormat = "mp3"
	}

	return reencodeToMP3(ctx, input, inputFormat)
}

func reencodeToMP3(ctx context.Context, input []byte, inputFormat string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", inputFormat, "-i", "pipe:0",
		"-ar", fmt.Sprintf("%d", TargetSampleRate),
		"-b:a", fmt.Sprintf("%dk", TargetBitrateKbps),
		"-f", "mp3", "pipe:1",
	)
	cmd.Stdin = bytes.NewReader(input)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg normalize failed: %w: %s", err, stderr.String())
	}
	return out.Bytes(), nil
}

// wrapPCMInWAV builds a minimal canonical WAV header around raw
// little-endian PCM samples so downstream tools (ffmpeg) can decode them
// without out-of-band format knowledge.
func wrapPCMInWAV(pcm []byte, sampleRate, bitDepth int) []byte {
	if sampleRate <= 0 {
		sampleRate = TargetSampleRate
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	const numChannels = 1
	byteRate := sampleRate * numChannels * bitDepth / 8
	blockAlign := numChannels * bitDepth / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
