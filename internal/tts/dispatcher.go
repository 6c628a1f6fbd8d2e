package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pagecast/pagecast/internal/apierr"
)

// Dispatcher renders scripts and lines to audio by iterating an ordered
// provider chain with no-backoff fallback, caching clips both on disk
// (deterministic basenames) and in-process (spec.md §4.5).
type Dispatcher struct {
	providers []Provider
	cache     *clipCache
	audioDir  string
	maxWorkers int
	log       *slog.Logger
}

// New constructs a Dispatcher. providers is the ordered fallback chain
// (default [Gemini-like, Google-like, Edge-like, HF-like, Offline] unless
// the caller has pre-filtered it down to a single forced provider).
func New(providers []Provider, audioDir string, maxWorkers int, log *slog.Logger) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		providers:  providers,
		cache:      newClipCache(audioDir),
		audioDir:   audioDir,
		maxWorkers: maxWorkers,
		log:        log,
	}
}

// SynthesizeLine renders one line of text through the provider fallback
// chain, checking the disk/in-process cache first. The on-disk basename is
// keyed per provider (ClipCacheKey's signature includes providerTag), so a
// cache hit after a restart requires checking each provider's deterministic
// basename in turn rather than a single provider-less key.
func (d *Dispatcher) SynthesizeLine(ctx context.Context, text, voice, style string) (ClipRef, error) {
	anyKey := ClipCacheKey(text, voice, "", style)
	if ref, ok := d.cache.get(anyKey); ok {
		return ref, nil
	}
	for _, p := range d.providers {
		providerKey := ClipCacheKey(text, voice, p.Name(), style)
		if ref, ok := d.cache.get(providerKey); ok {
			d.cache.put(anyKey, ref)
			return ref, nil
		}
	}

	var lastErr error
	for _, p := range d.providers {
		audio, err := p.Synthesize(ctx, text, voice)
		if err != nil {
			lastErr = err
			d.logProviderFailure("tts provider failed", p.Name(), err)
			continue
		}

		normalized, err := Normalize(ctx, audio)
		if err != nil {
			lastErr = err
			d.log.Warn("tts normalize failed", "provider", p.Name(), "error", err)
			continue
		}

		clipKey := ClipCacheKey(text, voice, p.Name(), style)
		basename := clipKey + ".mp3"
		path, err := writeClip(d.audioDir, basename, normalized)
		if err != nil {
			return ClipRef{}, fmt.Errorf("write clip to disk: %w", err)
		}

		ref := ClipRef{Path: path, Basename: basename, URL: "/audio/" + basename}
		d.cache.put(anyKey, ref)
		d.cache.put(clipKey, ref)
		return ref, nil
	}

	return ClipRef{}, apierr.Wrap(apierr.CodeAllProvidersFailed, "every tts provider failed for this line", lastErr)
}

// logProviderFailure logs a provider failure, using ProviderError.Kind to
// decide whether this is an expected condition the fallback chain will
// self-resolve (logged at Debug) or one worth operator attention even
// though the chain still advances to the next provider (logged at Warn).
func (d *Dispatcher) logProviderFailure(msg, provider string, err error) {
	var perr *ProviderError
	if errors.As(err, &perr) && !perr.advancesImmediately() {
		d.log.Warn(msg, "provider", provider, "kind", perr.Kind, "error", err)
		return
	}
	d.log.Debug(msg, "provider", provider, "error", err)
}

// SynthesizeMultispeaker attempts one-call multi-speaker synthesis with
// each provider that supports it, in chain order, returning the first
// success; returns an error if none supports it or every one fails, so the
// caller falls back to per-line fan-out instead.
func (d *Dispatcher) SynthesizeMultispeaker(ctx context.Context, lines []MultiSpeakerLine, style string) (ClipRef, error) {
	var scriptText string
	for _, l := range lines {
		scriptText += l.Speaker + ":" + l.Text + "\n"
	}

	for _, p := range d.providers {
		if !p.SupportsMultispeaker() {
			continue
		}

		key := ClipCacheKey(scriptText, "multi", p.Name(), style)
		if ref, ok := d.cache.get(key); ok {
			return ref, nil
		}

		audio, err := p.SynthesizeMultispeaker(ctx, lines)
		if err != nil {
			d.logProviderFailure("multispeaker tts provider failed", p.Name(), err)
			continue
		}
		normalized, err := Normalize(ctx, audio)
		if err != nil {
			d.log.Warn("multispeaker tts normalize failed", "provider", p.Name(), "error", err)
			continue
		}

		basename := key + ".mp3"
		path, err := writeClip(d.audioDir, basename, normalized)
		if err != nil {
			return ClipRef{}, fmt.Errorf("write multispeaker clip to disk: %w", err)
		}

		ref := ClipRef{Path: path, Basename: basename, URL: "/audio/" + basename}
		d.cache.put(key, ref)
		return ref, nil
	}

	return ClipRef{}, fmt.Errorf("no configured provider supports multispeaker synthesis")
}

// CacheSeed is a deterministic basename/URL pair discovered on disk at
// startup (library.RehydrateAudioCache), used to repopulate the in-process
// half of the clip cache without re-synthesis.
type CacheSeed struct {
	Basename string
	URL      string
}

// SeedCache repopulates the in-process clip cache from basenames already
// present in audioDir, keyed by the basename's hash (ClipCacheKey's output,
// which is exactly what SynthesizeLine/SynthesizeMultispeaker look up) so a
// post-restart request can hit in-process before falling through to the
// disk-stat fallback.
func (d *Dispatcher) SeedCache(seeds []CacheSeed) {
	for _, s := range seeds {
		key := strings.TrimSuffix(s.Basename, ".mp3")
		d.cache.put(key, ClipRef{
			Path:     filepath.Join(d.audioDir, s.Basename),
			Basename: s.Basename,
			URL:      s.URL,
		})
	}
}

// LineResult pairs a fanned-out line's index with its synthesized clip or
// error, so the caller can restore input order.
type LineResult struct {
	Index int
	Clip  ClipRef
	Err   error
}

// FanOutLines synthesizes every line concurrently, bounded by the
// dispatcher's worker pool, and returns results in input order
// regardless of completion order (spec.md §5 ordering guarantee).
func (d *Dispatcher) FanOutLines(ctx context.Context, lines []MultiSpeakerLine, style string) ([]LineResult, error) {
	results := make([]LineResult, len(lines))
	sem := make(chan struct{}, d.maxWorkers)
	g, gctx := errgroup.WithContext(ctx)

	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			clip, err := d.SynthesizeLine(gctx, line.Text, line.Voice, style)
			results[i] = LineResult{Index: i, Clip: clip, Err: err}
			return nil // individual line failures are recorded, not fatal to the group
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	successCount := 0
	for _, r := range results {
		if r.Err == nil {
			successCount++
		}
	}
	if successCount == 0 {
		return results, apierr.New(apierr.CodeAllProvidersFailed, "every line failed synthesis across all providers")
	}
	return results, nil
}
