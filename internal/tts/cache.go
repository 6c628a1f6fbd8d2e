package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ClipRef identifies a synthesized, normalized audio clip on disk.
type ClipRef struct {
	Path     string
	Basename string
	URL      string
}

// ClipCacheKey is the deterministic signature of a synthesis unit: hash
// of (scriptText, voiceID, providerTag, style) (spec.md §3).
func ClipCacheKey(scriptText, voiceID, providerTag, style string) string {
	h := sha256.New()
	fmt.Fprintf(h, "text=%s\x00voice=%s\x00provider=%s\x00style=%s\x00", scriptText, voiceID, providerTag, style)
	return hex.EncodeToString(h.Sum(nil))
}

// clipCache is the in-process map from clip CacheKey to resolved clip
// location, populated on synthesis success (spec.md §4.5). It never
// deletes entries; disk is the source of truth across restarts.
type clipCache struct {
	mu      sync.RWMutex
	entries map[string]ClipRef
	dir     string
}

func newClipCache(dir string) *clipCache {
	return &clipCache{entries: make(map[string]ClipRef), dir: dir}
}

func (c *clipCache) get(key string) (ClipRef, bool) {
	c.mu.RLock()
	ref, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return ref, true
	}

	// Disk-level cache: a file at the deterministic path is itself proof
	// of a cache hit, even if this process never populated the in-memory
	// map (e.g. after a restart, before rehydration runs).
	basename := key + ".mp3"
	path := filepath.Join(c.dir, basename)
	if _, err := os.Stat(path); err == nil {
		ref := ClipRef{Path: path, Basename: basename, URL: "/audio/" + basename}
		c.mu.Lock()
		c.entries[key] = ref
		c.mu.Unlock()
		return ref, true
	}
	return ClipRef{}, false
}

func (c *clipCache) put(key string, ref ClipRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ref
}

// writeClip writes data to dir/basename using temp-then-rename semantics
// so a half-written file is never observable under its final deterministic
// name (spec.md §5).
func writeClip(dir, basename string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	finalPath := filepath.Join(dir, basename)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp clip file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write temp clip file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp clip file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename temp clip file: %w", err)
	}
	return finalPath, nil
}
