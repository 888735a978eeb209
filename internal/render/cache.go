package render

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"misophonia/internal/audio"
	"misophonia/internal/pipeline"
)

// Key identifies one rendering of one clip.
type Key struct {
	ClipID    string
	Azimuth   float64
	Elevation float64
	Rate      int
	Length    int
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%.2f/%.2f:%d:%d", k.ClipID, k.Azimuth, k.Elevation, k.Rate, k.Length)
}

// CacheStats counts cache traffic.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// Cache is a bounded, concurrency-safe LRU of rendered buffers.
type Cache struct {
	entries   *lru.Cache[Key, *audio.Buffer]
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewCache returns a cache holding at most size renders.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[Key, *audio.Buffer](size)
	if err != nil {
		return nil, fmt.Errorf("render cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Get returns the cached render for key after checking it is stereo, finite,
// and frames long. A failed check evicts the entry and returns
// *pipeline.RenderCacheCorruptionError.
func (c *Cache) Get(key Key, frames int) (*audio.Buffer, bool, error) {
	buf, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	if reason := sanityCheck(buf, key.Rate, frames); reason != "" {
		c.entries.Remove(key)
		c.evictions.Add(1)
		return nil, false, &pipeline.RenderCacheCorruptionError{Key: key.String(), Reason: reason}
	}
	c.hits.Add(1)
	return buf, true, nil
}

// Add stores buf under key.
func (c *Cache) Add(key Key, buf *audio.Buffer) {
	c.entries.Add(key, buf)
}

// Stats reports counters since creation.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.entries.Len(),
	}
}

func sanityCheck(buf *audio.Buffer, rate, frames int) string {
	switch {
	case buf == nil:
		return "nil buffer"
	case buf.NumChannels() != 2:
		return fmt.Sprintf("expected 2 channels, found %d", buf.NumChannels())
	case len(buf.Channels[0]) != len(buf.Channels[1]):
		return "channel lengths differ"
	case buf.Frames() != frames:
		return fmt.Sprintf("expected %d frames, found %d", frames, buf.Frames())
	case buf.Rate != rate:
		return fmt.Sprintf("expected rate %d, found %d", rate, buf.Rate)
	case !buf.IsFinite():
		return "non-finite samples"
	}
	return ""
}
