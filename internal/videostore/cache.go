package videostore

import (
	"context"
	"errors"
	"image"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/andreahaku/llm-memory-mcp/internal/hashutil"
)

// PayloadCache holds decoded body bytes keyed by content hash, avoiding a
// repeat QR-decode for a hot item. Key formatting follows the teacher's
// hugecache typed-prefix convention.
type PayloadCache struct {
	cache *bigcache.BigCache
}

func formatPayloadKey(hash hashutil.ContentHash) string {
	return "body:" + hash.String()
}

// NewPayloadCache wraps bigcache with its default in-memory config.
func NewPayloadCache(ctx context.Context) (*PayloadCache, error) {
	cache, err := bigcache.New(ctx, bigcache.DefaultConfig(0))
	if err != nil {
		return nil, err
	}
	return &PayloadCache{cache: cache}, nil
}

// Get returns the cached raw body bytes for hash, if present.
func (c *PayloadCache) Get(hash hashutil.ContentHash) ([]byte, bool) {
	v, err := c.cache.Get(formatPayloadKey(hash))
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, false
		}
		return nil, false
	}
	return v, true
}

// Put caches raw body bytes for hash.
func (c *PayloadCache) Put(hash hashutil.ContentHash, body []byte) error {
	return c.cache.Set(formatPayloadKey(hash), body)
}

// FrameCache holds recently-extracted QR frame images keyed by
// "<segmentID>:<frameIndex>", avoiding a repeat ffmpeg extraction when
// several content hashes in the same neighborhood are requested together.
type FrameCache struct {
	cache *lru.Cache[string, *image.RGBA]
}

// NewFrameCache builds a bounded LRU cache of size capacity.
func NewFrameCache(capacity int) (*FrameCache, error) {
	c, err := lru.New[string, *image.RGBA](capacity)
	if err != nil {
		return nil, err
	}
	return &FrameCache{cache: c}, nil
}

func frameKey(segmentID string, frameIndex uint32) string {
	return segmentID + ":" + itoa(frameIndex)
}

func (c *FrameCache) Get(segmentID string, frameIndex uint32) (*image.RGBA, bool) {
	return c.cache.Get(frameKey(segmentID, frameIndex))
}

func (c *FrameCache) Put(segmentID string, frameIndex uint32, img *image.RGBA) {
	c.cache.Add(frameKey(segmentID, frameIndex), img)
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
