package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultQueryCacheSize bounds memory use: at 384 dims * 4 bytes * 1000
// entries, the cache costs roughly 1.5MB.
const DefaultQueryCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU cache over EncodeQuery.
// Document batches are never cached — they are rarely repeated and
// caching them would just evict useful query entries.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with a query cache of the given size.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultQueryCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.ModelName()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// EncodeQuery returns the cached embedding if present, otherwise computes
// and caches it.
func (c *CachedEmbedder) EncodeQuery(ctx context.Context, query string) ([]float32, error) {
	key := c.cacheKey(query)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.EncodeQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, vec)
	return vec, nil
}

// EncodeDocuments passes through to the inner embedder uncached.
func (c *CachedEmbedder) EncodeDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EncodeDocuments(ctx, texts)
}

// Dim passes through to the inner embedder.
func (c *CachedEmbedder) Dim() int { return c.inner.Dim() }

// ModelName passes through to the inner embedder.
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error { return c.inner.Close() }

// Inner returns the underlying embedder.
func (c *CachedEmbedder) Inner() Embedder { return c.inner }
