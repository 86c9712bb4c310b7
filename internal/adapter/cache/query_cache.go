package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"papersearch/internal/domain"
	"papersearch/internal/metric"
	"papersearch/internal/port"
)

// QueryCache keeps recent retrieval results keyed by (query, topK).
// Entries expire after ttl and the least recently used entry is evicted
// once maxSize is reached.
type QueryCache struct {
	lru *expirable.LRU[string, []domain.Hit]
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		lru: expirable.NewLRU[string, []domain.Hit](maxSize, nil, ttl),
	}
}

func cacheKey(query string, topK int) string {
	hash := sha256.Sum256([]byte(strconv.Itoa(topK) + "\x00" + query))
	return hex.EncodeToString(hash[:16])
}

func (c *QueryCache) Get(query string, topK int) ([]domain.Hit, bool) {
	hits, ok := c.lru.Get(cacheKey(query, topK))
	if !ok {
		return nil, false
	}
	return cloneHits(hits), true
}

func (c *QueryCache) Put(query string, topK int, hits []domain.Hit) {
	c.lru.Add(cacheKey(query, topK), cloneHits(hits))
}

// Invalidate drops every entry. Call it after the index changes.
func (c *QueryCache) Invalidate() {
	c.lru.Purge()
}

func (c *QueryCache) Size() int {
	return c.lru.Len()
}

func cloneHits(hits []domain.Hit) []domain.Hit {
	out := make([]domain.Hit, len(hits))
	copy(out, hits)
	return out
}

// CachedRetriever serves repeated queries from a QueryCache. Failed
// retrievals are never cached.
type CachedRetriever struct {
	retriever port.Retriever
	cache     *QueryCache
	metrics   *metric.Metrics
}

var _ port.Retriever = (*CachedRetriever)(nil)

func NewCachedRetriever(retriever port.Retriever, cache *QueryCache, m *metric.Metrics) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
		metrics:   m,
	}
}

func (r *CachedRetriever) Retrieve(query string, topK int) ([]domain.Hit, error) {
	if hits, ok := r.cache.Get(query, topK); ok {
		r.metrics.ObserveCache(true)
		return hits, nil
	}
	r.metrics.ObserveCache(false)

	hits, err := r.retriever.Retrieve(query, topK)
	if err != nil {
		return nil, err
	}

	r.cache.Put(query, topK, hits)
	return hits, nil
}

func (r *CachedRetriever) Invalidate() {
	r.cache.Invalidate()
}
