package store

import (
	"fmt"
	"sort"
	"sync"

	"papersearch/internal/domain"
)

// Index is the in-memory search view shared by every backend. Backends persist
// first and then Apply, so a query holds the read lock and sees each entry
// either entirely before or entirely after an upsert.
type Index struct {
	mu        sync.RWMutex
	metric    Metric
	dimension int
	entries   map[string]domain.IndexEntry
	// blocked fails reads and writes until Reset, see Block.
	blocked error
}

func NewIndex(metric Metric, dimension int) *Index {
	return &Index{
		metric:    metric,
		dimension: dimension,
		entries:   make(map[string]domain.IndexEntry),
	}
}

func (x *Index) Metric() Metric {
	return x.metric
}

func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dimension
}

// Block makes Check, Query and Count fail with err until the next Reset.
func (x *Index) Block(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.blocked = err
}

// Count is Len for callers that must honour Block.
func (x *Index) Count() (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.blocked != nil {
		return 0, x.blocked
	}
	return len(x.entries), nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Check returns the dimension a batch would leave the index with, or an error
// if the batch cannot be applied. It does not modify the index.
func (x *Index) Check(entries []domain.IndexEntry) (int, error) {
	x.mu.RLock()
	dim, blocked := x.dimension, x.blocked
	x.mu.RUnlock()
	if blocked != nil {
		return 0, blocked
	}

	for i, e := range entries {
		if e.ID == "" {
			return 0, fmt.Errorf("entry %d: empty id: %w", i, domain.ErrMalformedChunk)
		}
		if len(e.Embedding) == 0 {
			return 0, fmt.Errorf("entry %s: empty embedding: %w", e.ID, domain.ErrDimensionMismatch)
		}
		if dim == 0 {
			dim = len(e.Embedding)
			continue
		}
		if len(e.Embedding) != dim {
			return 0, fmt.Errorf("entry %s: expected %d dimensions, got %d: %w",
				e.ID, dim, len(e.Embedding), domain.ErrDimensionMismatch)
		}
	}
	return dim, nil
}

// Apply replaces or inserts entries. Callers run Check first.
func (x *Index) Apply(entries []domain.IndexEntry, dimension int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dimension == 0 {
		x.dimension = dimension
	}
	for _, e := range entries {
		e.Embedding = append([]float32(nil), e.Embedding...)
		x.entries[e.ID] = e
	}
}

// Load adds an entry read back from persistent storage.
func (x *Index) Load(e domain.IndexEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dimension == 0 {
		x.dimension = len(e.Embedding)
	}
	if len(e.Embedding) != x.dimension {
		return fmt.Errorf("stored entry %s has %d dimensions, collection has %d: %w",
			e.ID, len(e.Embedding), x.dimension, domain.ErrStoreUnavailable)
	}
	x.entries[e.ID] = e
	return nil
}

func (x *Index) Reset(dimension int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.dimension = dimension
	x.entries = make(map[string]domain.IndexEntry)
	x.blocked = nil
}

// Query ranks every entry by distance to vector (exact brute-force search).
// Ties are broken by ascending id so results are reproducible. Returned
// embeddings are copies.
func (x *Index) Query(vector []float32, k int) ([]domain.ScoredEntry, error) {
	if k <= 0 {
		return nil, fmt.Errorf("query with k=%d: %w", k, domain.ErrInvalidK)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.blocked != nil {
		return nil, x.blocked
	}
	if len(x.entries) == 0 {
		return []domain.ScoredEntry{}, nil
	}
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, index has %d: %w",
			len(vector), x.dimension, domain.ErrDimensionMismatch)
	}

	scored := make([]domain.ScoredEntry, 0, len(x.entries))
	for _, e := range x.entries {
		scored = append(scored, domain.ScoredEntry{
			Entry:    e,
			Distance: x.metric.Distance(vector, e.Embedding),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Distance != scored[j].Distance {
			return scored[i].Distance < scored[j].Distance
		}
		return scored[i].Entry.ID < scored[j].Entry.ID
	})

	if k > len(scored) {
		k = len(scored)
	}
	scored = scored[:k]
	for i := range scored {
		scored[i].Entry.Embedding = append([]float32(nil), scored[i].Entry.Embedding...)
	}
	return scored, nil
}

// ZipColumns builds entries from parallel arrays, which must have equal length.
func ZipColumns(ids []string, embeddings [][]float32, metadatas []domain.ChunkMetadata, documents []string) ([]domain.IndexEntry, error) {
	n := len(ids)
	if len(embeddings) != n || len(metadatas) != n || len(documents) != n {
		return nil, fmt.Errorf("ids=%d embeddings=%d metadatas=%d documents=%d: %w",
			len(ids), len(embeddings), len(metadatas), len(documents), domain.ErrShapeMismatch)
	}

	entries := make([]domain.IndexEntry, n)
	for i := range ids {
		entries[i] = domain.IndexEntry{
			ID:        ids[i],
			Embedding: embeddings[i],
			Metadata:  metadatas[i],
			Document:  documents[i],
		}
	}
	return entries, nil
}
