package memstore

import (
	"papersearch/internal/adapter/store"
	"papersearch/internal/domain"
)

// MemoryStore is a non-persistent VectorStore with the same ranking as the
// on-disk backends. Useful for tests and one-off runs.
type MemoryStore struct {
	index *store.Index
}

func NewMemoryStore(metric store.Metric) *MemoryStore {
	if metric == "" {
		metric = store.Cosine
	}
	return &MemoryStore{index: store.NewIndex(metric, 0)}
}

func (s *MemoryStore) Upsert(entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	dimension, err := s.index.Check(entries)
	if err != nil {
		return err
	}
	s.index.Apply(entries, dimension)
	return nil
}

func (s *MemoryStore) UpsertColumns(ids []string, embeddings [][]float32, metadatas []domain.ChunkMetadata, documents []string) error {
	entries, err := store.ZipColumns(ids, embeddings, metadatas, documents)
	if err != nil {
		return err
	}
	return s.Upsert(entries)
}

func (s *MemoryStore) Query(vector []float32, k int) ([]domain.ScoredEntry, error) {
	return s.index.Query(vector, k)
}

func (s *MemoryStore) Count() (int, error) {
	return s.index.Len(), nil
}

func (s *MemoryStore) Dimension() int {
	return s.index.Dimension()
}

func (s *MemoryStore) Close() error {
	return nil
}
