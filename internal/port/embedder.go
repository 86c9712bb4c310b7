package port

import "papersearch/internal/domain"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text, in input order.
	Embed(texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// EmbeddingModel is the adapter the pipeline and the retrieval service use.
// Documents and queries go through the same instance so they share one
// vector space.
type EmbeddingModel interface {
	EmbedBatch(texts []string) ([][]float32, error)
	EmbedOne(text string) ([]float32, error)
	Dimension() int
	ModelName() string
}

// VectorStore stores index entries and answers nearest-neighbor queries.
type VectorStore interface {
	// Upsert inserts entries or replaces entries with the same ID.
	Upsert(entries []domain.IndexEntry) error

	// UpsertColumns is Upsert over parallel arrays, which must have equal length.
	UpsertColumns(ids []string, embeddings [][]float32, metadatas []domain.ChunkMetadata, documents []string) error

	// Query returns up to k entries ordered by ascending distance to vector.
	// Callers own the returned entries.
	Query(vector []float32, k int) ([]domain.ScoredEntry, error)

	// Count returns the number of entries in the store.
	Count() (int, error)

	// Dimension returns the stored vector length, or 0 while the store is empty.
	Dimension() int

	Close() error
}
