package usecase

import (
	"fmt"
	"log/slog"

	"papersearch/internal/adapter/store"
	"papersearch/internal/domain"
	"papersearch/internal/metric"
	"papersearch/internal/port"
)

// IndexTarget is a vector store that records which configuration built it.
type IndexTarget interface {
	port.VectorStore
	store.SchemaTracker
}

// IndexUseCase writes embedding records into the vector index.
type IndexUseCase struct {
	store      IndexTarget
	configHash string
	batchSize  int
	progress   ProgressFunc
	logger     *slog.Logger
	metrics    *metric.Metrics
}

// NewIndexUseCase creates a new index use case. configHash identifies the
// embedding configuration the records were produced with.
func NewIndexUseCase(st IndexTarget, configHash string, logger *slog.Logger, m *metric.Metrics) *IndexUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexUseCase{
		store:      st,
		configHash: configHash,
		batchSize:  500,
		logger:     logger,
		metrics:    m,
	}
}

// WithProgress sets a callback invoked after each upserted batch.
func (u *IndexUseCase) WithProgress(fn ProgressFunc) *IndexUseCase {
	u.progress = fn
	return u
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	Upserted int
	Total    int
	Rebuilt  bool
	Reason   string
}

// Index upserts records keyed by "<paper_id>_<chunk_index>". The collection
// is cleared first when rebuild is set or when it was built with a different
// embedding configuration.
func (u *IndexUseCase) Index(records []domain.EmbeddingRecord, rebuild bool) (*IndexResult, error) {
	result := &IndexResult{}

	mig, err := store.CheckMigration(u.store, u.configHash)
	if err != nil {
		return nil, err
	}
	if rebuild || mig.NeedsRebuild {
		result.Rebuilt = true
		result.Reason = mig.Reason
		if rebuild {
			result.Reason = "rebuild requested"
		}
		u.logger.Warn("Clearing collection before indexing", "reason", result.Reason)
		if err := u.store.Clear(); err != nil {
			return nil, err
		}
	}

	for start := 0; start < len(records); start += u.batchSize {
		end := start + u.batchSize
		if end > len(records) {
			end = len(records)
		}

		ids, embeddings, metadatas, documents := columns(records[start:end])
		err := u.store.UpsertColumns(ids, embeddings, metadatas, documents)
		u.metrics.ObserveUpsert(end-start, err)
		if err != nil {
			return nil, fmt.Errorf("upsert records %d-%d: %w", start, end-1, err)
		}
		result.Upserted = end

		if u.progress != nil {
			u.progress(end, len(records))
		}
	}

	if err := store.Migrate(u.store, u.configHash); err != nil {
		return nil, fmt.Errorf("record schema info: %w", err)
	}

	result.Total, err = u.store.Count()
	if err != nil {
		return nil, err
	}

	u.logger.Info("Indexed records", "upserted", result.Upserted, "total", result.Total)
	return result, nil
}

func columns(records []domain.EmbeddingRecord) ([]string, [][]float32, []domain.ChunkMetadata, []string) {
	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	metadatas := make([]domain.ChunkMetadata, len(records))
	documents := make([]string, len(records))
	for i, rec := range records {
		e := domain.NewIndexEntry(rec)
		ids[i] = e.ID
		embeddings[i] = e.Embedding
		metadatas[i] = e.Metadata
		documents[i] = e.Document
	}
	return ids, embeddings, metadatas, documents
}
