package usecase

import (
	"log/slog"
	"time"

	"papersearch/internal/domain"
	"papersearch/internal/metric"
	"papersearch/internal/port"
)

// RetrieveUseCase answers a free-text query with the nearest indexed chunks.
type RetrieveUseCase struct {
	model   port.EmbeddingModel
	store   port.VectorStore
	logger  *slog.Logger
	metrics *metric.Metrics
}

var _ port.Retriever = (*RetrieveUseCase)(nil)

// NewRetrieveUseCase creates a new retrieve use case. model must be the one
// the index was built with.
func NewRetrieveUseCase(model port.EmbeddingModel, st port.VectorStore, logger *slog.Logger, m *metric.Metrics) *RetrieveUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveUseCase{
		model:   model,
		store:   st,
		logger:  logger,
		metrics: m,
	}
}

// Retrieve returns at most topK hits, most similar first. Hit.Score is the
// distance to the query. Every failure is a *domain.RetrievalError.
func (u *RetrieveUseCase) Retrieve(query string, topK int) ([]domain.Hit, error) {
	start := time.Now()
	hits, err := u.retrieve(query, topK)
	u.metrics.ObserveQuery(len(hits), time.Since(start), err)
	if err != nil {
		u.logger.Debug("Retrieval failed", "query", query, "error", err)
		return nil, &domain.RetrievalError{Query: query, Err: err}
	}
	return hits, nil
}

func (u *RetrieveUseCase) retrieve(query string, topK int) ([]domain.Hit, error) {
	if topK <= 0 {
		return nil, domain.ErrInvalidK
	}

	vec, err := u.model.EmbedOne(query)
	if err != nil {
		return nil, err
	}

	scored, err := u.store.Query(vec, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.Hit, len(scored))
	for i, s := range scored {
		hits[i] = s.Hit()
	}
	return hits, nil
}
