package usecase

import (
	"fmt"
	"log/slog"

	"papersearch/internal/domain"
	"papersearch/internal/port"
)

// ProgressFunc is called after each embedded batch with the number of chunks
// done so far and the total.
type ProgressFunc func(done, total int)

// Producer turns chunks into embedding records.
type Producer struct {
	model     port.EmbeddingModel
	batchSize int
	progress  ProgressFunc
	logger    *slog.Logger
}

// NewProducer creates a producer that hands batchSize chunks to the model per
// call. batchSize 0 embeds everything in one call.
func NewProducer(model port.EmbeddingModel, batchSize int, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		model:     model,
		batchSize: batchSize,
		logger:    logger,
	}
}

// WithProgress sets the progress callback and returns the producer.
func (p *Producer) WithProgress(fn ProgressFunc) *Producer {
	p.progress = fn
	return p
}

// Produce embeds every chunk and returns one record per chunk in input
// order. It either succeeds for all chunks or returns no records.
func (p *Producer) Produce(chunks []domain.Chunk) ([]domain.EmbeddingRecord, error) {
	for i, c := range chunks {
		if c.PaperID == "" {
			return nil, fmt.Errorf("chunk %d: empty paper_id: %w", i, domain.ErrMalformedChunk)
		}
		if c.ChunkIndex < 0 {
			return nil, fmt.Errorf("chunk %d (%s): negative chunk_index %d: %w", i, c.PaperID, c.ChunkIndex, domain.ErrMalformedChunk)
		}
	}

	records := make([]domain.EmbeddingRecord, 0, len(chunks))
	if len(chunks) == 0 {
		return records, nil
	}

	size := p.batchSize
	if size <= 0 {
		size = len(chunks)
	}

	dim := 0
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vecs, err := p.model.EmbedBatch(texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("model returned %d vectors for %d chunks: %w", len(vecs), len(batch), domain.ErrEncoding)
		}

		for i, c := range batch {
			if dim == 0 {
				dim = len(vecs[i])
			}
			if len(vecs[i]) != dim {
				return nil, fmt.Errorf("chunk %d (%s_%d): vector length %d, run started with %d: %w",
					start+i, c.PaperID, c.ChunkIndex, len(vecs[i]), dim, domain.ErrDimensionMismatch)
			}
			records = append(records, domain.EmbeddingRecord{
				PaperID:    c.PaperID,
				Title:      c.Title,
				ChunkIndex: c.ChunkIndex,
				Text:       c.Text,
				Embedding:  vecs[i],
			})
		}

		if p.progress != nil {
			p.progress(end, len(chunks))
		}
	}

	p.logger.Info("Embedded chunks", "chunks", len(records), "dimension", dim, "model", p.model.ModelName())
	return records, nil
}
