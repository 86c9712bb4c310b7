package embedding

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"papersearch/internal/domain"
	"papersearch/internal/metric"
	"papersearch/internal/port"
)

// AdapterOptions tunes how an Adapter calls its backend.
type AdapterOptions struct {
	// BatchSize is the number of texts per backend call. 0 sends everything at once.
	BatchSize int

	// MaxInputChars rejects longer texts unless Truncate is set. 0 disables the check.
	MaxInputChars int
	Truncate      bool

	Logger  *slog.Logger
	Metrics *metric.Metrics
}

// Adapter is the single entry point to an embedding backend. It enforces the
// input policy, splits work into backend calls and checks every vector the
// backend returns.
type Adapter struct {
	backend port.Embedder
	opts    AdapterOptions
	logger  *slog.Logger
}

var _ port.EmbeddingModel = (*Adapter)(nil)

func NewAdapter(backend port.Embedder, opts AdapterOptions) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		backend: backend,
		opts:    opts,
		logger:  logger.With("component", "embedding", "model", backend.ModelName()),
	}
}

// EmbedBatch returns one vector per text in input order.
func (a *Adapter) EmbedBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	inputs, err := a.applyInputPolicy(texts)
	if err != nil {
		return nil, err
	}

	size := a.opts.BatchSize
	if size <= 0 {
		size = len(inputs)
	}

	out := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += size {
		end := start + size
		if end > len(inputs) {
			end = len(inputs)
		}
		vecs, err := a.call(inputs[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedOne embeds a single text through EmbedBatch, so a query lands in the
// same space as the documents it is compared with.
func (a *Adapter) EmbedOne(text string) ([]float32, error) {
	vecs, err := a.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (a *Adapter) Dimension() int {
	return a.backend.Dimension()
}

func (a *Adapter) ModelName() string {
	return a.backend.ModelName()
}

func (a *Adapter) call(batch []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := a.backend.Embed(batch)
	if err == nil {
		err = a.check(batch, vecs)
	}
	elapsed := time.Since(start)
	a.opts.Metrics.ObserveEmbedBatch(len(batch), elapsed, err)
	if err != nil {
		a.logger.Debug("Embedding batch failed", "texts", len(batch), "error", err)
		return nil, err
	}
	a.logger.Debug("Embedded batch", "texts", len(batch), "duration", elapsed)
	return vecs, nil
}

func (a *Adapter) check(batch []string, vecs [][]float32) error {
	if len(vecs) != len(batch) {
		return fmt.Errorf("backend returned %d vectors for %d texts: %w", len(vecs), len(batch), domain.ErrEncoding)
	}
	dim := a.backend.Dimension()
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("vector %d has length %d, expected %d: %w", i, len(v), dim, domain.ErrEncoding)
		}
	}
	return nil
}

func (a *Adapter) applyInputPolicy(texts []string) ([]string, error) {
	limit := a.opts.MaxInputChars
	if limit <= 0 {
		return texts, nil
	}

	var out []string
	for i, text := range texts {
		if utf8.RuneCountInString(text) <= limit {
			continue
		}
		if !a.opts.Truncate {
			return nil, fmt.Errorf("text %d has %d characters, limit is %d: %w",
				i, utf8.RuneCountInString(text), limit, domain.ErrEncoding)
		}
		if out == nil {
			out = make([]string, len(texts))
			copy(out, texts)
		}
		out[i] = truncateRunes(text, limit)
		a.logger.Debug("Truncated input text", "index", i, "limit", limit)
	}
	if out == nil {
		return texts, nil
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
