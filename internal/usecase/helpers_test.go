package usecase

import (
	"fmt"

	"papersearch/internal/adapter/embedding"
	"papersearch/internal/domain"
)

// stubModel returns vectors whose first slot is the text's position in the
// whole run, which makes order checks trivial.
type stubModel struct {
	dim     int
	calls   int
	batches [][]string
	failAt  int // 1-based call that fails, 0 = never
	err     error
	dims    map[string]int
}

func (m *stubModel) EmbedBatch(texts []string) ([][]float32, error) {
	m.calls++
	m.batches = append(m.batches, texts)
	if m.failAt == m.calls {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		dim := m.dim
		if d, ok := m.dims[text]; ok {
			dim = d
		}
		out[i] = make([]float32, dim)
		fmt.Sscanf(text, "t%f", &out[i][0])
	}
	return out, nil
}

func (m *stubModel) EmbedOne(text string) ([]float32, error) {
	vecs, err := m.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *stubModel) Dimension() int    { return m.dim }
func (m *stubModel) ModelName() string { return "stub" }

func hashModel() *embedding.Adapter {
	return embedding.NewAdapter(embedding.NewHashEmbedder(128), embedding.AdapterOptions{BatchSize: 2})
}

func chunksFor(texts ...string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{PaperID: fmt.Sprintf("p%d", i/2+1), Title: "T", ChunkIndex: i % 2, Text: text}
	}
	return chunks
}
