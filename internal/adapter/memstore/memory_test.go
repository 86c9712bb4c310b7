package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"papersearch/internal/adapter/store"
	"papersearch/internal/domain"
	"papersearch/internal/port"
)

var _ port.VectorStore = (*MemoryStore)(nil)

func TestMemoryStoreRanking(t *testing.T) {
	s := NewMemoryStore(store.L2)

	require.NoError(t, s.UpsertColumns(
		[]string{"p1_0", "p1_1", "p2_0"},
		[][]float32{{0, 0}, {3, 4}, {1, 1}},
		[]domain.ChunkMetadata{{PaperID: "p1"}, {PaperID: "p1", ChunkIndex: 1}, {PaperID: "p2"}},
		[]string{"origin", "far", "near"},
	))

	results, err := s.Query([]float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1_0", results[0].Entry.ID)
	assert.Equal(t, "p2_0", results[1].Entry.ID)
	assert.InDelta(t, 2.0, results[1].Distance, 1e-9)
}

func TestMemoryStoreCopiesEmbeddings(t *testing.T) {
	s := NewMemoryStore("")
	vec := []float32{1, 0}
	require.NoError(t, s.Upsert([]domain.IndexEntry{{ID: "p1_0", Embedding: vec}}))

	vec[0] = 0
	results, err := s.Query([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, results[0].Entry.Embedding)
}

func TestMemoryStoreShapeMismatch(t *testing.T) {
	s := NewMemoryStore("")
	err := s.UpsertColumns([]string{"a"}, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrShapeMismatch)
}
