package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
	"papersearch/internal/domain"
)

type opener func(t *testing.T, dir string, opts Options) Collection

var backends = map[string]opener{
	"bolt": func(t *testing.T, dir string, opts Options) Collection {
		s, err := OpenBolt(filepath.Join(dir, "index.db"), opts)
		require.NoError(t, err)
		return s
	},
	"sqlite": func(t *testing.T, dir string, opts Options) Collection {
		s, err := OpenSQLite(filepath.Join(dir, "index.sqlite"), opts)
		require.NoError(t, err)
		return s
	},
}

func entry(paperID string, idx int, text string, vec ...float32) domain.IndexEntry {
	return domain.NewIndexEntry(domain.EmbeddingRecord{
		PaperID:    paperID,
		Title:      "Title " + paperID,
		ChunkIndex: idx,
		Text:       text,
		Embedding:  vec,
	})
}

func forEachBackend(t *testing.T, fn func(t *testing.T, open func(opts Options) Collection)) {
	for name, o := range backends {
		o := o
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			fn(t, func(opts Options) Collection {
				if opts.Collection == "" {
					opts.Collection = "arxiv"
				}
				s := o(t, dir, opts)
				t.Cleanup(func() { s.Close() })
				return s
			})
		})
	}
}

func TestQueryExactMatchReturnsClosest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{Metric: Cosine})

		require.NoError(t, s.Upsert([]domain.IndexEntry{
			entry("p1", 0, "first chunk", 1, 0, 0),
			entry("p1", 1, "second chunk", 0, 1, 0),
		}))

		results, err := s.Query([]float32{1, 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)

		hit := results[0].Hit()
		assert.Equal(t, "p1", hit.PaperID)
		assert.Equal(t, 0, hit.ChunkIndex)
		assert.Equal(t, "first chunk", hit.Text)
		assert.Equal(t, "p1_0", results[0].Entry.ID)
		assert.InDelta(t, 0.0, hit.Score, 1e-6)
	})
}

func TestQueryReturnsMinKSorted(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{Metric: L2})

		var entries []domain.IndexEntry
		for i := 0; i < 5; i++ {
			entries = append(entries, entry("p", i, fmt.Sprintf("chunk %d", i), float32(i), 0))
		}
		require.NoError(t, s.Upsert(entries))

		for _, k := range []int{1, 3, 5, 10} {
			results, err := s.Query([]float32{0.2, 0}, k)
			require.NoError(t, err)
			assert.Len(t, results, min(k, 5))
			for i := 1; i < len(results); i++ {
				assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
			}
		}
	})
}

func TestQueryResultsDoNotAliasIndex(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})
		require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "a", 1, 0)}))

		results, err := s.Query([]float32{1, 0}, 1)
		require.NoError(t, err)
		results[0].Entry.Embedding[0] = -1

		results, err = s.Query([]float32{1, 0}, 1)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, results[0].Entry.Embedding)
		assert.InDelta(t, 0.0, results[0].Distance, 1e-9)
	})
}

func TestQueryEmptyStore(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})

		results, err := s.Query([]float32{1, 2, 3}, 5)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})
}

func TestQueryRejectsNonPositiveK(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})
		_, err := s.Query([]float32{1}, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidK)
	})
}

func TestQueryTieBreakByID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{Metric: Cosine})

		require.NoError(t, s.Upsert([]domain.IndexEntry{
			entry("c", 0, "", 0, 1),
			entry("a", 0, "", 0, 1),
			entry("b", 0, "", 0, 1),
		}))

		for i := 0; i < 3; i++ {
			results, err := s.Query([]float32{0, 1}, 3)
			require.NoError(t, err)
			ids := []string{results[0].Entry.ID, results[1].Entry.ID, results[2].Entry.ID}
			assert.Equal(t, []string{"a_0", "b_0", "c_0"}, ids)
		}
	})
}

func TestUpsertIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})
		batch := []domain.IndexEntry{
			entry("p1", 0, "a", 1, 0),
			entry("p1", 1, "b", 0, 1),
		}

		require.NoError(t, s.Upsert(batch))
		before, err := s.Query([]float32{1, 1}, 10)
		require.NoError(t, err)

		require.NoError(t, s.Upsert(batch))
		after, err := s.Query([]float32{1, 1}, 10)
		require.NoError(t, err)

		assert.Equal(t, before, after)
		n, err := s.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestUpsertOverwritesEntireEntry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})

		require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "old text", 1, 0)}))

		updated := entry("p1", 0, "new text", 0, 1)
		updated.Metadata.Title = "New title"
		require.NoError(t, s.Upsert([]domain.IndexEntry{updated}))

		results, err := s.Query([]float32{0, 1}, 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "new text", results[0].Entry.Document)
		assert.Equal(t, "New title", results[0].Entry.Metadata.Title)
		assert.Equal(t, []float32{0, 1}, results[0].Entry.Embedding)
		assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	})
}

func TestUpsertDuplicateIDsLastWins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})

		require.NoError(t, s.Upsert([]domain.IndexEntry{
			entry("p1", 0, "first", 1, 0),
			entry("p1", 0, "second", 0, 1),
		}))

		results, err := s.Query([]float32{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "second", results[0].Entry.Document)
	})
}

func TestUpsertColumnsShapeMismatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})

		err := s.UpsertColumns(
			[]string{"p1_0", "p1_1"},
			[][]float32{{1, 0}},
			[]domain.ChunkMetadata{{PaperID: "p1"}, {PaperID: "p1", ChunkIndex: 1}},
			[]string{"a", "b"},
		)
		assert.ErrorIs(t, err, domain.ErrShapeMismatch)

		n, err := s.Count()
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestUpsertColumns(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})

		require.NoError(t, s.UpsertColumns(
			[]string{"p1_0", "p1_1"},
			[][]float32{{1, 0}, {0, 1}},
			[]domain.ChunkMetadata{{PaperID: "p1"}, {PaperID: "p1", ChunkIndex: 1}},
			[]string{"a", "b"},
		))

		results, err := s.Query([]float32{0, 1}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "p1_1", results[0].Entry.ID)
		assert.Equal(t, "b", results[0].Entry.Document)
	})
}

func TestDimensionMismatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})
		require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "a", 1, 0, 0)}))
		assert.Equal(t, 3, s.Dimension())

		err := s.Upsert([]domain.IndexEntry{entry("p2", 0, "b", 1, 0)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		// mixed lengths inside one batch are rejected before anything is written
		err = s.Upsert([]domain.IndexEntry{entry("p3", 0, "c", 1, 0, 0), entry("p3", 1, "d", 1)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		n, _ := s.Count()
		assert.Equal(t, 1, n)

		_, err = s.Query([]float32{1, 0}, 1)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}

func TestPersistenceAcrossReopen(t *testing.T) {
	for name, o := range backends {
		o := o
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			opts := Options{Collection: "arxiv", Metric: Cosine}

			s := o(t, dir, opts)
			require.NoError(t, s.Upsert([]domain.IndexEntry{
				entry("p1", 0, "persisted", 1, 0),
				entry("p2", 0, "other", 0, 1),
			}))
			require.NoError(t, s.Close())

			reopened := o(t, dir, opts)
			defer reopened.Close()

			n, err := reopened.Count()
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, 2, reopened.Dimension())

			results, err := reopened.Query([]float32{1, 0}, 1)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "persisted", results[0].Entry.Document)
			assert.Equal(t, "Title p1", results[0].Entry.Metadata.Title)
		})
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	for name, o := range backends {
		o := o
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			a := o(t, dir, Options{Collection: "a"})
			require.NoError(t, a.Upsert([]domain.IndexEntry{entry("p1", 0, "x", 1, 0)}))
			require.NoError(t, a.Close())

			b := o(t, dir, Options{Collection: "b"})
			defer b.Close()
			n, err := b.Count()
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestMetricConflictBlocksUntilClear(t *testing.T) {
	for name, o := range backends {
		o := o
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			s := o(t, dir, Options{Collection: "arxiv", Metric: L2})
			require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "x", 1, 0)}))
			require.NoError(t, s.Close())

			s = o(t, dir, Options{Collection: "arxiv", Metric: Cosine})
			defer s.Close()

			_, err := s.Query([]float32{1, 0}, 1)
			assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
			assert.ErrorIs(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "x", 1, 0)}), domain.ErrStoreUnavailable)

			require.NoError(t, s.Clear())
			require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "x", 1, 0)}))
			results, err := s.Query([]float32{1, 0}, 1)
			require.NoError(t, err)
			assert.Len(t, results, 1)
			assert.Equal(t, "cosine", s.Stats().Metric)
		})
	}
}

func TestClearUnblocksConcurrentReaders(t *testing.T) {
	for name, o := range backends {
		o := o
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			s := o(t, dir, Options{Collection: "arxiv", Metric: L2})
			require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "x", 1, 0)}))
			require.NoError(t, s.Close())

			s = o(t, dir, Options{Collection: "arxiv", Metric: Cosine})
			defer s.Close()

			_, err := s.Count()
			assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						s.Query([]float32{1, 0}, 1)
						s.Count()
					}
				}()
			}
			require.NoError(t, s.Clear())
			wg.Wait()

			n, err := s.Count()
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestClearResetsDimension(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})
		require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "x", 1, 0)}))
		require.NoError(t, s.Clear())

		assert.Zero(t, s.Dimension())
		require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "x", 1, 0, 0)}))
		assert.Equal(t, 3, s.Dimension())
	})
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	for name, o := range backends {
		o := o
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			s := o(t, dir, Options{Collection: "arxiv"})
			require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "x", 1, 0)}))
			require.NoError(t, s.Close())

			ro := o(t, dir, Options{Collection: "arxiv", ReadOnly: true})
			defer ro.Close()

			results, err := ro.Query([]float32{1, 0}, 1)
			require.NoError(t, err)
			assert.Len(t, results, 1)
			assert.ErrorIs(t, ro.Upsert([]domain.IndexEntry{entry("p2", 0, "y", 1, 0)}), domain.ErrStoreUnavailable)
		})
	}
}

func TestOpenCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a bolt file, just some bytes"), 0600))

	_, err := OpenBolt(path, Options{Collection: "arxiv", Timeout: time.Second})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestOpenCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	s, err := OpenBolt(path, Options{Collection: "arxiv"})
	require.NoError(t, err)
	require.NoError(t, s.db.Update(func(tx *bbolt.Tx) error {
		return s.bucket(tx, bucketEntries).Put([]byte("p1_0"), []byte("{broken"))
	}))
	require.NoError(t, s.Close())

	_, err = OpenBolt(path, Options{Collection: "arxiv"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestOpenLockedFileTimesOut(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	s, err := OpenBolt(path, Options{Collection: "arxiv"})
	require.NoError(t, err)
	defer s.Close()

	_, err = OpenBolt(path, Options{Collection: "arxiv", Timeout: 50 * time.Millisecond})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestConcurrentQueriesDuringUpserts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})
		require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, "v0", 1, 0)}))

		var wg sync.WaitGroup
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					results, err := s.Query([]float32{1, 0}, 1)
					if !assert.NoError(t, err) || !assert.Len(t, results, 1) {
						return
					}
					e := results[0].Entry
					// document and embedding always come from the same write
					if e.Document == "v0" {
						assert.Equal(t, []float32{1, 0}, e.Embedding)
					} else {
						assert.Equal(t, []float32{1, 1}, e.Embedding)
					}
				}
			}()
		}
		for i := 0; i < 10; i++ {
			doc := "v0"
			vec := []float32{1, 0}
			if i%2 == 1 {
				doc = "v1"
				vec = []float32{1, 1}
			}
			require.NoError(t, s.Upsert([]domain.IndexEntry{entry("p1", 0, doc, vec...)}))
		}
		wg.Wait()
	})
}

func TestSchemaTracking(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(Options) Collection) {
		s := open(Options{})

		result, err := CheckMigration(s, "abc")
		require.NoError(t, err)
		assert.True(t, result.NeedsMigration)
		assert.False(t, result.NeedsRebuild)

		require.NoError(t, Migrate(s, "abc"))
		result, err = CheckMigration(s, "abc")
		require.NoError(t, err)
		assert.False(t, result.NeedsMigration)
		assert.False(t, result.NeedsRebuild)

		result, err = CheckMigration(s, "def")
		require.NoError(t, err)
		assert.True(t, result.NeedsRebuild)
		assert.Equal(t, "embedding model or metric changed", result.Reason)

		require.NoError(t, s.SetSchemaInfo(&SchemaInfo{Version: CurrentSchemaVersion + 1, ConfigHash: "abc"}))
		_, err = CheckMigration(s, "abc")
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.ErrorIs(t, Migrate(s, "abc"), domain.ErrStoreUnavailable)
	})
}
