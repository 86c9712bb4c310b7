package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"papersearch/internal/domain"
)

var (
	bucketCollections = []byte("collections")
	bucketEntries     = []byte("entries")
	bucketMeta        = []byte("meta")
	keyDimension      = []byte("dimension")
	keyMetric         = []byte("metric")
)

// Options configures how a collection is opened.
type Options struct {
	Collection string
	Metric     Metric
	ReadOnly   bool
	Timeout    time.Duration // wait for the file lock, 0 waits forever
}

// BoltVectorStore implements VectorStore using BoltDB for persistence.
// Each collection is a nested bucket; all entries are cached in an Index for
// exact brute-force search.
type BoltVectorStore struct {
	db         *bbolt.DB
	collection string
	readOnly   bool
	index      *Index
	// wmu serialises writers so the cache is applied in commit order.
	wmu sync.Mutex
}

type storedEntry struct {
	Vector   []float32            `json:"v"`
	Metadata domain.ChunkMetadata `json:"m"`
	Document string               `json:"d"`
}

// OpenBolt opens or creates the bbolt file at path and loads one collection.
func OpenBolt(path string, opts Options) (*BoltVectorStore, error) {
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if opts.Metric == "" {
		opts.Metric = Cosine
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: opts.Timeout, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w: %w", path, domain.ErrStoreUnavailable, err)
	}

	s := &BoltVectorStore{
		db:         db,
		collection: opts.Collection,
		readOnly:   opts.ReadOnly,
	}

	if !opts.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			root, err := tx.CreateBucketIfNotExists(bucketCollections)
			if err != nil {
				return err
			}
			coll, err := root.CreateBucketIfNotExists([]byte(opts.Collection))
			if err != nil {
				return err
			}
			for _, b := range [][]byte{bucketEntries, bucketMeta} {
				if _, err := coll.CreateBucketIfNotExists(b); err != nil {
					return fmt.Errorf("failed to create bucket %s: %w", b, err)
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init collection %s: %w: %w", opts.Collection, domain.ErrStoreUnavailable, err)
		}
	}

	if err := s.load(opts.Metric); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *BoltVectorStore) bucket(tx *bbolt.Tx, name []byte) *bbolt.Bucket {
	root := tx.Bucket(bucketCollections)
	if root == nil {
		return nil
	}
	coll := root.Bucket([]byte(s.collection))
	if coll == nil {
		return nil
	}
	return coll.Bucket(name)
}

// load reads the collection into memory.
func (s *BoltVectorStore) load(metric Metric) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		dimension := 0
		if meta := s.bucket(tx, bucketMeta); meta != nil {
			if stored := meta.Get(keyMetric); stored != nil && Metric(stored) != metric {
				s.index = NewIndex(metric, 0)
				s.index.Block(fmt.Errorf("collection %s was built with metric %s, configured %s: %w",
					s.collection, stored, metric, domain.ErrStoreUnavailable))
				return nil
			}
			if raw := meta.Get(keyDimension); raw != nil {
				d, err := strconv.Atoi(string(raw))
				if err != nil {
					return fmt.Errorf("collection %s: bad dimension %q: %w", s.collection, raw, domain.ErrStoreUnavailable)
				}
				dimension = d
			}
		}

		s.index = NewIndex(metric, dimension)

		b := s.bucket(tx, bucketEntries)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedEntry
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("decode entry %s: %w: %w", k, domain.ErrStoreUnavailable, err)
			}
			return s.index.Load(domain.IndexEntry{
				ID:        string(k),
				Embedding: stored.Vector,
				Metadata:  stored.Metadata,
				Document:  stored.Document,
			})
		})
	})
}

// Upsert adds or replaces entries in one transaction.
func (s *BoltVectorStore) Upsert(entries []domain.IndexEntry) error {
	if s.readOnly {
		return fmt.Errorf("collection %s opened read-only: %w", s.collection, domain.ErrStoreUnavailable)
	}
	if len(entries) == 0 {
		return nil
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	dimension, err := s.index.Check(entries)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := s.bucket(tx, bucketEntries)
		meta := s.bucket(tx, bucketMeta)
		if b == nil || meta == nil {
			return fmt.Errorf("collection %s buckets not found", s.collection)
		}

		for _, e := range entries {
			data, err := json.Marshal(storedEntry{
				Vector:   e.Embedding,
				Metadata: e.Metadata,
				Document: e.Document,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(e.ID), data); err != nil {
				return err
			}
		}

		if err := meta.Put(keyDimension, []byte(strconv.Itoa(dimension))); err != nil {
			return err
		}
		return meta.Put(keyMetric, []byte(s.index.Metric()))
	})
	if err != nil {
		return fmt.Errorf("upsert into %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}

	s.index.Apply(entries, dimension)
	return nil
}

func (s *BoltVectorStore) UpsertColumns(ids []string, embeddings [][]float32, metadatas []domain.ChunkMetadata, documents []string) error {
	entries, err := ZipColumns(ids, embeddings, metadatas, documents)
	if err != nil {
		return err
	}
	return s.Upsert(entries)
}

// Query finds the k nearest entries to vector.
func (s *BoltVectorStore) Query(vector []float32, k int) ([]domain.ScoredEntry, error) {
	return s.index.Query(vector, k)
}

// Count returns the number of entries in the collection.
func (s *BoltVectorStore) Count() (int, error) {
	return s.index.Count()
}

func (s *BoltVectorStore) Dimension() int {
	return s.index.Dimension()
}

func (s *BoltVectorStore) Stats() domain.Stats {
	return domain.Stats{
		Collection: s.collection,
		Entries:    s.index.Len(),
		Dimension:  s.index.Dimension(),
		Metric:     string(s.index.Metric()),
		Backend:    "bolt",
	}
}

func (s *BoltVectorStore) Close() error {
	return s.db.Close()
}
