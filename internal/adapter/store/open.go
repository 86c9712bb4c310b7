package store

import (
	"fmt"

	"papersearch/config"
	"papersearch/internal/domain"
	"papersearch/internal/port"
)

// Collection is a persistent vector store that also tracks its schema.
type Collection interface {
	port.VectorStore
	SchemaTracker
	Stats() domain.Stats
}

var (
	_ Collection = (*BoltVectorStore)(nil)
	_ Collection = (*SQLiteVectorStore)(nil)
)

// Open opens the collection described by cfg.Store. The store directory is
// created unless readOnly is set.
func Open(cfg config.StoreConfig, readOnly bool) (Collection, error) {
	metric, err := ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	if !readOnly {
		if err := config.EnsureStoreDir(cfg.Path); err != nil {
			return nil, fmt.Errorf("create store directory: %w: %w", domain.ErrStoreUnavailable, err)
		}
	}

	opts := Options{
		Collection: cfg.Collection,
		Metric:     metric,
		ReadOnly:   readOnly,
		Timeout:    cfg.OpenTimeout,
	}

	path := config.IndexDBPath(cfg.Path, cfg.Backend)
	switch cfg.Backend {
	case "sqlite":
		return OpenSQLite(path, opts)
	case "bolt", "":
		return OpenBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
