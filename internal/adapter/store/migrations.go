package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"
	"papersearch/config"
	"papersearch/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo stores schema version and configuration hash.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

// SchemaTracker is implemented by backends that record which embedding
// configuration built a collection.
type SchemaTracker interface {
	SchemaInfo() (*SchemaInfo, error)
	SetSchemaInfo(info *SchemaInfo) error
	// Clear removes every entry and resets the stored dimension and metric.
	Clear() error
}

// ComputeConfigHash computes a hash of index-relevant configuration.
// Vectors built under a different hash live in a different metric space,
// so a change means the collection must be rebuilt.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Provider  string `json:"provider"`
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
		Metric    string `json:"metric"`
	}{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Metric:    cfg.Store.Metric,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration checks if migration or rebuild is needed. A collection
// written by a newer schema version is an error, not a rebuild.
func CheckMigration(t SchemaTracker, configHash string) (*MigrationResult, error) {
	info, err := t.SchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	if info.Version == 0 {
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	} else if info.Version < CurrentSchemaVersion {
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	} else if info.Version > CurrentSchemaVersion {
		// never clear data this binary cannot read back
		return nil, fmt.Errorf("collection created by newer version (v%d > v%d): %w",
			info.Version, CurrentSchemaVersion, domain.ErrStoreUnavailable)
	}

	if info.ConfigHash != "" && info.ConfigHash != configHash {
		result.NeedsRebuild = true
		result.Reason = "embedding model or metric changed"
	}

	return result, nil
}

// Migrate records the current schema version and config hash.
func Migrate(t SchemaTracker, configHash string) error {
	info, err := t.SchemaInfo()
	if err != nil {
		return err
	}
	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("cannot migrate down from v%d to v%d: %w", info.Version, CurrentSchemaVersion, domain.ErrStoreUnavailable)
	}
	return t.SetSchemaInfo(&SchemaInfo{
		Version:    CurrentSchemaVersion,
		ConfigHash: configHash,
	})
}

// SchemaInfo retrieves the schema info of the collection.
func (s *BoltVectorStore) SchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := s.bucket(tx, bucketMeta)
		if meta == nil {
			return nil
		}
		if raw := meta.Get(keySchemaVersion); raw != nil {
			v, err := strconv.Atoi(string(raw))
			if err != nil {
				return fmt.Errorf("bad schema version %q: %w", raw, domain.ErrStoreUnavailable)
			}
			info.Version = v
		}
		if raw := meta.Get(keyConfigHash); raw != nil {
			info.ConfigHash = string(raw)
		}
		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info of the collection.
func (s *BoltVectorStore) SetSchemaInfo(info *SchemaInfo) error {
	if s.readOnly {
		return fmt.Errorf("collection %s opened read-only: %w", s.collection, domain.ErrStoreUnavailable)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := s.bucket(tx, bucketMeta)
		if meta == nil {
			return fmt.Errorf("collection %s meta bucket not found", s.collection)
		}
		if err := meta.Put(keySchemaVersion, []byte(strconv.Itoa(info.Version))); err != nil {
			return err
		}
		return meta.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// Clear removes all entries of the collection (for rebuild). Schema info is kept.
func (s *BoltVectorStore) Clear() error {
	if s.readOnly {
		return fmt.Errorf("collection %s opened read-only: %w", s.collection, domain.ErrStoreUnavailable)
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		coll := root.Bucket([]byte(s.collection))
		if err := coll.DeleteBucket(bucketEntries); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		if _, err := coll.CreateBucket(bucketEntries); err != nil {
			return err
		}
		meta := coll.Bucket(bucketMeta)
		if err := meta.Delete(keyDimension); err != nil {
			return err
		}
		return meta.Delete(keyMetric)
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}

	s.index.Reset(0)
	return nil
}
