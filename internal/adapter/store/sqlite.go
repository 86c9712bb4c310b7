package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
	"papersearch/internal/domain"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL DEFAULT 0,
		metric TEXT NOT NULL DEFAULT '',
		schema_version INTEGER NOT NULL DEFAULT 0,
		config_hash TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS entries (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		embedding TEXT NOT NULL,
		paper_id TEXT NOT NULL,
		title TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		document TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);`,
}

const upsertEntrySQL = `INSERT INTO entries (collection, id, embedding, paper_id, title, chunk_index, document)
VALUES (:collection, :id, :embedding, :paper_id, :title, :chunk_index, :document)
ON CONFLICT (collection, id) DO UPDATE SET
	embedding = excluded.embedding,
	paper_id = excluded.paper_id,
	title = excluded.title,
	chunk_index = excluded.chunk_index,
	document = excluded.document`

type collectionRow struct {
	Name          string `db:"name"`
	Dimension     int    `db:"dimension"`
	Metric        string `db:"metric"`
	SchemaVersion int    `db:"schema_version"`
	ConfigHash    string `db:"config_hash"`
}

type entryRow struct {
	Collection string `db:"collection"`
	ID         string `db:"id"`
	Embedding  string `db:"embedding"`
	PaperID    string `db:"paper_id"`
	Title      string `db:"title"`
	ChunkIndex int    `db:"chunk_index"`
	Document   string `db:"document"`
}

// SQLiteVectorStore keeps collections in a SQLite file. Search runs on the
// same in-memory Index as the bolt backend.
type SQLiteVectorStore struct {
	db         *sqlx.DB
	collection string
	readOnly   bool
	index      *Index
	wmu        sync.Mutex
}

// OpenSQLite opens or creates the SQLite database at path and loads one collection.
func OpenSQLite(path string, opts Options) (*SQLiteVectorStore, error) {
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if opts.Metric == "" {
		opts.Metric = Cosine
	}

	dsn := "file:" + path
	if opts.ReadOnly {
		dsn += "?mode=ro"
	}
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w: %w", path, domain.ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	if opts.Timeout > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", opts.Timeout.Milliseconds())); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure sqlite %s: %w: %w", path, domain.ErrStoreUnavailable, err)
		}
	}

	s := &SQLiteVectorStore{
		db:         db,
		collection: opts.Collection,
		readOnly:   opts.ReadOnly,
	}

	if !opts.ReadOnly {
		if err := s.migrate(); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := s.load(opts.Metric); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteVectorStore) migrate() error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply sqlite schema: %w: %w", domain.ErrStoreUnavailable, err)
		}
	}
	_, err := s.db.Exec(`INSERT INTO collections (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, s.collection)
	if err != nil {
		return fmt.Errorf("create collection %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteVectorStore) collectionRow() (*collectionRow, error) {
	var rows []collectionRow
	err := s.db.Select(&rows, `SELECT name, dimension, metric, schema_version, config_hash FROM collections WHERE name = ?`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}
	if len(rows) == 0 {
		return &collectionRow{Name: s.collection}, nil
	}
	return &rows[0], nil
}

func (s *SQLiteVectorStore) load(metric Metric) error {
	coll, err := s.collectionRow()
	if err != nil {
		return err
	}
	if coll.Metric != "" && Metric(coll.Metric) != metric {
		s.index = NewIndex(metric, 0)
		s.index.Block(fmt.Errorf("collection %s was built with metric %s, configured %s: %w",
			s.collection, coll.Metric, metric, domain.ErrStoreUnavailable))
		return nil
	}

	s.index = NewIndex(metric, coll.Dimension)

	var rows []entryRow
	err = s.db.Select(&rows, `SELECT collection, id, embedding, paper_id, title, chunk_index, document
		FROM entries WHERE collection = ?`, s.collection)
	if err != nil {
		return fmt.Errorf("read entries of %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}
	for _, r := range rows {
		var vec []float32
		if err := json.Unmarshal([]byte(r.Embedding), &vec); err != nil {
			return fmt.Errorf("decode entry %s: %w: %w", r.ID, domain.ErrStoreUnavailable, err)
		}
		err := s.index.Load(domain.IndexEntry{
			ID:        r.ID,
			Embedding: vec,
			Metadata: domain.ChunkMetadata{
				PaperID:    r.PaperID,
				Title:      r.Title,
				ChunkIndex: r.ChunkIndex,
			},
			Document: r.Document,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Upsert adds or replaces entries in one transaction.
func (s *SQLiteVectorStore) Upsert(entries []domain.IndexEntry) error {
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

	rows := make([]entryRow, len(entries))
	for i, e := range entries {
		vec, err := json.Marshal(e.Embedding)
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", e.ID, err)
		}
		rows[i] = entryRow{
			Collection: s.collection,
			ID:         e.ID,
			Embedding:  string(vec),
			PaperID:    e.Metadata.PaperID,
			Title:      e.Metadata.Title,
			ChunkIndex: e.Metadata.ChunkIndex,
			Document:   e.Document,
		}
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("upsert into %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}
	for _, r := range rows {
		if _, err := tx.NamedExec(upsertEntrySQL, r); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s into %s: %w: %w", r.ID, s.collection, domain.ErrStoreUnavailable, err)
		}
	}
	_, err = tx.Exec(`UPDATE collections SET dimension = ?, metric = ? WHERE name = ?`,
		dimension, string(s.index.Metric()), s.collection)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update collection %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert into %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}

	s.index.Apply(entries, dimension)
	return nil
}

func (s *SQLiteVectorStore) UpsertColumns(ids []string, embeddings [][]float32, metadatas []domain.ChunkMetadata, documents []string) error {
	entries, err := ZipColumns(ids, embeddings, metadatas, documents)
	if err != nil {
		return err
	}
	return s.Upsert(entries)
}

func (s *SQLiteVectorStore) Query(vector []float32, k int) ([]domain.ScoredEntry, error) {
	return s.index.Query(vector, k)
}

func (s *SQLiteVectorStore) Count() (int, error) {
	return s.index.Count()
}

func (s *SQLiteVectorStore) Dimension() int {
	return s.index.Dimension()
}

func (s *SQLiteVectorStore) Stats() domain.Stats {
	return domain.Stats{
		Collection: s.collection,
		Entries:    s.index.Len(),
		Dimension:  s.index.Dimension(),
		Metric:     string(s.index.Metric()),
		Backend:    "sqlite",
	}
}

func (s *SQLiteVectorStore) SchemaInfo() (*SchemaInfo, error) {
	coll, err := s.collectionRow()
	if err != nil {
		return nil, err
	}
	return &SchemaInfo{Version: coll.SchemaVersion, ConfigHash: coll.ConfigHash}, nil
}

func (s *SQLiteVectorStore) SetSchemaInfo(info *SchemaInfo) error {
	if s.readOnly {
		return fmt.Errorf("collection %s opened read-only: %w", s.collection, domain.ErrStoreUnavailable)
	}
	_, err := s.db.Exec(`UPDATE collections SET schema_version = ?, config_hash = ? WHERE name = ?`,
		info.Version, info.ConfigHash, s.collection)
	if err != nil {
		return fmt.Errorf("update schema of %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteVectorStore) Clear() error {
	if s.readOnly {
		return fmt.Errorf("collection %s opened read-only: %w", s.collection, domain.ErrStoreUnavailable)
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("clear %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}
	if _, err := tx.Exec(`DELETE FROM entries WHERE collection = ?`, s.collection); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}
	if _, err := tx.Exec(`UPDATE collections SET dimension = 0, metric = '' WHERE name = ?`, s.collection); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear %s: %w: %w", s.collection, domain.ErrStoreUnavailable, err)
	}

	s.index.Reset(0)
	return nil
}

func (s *SQLiteVectorStore) Close() error {
	return s.db.Close()
}
