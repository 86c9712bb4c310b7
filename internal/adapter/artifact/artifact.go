// Package artifact reads and writes the JSON files handed between pipeline
// steps: paper metadata, chunks and embedding records.
package artifact

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"papersearch/internal/domain"
)

//go:embed schema/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[string]*gojsonschema.Schema
	schemaErr  error
)

func loadSchemas() {
	schemas = make(map[string]*gojsonschema.Schema)
	for _, name := range []string{"chunks", "embeddings"} {
		data, err := schemaFS.ReadFile("schema/" + name + ".schema.json")
		if err != nil {
			schemaErr = err
			return
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			schemaErr = fmt.Errorf("compile %s schema: %w", name, err)
			return
		}
		schemas[name] = s
	}
}

// validate checks data against the named embedded schema. Violations are
// reported as ErrMalformedChunk with every offending field listed.
func validate(name, path string, data []byte) error {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return schemaErr
	}

	result, err := schemas[name].Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%s: invalid JSON: %w: %w", path, domain.ErrMalformedChunk, err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("%s: %s: %w", path, strings.Join(details, "; "), domain.ErrMalformedChunk)
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func readJSON(path string, v any) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return data, nil
}

func SavePapers(path string, papers []domain.Paper) error {
	return WriteJSON(path, papers)
}

func LoadPapers(path string) ([]domain.Paper, error) {
	var papers []domain.Paper
	if _, err := readJSON(path, &papers); err != nil {
		return nil, err
	}
	return papers, nil
}

func SaveChunks(path string, chunks []domain.Chunk) error {
	return WriteJSON(path, chunks)
}

// LoadChunks reads and concatenates chunk files in the given order. Every
// file must match the chunk schema.
func LoadChunks(paths ...string) ([]domain.Chunk, error) {
	var all []domain.Chunk
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := validate("chunks", path, data); err != nil {
			return nil, err
		}
		var chunks []domain.Chunk
		if err := json.Unmarshal(data, &chunks); err != nil {
			return nil, fmt.Errorf("decode %s: %w: %w", path, domain.ErrMalformedChunk, err)
		}
		all = append(all, chunks...)
	}
	if all == nil {
		all = []domain.Chunk{}
	}
	return all, nil
}

func SaveRecords(path string, records []domain.EmbeddingRecord) error {
	return WriteJSON(path, records)
}

// LoadRecords reads embedding record files in order, validating each.
func LoadRecords(paths ...string) ([]domain.EmbeddingRecord, error) {
	var all []domain.EmbeddingRecord
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := validate("embeddings", path, data); err != nil {
			return nil, err
		}
		var records []domain.EmbeddingRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode %s: %w: %w", path, domain.ErrMalformedChunk, err)
		}
		all = append(all, records...)
	}
	if all == nil {
		all = []domain.EmbeddingRecord{}
	}
	return all, nil
}
