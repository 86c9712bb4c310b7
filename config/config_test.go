package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.Collection != "arxiv" {
		t.Errorf("expected Collection=arxiv, got %s", cfg.Store.Collection)
	}
	if cfg.Store.Metric != "cosine" {
		t.Errorf("expected Metric=cosine, got %s", cfg.Store.Metric)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Embedding.Truncate {
		t.Error("expected truncation to be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "papersearch.yaml")

	content := `
embedding:
  provider: hash
  dimension: 64
  batch_size: 16
store:
  metric: l2
  open_timeout: 5s
retrieve:
  top_k: 10
fetch:
  page_delay: 500ms
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Embedding.Provider != "hash" || cfg.Embedding.Dimension != 64 {
		t.Errorf("expected hash/64, got %s/%d", cfg.Embedding.Provider, cfg.Embedding.Dimension)
	}
	if cfg.Embedding.BatchSize != 16 {
		t.Errorf("expected BatchSize=16, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Store.Metric != "l2" {
		t.Errorf("expected Metric=l2, got %s", cfg.Store.Metric)
	}
	if cfg.Store.OpenTimeout != 5*time.Second {
		t.Errorf("expected OpenTimeout=5s, got %s", cfg.Store.OpenTimeout)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Fetch.PageDelay != 500*time.Millisecond {
		t.Errorf("expected PageDelay=500ms, got %s", cfg.Fetch.PageDelay)
	}
	// untouched sections keep defaults
	if cfg.Store.Collection != "arxiv" {
		t.Errorf("expected default collection, got %s", cfg.Store.Collection)
	}
}

func TestLoad_InvalidMetric(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "papersearch.yaml")
	if err := os.WriteFile(configPath, []byte("store:\n  metric: manhattan\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for unsupported metric")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.Embedding.Provider = "word2vec" }},
		{"backend", func(c *Config) { c.Store.Backend = "chroma" }},
		{"top_k", func(c *Config) { c.Retrieve.TopK = 0 }},
		{"batch", func(c *Config) { c.Embedding.BatchSize = -1 }},
		{"overlap", func(c *Config) { c.Chunk.MaxTokens = 10; c.Chunk.Overlap = 10 }},
		{"hash dimension", func(c *Config) { c.Embedding.Provider = "hash"; c.Embedding.Dimension = 0 }},
		{"path", func(c *Config) { c.Store.Path = "" }},
		{"fetch page size", func(c *Config) { c.Fetch.PageSize = 0 }},
		{"fetch max results", func(c *Config) { c.Fetch.MaxResults = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".papersearch"), 0755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".papersearch", "config.yaml")

	content := `
store:
  collection: papers
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Collection != "papers" {
		t.Errorf("expected Collection=papers, got %s", cfg.Store.Collection)
	}
}

func TestResolvePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.Embeddings = "/abs/embeddings.json"
	cfg.ResolvePaths("/data")

	if cfg.Store.Path != filepath.Join("/data", "chroma_db_store") {
		t.Errorf("unexpected store path %s", cfg.Store.Path)
	}
	if cfg.Paths.Chunks != filepath.Join("/data", "chunks.json") {
		t.Errorf("unexpected chunks path %s", cfg.Paths.Chunks)
	}
	if cfg.Paths.Embeddings != "/abs/embeddings.json" {
		t.Errorf("absolute path should be kept, got %s", cfg.Paths.Embeddings)
	}
}

func TestIndexDBPath(t *testing.T) {
	path := IndexDBPath("/home/user/store", "bolt")
	expected := filepath.Join("/home/user/store", "index.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
	if got := IndexDBPath("/s", "sqlite"); got != filepath.Join("/s", "index.sqlite") {
		t.Errorf("unexpected sqlite path %s", got)
	}
}
