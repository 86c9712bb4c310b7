package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for papersearch.
type Config struct {
	Fetch     FetchConfig     `yaml:"fetch"`
	Chunk     ChunkConfig     `yaml:"chunk"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Paths     PathsConfig     `yaml:"paths"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// FetchConfig controls the arXiv metadata client.
type FetchConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Categories []string      `yaml:"categories"`
	MaxResults int           `yaml:"max_results"`
	PageSize   int           `yaml:"page_size"`
	PageDelay  time.Duration `yaml:"page_delay"` // pause between page requests
	Timeout    time.Duration `yaml:"timeout"`
}

// ChunkConfig controls how abstracts are split. MaxTokens 0 keeps one chunk per paper.
type ChunkConfig struct {
	MaxTokens int `yaml:"max_tokens"`
	Overlap   int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider      string        `yaml:"provider"`    // "openai", "jina", "deepseek", "ollama", "hash"
	Model         string        `yaml:"model"`       // e.g., "all-minilm"
	BaseURL       string        `yaml:"base_url"`    // overrides the provider default
	APIKeyEnv     string        `yaml:"api_key_env"` // Environment variable for API key
	Dimension     int           `yaml:"dimension"`
	BatchSize     int           `yaml:"batch_size"` // texts per backend call, 0 = single call
	MaxInputChars int           `yaml:"max_input_chars"`
	Truncate      bool          `yaml:"truncate"`
	Timeout       time.Duration `yaml:"timeout"`
}

// StoreConfig selects and locates the vector index.
type StoreConfig struct {
	Backend     string        `yaml:"backend"` // "bolt", "sqlite"
	Path        string        `yaml:"path"`
	Collection  string        `yaml:"collection"`
	Metric      string        `yaml:"metric"` // "cosine", "l2", "ip"
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK         int           `yaml:"top_k"`
	SnippetChars int           `yaml:"snippet_chars"`
	CacheSize    int           `yaml:"cache_size"` // 0 disables the query cache
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// PathsConfig names the JSON hand-off artifacts between pipeline steps.
type PathsConfig struct {
	Metadata   string `yaml:"metadata"`
	Chunks     string `yaml:"chunks"`
	Embeddings string `yaml:"embeddings"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text", "json"
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			BaseURL:    "http://export.arxiv.org/api/query",
			Categories: []string{"cs.AI", "cs.CL", "cs.CV", "cs.LG"},
			MaxResults: 200,
			PageSize:   100,
			PageDelay:  3 * time.Second,
			Timeout:    60 * time.Second,
		},
		Chunk: ChunkConfig{
			MaxTokens: 0,
			Overlap:   32,
		},
		Embedding: EmbeddingConfig{
			Provider:      "ollama",
			Model:         "all-minilm",
			APIKeyEnv:     "OPENAI_API_KEY",
			Dimension:     384,
			BatchSize:     64,
			MaxInputChars: 0,
			Truncate:      false,
			Timeout:       120 * time.Second,
		},
		Store: StoreConfig{
			Backend:     "bolt",
			Path:        "chroma_db_store",
			Collection:  "arxiv",
			Metric:      "cosine",
			OpenTimeout: 2 * time.Second,
		},
		Retrieve: RetrieveConfig{
			TopK:         5,
			SnippetChars: 200,
			CacheSize:    0,
			CacheTTL:     5 * time.Minute,
		},
		Paths: PathsConfig{
			Metadata:   "metadata.json",
			Chunks:     "chunks.json",
			Embeddings: "embeddings.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for papersearch.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "papersearch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".papersearch", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai", "jina", "deepseek", "ollama", "hash":
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.Embedding.Provider)
	}
	switch c.Store.Backend {
	case "bolt", "sqlite":
	default:
		return fmt.Errorf("unsupported store backend: %q", c.Store.Backend)
	}
	switch c.Store.Metric {
	case "cosine", "l2", "ip":
	default:
		return fmt.Errorf("unsupported distance metric: %q", c.Store.Metric)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("store.collection is required")
	}
	if c.Embedding.Provider == "hash" && c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive for the hash provider")
	}
	if c.Embedding.BatchSize < 0 {
		return fmt.Errorf("embedding.batch_size must not be negative")
	}
	if c.Fetch.MaxResults <= 0 || c.Fetch.PageSize <= 0 {
		return fmt.Errorf("fetch.max_results and fetch.page_size must be positive")
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive")
	}
	if c.Chunk.MaxTokens < 0 || c.Chunk.Overlap < 0 {
		return fmt.Errorf("chunk sizes must not be negative")
	}
	if c.Chunk.MaxTokens > 0 && c.Chunk.Overlap >= c.Chunk.MaxTokens {
		return fmt.Errorf("chunk.overlap must be smaller than chunk.max_tokens")
	}
	return nil
}

// ResolvePaths makes relative store and artifact paths relative to dir.
func (c *Config) ResolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Store.Path = resolve(c.Store.Path)
	c.Paths.Metadata = resolve(c.Paths.Metadata)
	c.Paths.Chunks = resolve(c.Paths.Chunks)
	c.Paths.Embeddings = resolve(c.Paths.Embeddings)
}

// IndexDBPath returns the database file inside the store location for a backend.
func IndexDBPath(storePath, backend string) string {
	if backend == "sqlite" {
		return filepath.Join(storePath, "index.sqlite")
	}
	return filepath.Join(storePath, "index.db")
}

// EnsureStoreDir ensures the store directory exists.
func EnsureStoreDir(storePath string) error {
	return os.MkdirAll(storePath, 0755)
}
