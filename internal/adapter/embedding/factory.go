package embedding

import (
	"fmt"
	"os"

	"papersearch/config"
	"papersearch/internal/domain"
	"papersearch/internal/port"
)

// NewBackend constructs the raw embedder named by cfg.Provider.
func NewBackend(cfg config.EmbeddingConfig) (port.Embedder, error) {
	opts := ClientOptions{
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		Dimension: cfg.Dimension,
		Timeout:   cfg.Timeout,
	}

	switch cfg.Provider {
	case "hash":
		return NewHashEmbedder(cfg.Dimension), nil
	case "ollama":
		if opts.BaseURL == "" {
			opts.BaseURL = ollamaBaseURL
		}
		opts.APIKey = "ollama"
		return NewOpenAICompatibleEmbedder(opts)
	case "openai", "deepseek", "jina":
		if opts.BaseURL == "" {
			opts.BaseURL = map[string]string{
				"openai":   openAIBaseURL,
				"deepseek": deepSeekBaseURL,
				"jina":     jinaBaseURL,
			}[cfg.Provider]
		}
		opts.APIKey = os.Getenv(cfg.APIKeyEnv)
		if opts.APIKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable %s: %w", cfg.APIKeyEnv, domain.ErrModelUnavailable)
		}
		return NewOpenAICompatibleEmbedder(opts)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q: %w", cfg.Provider, domain.ErrModelUnavailable)
	}
}

// New builds the Adapter for cfg. Every command that embeds text goes through here.
func New(cfg config.EmbeddingConfig, opts AdapterOptions) (*Adapter, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	opts.BatchSize = cfg.BatchSize
	opts.MaxInputChars = cfg.MaxInputChars
	opts.Truncate = cfg.Truncate
	return NewAdapter(backend, opts), nil
}
