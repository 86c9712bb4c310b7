package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"papersearch/internal/domain"
)

const (
	openAIBaseURL   = "https://api.openai.com/v1"
	deepSeekBaseURL = "https://api.deepseek.com/v1"
	jinaBaseURL     = "https://api.jina.ai/v1"
	ollamaBaseURL   = "http://localhost:11434/v1"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. Each Embed
// call is exactly one HTTP request; batching is the Adapter's job.
type OpenAIEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	client    *http.Client
}

// ClientOptions configures an OpenAIEmbedder. Dimension 0 falls back to the
// known size of Model.
type ClientOptions struct {
	Model     string
	BaseURL   string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAICompatibleEmbedder builds a client for any server speaking the
// OpenAI embeddings protocol.
func NewOpenAICompatibleEmbedder(opts ClientOptions) (*OpenAIEmbedder, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("embedding model is required: %w", domain.ErrModelUnavailable)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = openAIBaseURL
	}
	if opts.Dimension == 0 {
		opts.Dimension = knownDimension(opts.Model)
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("unknown dimension for model %s, set embedding.dimension: %w", opts.Model, domain.ErrModelUnavailable)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	return &OpenAIEmbedder{
		apiKey:    opts.APIKey,
		model:     opts.Model,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		dimension: opts.Dimension,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}, nil
}

func knownDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "jina-embeddings-v3":
		return 1024
	case "jina-embeddings-v4":
		return 2048
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 0
	}
}

// Embed sends texts in one request and returns vectors in input order.
func (e *OpenAIEmbedder) Embed(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	jsonData, err := json.Marshal(embeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w: %w", domain.ErrEncoding, err)
	}

	req, err := http.NewRequest(http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w: %w", domain.ErrModelUnavailable, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w: %w", e.baseURL, domain.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w: %w", domain.ErrModelUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s: %w", resp.StatusCode, preview(body), statusError(resp.StatusCode))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (body: %s): %w: %w", preview(body), domain.ErrModelUnavailable, err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s: %w", embResp.Error.Message, domain.ErrEncoding)
	}

	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts: %w", len(embResp.Data), len(texts), domain.ErrEncoding)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) || embeddings[data.Index] != nil {
			return nil, fmt.Errorf("embedding index %d out of range or repeated: %w", data.Index, domain.ErrEncoding)
		}
		if len(data.Embedding) != e.dimension {
			return nil, fmt.Errorf("embedding %d has length %d, model %s declares %d: %w",
				data.Index, len(data.Embedding), e.model, e.dimension, domain.ErrEncoding)
		}
		embeddings[data.Index] = data.Embedding
	}

	return embeddings, nil
}

// statusError maps an HTTP status to the error kind callers act on.
// Request-shaped rejections mean the text itself cannot be encoded.
func statusError(code int) error {
	switch code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return domain.ErrEncoding
	default:
		return domain.ErrModelUnavailable
	}
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
