package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"papersearch/internal/domain"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req embeddingRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url string) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAICompatibleEmbedder(ClientOptions{Model: "test-model", BaseURL: url, Dimension: 2})
	require.NoError(t, err)
	return e
}

func TestOpenAIEmbedderReassemblesByIndex(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, req embeddingRequest) {
		assert.Equal(t, "test-model", req.Model)
		// reply in reverse order
		resp := embeddingResponse{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingData{Index: i, Embedding: []float32{float32(i), 1}})
		}
		json.NewEncoder(w).Encode(resp)
	})

	vecs, err := newTestClient(t, srv.URL).Embed([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vecs)
}

func TestOpenAIEmbedderStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, domain.ErrEncoding},
		{http.StatusRequestEntityTooLarge, domain.ErrEncoding},
		{http.StatusUnprocessableEntity, domain.ErrEncoding},
		{http.StatusUnauthorized, domain.ErrModelUnavailable},
		{http.StatusNotFound, domain.ErrModelUnavailable},
		{http.StatusInternalServerError, domain.ErrModelUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, _ embeddingRequest) {
				http.Error(w, "nope", tt.status)
			})
			_, err := newTestClient(t, srv.URL).Embed([]string{"a"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenAIEmbedderWrongCountOrLength(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ embeddingRequest) {
		json.NewEncoder(w).Encode(embeddingResponse{Data: []embeddingData{{Index: 0, Embedding: []float32{1, 2}}}})
	})
	_, err := newTestClient(t, srv.URL).Embed([]string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrEncoding)

	srv = newTestServer(t, func(w http.ResponseWriter, _ embeddingRequest) {
		json.NewEncoder(w).Encode(embeddingResponse{Data: []embeddingData{{Index: 0, Embedding: []float32{1, 2, 3}}}})
	})
	_, err = newTestClient(t, srv.URL).Embed([]string{"a"})
	assert.ErrorIs(t, err, domain.ErrEncoding)
}

func TestOpenAIEmbedderAPIErrorBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ embeddingRequest) {
		json.NewEncoder(w).Encode(embeddingResponse{Error: &apiError{Message: "input too long"}})
	})
	_, err := newTestClient(t, srv.URL).Embed([]string{"a"})
	assert.ErrorIs(t, err, domain.ErrEncoding)
	assert.Contains(t, err.Error(), "input too long")
}

func TestOpenAIEmbedderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).Embed([]string{"a"})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestOpenAIEmbedderUnknownModelNeedsDimension(t *testing.T) {
	_, err := NewOpenAICompatibleEmbedder(ClientOptions{Model: "custom"})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}
