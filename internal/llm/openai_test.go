package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)

		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestClient(t *testing.T, srv *httptest.Server) *OpenAIClient {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")
	c, err := NewOpenAIClient("test-model", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestOpenAIClient_Invoke(t *testing.T) {
	srv := chatServer(t, "hello from the model", http.StatusOK)
	defer srv.Close()

	out, err := newTestClient(t, srv).Invoke(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello from the model", out)
}

func TestOpenAIClient_InvokeStructured(t *testing.T) {
	srv := chatServer(t, `{"answer":42}`, http.StatusOK)
	defer srv.Close()

	var got struct {
		Answer int `json:"answer"`
	}
	require.NoError(t, newTestClient(t, srv).InvokeStructured(context.Background(), "q", &got))
	assert.Equal(t, 42, got.Answer)
}

func TestOpenAIClient_InvokeStructured_BadJSON(t *testing.T) {
	srv := chatServer(t, "not json at all", http.StatusOK)
	defer srv.Close()

	var got map[string]any
	err := newTestClient(t, srv).InvokeStructured(context.Background(), "q", &got)
	require.Error(t, err)
	assert.True(t, IsSchemaValidation(err))
}

func TestOpenAIClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Invoke(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAIClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultEmbeddingModel, req.Model)
		require.Len(t, req.Input, 2)

		// Out-of-order data entries must still land at their input index.
		resp := map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.3, 0.4}},
				{"index": 0, "embedding": []float32{0.1, 0.2}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	vectors, err := newTestClient(t, srv).Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
}

func TestOpenAIClient_Embed_Empty(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	c, err := NewOpenAIClient("m")
	require.NoError(t, err)

	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestOpenAIClient_Embed_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{0.5}}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings")
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIClient("m")
	require.Error(t, err)
}
