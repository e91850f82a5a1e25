package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string, retries int) *Client {
	c := NewClient(Config{
		BaseURL:        url + "/v1/",
		APIKey:         "secret",
		Model:          "test-model",
		EmbeddingModel: "test-embed",
		Timeout:        5 * time.Second,
		MaxRetries:     retries,
	}, zap.NewNop())
	c.sleep = func(time.Duration) {}
	return c
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	reply, err := newTestClient(server.URL, 0).Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, reply)
}

func TestCompleteRetries(t *testing.T) {
	t.Run("Server errors are retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"choices":[{"message":{"content":"done"}}]}`))
		}))
		defer server.Close()

		reply, err := newTestClient(server.URL, 2).Complete(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "done", reply)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("Client errors are not retried and keep the body", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":"tool_use_failed","message":"Failed to call a function"}}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL, 2).Complete(context.Background(), "p")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tool_use_failed")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestEmbedDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		// Réponse volontairement désordonnée
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	vectors, err := newTestClient(server.URL, 0).EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}
