package embedclient

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
)

func fakeEmbeddingServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body embedRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		embeddings := make([][]float32, len(body.Texts))
		for i := range body.Texts {
			vec := make([]float32, dim)
			vec[0] = float32(len(body.Texts[i]))
			embeddings[i] = vec
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(embedResponseBody{Embeddings: embeddings}))
	}))
}

func TestEmbedReturnsVectorForText(t *testing.T) {
	srv := fakeEmbeddingServer(t, 8)
	defer srv.Close()

	cfg := DefaultConfig(srv.URL, "test-model")
	cfg.FlushInterval = 20 * time.Millisecond
	cfg.MinBatch = 1
	cfg.InitialBatch = 1

	c := New(cfg)
	defer c.Close()

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, float32(5), vec[0])
}

func TestEmbedBatchCoalescesMultipleTexts(t *testing.T) {
	var maxBatchSeen int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body embedRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		for {
			cur := atomic.LoadInt64(&maxBatchSeen)
			if int64(len(body.Texts)) <= cur || atomic.CompareAndSwapInt64(&maxBatchSeen, cur, int64(len(body.Texts))) {
				break
			}
		}

		embeddings := make([][]float32, len(body.Texts))
		for i := range body.Texts {
			embeddings[i] = []float32{float32(i)}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(embedResponseBody{Embeddings: embeddings}))
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL, "test-model")
	cfg.FlushInterval = 500 * time.Millisecond
	cfg.MinBatch = 1
	cfg.InitialBatch = 5

	c := New(cfg)
	defer c.Close()

	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, len(texts))
	assert.Greater(t, atomic.LoadInt64(&maxBatchSeen), int64(1))
}

func TestEmbedSurfacesServerErrorAsEmbeddingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL, "test-model")
	cfg.FlushInterval = 10 * time.Millisecond
	cfg.MinBatch = 1
	cfg.InitialBatch = 1
	cfg.RetryAttempts = 1
	cfg.RetryDelays = []time.Duration{time.Millisecond}

	c := New(cfg)
	defer c.Close()

	_, err := c.Embed(context.Background(), "x")
	require.Error(t, err)
}

func TestEmbedRespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"embeddings":[[1]]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL, "test-model")
	cfg.FlushInterval = 10 * time.Millisecond
	cfg.MinBatch = 1
	cfg.InitialBatch = 1

	c := New(cfg)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := c.Embed(ctx, "x")
	require.Error(t, err)
}

func TestSnapshotReportsProcessedCount(t *testing.T) {
	srv := fakeEmbeddingServer(t, 4)
	defer srv.Close()

	cfg := DefaultConfig(srv.URL, "test-model")
	cfg.FlushInterval = 10 * time.Millisecond
	cfg.MinBatch = 1
	cfg.InitialBatch = 1

	c := New(cfg)
	defer c.Close()

	_, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Equal(t, int64(1), snap.TotalProcessed)
}
