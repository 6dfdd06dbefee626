package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/syntra/internal/config"
	"github.com/hyperjump/syntra/internal/embedding"
	"github.com/hyperjump/syntra/internal/keyword"
	"github.com/hyperjump/syntra/internal/knowledge"
	"github.com/hyperjump/syntra/internal/metrics"
	"github.com/hyperjump/syntra/internal/models"
	"github.com/hyperjump/syntra/internal/storage"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type testEnv struct {
	handler  http.Handler
	embedder *embedding.StaticEmbedder
	metrics  *metrics.Collector
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store := storage.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })
	idx, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	emb := embedding.NewStaticEmbedder(2, map[string][]float32{
		"alpha content": {1, 0},
		"beta content":  {0.82, float32(math.Sqrt(1 - 0.82*0.82))},
	})
	emb.Fallback = embedding.NewMockEmbedder(2)
	c := metrics.NewCollector("syntra")
	svc := knowledge.NewService(store, emb, knowledge.WithKeywordIndex(idx), knowledge.WithMetrics(c))

	cfg := &config.ServerConfig{CORSOrigins: []string{"*"}, RequestTimeout: 5 * time.Second}
	srv := NewServer(svc, cfg, zap.NewNop(), append([]Option{WithMetrics(c), WithVersion("1.2.3")}, opts...)...)
	return &testEnv{handler: srv.Handler(), embedder: emb, metrics: c}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	return decodeBody[map[string]string](t, w)["error"]
}

func TestNodeLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/nodes", map[string]any{
		"type": "note", "title": "A", "content": "alpha content", "tags": []string{"x", "x"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	a := decodeBody[models.NodeWithConnections](t, w)
	assert.Empty(t, a.Connections)
	assert.Equal(t, []string{"x", "x"}, a.Node.Tags)
	assert.NotContains(t, w.Body.String(), "embedding")

	w = env.do(t, http.MethodPost, "/api/nodes", map[string]any{"type": "idea", "title": "B", "content": "beta content"})
	require.Equal(t, http.StatusCreated, w.Code)
	b := decodeBody[models.NodeWithConnections](t, w)
	require.Len(t, b.Connections, 1)
	assert.Equal(t, a.Node.ID, b.Connections[0].Node.ID)

	w = env.do(t, http.MethodGet, "/api/nodes/"+a.Node.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decodeBody[models.NodeWithConnections](t, w)
	require.Len(t, detail.Connections, 1)
	assert.InDelta(t, 0.82, detail.Connections[0].SimilarityScore, 1e-6)

	w = env.do(t, http.MethodGet, "/api/nodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	nodes := decodeBody[[]models.KnowledgeNode](t, w)
	require.Len(t, nodes, 2)
	assert.Equal(t, a.Node.ID, nodes[0].ID)

	w = env.do(t, http.MethodGet, "/api/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeBody[models.GraphView](t, w)
	assert.Len(t, view.Nodes, 2)
	require.Len(t, view.Connections, 1)
	assert.Equal(t, b.Node.ID, view.Connections[0].FromNodeID)

	w = env.do(t, http.MethodDelete, "/api/nodes/"+a.Node.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	deleted := decodeBody[map[string]any](t, w)
	assert.Equal(t, "Node deleted successfully", deleted["message"])
	assert.Equal(t, float64(1), deleted["connections_removed"])

	w = env.do(t, http.MethodGet, "/api/nodes/"+a.Node.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Node not found", errorMessage(t, w))

	w = env.do(t, http.MethodDelete, "/api/nodes/"+a.Node.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateNode_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name    string
		body    any
		wantMsg string
	}{
		{"malformed json", "{", "invalid request body"},
		{"unknown type", map[string]any{"type": "poem", "title": "t", "content": "c"}, "unknown node type"},
		{"empty title", map[string]any{"type": "note", "title": " ", "content": "c"}, "title is required"},
		{"empty content", map[string]any{"type": "note", "title": "t", "content": ""}, "content is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/nodes", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, errorMessage(t, w), tt.wantMsg)
		})
	}
	assert.Zero(t, env.embedder.Calls())
}

func TestCreateNode_EmbeddingFailure(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.Err = errors.New("provider down")

	w := env.do(t, http.MethodPost, "/api/nodes", map[string]any{"type": "note", "title": "A", "content": "alpha content"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, errorMessage(t, w), "provider down")

	w = env.do(t, http.MethodGet, "/api/nodes", nil)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	for _, in := range []map[string]any{
		{"type": "note", "title": "A", "content": "alpha content"},
		{"type": "book", "title": "Meditations", "content": "beta content"},
	} {
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/nodes", in).Code)
	}

	w := env.do(t, http.MethodPost, "/api/search", map[string]any{"query": "alpha content", "limit": 1})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[models.SearchResponse](t, w)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "A", resp.Results[0].Node.Title)
	assert.InDelta(t, 1.0, resp.Results[0].Similarity, 1e-6)
	assert.Equal(t, "alpha content", resp.Query)

	w = env.do(t, http.MethodPost, "/api/search", map[string]any{"query": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/search/keyword", map[string]any{"query": "meditations"})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeBody[models.SearchResponse](t, w)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Meditations", resp.Results[0].Node.Title)

	w = env.do(t, http.MethodPost, "/api/search/keyword", map[string]any{"query": "meditatoins"})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeBody[models.SearchResponse](t, w)
	assert.Empty(t, resp.Results)
	assert.Equal(t, "meditations", resp.Suggestion)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Searches.WithLabelValues("semantic")))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.Searches.WithLabelValues("keyword")))
}

func TestStatusHealthAndRoot(t *testing.T) {
	env := newTestEnv(t, WithWatch(&mockWatchService{dirs: []string{"/tmp/notes"}}, "", nil))
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/nodes",
		map[string]any{"type": "note", "title": "A", "content": "alpha content"}).Code)

	w := env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeBody[map[string]any](t, w)
	assert.Equal(t, float64(1), status["nodes"])
	assert.Equal(t, float64(0), status["connections"])
	assert.Equal(t, float64(2), status["embedding_dimensions"])
	assert.Equal(t, 0.75, status["similarity_threshold"])
	assert.Equal(t, []any{"/tmp/notes"}, status["watch_directories"])

	for _, path := range []string{"/health", "/api/health"} {
		w = env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		health := decodeBody[map[string]string](t, w)
		assert.Equal(t, "healthy", health["status"])
		_, err := time.Parse(time.RFC3339Nano, health["timestamp"])
		assert.NoError(t, err)
	}

	w = env.do(t, http.MethodGet, "/api/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.2.3", decodeBody[map[string]string](t, w)["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/nodes/missing", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("GET", "/api/nodes/{id}", "404")))

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "syntra_http_requests_total")
	assert.Contains(t, w.Body.String(), "syntra_operation_errors_total")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/nodes", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWatchDirectories(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	mock := &mockWatchService{}
	env := newTestEnv(t, WithWatch(mock, configPath, cfg))

	w := env.do(t, http.MethodPost, "/api/watch/directories", map[string]any{"path": dir, "sync": false})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{dir}, mock.dirs)

	saved, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, saved.Watch.Directories)

	w = env.do(t, http.MethodGet, "/api/watch/directories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{dir}, decodeBody[map[string]any](t, w)["directories"])

	w = env.do(t, http.MethodPost, "/api/watch/directories", map[string]any{"path": filepath.Join(dir, "missing")})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/watch/directories", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/watch/directories?path="+dir, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mock.dirs)

	w = env.do(t, http.MethodDelete, "/api/watch/directories", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWatchDirectories_NotEnabled(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/watch/directories", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(models.ErrValidation))
	assert.Equal(t, http.StatusNotFound, statusFor(models.ErrNotFound))
	assert.Equal(t, http.StatusBadGateway, statusFor(models.ErrEmbedding))
	assert.Equal(t, http.StatusInternalServerError, statusFor(models.ErrDimensionMismatch))
	assert.Equal(t, http.StatusInternalServerError, statusFor(models.ErrRepository))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
