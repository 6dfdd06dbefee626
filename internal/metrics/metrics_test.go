package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test")
	c.NodeCreated(3)
	c.NodeCreated(0)
	c.NodeDeleted(2)
	c.Search("semantic")
	c.Search("keyword")
	c.Search("semantic")
	c.OperationError("create_node", "embedding")
	c.ObserveEmbedding(20 * time.Millisecond)
	c.Import("created")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.NodesCreated))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.ConnectionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NodesDeleted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ConnectionsRemoved))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Searches.WithLabelValues("semantic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.OperationErrors.WithLabelValues("create_node", "embedding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Imports.WithLabelValues("created")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("test")
	b := NewCollector("test")
	a.NodeCreated(1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.NodesCreated))
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	c.NodeCreated(1)
	c.Search("semantic")
	c.OperationError("x", "y")
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	assert.NotNil(t, h)
}

func TestMiddlewareAndHandler(t *testing.T) {
	c := NewCollector("syntra")
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/nodes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", c.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nodes/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/nodes/{id}", "404")))

	srv := httptest.NewServer(r)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "syntra_http_requests_total"))
}
