// Package metrics exposes Prometheus metrics for the HTTP API and the knowledge service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each Collector owns its
// registry, so independent instances never collide. All methods are safe on a nil receiver.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	NodesCreated       prometheus.Counter
	NodesDeleted       prometheus.Counter
	ConnectionsCreated prometheus.Counter
	ConnectionsRemoved prometheus.Counter
	Searches           *prometheus.CounterVec
	OperationErrors    *prometheus.CounterVec

	EmbeddingDuration prometheus.Histogram
	Imports           *prometheus.CounterVec
}

// NewCollector creates a collector whose metric names are prefixed with namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		NodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_created_total",
			Help:      "Total number of nodes created",
		}),
		NodesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_deleted_total",
			Help:      "Total number of nodes deleted",
		}),
		ConnectionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_created_total",
			Help:      "Total number of connections discovered",
		}),
		ConnectionsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_removed_total",
			Help:      "Total number of connections removed by node deletion",
		}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of searches by kind",
		}, []string{"kind"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed service operations by operation and error kind",
		}, []string{"operation", "kind"}),
		EmbeddingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Embedding provider latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Directory import actions by outcome",
		}, []string{"action"}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.NodesCreated,
		c.NodesDeleted,
		c.ConnectionsCreated,
		c.ConnectionsRemoved,
		c.Searches,
		c.OperationErrors,
		c.EmbeddingDuration,
		c.Imports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// NodeCreated records a created node and its discovered connections.
func (c *Collector) NodeCreated(connections int) {
	if c == nil {
		return
	}
	c.NodesCreated.Inc()
	c.ConnectionsCreated.Add(float64(connections))
}

// NodeDeleted records a deleted node and the connections removed with it.
func (c *Collector) NodeDeleted(connections int) {
	if c == nil {
		return
	}
	c.NodesDeleted.Inc()
	c.ConnectionsRemoved.Add(float64(connections))
}

// Search records a search of the given kind ("semantic" or "keyword").
func (c *Collector) Search(kind string) {
	if c == nil {
		return
	}
	c.Searches.WithLabelValues(kind).Inc()
}

// OperationError records a failed operation classified by kind.
func (c *Collector) OperationError(operation, kind string) {
	if c == nil {
		return
	}
	c.OperationErrors.WithLabelValues(operation, kind).Inc()
}

// ObserveEmbedding records one embedding call duration.
func (c *Collector) ObserveEmbedding(d time.Duration) {
	if c == nil {
		return
	}
	c.EmbeddingDuration.Observe(d.Seconds())
}

// Import records a directory import action ("created", "updated", "unchanged", "removed", "failed").
func (c *Collector) Import(action string) {
	if c == nil {
		return
	}
	c.Imports.WithLabelValues(action).Inc()
}
