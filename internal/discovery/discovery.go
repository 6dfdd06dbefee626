// Package discovery decides which existing nodes a newly created node is connected to.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/syntra/internal/models"
	"github.com/hyperjump/syntra/internal/vector"
)

// Threshold is the similarity a pair must strictly exceed to be connected.
const Threshold = 0.75

// CandidateSource supplies the nodes a new node is compared against. The linear scan over
// the repository is the only implementation today; an approximate index can replace it
// without changing Discover.
type CandidateSource interface {
	Candidates(ctx context.Context, embedding []float32) ([]*models.KnowledgeNode, error)
}

// NodeLister is the repository capability LinearScan needs.
type NodeLister interface {
	ListNodes(ctx context.Context) ([]*models.KnowledgeNode, error)
}

// LinearScan returns every stored node as a candidate.
type LinearScan struct {
	Nodes NodeLister
}

// Candidates returns all nodes in creation order.
func (s LinearScan) Candidates(ctx context.Context, _ []float32) ([]*models.KnowledgeNode, error) {
	return s.Nodes.ListNodes(ctx)
}

// Engine produces connections for new nodes.
type Engine struct {
	now   func() time.Time
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source for connection timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the connection id generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates a discovery engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Discover compares node against every node in existing and returns a connection for each
// pair whose similarity is strictly greater than Threshold, in the order of existing.
// Each returned connection runs from node to the existing node, so an unordered pair is only
// ever produced once. Entries sharing node's id are skipped. A dimension mismatch with any
// existing node aborts discovery.
func (e *Engine) Discover(node *models.KnowledgeNode, existing []*models.KnowledgeNode) ([]*models.Connection, error) {
	conns := make([]*models.Connection, 0)
	if node == nil || len(existing) == 0 {
		return conns, nil
	}
	seen := make(map[string]struct{}, len(existing))
	createdAt := e.now()
	for _, other := range existing {
		if other == nil || other.ID == node.ID {
			continue
		}
		if _, dup := seen[other.ID]; dup {
			continue
		}
		seen[other.ID] = struct{}{}
		sim, err := vector.Cosine(node.Embedding, other.Embedding)
		if err != nil {
			return nil, fmt.Errorf("compare with node %s: %w", other.ID, err)
		}
		if sim <= Threshold {
			continue
		}
		conns = append(conns, &models.Connection{
			ID:              e.newID(),
			FromNodeID:      node.ID,
			ToNodeID:        other.ID,
			SimilarityScore: sim,
			CreatedAt:       createdAt,
		})
	}
	return conns, nil
}
