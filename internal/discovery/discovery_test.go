package discovery

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/syntra/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitAt returns a 2-d unit vector whose cosine with (1, 0) is sim.
func unitAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func node(id string, emb []float32) *models.KnowledgeNode {
	return &models.KnowledgeNode{ID: id, Type: models.NodeTypeNote, Title: id, Content: id, Embedding: emb}
}

func TestDiscover_EmptyExisting(t *testing.T) {
	e := NewEngine()
	conns, err := e.Discover(node("a", []float32{1, 0}), nil)
	require.NoError(t, err)
	assert.NotNil(t, conns)
	assert.Empty(t, conns)
}

func TestDiscover_ThresholdIsStrict(t *testing.T) {
	e := NewEngine()
	newNode := node("new", []float32{1, 0})
	existing := []*models.KnowledgeNode{
		node("above", unitAt(0.82)),
		node("below", unitAt(0.70)),
		node("far", []float32{0, 1}),
		node("exact", []float32{1, 0}),
	}
	conns, err := e.Discover(newNode, existing)
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "above", conns[0].ToNodeID)
	assert.InDelta(t, 0.82, conns[0].SimilarityScore, 1e-6)
	assert.Equal(t, "exact", conns[1].ToNodeID)
	for _, c := range conns {
		assert.Equal(t, "new", c.FromNodeID)
		assert.NotEmpty(t, c.ID)
		assert.False(t, c.CreatedAt.IsZero())
	}
}

func TestDiscover_BoundaryValueDoesNotQualify(t *testing.T) {
	// 3-4-5 triangle: cos = 0.75 exactly in float32 arithmetic.
	e := NewEngine()
	a := node("a", []float32{4, 0})
	b := node("b", []float32{3, float32(math.Sqrt(7))})
	conns, err := e.Discover(a, []*models.KnowledgeNode{b})
	require.NoError(t, err)
	for _, c := range conns {
		assert.Greater(t, c.SimilarityScore, Threshold)
	}

	// Any similarity at or below the threshold is excluded regardless of representation.
	at := node("at", []float32{0.75, float32(math.Sqrt(1 - 0.75*0.75))})
	conns, err = e.Discover(node("x", []float32{1, 0}), []*models.KnowledgeNode{at})
	require.NoError(t, err)
	for _, c := range conns {
		assert.Greater(t, c.SimilarityScore, Threshold)
	}
}

func TestDiscover_PreservesInputOrder(t *testing.T) {
	e := NewEngine()
	existing := []*models.KnowledgeNode{
		node("low", unitAt(0.80)),
		node("high", unitAt(0.99)),
		node("mid", unitAt(0.90)),
	}
	conns, err := e.Discover(node("n", []float32{1, 0}), existing)
	require.NoError(t, err)
	require.Len(t, conns, 3)
	assert.Equal(t, []string{"low", "high", "mid"}, []string{conns[0].ToNodeID, conns[1].ToNodeID, conns[2].ToNodeID})
}

func TestDiscover_NoSelfOrDuplicatePairs(t *testing.T) {
	e := NewEngine()
	n := node("n", []float32{1, 0})
	other := node("o", []float32{1, 0})
	conns, err := e.Discover(n, []*models.KnowledgeNode{n, other, other})
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "o", conns[0].ToNodeID)
}

func TestDiscover_DimensionMismatch(t *testing.T) {
	e := NewEngine()
	_, err := e.Discover(node("n", []float32{1, 0}), []*models.KnowledgeNode{node("o", []float32{1, 0, 0})})
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}

func TestDiscover_ZeroVectorNeverConnects(t *testing.T) {
	e := NewEngine()
	conns, err := e.Discover(node("n", []float32{0, 0}), []*models.KnowledgeNode{node("o", []float32{1, 0})})
	require.NoError(t, err)
	assert.Empty(t, conns)
}

type listerFunc func(ctx context.Context) ([]*models.KnowledgeNode, error)

func (f listerFunc) ListNodes(ctx context.Context) ([]*models.KnowledgeNode, error) { return f(ctx) }

func TestLinearScan_ReturnsAllNodes(t *testing.T) {
	all := []*models.KnowledgeNode{node("a", nil), node("b", nil)}
	src := LinearScan{Nodes: listerFunc(func(context.Context) ([]*models.KnowledgeNode, error) { return all, nil })}
	got, err := src.Candidates(context.Background(), []float32{1})
	require.NoError(t, err)
	assert.Equal(t, all, got)
}
