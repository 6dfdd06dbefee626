// Package search ranks stored nodes against a query embedding.
package search

import (
	"fmt"
	"sort"

	"github.com/hyperjump/syntra/internal/models"
	"github.com/hyperjump/syntra/internal/vector"
)

// ScoredNode is a node with its similarity to the query.
type ScoredNode struct {
	Node  *models.KnowledgeNode
	Score float64
}

// Rank scores every node against query and returns the top k by descending similarity.
// Ties keep the order of nodes, which repositories return oldest first, so repeated calls
// over unchanged data give identical results. No minimum score is applied. k <= 0 means
// models.DefaultSearchLimit. Nil entries are skipped. A node whose embedding length differs
// from the query fails the whole ranking with models.ErrDimensionMismatch.
func Rank(query []float32, nodes []*models.KnowledgeNode, k int) ([]*ScoredNode, error) {
	if k <= 0 {
		k = models.DefaultSearchLimit
	}
	scored := make([]*ScoredNode, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		sim, err := vector.Cosine(query, n.Embedding)
		if err != nil {
			return nil, fmt.Errorf("score node %s: %w", n.ID, err)
		}
		scored = append(scored, &ScoredNode{Node: n, Score: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}
