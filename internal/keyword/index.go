// Package keyword provides exact-term search over node text, complementing semantic search.
package keyword

import (
	"context"

	"github.com/hyperjump/syntra/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from matches in the title and tags.
	// Use 1.0 for no boost.
	TitleBoost float64
	// Fuzzy enables typo-tolerant matching within Fuzziness edits (default 1).
	Fuzzy     bool
	Fuzziness int
	// Type restricts hits to one node type when set.
	Type models.NodeType
}

// Index defines keyword search operations over knowledge nodes.
type Index interface {
	IndexNode(ctx context.Context, node *models.KnowledgeNode) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	// IDs returns the ids of every indexed node.
	IDs(ctx context.Context) ([]string, error)
	// Suggest proposes a corrected query built from indexed terms.
	Suggest(query string, maxDistance int) (string, bool, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}
