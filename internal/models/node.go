// Package models defines core data structures for knowledge nodes, connections, and search results.
package models

import (
	"fmt"
	"strings"
	"time"
)

// NodeType is the closed set of knowledge node kinds.
type NodeType string

const (
	NodeTypeBook    NodeType = "book"
	NodeTypeNote    NodeType = "note"
	NodeTypeArticle NodeType = "article"
	NodeTypeQuote   NodeType = "quote"
	NodeTypeIdea    NodeType = "idea"
)

// NodeTypes lists every valid NodeType in display order.
var NodeTypes = []NodeType{NodeTypeBook, NodeTypeNote, NodeTypeArticle, NodeTypeQuote, NodeTypeIdea}

// ParseNodeType returns the NodeType for s (case-insensitive, surrounding space ignored).
func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown node type %q (valid: book, note, article, quote, idea)", ErrValidation, s)
	}
	return t, nil
}

// Valid reports whether t is one of the five known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeBook, NodeTypeNote, NodeTypeArticle, NodeTypeQuote, NodeTypeIdea:
		return true
	}
	return false
}

func (t NodeType) String() string { return string(t) }

// UnmarshalText rejects unknown values so bad input fails at the request boundary.
func (t *NodeType) UnmarshalText(b []byte) error {
	parsed, err := ParseNodeType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// KnowledgeNode is a stored unit of knowledge. Nodes are immutable once created.
type KnowledgeNode struct {
	ID        string    `json:"id"`
	Type      NodeType  `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	Tags      []string  `json:"tags"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public returns a copy of n without its embedding vector.
func (n *KnowledgeNode) Public() *KnowledgeNode {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Embedding = nil
	cp.Tags = append([]string{}, n.Tags...)
	return &cp
}

// NodeInput is the input for creating a node.
type NodeInput struct {
	Type    NodeType `json:"type" validate:"required,nodetype"`
	Title   string   `json:"title" validate:"required,max=500"`
	Content string   `json:"content" validate:"required"`
	Source  string   `json:"source,omitempty"`
	Tags    []string `json:"tags,omitempty" validate:"max=50,dive,max=100"`
}

// Connection links two nodes whose embeddings were similar when the later one was created.
// FromNodeID is the node created second.
type Connection struct {
	ID              string    `json:"id"`
	FromNodeID      string    `json:"fromNodeId"`
	ToNodeID        string    `json:"toNodeId"`
	SimilarityScore float64   `json:"similarityScore"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Other returns the endpoint of c that is not nodeID.
func (c *Connection) Other(nodeID string) string {
	if c.FromNodeID == nodeID {
		return c.ToNodeID
	}
	return c.FromNodeID
}

// Involves reports whether nodeID is either endpoint of c.
func (c *Connection) Involves(nodeID string) bool {
	return c.FromNodeID == nodeID || c.ToNodeID == nodeID
}

// ConnectedNode is a neighbour of a node together with the connection score.
type ConnectedNode struct {
	Node            *KnowledgeNode `json:"node"`
	SimilarityScore float64        `json:"similarityScore"`
}

// NodeWithConnections is the response for node creation and node detail.
type NodeWithConnections struct {
	Node        *KnowledgeNode   `json:"node"`
	Connections []*ConnectedNode `json:"connections"`
}

// GraphView is the flattened node and connection lists consumed by visualization.
type GraphView struct {
	Nodes       []*KnowledgeNode `json:"nodes"`
	Connections []*Connection    `json:"connections"`
}
