package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/syntra/internal/models"
)

// MemoryStorage implements Storage in process memory. Values are copied on the way in and
// out so callers never share state with the store.
type MemoryStorage struct {
	mu     sync.RWMutex
	nodes  []*models.KnowledgeNode
	byID   map[string]int
	conns  []*models.Connection
	pairs  map[[2]string]struct{}
	closed bool
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:  make(map[string]int),
		pairs: make(map[[2]string]struct{}),
	}
}

func copyNode(n *models.KnowledgeNode) *models.KnowledgeNode {
	c := *n
	c.Tags = append([]string{}, n.Tags...)
	if n.Embedding != nil {
		c.Embedding = append([]float32(nil), n.Embedding...)
	}
	return &c
}

func copyConn(c *models.Connection) *models.Connection {
	cp := *c
	return &cp
}

func (m *MemoryStorage) checkOpen() error {
	if m.closed {
		return fmt.Errorf("%w: storage is closed", models.ErrRepository)
	}
	return nil
}

// CreateNode stores node and its connections. Nothing is stored if any check fails.
func (m *MemoryStorage) CreateNode(_ context.Context, node *models.KnowledgeNode, conns []*models.Connection) error {
	if err := validateConnections(node, conns); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.byID[node.ID]; ok {
		return fmt.Errorf("%w: node %s already exists", models.ErrRepository, node.ID)
	}
	for _, c := range conns {
		other := c.Other(node.ID)
		if _, ok := m.byID[other]; !ok {
			return fmt.Errorf("%w: connection references unknown node %s", models.ErrRepository, other)
		}
		if _, dup := m.pairs[pairKey(c.FromNodeID, c.ToNodeID)]; dup {
			return fmt.Errorf("%w: duplicate connection %s-%s", models.ErrRepository, c.FromNodeID, c.ToNodeID)
		}
	}

	m.byID[node.ID] = len(m.nodes)
	m.nodes = append(m.nodes, copyNode(node))
	for _, c := range conns {
		m.conns = append(m.conns, copyConn(c))
		m.pairs[pairKey(c.FromNodeID, c.ToNodeID)] = struct{}{}
	}
	return nil
}

// DeleteNode removes a node and its connections.
func (m *MemoryStorage) DeleteNode(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	idx, ok := m.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: node %s", models.ErrNotFound, id)
	}

	m.nodes = append(m.nodes[:idx], m.nodes[idx+1:]...)
	delete(m.byID, id)
	for i := idx; i < len(m.nodes); i++ {
		m.byID[m.nodes[i].ID] = i
	}

	kept := m.conns[:0]
	removed := 0
	for _, c := range m.conns {
		if c.Involves(id) {
			delete(m.pairs, pairKey(c.FromNodeID, c.ToNodeID))
			removed++
			continue
		}
		kept = append(kept, c)
	}
	m.conns = kept
	return removed, nil
}

// GetNode returns a copy of the node with id.
func (m *MemoryStorage) GetNode(_ context.Context, id string) (*models.KnowledgeNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	idx, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", models.ErrNotFound, id)
	}
	return copyNode(m.nodes[idx]), nil
}

// GetNodeDetail returns a node and its neighbours, highest similarity first.
func (m *MemoryStorage) GetNodeDetail(_ context.Context, id string) (*models.NodeWithConnections, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	idx, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", models.ErrNotFound, id)
	}
	detail := &models.NodeWithConnections{Node: copyNode(m.nodes[idx]), Connections: make([]*models.ConnectedNode, 0)}
	for _, c := range m.conns {
		if !c.Involves(id) {
			continue
		}
		otherIdx, ok := m.byID[c.Other(id)]
		if !ok {
			continue
		}
		detail.Connections = append(detail.Connections, &models.ConnectedNode{
			Node:            copyNode(m.nodes[otherIdx]),
			SimilarityScore: c.SimilarityScore,
		})
	}
	sort.SliceStable(detail.Connections, func(i, j int) bool {
		return detail.Connections[i].SimilarityScore > detail.Connections[j].SimilarityScore
	})
	return detail, nil
}

// ListNodes returns copies of all nodes in creation order.
func (m *MemoryStorage) ListNodes(_ context.Context) ([]*models.KnowledgeNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]*models.KnowledgeNode, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = copyNode(n)
	}
	return out, nil
}

// FindNodeBySource returns the oldest node whose source equals source.
func (m *MemoryStorage) FindNodeBySource(_ context.Context, source string) (*models.KnowledgeNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	for _, n := range m.nodes {
		if n.Source == source {
			return copyNode(n), nil
		}
	}
	return nil, fmt.Errorf("%w: node with source %s", models.ErrNotFound, source)
}

// Snapshot returns copies of every node and connection.
func (m *MemoryStorage) Snapshot(_ context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Nodes:       make([]*models.KnowledgeNode, len(m.nodes)),
		Connections: make([]*models.Connection, len(m.conns)),
	}
	for i, n := range m.nodes {
		snap.Nodes[i] = copyNode(n)
	}
	for i, c := range m.conns {
		snap.Connections[i] = copyConn(c)
	}
	return snap, nil
}

// CountNodes returns the number of stored nodes.
func (m *MemoryStorage) CountNodes(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.nodes)), m.checkOpen()
}

// CountConnections returns the number of stored connections.
func (m *MemoryStorage) CountConnections(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.conns)), m.checkOpen()
}

// EmbeddingDimensions returns the distinct embedding lengths stored, ascending.
func (m *MemoryStorage) EmbeddingDimensions(_ context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	set := make(map[int]struct{})
	for _, n := range m.nodes {
		set[len(n.Embedding)] = struct{}{}
	}
	dims := make([]int, 0, len(set))
	for d := range set {
		dims = append(dims, d)
	}
	sort.Ints(dims)
	return dims, nil
}

// Close marks the store closed. Subsequent calls fail.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
