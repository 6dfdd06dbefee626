// Package storage defines the node repository and its SQLite and in-memory implementations.
package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/syntra/internal/models"
)

// Storage persists nodes and the connections between them.
//
// CreateNode and DeleteNode are atomic: a node is never visible without all of its
// connections, and a deleted node leaves no connection behind. Multi-part reads
// (GetNodeDetail, Snapshot) observe a single consistent state.
type Storage interface {
	// Writes
	CreateNode(ctx context.Context, node *models.KnowledgeNode, conns []*models.Connection) error
	DeleteNode(ctx context.Context, id string) (removedConnections int, err error)

	// Reads
	GetNode(ctx context.Context, id string) (*models.KnowledgeNode, error)
	GetNodeDetail(ctx context.Context, id string) (*models.NodeWithConnections, error)
	ListNodes(ctx context.Context) ([]*models.KnowledgeNode, error)
	FindNodeBySource(ctx context.Context, source string) (*models.KnowledgeNode, error)
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Stats
	CountNodes(ctx context.Context) (int64, error)
	CountConnections(ctx context.Context) (int64, error)
	// EmbeddingDimensions returns the distinct embedding lengths among stored nodes.
	EmbeddingDimensions(ctx context.Context) ([]int, error)

	Close() error
}

// Snapshot is every node and connection as of one instant, both in creation order.
type Snapshot struct {
	Nodes       []*models.KnowledgeNode
	Connections []*models.Connection
}

// Driver names a Storage implementation.
type Driver string

const (
	// DriverSQLite persists to a SQLite database file.
	DriverSQLite Driver = "sqlite"
	// DriverMemory keeps everything in process memory. Contents are lost on exit.
	DriverMemory Driver = "memory"
)

// New creates a Storage for driver. path is the database file for DriverSQLite.
func New(driver string, path string) (Storage, error) {
	switch Driver(driver) {
	case DriverSQLite, "":
		return NewSQLiteStorage(path)
	case DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: sqlite, memory)", driver)
	}
}

// pairKey identifies an unordered node pair.
func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func validateConnections(node *models.KnowledgeNode, conns []*models.Connection) error {
	seen := make(map[[2]string]struct{}, len(conns))
	for _, c := range conns {
		if c.FromNodeID == c.ToNodeID {
			return fmt.Errorf("%w: self connection on node %s", models.ErrRepository, c.FromNodeID)
		}
		if !c.Involves(node.ID) {
			return fmt.Errorf("%w: connection %s does not involve node %s", models.ErrRepository, c.ID, node.ID)
		}
		key := pairKey(c.FromNodeID, c.ToNodeID)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate connection %s-%s", models.ErrRepository, key[0], key[1])
		}
		seen[key] = struct{}{}
	}
	return nil
}
