package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/syntra/internal/models"
	"github.com/hyperjump/syntra/internal/vector"
)

const memoryDSN = ":memory:"

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory
// database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != memoryDSN {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryDSN {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		embedding BLOB NOT NULL,
		dimensions INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_source ON nodes(source);

	CREATE TABLE IF NOT EXISTS connections (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		from_node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		to_node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		similarity_score REAL NOT NULL,
		created_at TIMESTAMP NOT NULL,
		CHECK (from_node_id <> to_node_id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_connections_pair
		ON connections(min(from_node_id, to_node_id), max(from_node_id, to_node_id));
	CREATE INDEX IF NOT EXISTS idx_connections_from ON connections(from_node_id);
	CREATE INDEX IF NOT EXISTS idx_connections_to ON connections(to_node_id);
	`
	_, err := db.Exec(schema)
	return err
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const nodeColumns = `id, type, title, content, source, tags, embedding, created_at`

func scanNode(s scanner) (*models.KnowledgeNode, error) {
	var (
		node     models.KnowledgeNode
		nodeType string
		tagsJSON string
		blob     []byte
	)
	if err := s.Scan(&node.ID, &nodeType, &node.Title, &node.Content, &node.Source, &tagsJSON, &blob, &node.CreatedAt); err != nil {
		return nil, err
	}
	node.Type = models.NodeType(nodeType)
	if err := json.Unmarshal([]byte(tagsJSON), &node.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags of node %s: %w", node.ID, err)
	}
	if node.Tags == nil {
		node.Tags = []string{}
	}
	emb, err := vector.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode embedding of node %s: %w", node.ID, err)
	}
	node.Embedding = emb
	return &node, nil
}

// CreateNode inserts node and its connections in one transaction.
func (s *SQLiteStorage) CreateNode(ctx context.Context, node *models.KnowledgeNode, conns []*models.Connection) error {
	if err := validateConnections(node, conns); err != nil {
		return err
	}
	tags := node.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", models.ErrRepository, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO nodes (id, type, title, content, source, tags, embedding, dimensions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, string(node.Type), node.Title, node.Content, node.Source, string(tagsJSON),
		vector.Encode(node.Embedding), len(node.Embedding), node.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert node %s: %w", models.ErrRepository, node.ID, err)
	}

	if len(conns) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO connections (id, from_node_id, to_node_id, similarity_score, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("%w: prepare connections: %w", models.ErrRepository, err)
		}
		defer stmt.Close()
		for _, c := range conns {
			if _, err := stmt.ExecContext(ctx, c.ID, c.FromNodeID, c.ToNodeID, c.SimilarityScore, c.CreatedAt); err != nil {
				return fmt.Errorf("%w: insert connection %s-%s: %w", models.ErrRepository, c.FromNodeID, c.ToNodeID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", models.ErrRepository, err)
	}
	return nil
}

// DeleteNode removes a node and every connection referencing it in one transaction.
func (s *SQLiteStorage) DeleteNode(ctx context.Context, id string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", models.ErrRepository, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: node %s", models.ErrNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: lookup node %s: %w", models.ErrRepository, id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM connections WHERE from_node_id = ? OR to_node_id = ?`, id, id)
	if err != nil {
		return 0, fmt.Errorf("%w: delete connections of %s: %w", models.ErrRepository, id, err)
	}
	removed, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("%w: delete node %s: %w", models.ErrRepository, id, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", models.ErrRepository, err)
	}
	return int(removed), nil
}

// GetNode returns a node by ID.
func (s *SQLiteStorage) GetNode(ctx context.Context, id string) (*models.KnowledgeNode, error) {
	return getNode(ctx, s.db, id)
}

func getNode(ctx context.Context, q queryer, id string) (*models.KnowledgeNode, error) {
	row := q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: node %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get node %s: %w", models.ErrRepository, id, err)
	}
	return node, nil
}

// GetNodeDetail returns a node and its neighbours, highest similarity first, read in one
// transaction.
func (s *SQLiteStorage) GetNodeDetail(ctx context.Context, id string) (*models.NodeWithConnections, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", models.ErrRepository, err)
	}
	defer tx.Rollback()

	node, err := getNode(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	conns, err := listConnections(ctx, tx, `WHERE from_node_id = ? OR to_node_id = ?`, id, id)
	if err != nil {
		return nil, err
	}
	detail := &models.NodeWithConnections{Node: node, Connections: make([]*models.ConnectedNode, 0, len(conns))}
	for _, c := range conns {
		other, err := getNode(ctx, tx, c.Other(id))
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		detail.Connections = append(detail.Connections, &models.ConnectedNode{Node: other, SimilarityScore: c.SimilarityScore})
	}
	sort.SliceStable(detail.Connections, func(i, j int) bool {
		return detail.Connections[i].SimilarityScore > detail.Connections[j].SimilarityScore
	})
	return detail, nil
}

// ListNodes returns all nodes in creation order.
func (s *SQLiteStorage) ListNodes(ctx context.Context) ([]*models.KnowledgeNode, error) {
	return listNodes(ctx, s.db)
}

func listNodes(ctx context.Context, q queryer) ([]*models.KnowledgeNode, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: list nodes: %w", models.ErrRepository, err)
	}
	defer rows.Close()

	nodes := make([]*models.KnowledgeNode, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan node: %w", models.ErrRepository, err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list nodes: %w", models.ErrRepository, err)
	}
	return nodes, nil
}

func listConnections(ctx context.Context, q queryer, where string, args ...any) ([]*models.Connection, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, from_node_id, to_node_id, similarity_score, created_at FROM connections `+where+` ORDER BY seq`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list connections: %w", models.ErrRepository, err)
	}
	defer rows.Close()

	conns := make([]*models.Connection, 0)
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.ID, &c.FromNodeID, &c.ToNodeID, &c.SimilarityScore, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan connection: %w", models.ErrRepository, err)
		}
		conns = append(conns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list connections: %w", models.ErrRepository, err)
	}
	return conns, nil
}

// FindNodeBySource returns the oldest node whose source equals source.
func (s *SQLiteStorage) FindNodeBySource(ctx context.Context, source string) (*models.KnowledgeNode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE source = ? ORDER BY seq LIMIT 1`, source)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: node with source %s", models.ErrNotFound, source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find node by source: %w", models.ErrRepository, err)
	}
	return node, nil
}

// Snapshot reads all nodes and connections in one transaction.
func (s *SQLiteStorage) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", models.ErrRepository, err)
	}
	defer tx.Rollback()

	nodes, err := listNodes(ctx, tx)
	if err != nil {
		return nil, err
	}
	conns, err := listConnections(ctx, tx, "")
	if err != nil {
		return nil, err
	}
	return &Snapshot{Nodes: nodes, Connections: conns}, nil
}

// CountNodes returns the total number of nodes.
func (s *SQLiteStorage) CountNodes(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count nodes: %w", models.ErrRepository, err)
	}
	return count, nil
}

// CountConnections returns the total number of connections.
func (s *SQLiteStorage) CountConnections(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM connections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count connections: %w", models.ErrRepository, err)
	}
	return count, nil
}

// EmbeddingDimensions returns the distinct embedding lengths stored, ascending.
func (s *SQLiteStorage) EmbeddingDimensions(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT dimensions FROM nodes ORDER BY dimensions`)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding dimensions: %w", models.ErrRepository, err)
	}
	defer rows.Close()
	var dims []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("%w: embedding dimensions: %w", models.ErrRepository, err)
		}
		dims = append(dims, d)
	}
	return dims, rows.Err()
}

// Path returns the database path the storage was opened with.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
