// Package knowledge implements the operations exposed by the API: node creation with
// connection discovery, deletion, retrieval, semantic and keyword search, and the graph view.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyperjump/syntra/internal/discovery"
	"github.com/hyperjump/syntra/internal/embedding"
	"github.com/hyperjump/syntra/internal/graph"
	"github.com/hyperjump/syntra/internal/keyword"
	"github.com/hyperjump/syntra/internal/metrics"
	"github.com/hyperjump/syntra/internal/models"
	"github.com/hyperjump/syntra/internal/search"
	"github.com/hyperjump/syntra/internal/storage"
	"github.com/hyperjump/syntra/internal/tracing"
	"github.com/hyperjump/syntra/pkg/utils"
)

// Service orchestrates the repository, the embedder and the discovery engine.
type Service struct {
	store      storage.Storage
	embedder   embedding.Embedder
	engine     *discovery.Engine
	candidates discovery.CandidateSource
	keyword    keyword.Index
	metrics    *metrics.Collector
	logger     *zap.Logger
	tracer     trace.Tracer

	now          func() time.Time
	newID        func() string
	defaultLimit int
	maxLimit     int

	storageDriver string
	databasePath  string
	diskPaths     []string

	// mu serializes the read-discover-write unit of node creation and deletion.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithKeywordIndex enables keyword search and keeps idx in sync with writes.
func WithKeywordIndex(idx keyword.Index) Option {
	return func(s *Service) { s.keyword = idx }
}

// WithMetrics records service metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithClock sets the time source for node and connection timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator sets the id generator for nodes and connections.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithCandidateSource replaces the linear scan used to find discovery candidates.
func WithCandidateSource(src discovery.CandidateSource) Option {
	return func(s *Service) { s.candidates = src }
}

// WithSearchLimits sets the default and maximum number of search results.
func WithSearchLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		s.defaultLimit = defaultLimit
		s.maxLimit = maxLimit
	}
}

// WithStorageInfo describes the repository for Stats. diskPaths are summed for disk usage.
func WithStorageInfo(driver, databasePath string, diskPaths ...string) Option {
	return func(s *Service) {
		s.storageDriver = driver
		s.databasePath = databasePath
		s.diskPaths = diskPaths
	}
}

// NewService creates a knowledge service over store and embedder.
func NewService(store storage.Storage, embedder embedding.Embedder, opts ...Option) *Service {
	s := &Service{
		store:        store,
		embedder:     embedder,
		logger:       zap.NewNop(),
		tracer:       tracing.Tracer(),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        func() string { return uuid.New().String() },
		defaultLimit: models.DefaultSearchLimit,
		maxLimit:     100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.candidates == nil {
		s.candidates = discovery.LinearScan{Nodes: store}
	}
	s.engine = discovery.NewEngine(discovery.WithClock(s.now), discovery.WithIDGenerator(s.newID))
	return s
}

// CreateNode validates in, embeds its content, connects it to every existing node whose
// similarity strictly exceeds discovery.Threshold and persists node and connections together.
// The returned connections list the neighbours in discovery order.
func (s *Service) CreateNode(ctx context.Context, in models.NodeInput) (*models.NodeWithConnections, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.CreateNode")
	defer span.End()

	node, err := s.prepareNode(ctx, in)
	if err != nil {
		return nil, s.fail(span, "create_node", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.insertLocked(ctx, node)
	if err != nil {
		return nil, s.fail(span, "create_node", err)
	}
	span.SetAttributes(attribute.String("node.id", node.ID), attribute.Int("connections", len(result.Connections)))
	return result, nil
}

// ReplaceBySource deletes the node whose source equals in.Source, if any, and creates a new
// node from in, in one critical section. It is how an edited file is re-imported.
func (s *Service) ReplaceBySource(ctx context.Context, in models.NodeInput) (*models.NodeWithConnections, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.ReplaceBySource")
	defer span.End()

	node, err := s.prepareNode(ctx, in)
	if err != nil {
		return nil, s.fail(span, "replace_node", err)
	}
	if node.Source == "" {
		return nil, s.fail(span, "replace_node", fmt.Errorf("%w: source is required", models.ErrValidation))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.store.FindNodeBySource(ctx, node.Source)
	switch {
	case err == nil:
		if _, err := s.deleteLocked(ctx, old.ID); err != nil {
			return nil, s.fail(span, "replace_node", err)
		}
	case !errors.Is(err, models.ErrNotFound):
		return nil, s.fail(span, "replace_node", err)
	}

	result, err := s.insertLocked(ctx, node)
	if err != nil {
		return nil, s.fail(span, "replace_node", err)
	}
	return result, nil
}

// prepareNode validates the input and computes the embedding. It runs outside the write lock.
func (s *Service) prepareNode(ctx context.Context, in models.NodeInput) (*models.KnowledgeNode, error) {
	if err := ValidateInput(&in); err != nil {
		return nil, err
	}
	emb, err := s.embed(ctx, in.Content)
	if err != nil {
		return nil, err
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	return &models.KnowledgeNode{
		ID:        s.newID(),
		Type:      in.Type,
		Title:     in.Title,
		Content:   in.Content,
		Source:    in.Source,
		Tags:      tags,
		Embedding: emb,
	}, nil
}

// insertLocked discovers connections for node against the current candidates and stores
// both. Callers hold s.mu.
func (s *Service) insertLocked(ctx context.Context, node *models.KnowledgeNode) (*models.NodeWithConnections, error) {
	candidates, err := s.candidates.Candidates(ctx, node.Embedding)
	if err != nil {
		return nil, err
	}
	node.CreatedAt = s.now()
	conns, err := s.engine.Discover(node, candidates)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateNode(ctx, node, conns); err != nil {
		return nil, err
	}

	if s.keyword != nil {
		if err := s.keyword.IndexNode(ctx, node); err != nil {
			s.logger.Warn("Failed to index node for keyword search", zap.String("node_id", node.ID), zap.Error(err))
		}
	}
	s.metrics.NodeCreated(len(conns))

	byID := make(map[string]*models.KnowledgeNode, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	result := &models.NodeWithConnections{
		Node:        node.Public(),
		Connections: make([]*models.ConnectedNode, 0, len(conns)),
	}
	for _, c := range conns {
		result.Connections = append(result.Connections, &models.ConnectedNode{
			Node:            byID[c.ToNodeID].Public(),
			SimilarityScore: c.SimilarityScore,
		})
	}

	s.logger.Info("Node created",
		zap.String("node_id", node.ID),
		zap.String("type", string(node.Type)),
		zap.Int("connections", len(conns)))
	return result, nil
}

// DeleteNode removes the node and every connection referencing it. It returns the number of
// connections removed.
func (s *Service) DeleteNode(ctx context.Context, id string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.DeleteNode", trace.WithAttributes(attribute.String("node.id", id)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.deleteLocked(ctx, id)
	if err != nil {
		return 0, s.fail(span, "delete_node", err)
	}
	return removed, nil
}

func (s *Service) deleteLocked(ctx context.Context, id string) (int, error) {
	removed, err := s.store.DeleteNode(ctx, id)
	if err != nil {
		return 0, err
	}
	if s.keyword != nil {
		if err := s.keyword.Delete(ctx, id); err != nil {
			s.logger.Warn("Failed to remove node from keyword index", zap.String("node_id", id), zap.Error(err))
		}
	}
	s.metrics.NodeDeleted(removed)
	s.logger.Info("Node deleted", zap.String("node_id", id), zap.Int("connections_removed", removed))
	return removed, nil
}

// GetNode returns the node with its neighbours sorted by similarity, highest first.
func (s *Service) GetNode(ctx context.Context, id string) (*models.NodeWithConnections, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.GetNode", trace.WithAttributes(attribute.String("node.id", id)))
	defer span.End()

	detail, err := s.store.GetNodeDetail(ctx, id)
	if err != nil {
		return nil, s.fail(span, "get_node", err)
	}
	detail.Node = detail.Node.Public()
	for _, c := range detail.Connections {
		c.Node = c.Node.Public()
	}
	return detail, nil
}

// ListNodes returns every node in creation order without embeddings.
func (s *Service) ListNodes(ctx context.Context) ([]*models.KnowledgeNode, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.ListNodes")
	defer span.End()

	nodes, err := s.store.ListNodes(ctx)
	if err != nil {
		return nil, s.fail(span, "list_nodes", err)
	}
	for i, n := range nodes {
		nodes[i] = n.Public()
	}
	return nodes, nil
}

// FindNodeBySource returns the node imported from source.
func (s *Service) FindNodeBySource(ctx context.Context, source string) (*models.KnowledgeNode, error) {
	node, err := s.store.FindNodeBySource(ctx, source)
	if err != nil {
		return nil, err
	}
	return node.Public(), nil
}

// Search embeds the query and returns up to q.Limit nodes by descending similarity, never more
// than models.MaxSemanticResults. The configured maximum only lowers that cap.
func (s *Service) Search(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.Search")
	defer span.End()
	start := time.Now()

	maxLimit := models.MaxSemanticResults
	if s.maxLimit > 0 && s.maxLimit < maxLimit {
		maxLimit = s.maxLimit
	}
	if err := q.Validate(s.defaultLimit, maxLimit); err != nil {
		return nil, s.fail(span, "search", err)
	}
	emb, err := s.embed(ctx, q.Query)
	if err != nil {
		return nil, s.fail(span, "search", err)
	}
	nodes, err := s.store.ListNodes(ctx)
	if err != nil {
		return nil, s.fail(span, "search", err)
	}
	ranked, err := search.Rank(emb, nodes, q.Limit)
	if err != nil {
		return nil, s.fail(span, "search", err)
	}

	resp := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(ranked)),
		Query:   q.Query,
	}
	for _, r := range ranked {
		resp.Results = append(resp.Results, &models.SearchResult{Node: r.Node.Public(), Similarity: r.Score})
	}
	resp.Total = len(resp.Results)
	resp.QueryTime = time.Since(start).Milliseconds()
	s.metrics.Search("semantic")
	span.SetAttributes(attribute.Int("results", resp.Total))
	return resp, nil
}

// KeywordSearch runs an exact-term query against the keyword index. When nothing matches, a
// spelling suggestion built from indexed terms may be attached.
func (s *Service) KeywordSearch(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.KeywordSearch")
	defer span.End()
	start := time.Now()

	if s.keyword == nil {
		return nil, s.fail(span, "keyword_search", fmt.Errorf("%w: keyword index is not configured", models.ErrRepository))
	}
	if err := q.Validate(s.defaultLimit, s.maxLimit); err != nil {
		return nil, s.fail(span, "keyword_search", err)
	}
	if q.Type != "" && !q.Type.Valid() {
		return nil, s.fail(span, "keyword_search", fmt.Errorf("%w: unknown node type %q", models.ErrValidation, q.Type))
	}

	hits, err := s.keyword.Search(ctx, q.Query, q.Limit, &keyword.SearchOptions{Fuzzy: q.Fuzzy, Type: q.Type})
	if err != nil {
		return nil, s.fail(span, "keyword_search", fmt.Errorf("%w: %w", models.ErrRepository, err))
	}

	resp := &models.SearchResponse{Results: make([]*models.SearchResult, 0, len(hits)), Query: q.Query}
	for _, h := range hits {
		node, err := s.store.GetNode(ctx, h.ID)
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Debug("Keyword hit for missing node", zap.String("node_id", h.ID))
			continue
		}
		if err != nil {
			return nil, s.fail(span, "keyword_search", err)
		}
		resp.Results = append(resp.Results, &models.SearchResult{Node: node.Public(), Similarity: h.Score})
	}
	if len(resp.Results) == 0 {
		if suggestion, ok, err := s.keyword.Suggest(q.Query, 2); err == nil && ok {
			resp.Suggestion = suggestion
		}
	}
	resp.Total = len(resp.Results)
	resp.QueryTime = time.Since(start).Milliseconds()
	s.metrics.Search("keyword")
	return resp, nil
}

// Graph returns every node and connection as one consistent view.
func (s *Service) Graph(ctx context.Context) (*models.GraphView, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.Graph")
	defer span.End()

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, s.fail(span, "graph", err)
	}
	return graph.Assemble(snap.Nodes, snap.Connections), nil
}

// Stats summarizes the store.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	nodes, err := s.store.CountNodes(ctx)
	if err != nil {
		return nil, err
	}
	conns, err := s.store.CountConnections(ctx)
	if err != nil {
		return nil, err
	}
	stats := &models.Stats{
		Nodes:               nodes,
		Connections:         conns,
		EmbeddingDimensions: s.embedder.Dimensions(),
		SimilarityThreshold: discovery.Threshold,
		StorageDriver:       s.storageDriver,
		DatabasePath:        s.databasePath,
	}
	if len(s.diskPaths) > 0 {
		if size, err := storage.DiskUsageBytes(s.diskPaths...); err == nil {
			stats.DiskUsageBytes = &size
		} else {
			s.logger.Warn("Failed to compute disk usage", zap.Error(err))
		}
	}
	return stats, nil
}

// CheckDimensions verifies that every stored embedding has the embedder's length.
func (s *Service) CheckDimensions(ctx context.Context) error {
	dims, err := s.store.EmbeddingDimensions(ctx)
	if err != nil {
		return err
	}
	want := s.embedder.Dimensions()
	for _, d := range dims {
		if d != want {
			return fmt.Errorf("%w: stored embeddings have %d dimensions, embedder produces %d", models.ErrDimensionMismatch, d, want)
		}
	}
	return nil
}

// RebuildKeywordIndex makes the keyword index match the repository: every node is
// (re)indexed and ids no longer stored are removed.
func (s *Service) RebuildKeywordIndex(ctx context.Context) error {
	if s.keyword == nil {
		return nil
	}
	nodes, err := s.store.ListNodes(ctx)
	if err != nil {
		return err
	}
	live := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		live[n.ID] = struct{}{}
		if err := s.keyword.IndexNode(ctx, n); err != nil {
			return fmt.Errorf("failed to index node %s: %w", n.ID, err)
		}
	}
	ids, err := s.keyword.IDs(ctx)
	if err != nil {
		return err
	}
	stale := 0
	for _, id := range ids {
		if _, ok := live[id]; ok {
			continue
		}
		if err := s.keyword.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to remove stale node %s: %w", id, err)
		}
		stale++
	}
	s.logger.Info("Keyword index rebuilt", zap.Int("nodes", len(nodes)), zap.Int("stale_removed", stale))
	return nil
}

// embed normalizes whitespace and calls the embedder, checking the returned length.
func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	input := utils.NormalizeWhitespace(text)
	if input == "" {
		return nil, fmt.Errorf("%w: text to embed is empty", models.ErrValidation)
	}
	start := time.Now()
	v, err := s.embedder.Embed(ctx, input)
	s.metrics.ObserveEmbedding(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbedding, err)
	}
	if want := s.embedder.Dimensions(); len(v) != want {
		return nil, fmt.Errorf("%w: embedder returned %d values, expected %d", models.ErrDimensionMismatch, len(v), want)
	}
	return v, nil
}

// fail records err on the span and in metrics, logs unexpected failures and returns err.
func (s *Service) fail(span trace.Span, operation string, err error) error {
	kind := ErrorKind(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	s.metrics.OperationError(operation, kind)
	switch kind {
	case "validation", "not_found":
		s.logger.Debug("Operation rejected", zap.String("operation", operation), zap.Error(err))
	default:
		s.logger.Error("Operation failed", zap.String("operation", operation), zap.String("kind", kind), zap.Error(err))
	}
	return err
}

// ErrorKind classifies err against the models error taxonomy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation):
		return "validation"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, models.ErrEmbedding):
		return "embedding"
	case errors.Is(err, models.ErrRepository):
		return "repository"
	default:
		return "internal"
	}
}
