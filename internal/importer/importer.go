package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/syntra/internal/knowledge"
	"github.com/hyperjump/syntra/internal/metrics"
	"github.com/hyperjump/syntra/internal/models"
)

// Action is the outcome of syncing one file.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionRemoved   Action = "removed"
	ActionFailed    Action = "failed"
)

// Service is the subset of the knowledge service the importer writes through.
type Service interface {
	ReplaceBySource(ctx context.Context, in models.NodeInput) (*models.NodeWithConnections, error)
	FindNodeBySource(ctx context.Context, source string) (*models.KnowledgeNode, error)
	DeleteNode(ctx context.Context, id string) (int, error)
	ListNodes(ctx context.Context) ([]*models.KnowledgeNode, error)
}

// Importer mirrors files as nodes whose source is the file's absolute path.
type Importer struct {
	service     Service
	defaultType models.NodeType
	metrics     *metrics.Collector
	logger      *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Importer) { i.logger = l }
}

// WithMetrics counts import actions on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(i *Importer) { i.metrics = c }
}

// New creates an importer. Files without a type in their front matter get defaultType.
func New(service Service, defaultType models.NodeType, opts ...Option) *Importer {
	i := &Importer{
		service:     service,
		defaultType: defaultType,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Sync creates or recreates the node for the file at path. A file whose node already has the
// same type, title, content and tags is left alone. A file that no longer exists is removed.
func (i *Importer) Sync(ctx context.Context, path string) (Action, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return i.record(ActionFailed), err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return i.Remove(ctx, abs)
	}
	if err != nil {
		return i.record(ActionFailed), fmt.Errorf("failed to read %s: %w", abs, err)
	}

	in, err := Parse(abs, data, i.defaultType)
	if err != nil {
		return i.record(ActionFailed), err
	}
	if err := knowledge.ValidateInput(&in); err != nil {
		return i.record(ActionFailed), fmt.Errorf("%s: %w", abs, err)
	}

	action := ActionCreated
	existing, err := i.service.FindNodeBySource(ctx, abs)
	switch {
	case err == nil:
		if unchanged(existing, in) {
			i.logger.Debug("Imported file unchanged", zap.String("path", abs))
			return i.record(ActionUnchanged), nil
		}
		action = ActionUpdated
	case !errors.Is(err, models.ErrNotFound):
		return i.record(ActionFailed), err
	}

	result, err := i.service.ReplaceBySource(ctx, in)
	if err != nil {
		return i.record(ActionFailed), err
	}
	i.logger.Info("Imported file",
		zap.String("path", abs),
		zap.String("action", string(action)),
		zap.String("node_id", result.Node.ID),
		zap.Int("connections", len(result.Connections)))
	return i.record(action), nil
}

// Remove deletes the node imported from path, if any.
func (i *Importer) Remove(ctx context.Context, path string) (Action, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return i.record(ActionFailed), err
	}
	node, err := i.service.FindNodeBySource(ctx, abs)
	if errors.Is(err, models.ErrNotFound) {
		return ActionUnchanged, nil
	}
	if err != nil {
		return i.record(ActionFailed), err
	}
	if _, err := i.service.DeleteNode(ctx, node.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return i.record(ActionFailed), err
	}
	i.logger.Info("Removed imported file", zap.String("path", abs), zap.String("node_id", node.ID))
	return i.record(ActionRemoved), nil
}

// FileChanged syncs path and logs failures. It lets the importer serve as a watcher handler.
func (i *Importer) FileChanged(ctx context.Context, path string) {
	if _, err := i.Sync(ctx, path); err != nil {
		i.logger.Warn("Failed to import file", zap.String("path", path), zap.Error(err))
	}
}

// FileRemoved removes the node for path and logs failures.
func (i *Importer) FileRemoved(ctx context.Context, path string) {
	if _, err := i.Remove(ctx, path); err != nil {
		i.logger.Warn("Failed to remove imported file", zap.String("path", path), zap.Error(err))
	}
}

// RemoveUnder deletes every node imported from a file beneath dir. It returns how many were
// removed.
func (i *Importer) RemoveUnder(ctx context.Context, dir string) (int, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}
	return i.removeWhere(ctx, func(source string) bool {
		return underDir(abs, source)
	})
}

// Prune deletes nodes imported from files beneath roots that no longer exist on disk. It
// catches removals that happened while nothing was watching.
func (i *Importer) Prune(ctx context.Context, roots []string) (int, error) {
	var dirs []string
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return 0, err
		}
		dirs = append(dirs, abs)
	}
	return i.removeWhere(ctx, func(source string) bool {
		if !slices.ContainsFunc(dirs, func(d string) bool { return underDir(d, source) }) {
			return false
		}
		_, err := os.Stat(source)
		return errors.Is(err, fs.ErrNotExist)
	})
}

func (i *Importer) removeWhere(ctx context.Context, match func(source string) bool) (int, error) {
	nodes, err := i.service.ListNodes(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, n := range nodes {
		if n.Source == "" || !filepath.IsAbs(n.Source) || !match(n.Source) {
			continue
		}
		if _, err := i.service.DeleteNode(ctx, n.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			i.record(ActionFailed)
			return removed, err
		}
		i.logger.Info("Removed imported file", zap.String("path", n.Source), zap.String("node_id", n.ID))
		i.record(ActionRemoved)
		removed++
	}
	return removed, nil
}

// DirectoryRemoved removes the nodes of every file that was beneath dir and logs failures.
func (i *Importer) DirectoryRemoved(ctx context.Context, dir string) {
	n, err := i.RemoveUnder(ctx, dir)
	if err != nil {
		i.logger.Warn("Failed to remove imported directory", zap.String("path", dir), zap.Error(err))
		return
	}
	i.logger.Info("Removed imported directory", zap.String("path", dir), zap.Int("nodes", n))
}

func (i *Importer) record(a Action) Action {
	i.metrics.Import(string(a))
	return a
}

func unchanged(n *models.KnowledgeNode, in models.NodeInput) bool {
	return n.Type == in.Type &&
		n.Title == in.Title &&
		n.Content == in.Content &&
		slices.Equal(n.Tags, in.Tags)
}

// underDir reports whether path lies beneath dir.
func underDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
