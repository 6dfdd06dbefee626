package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/syntra/internal/embedding"
	"github.com/hyperjump/syntra/internal/knowledge"
	"github.com/hyperjump/syntra/internal/metrics"
	"github.com/hyperjump/syntra/internal/models"
	"github.com/hyperjump/syntra/internal/storage"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		data string
		want models.NodeInput
	}{
		{
			name: "plain file",
			data: "Just some text.\n",
			want: models.NodeInput{Type: models.NodeTypeNote, Title: "stoicism", Content: "Just some text.", Source: "/notes/stoicism.md"},
		},
		{
			name: "front matter",
			data: "---\ntitle: Meditations\ntype: Book\ntags: [stoic, classics]\n---\nBody text\n",
			want: models.NodeInput{
				Type:    models.NodeTypeBook,
				Title:   "Meditations",
				Content: "Body text",
				Source:  "/notes/stoicism.md",
				Tags:    []string{"stoic", "classics"},
			},
		},
		{
			name: "crlf line endings",
			data: "---\r\ntitle: Windows\r\n---\r\nline one\r\nline two\r\n",
			want: models.NodeInput{Type: models.NodeTypeNote, Title: "Windows", Content: "line one\nline two", Source: "/notes/stoicism.md"},
		},
		{
			name: "empty front matter",
			data: "---\n---\nBody\n",
			want: models.NodeInput{Type: models.NodeTypeNote, Title: "stoicism", Content: "Body", Source: "/notes/stoicism.md"},
		},
		{
			name: "unterminated front matter is content",
			data: "---\ntitle: x\nno end",
			want: models.NodeInput{Type: models.NodeTypeNote, Title: "stoicism", Content: "---\ntitle: x\nno end", Source: "/notes/stoicism.md"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse("/notes/stoicism.md", []byte(tt.data), models.NodeTypeNote)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("/a.md", []byte("---\ntype: poem\n---\nx"), models.NodeTypeNote)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = Parse("/a.md", []byte("---\ntitle: [unclosed\n---\nx"), models.NodeTypeNote)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func newTestImporter(t *testing.T) (*Importer, *knowledge.Service, *metrics.Collector) {
	t.Helper()
	store := storage.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })
	svc := knowledge.NewService(store, embedding.NewMockEmbedder(16))
	c := metrics.NewCollector("test")
	return New(svc, models.NodeTypeNote, WithMetrics(c)), svc, c
}

func TestImporter_SyncLifecycle(t *testing.T) {
	ctx := context.Background()
	imp, svc, c := newTestImporter(t)
	path := filepath.Join(t.TempDir(), "idea.md")

	require.NoError(t, os.WriteFile(path, []byte("---\ntype: idea\n---\nFirst draft"), 0600))
	action, err := imp.Sync(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, action)

	first, err := svc.FindNodeBySource(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, models.NodeTypeIdea, first.Type)
	assert.Equal(t, "idea", first.Title)

	action, err = imp.Sync(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, action)

	require.NoError(t, os.WriteFile(path, []byte("---\ntype: idea\n---\nSecond draft"), 0600))
	action, err = imp.Sync(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, action)

	second, err := svc.FindNodeBySource(ctx, path)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "Second draft", second.Content)

	nodes, err := svc.ListNodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)

	require.NoError(t, os.Remove(path))
	action, err = imp.Sync(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, ActionRemoved, action)

	_, err = svc.FindNodeBySource(ctx, path)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Imports.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Imports.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Imports.WithLabelValues("unchanged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Imports.WithLabelValues("removed")))
}

func TestImporter_EmptyFileFails(t *testing.T) {
	imp, svc, _ := newTestImporter(t)
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("---\ntitle: Empty\n---\n   \n"), 0600))

	action, err := imp.Sync(context.Background(), path)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, ActionFailed, action)

	nodes, err := svc.ListNodes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestImporter_RemoveUnknownPath(t *testing.T) {
	imp, _, _ := newTestImporter(t)
	action, err := imp.Remove(context.Background(), filepath.Join(t.TempDir(), "never.md"))
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, action)
}

func TestImporter_RemoveUnder(t *testing.T) {
	ctx := context.Background()
	imp, svc, c := newTestImporter(t)
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0755))

	paths := []string{
		filepath.Join(sub, "a.md"),
		filepath.Join(sub, "b.md"),
		filepath.Join(dir, "sub-sibling.md"),
	}
	for i, p := range paths {
		require.NoError(t, os.WriteFile(p, []byte("note "+string(rune('a'+i))), 0600))
		_, err := imp.Sync(ctx, p)
		require.NoError(t, err)
	}

	removed, err := imp.RemoveUnder(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	nodes, err := svc.ListNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, paths[2], nodes[0].Source)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Imports.WithLabelValues("removed")))

	imp.DirectoryRemoved(ctx, dir)
	nodes, err = svc.ListNodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestImporter_PruneMissingFiles(t *testing.T) {
	ctx := context.Background()
	imp, svc, _ := newTestImporter(t)
	dir := t.TempDir()
	kept := filepath.Join(dir, "kept.md")
	gone := filepath.Join(dir, "gone.md")
	outside := filepath.Join(t.TempDir(), "outside.md")
	for _, p := range []string{kept, gone, outside} {
		require.NoError(t, os.WriteFile(p, []byte("content of "+filepath.Base(p)), 0600))
		_, err := imp.Sync(ctx, p)
		require.NoError(t, err)
	}
	_, err := svc.CreateNode(ctx, models.NodeInput{Type: models.NodeTypeNote, Title: "Manual", Content: "typed in", Source: "chat"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone))
	require.NoError(t, os.Remove(outside))

	removed, err := imp.Prune(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = svc.FindNodeBySource(ctx, gone)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = svc.FindNodeBySource(ctx, kept)
	assert.NoError(t, err)
	_, err = svc.FindNodeBySource(ctx, outside)
	assert.NoError(t, err, "files outside the pruned roots are left alone")
	_, err = svc.FindNodeBySource(ctx, "chat")
	assert.NoError(t, err)
}
