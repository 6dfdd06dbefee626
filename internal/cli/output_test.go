package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/syntra/internal/client"
	"github.com/hyperjump/syntra/internal/models"
)

func sampleNode(id, title string) *models.KnowledgeNode {
	return &models.KnowledgeNode{
		ID:        id,
		Type:      models.NodeTypeNote,
		Title:     title,
		Content:   "content of " + title,
		Tags:      []string{"stoicism"},
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"compact", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch(t *testing.T) {
	assert.Equal(t, "82%", Match(0.82))
	assert.Equal(t, "100%", Match(1))
}

func TestWriteNode(t *testing.T) {
	detail := &models.NodeWithConnections{
		Node: sampleNode("n1", "Meditations"),
		Connections: []*models.ConnectedNode{
			{Node: sampleNode("n2", "Letters from a Stoic"), SimilarityScore: 0.82},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteNode(&buf, detail, OutputText))
	out := buf.String()
	assert.Contains(t, out, "Meditations")
	assert.Contains(t, out, "Tags:    stoicism")
	assert.Contains(t, out, "Connections (1):")
	assert.Contains(t, out, "82%")
	assert.Contains(t, out, "Letters from a Stoic")

	buf.Reset()
	detail.Connections = nil
	require.NoError(t, WriteNode(&buf, detail, OutputText))
	assert.Contains(t, buf.String(), "No connections.")
}

func TestWriteNodeList_JSONEmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNodeList(&buf, nil, OutputJSON))
	assert.JSONEq(t, "[]", buf.String())

	buf.Reset()
	require.NoError(t, WriteNodeList(&buf, []*models.KnowledgeNode{sampleNode("n1", "A")}, OutputText))
	assert.Contains(t, buf.String(), "1 node(s)")
}

func TestWriteSearchResults(t *testing.T) {
	resp := &models.SearchResponse{
		Results:    []*models.SearchResult{{Node: sampleNode("n1", "Meditations"), Similarity: 0.9}},
		Total:      1,
		QueryTime:  12,
		Query:      "stoic",
		Suggestion: "stoicism",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, resp, OutputText))
	out := buf.String()
	assert.Contains(t, out, "Found 1 results in 12ms")
	assert.Contains(t, out, "1. Meditations  (match 90%)")
	assert.Contains(t, out, `Did you mean "stoicism"?`)

	buf.Reset()
	require.NoError(t, WriteSearchResults(&buf, resp, OutputJSON))
	var decoded models.SearchResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.Total)
	assert.Equal(t, "stoicism", decoded.Suggestion)
}

func TestWriteKeywordResults(t *testing.T) {
	resp := &models.SearchResponse{
		Results: []*models.SearchResult{{Node: sampleNode("n1", "Meditations"), Similarity: 1.25}},
		Total:   1,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteKeywordResults(&buf, resp, OutputText))
	assert.Contains(t, buf.String(), "(score 1.2500)")
}

func TestWriteGraph(t *testing.T) {
	view := &models.GraphView{
		Nodes: []*models.KnowledgeNode{sampleNode("a", "Alpha"), sampleNode("b", "Beta")},
		Connections: []*models.Connection{
			{ID: "c1", FromNodeID: "b", ToNodeID: "a", SimilarityScore: 0.8},
			{ID: "c2", FromNodeID: "b", ToNodeID: "gone", SimilarityScore: 0.76},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteGraph(&buf, view, OutputText))
	out := buf.String()
	assert.Contains(t, out, "2 nodes, 2 connections")
	assert.Contains(t, out, "Beta -> Alpha  (80%)")
	assert.Contains(t, out, "Beta -> gone")
}

func TestWriteStatus(t *testing.T) {
	disk := int64(4096)
	s := &client.Status{
		Stats: models.Stats{
			Nodes:               3,
			Connections:         2,
			EmbeddingDimensions: 1536,
			SimilarityThreshold: 0.75,
			StorageDriver:       "sqlite",
			DiskUsageBytes:      &disk,
		},
		WatchDirectories: []string{"/notes"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteStatus(&buf, s, OutputText))
	out := buf.String()
	assert.Contains(t, out, "nodes:                3")
	assert.Contains(t, out, "similarity_threshold: 0.75")
	assert.Contains(t, out, "disk_usage_bytes:     4096")
	assert.Contains(t, out, "watch_directory:      /notes")
	assert.NotContains(t, out, "database_path")
}
