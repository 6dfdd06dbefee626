// Package cli renders API responses for the syntra command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/syntra/internal/client"
	"github.com/hyperjump/syntra/internal/models"
	"github.com/hyperjump/syntra/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	separator      = "─────────────────────────────────────────────────────────"
	previewLength  = 200
	listTitleWidth = 60
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Match renders a similarity score as a percentage, e.g. "82%".
func Match(score float64) string {
	return fmt.Sprintf("%d%%", utils.Percent(score))
}

// WriteNode writes a node with its connections.
func WriteNode(w io.Writer, n *models.NodeWithConnections, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, n)
	}
	writeNodeHeader(w, n.Node)
	fmt.Fprintf(w, "\n%s\n", n.Node.Content)
	if len(n.Connections) == 0 {
		fmt.Fprintln(w, "\nNo connections.")
		return nil
	}
	fmt.Fprintf(w, "\nConnections (%d):\n", len(n.Connections))
	for _, c := range n.Connections {
		fmt.Fprintf(w, "  %4s  %s  [%s]  %s\n", Match(c.SimilarityScore), c.Node.ID, c.Node.Type, c.Node.Title)
	}
	return nil
}

func writeNodeHeader(w io.Writer, n *models.KnowledgeNode) {
	fmt.Fprintf(w, "%s\n", n.Title)
	fmt.Fprintf(w, "ID:      %s\n", n.ID)
	fmt.Fprintf(w, "Type:    %s\n", n.Type)
	if n.Source != "" {
		fmt.Fprintf(w, "Source:  %s\n", n.Source)
	}
	if len(n.Tags) > 0 {
		fmt.Fprintf(w, "Tags:    %s\n", strings.Join(n.Tags, ", "))
	}
	fmt.Fprintf(w, "Created: %s\n", n.CreatedAt.Format("2006-01-02 15:04:05"))
}

// WriteNodeList writes one line per node.
func WriteNodeList(w io.Writer, nodes []*models.KnowledgeNode, format OutputFormat) error {
	if format == OutputJSON {
		if nodes == nil {
			nodes = []*models.KnowledgeNode{}
		}
		return WriteJSON(w, nodes)
	}
	for _, n := range nodes {
		fmt.Fprintf(w, "%s  %-8s %s\n", n.ID, n.Type, utils.Truncate(n.Title, listTitleWidth))
	}
	fmt.Fprintf(w, "\n%d node(s)\n", len(nodes))
	return nil
}

// WriteSearchResults writes search results with their match percentage.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for i, r := range response.Results {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "%d. %s  (match %s)\n", i+1, r.Node.Title, Match(r.Similarity))
		fmt.Fprintf(w, "ID: %s | Type: %s\n", r.Node.ID, r.Node.Type)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Node.Content, previewLength))
	}
	if response.Suggestion != "" {
		fmt.Fprintf(w, "Did you mean %q?\n", response.Suggestion)
	}
	return nil
}

// WriteKeywordResults writes keyword search hits. Scores are bleve relevance, not similarity.
func WriteKeywordResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d keyword results in %dms\n\n", response.Total, response.QueryTime)
	for i, r := range response.Results {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "%d. %s  (score %.4f)\n", i+1, r.Node.Title, r.Similarity)
		fmt.Fprintf(w, "ID: %s | Type: %s\n", r.Node.ID, r.Node.Type)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Node.Content, previewLength))
	}
	if response.Suggestion != "" {
		fmt.Fprintf(w, "Did you mean %q?\n", response.Suggestion)
	}
	return nil
}

// WriteGraph writes the node count and one line per connection.
func WriteGraph(w io.Writer, view *models.GraphView, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, view)
	}
	titles := make(map[string]string, len(view.Nodes))
	for _, n := range view.Nodes {
		titles[n.ID] = n.Title
	}
	fmt.Fprintf(w, "%d nodes, %d connections\n", len(view.Nodes), len(view.Connections))
	for _, c := range view.Connections {
		fmt.Fprintf(w, "  %s -> %s  (%s)\n", titleOr(titles, c.FromNodeID), titleOr(titles, c.ToNodeID), Match(c.SimilarityScore))
	}
	return nil
}

func titleOr(titles map[string]string, id string) string {
	if t, ok := titles[id]; ok && t != "" {
		return t
	}
	return id
}

// WriteStatus writes store statistics.
func WriteStatus(w io.Writer, s *client.Status, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, s)
	}
	fmt.Fprintf(w, "nodes:                %d\n", s.Nodes)
	fmt.Fprintf(w, "connections:          %d\n", s.Connections)
	fmt.Fprintf(w, "embedding_dimensions: %d\n", s.EmbeddingDimensions)
	fmt.Fprintf(w, "similarity_threshold: %.2f\n", s.SimilarityThreshold)
	if s.StorageDriver != "" {
		fmt.Fprintf(w, "storage_driver:       %s\n", s.StorageDriver)
	}
	if s.DatabasePath != "" {
		fmt.Fprintf(w, "database_path:        %s\n", s.DatabasePath)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:     %d\n", *s.DiskUsageBytes)
	}
	for _, d := range s.WatchDirectories {
		fmt.Fprintf(w, "watch_directory:      %s\n", d)
	}
	return nil
}
