// Package client is a Go client for the syntra HTTP API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/syntra/internal/models"
)

// DefaultURL is the address of a server running with the default configuration.
const DefaultURL = "http://localhost:8080"

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code back to the models error taxonomy so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return models.ErrValidation
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusBadGateway:
		return models.ErrEmbedding
	default:
		return nil
	}
}

// Status is the response of the status endpoint.
type Status struct {
	models.Stats
	WatchDirectories []string `json:"watch_directories,omitempty"`
}

// Client calls the syntra API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateNode creates a node and returns it with its discovered connections.
func (c *Client) CreateNode(ctx context.Context, in models.NodeInput) (*models.NodeWithConnections, error) {
	var out models.NodeWithConnections
	if err := c.do(ctx, http.MethodPost, "/api/nodes", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListNodes returns every node in creation order.
func (c *Client) ListNodes(ctx context.Context) ([]*models.KnowledgeNode, error) {
	var out []*models.KnowledgeNode
	if err := c.do(ctx, http.MethodGet, "/api/nodes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetNode returns a node with its connections, highest similarity first.
func (c *Client) GetNode(ctx context.Context, id string) (*models.NodeWithConnections, error) {
	var out models.NodeWithConnections
	if err := c.do(ctx, http.MethodGet, "/api/nodes/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNode deletes a node and returns the number of connections removed with it.
func (c *Client) DeleteNode(ctx context.Context, id string) (int, error) {
	var out struct {
		ConnectionsRemoved int `json:"connections_removed"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/nodes/"+url.PathEscape(id), nil, &out); err != nil {
		return 0, err
	}
	return out.ConnectionsRemoved, nil
}

// Search runs a semantic search.
func (c *Client) Search(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error) {
	var out models.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/search", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// KeywordSearch runs a keyword search.
func (c *Client) KeywordSearch(ctx context.Context, q models.SearchQuery) (*models.SearchResponse, error) {
	var out models.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/search/keyword", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Graph returns all nodes and connections.
func (c *Client) Graph(ctx context.Context) (*models.GraphView, error) {
	var out models.GraphView
	if err := c.do(ctx, http.MethodGet, "/api/graph", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns store statistics.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WatchDirectories lists the server's import directories.
func (c *Client) WatchDirectories(ctx context.Context) ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/watch/directories", nil, &out); err != nil {
		return nil, err
	}
	return out.Directories, nil
}

// AddWatchDirectory starts importing path on the server.
func (c *Client) AddWatchDirectory(ctx context.Context, path string, syncExisting bool) error {
	body := map[string]any{"path": path, "sync": syncExisting}
	return c.do(ctx, http.MethodPost, "/api/watch/directories", body, nil)
}

// RemoveWatchDirectory stops importing path on the server.
func (c *Client) RemoveWatchDirectory(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, "/api/watch/directories?path="+url.QueryEscape(path), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(b))
	if json.Unmarshal(b, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
