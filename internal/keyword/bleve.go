package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/syntra/internal/models"
)

const defaultTitleBoost = 3.0

// textFields are the analyzed fields searched by Search and mined by Suggest.
var textFields = []string{"title", "content", "tags"}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// document is the indexed projection of a node.
type document struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Type    string   `json:"type"`
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match exact words.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	for _, f := range textFields {
		docMapping.AddFieldMappingsAt(f, text)
	}
	docMapping.AddFieldMappingsAt("type", bleve.NewKeywordFieldMapping())

	im.AddDocumentMapping("node", docMapping)
	im.DefaultType = "node"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an in-memory
// index. The index is derived data: callers rebuild it from the repository at startup.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexNode adds or replaces node in the index.
func (b *BleveIndex) IndexNode(ctx context.Context, node *models.KnowledgeNode) error {
	return b.index.Index(node.ID, document{
		Title:   node.Title,
		Content: node.Content,
		Tags:    node.Tags,
		Type:    string(node.Type),
	})
}

// Search returns up to limit hits ordered by score. Title and tag matches are weighted by
// opts.TitleBoost.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	o := SearchOptions{TitleBoost: defaultTitleBoost, Fuzziness: 1}
	if opts != nil {
		if opts.TitleBoost > 0 {
			o.TitleBoost = opts.TitleBoost
		}
		if opts.Fuzziness > 0 {
			o.Fuzziness = opts.Fuzziness
		}
		o.Fuzzy = opts.Fuzzy
		o.Type = opts.Type
	}
	if limit <= 0 {
		limit = 10
	}

	req := bleve.NewSearchRequest(b.buildQuery(query, o))
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

func (b *BleveIndex) buildQuery(query string, o SearchOptions) blevequery.Query {
	parts := make([]blevequery.Query, 0, len(textFields))
	for _, field := range textFields {
		boost := 1.0
		if field != "content" {
			boost = o.TitleBoost
		}
		parts = append(parts, fieldQuery(query, field, boost, o))
	}
	q := blevequery.Query(bleve.NewDisjunctionQuery(parts...))
	if o.Type != "" {
		tq := bleve.NewTermQuery(string(o.Type))
		tq.SetField("type")
		q = bleve.NewConjunctionQuery(q, tq)
	}
	return q
}

// fieldQuery matches query against one field: a match query, or a disjunction of per-term
// fuzzy queries when fuzzy matching is on.
func fieldQuery(query, field string, boost float64, o SearchOptions) blevequery.Query {
	terms := tokenize(query)
	if !o.Fuzzy || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	fuzzy := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(o.Fuzziness)
		fq.SetField(field)
		fuzzy = append(fuzzy, fq)
	}
	dq := bleve.NewDisjunctionQuery(fuzzy...)
	dq.SetBoost(boost)
	return dq
}

// tokenize splits query into lowercase letter/digit runs, mirroring the standard analyzer
// closely enough for suggestions and fuzzy terms.
func tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Delete removes a node from the index. Deleting an unknown id is not an error.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// IDs returns the ids of every indexed node.
func (b *BleveIndex) IDs(ctx context.Context) ([]string, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, count)
	if count == 0 {
		return ids, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve match-all failed: %w", err)
	}
	for _, hit := range results.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// DocCount returns the total number of indexed nodes.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
