// Package keyword provides Bleve implementation of KeywordIndex.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// BleveIndex implements KeywordIndex using Bleve. Record metadata string
// values are flattened into one text field so that any metadata keyword
// can find the record.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If the path already exists, the existing index is opened and reused.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Use standard analyzer (lowercase + tokenize, no stemming) so queries match
	// the exact word; English stemming makes short metadata terms unpredictable.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a record's metadata text by record id.
func (b *BleveIndex) Index(ctx context.Context, id int64, metadata map[string]interface{}) error {
	return b.index.Index(strconv.FormatInt(id, 10), map[string]interface{}{
		"text": flattenMetadata(metadata),
	})
}

// Search runs a match query over the metadata text and returns up to limit results.
// When opts.FuzzyEnabled is true, fuzzy matching is used for typo tolerance.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		q = bleve.NewMatchQuery(query)
	}
	search := bleve.NewSearchRequest(q)
	search.Size = limit
	results, err := b.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, &Result{ID: id, Score: hit.Score})
	}
	return out, nil
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries for each term in the query.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := strings.Fields(strings.ToLower(queryStr))
	if len(terms) == 0 {
		return bleve.NewMatchQuery(queryStr)
	}
	if len(terms) == 1 {
		fq := bleve.NewFuzzyQuery(terms[0])
		fq.SetFuzziness(fuzziness)
		return fq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		queries = append(queries, fq)
	}
	// OR semantics, matching MatchQuery's default behavior.
	return bleve.NewDisjunctionQuery(queries...)
}

// flattenMetadata joins all string-representable metadata values into one
// searchable text blob. Nested maps and arrays contribute their leaf values.
func flattenMetadata(metadata map[string]interface{}) string {
	var sb strings.Builder
	for _, v := range metadata {
		appendValue(&sb, v)
	}
	return sb.String()
}

func appendValue(sb *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case string:
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(val)
	case map[string]interface{}:
		for _, inner := range val {
			appendValue(sb, inner)
		}
	case []interface{}:
		for _, inner := range val {
			appendValue(sb, inner)
		}
	case fmt.Stringer:
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(val.String())
	}
}

// Delete removes a record from the index.
func (b *BleveIndex) Delete(ctx context.Context, id int64) error {
	return b.index.Delete(strconv.FormatInt(id, 10))
}

// DocCount returns the total number of records in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
