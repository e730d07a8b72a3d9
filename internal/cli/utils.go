// Package cli provides output formatting for the mieru command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/mieru/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteSearchResults writes a similarity response to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SimilarityResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SimilarityResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", len(response.Results), response.QueryTime)
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | ID: %d\n", i+1, result.Score, result.ID)
		if title, ok := result.Metadata["title"].(string); ok && title != "" {
			fmt.Fprintf(w, "Title: %s\n", title)
		}
		if text, ok := result.Metadata["text"].(string); ok && text != "" {
			fmt.Fprintf(w, "\n%s\n", Truncate(text, 200))
		}
		fmt.Fprintln(w)
	}
}

// WriteCollections writes a collection listing to w in the given format.
func WriteCollections(w io.Writer, collections []*models.Collection, counts map[string]int64, format OutputFormat) error {
	switch format {
	case OutputJSON:
		type entry struct {
			*models.Collection
			Records int64 `json:"records"`
		}
		entries := make([]entry, len(collections))
		for i, col := range collections {
			entries[i] = entry{Collection: col, Records: counts[col.Name]}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	default:
		if len(collections) == 0 {
			fmt.Fprintln(w, "No collections.")
			return nil
		}
		fmt.Fprintf(w, "%-24s %10s %10s %10s\n", "NAME", "DIMS", "DISTANCE", "RECORDS")
		for _, col := range collections {
			fmt.Fprintf(w, "%-24s %10d %10s %10d\n", col.Name, col.Dimensions, col.Distance, counts[col.Name])
		}
		return nil
	}
}

// PrintSearchResults prints a similarity response to stdout in text format.
func PrintSearchResults(response *models.SimilarityResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
