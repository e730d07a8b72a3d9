// Package extract provides text extraction from various document formats.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParsedDocument is the result of parsing one document file.
type ParsedDocument struct {
	Text     string `json:"text"`
	Pages    int    `json:"pages"`
	FileType string `json:"file_type"`
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Parse reads the file at path and returns its cleaned text content with a
// page count. For plain text files, content is returned as-is (UTF-8
// validated) with one page. For PDF, DOCX, Excel, PPTX, ODP, and ODS, text
// is extracted from the binary format.
func (e *Extractor) Parse(path string) (*ParsedDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ParseBytes(content, ext)
}

// ParseBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ParseBytes(content []byte, ext string) (*ParsedDocument, error) {
	switch ext {
	case ".pdf":
		text, pages, err := extractPDF(content)
		if err != nil {
			return nil, err
		}
		return &ParsedDocument{Text: CleanText(text), Pages: pages, FileType: "pdf"}, nil
	case ".docx", ".odt", ".rtf":
		text, pages, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return &ParsedDocument{Text: CleanText(text), Pages: pages, FileType: "docx"}, nil
	case ".xlsx":
		text, sheets, err := extractExcel(content)
		if err != nil {
			return nil, err
		}
		return &ParsedDocument{Text: CleanText(text), Pages: sheets, FileType: "xlsx"}, nil
	case ".pptx":
		text, slides, err := extractPPTX(content)
		if err != nil {
			return nil, err
		}
		return &ParsedDocument{Text: CleanText(text), Pages: slides, FileType: "pptx"}, nil
	case ".odp":
		text, slides, err := extractODP(content)
		if err != nil {
			return nil, err
		}
		return &ParsedDocument{Text: CleanText(text), Pages: slides, FileType: "odp"}, nil
	case ".ods":
		text, sheets, err := extractODS(content)
		if err != nil {
			return nil, err
		}
		return &ParsedDocument{Text: CleanText(text), Pages: sheets, FileType: "ods"}, nil
	default:
		// Unknown extension: treat as plain text
		text, pages := extractPlain(content)
		fileType := strings.TrimPrefix(ext, ".")
		if fileType == "" {
			fileType = "txt"
		}
		return &ParsedDocument{Text: CleanText(text), Pages: pages, FileType: fileType}, nil
	}
}

// CleanText normalizes line endings, trims each line, and drops empty lines.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
