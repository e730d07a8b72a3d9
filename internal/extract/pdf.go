package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDF extracts text from PDF bytes and returns the page count.
func extractPDF(content []byte) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		if _, err := buf.WriteString(text); err != nil {
			return "", 0, fmt.Errorf("write page %d: %w", i+1, err)
		}
		if i < numPages-1 {
			buf.WriteByte('\n')
		}
	}
	if numPages < 1 {
		numPages = 1
	}
	return buf.String(), numPages, nil
}
