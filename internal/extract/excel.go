package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel extracts text from .xlsx bytes with one "[Sheet: name]"
// section per sheet, returning the sheet count.
func extractExcel(content []byte) (string, int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", 0, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var buf strings.Builder
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", 0, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		fmt.Fprintf(&buf, "[Sheet: %s]\n", sheet)
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	pages := len(sheets)
	if pages < 1 {
		pages = 1
	}
	return strings.TrimSpace(buf.String()), pages, nil
}
