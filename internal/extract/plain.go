package extract

import (
	"bytes"
	"unicode/utf8"
)

// pageSeparator is the form feed character some text exports use to mark
// page boundaries.
const pageSeparator = '\f'

// extractPlain decodes content as UTF-8 text, replacing invalid sequences
// with the replacement character, and counts form-feed separated pages.
func extractPlain(content []byte) (string, int) {
	pages := bytes.Count(content, []byte{pageSeparator}) + 1
	if !utf8.Valid(content) {
		content = bytes.ToValidUTF8(content, []byte("�"))
	}
	return string(content), pages
}
