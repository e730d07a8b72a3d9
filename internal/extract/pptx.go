package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// pptxSlidePathPrefix is the path prefix for slide XML files inside a .pptx zip.
const pptxSlidePathPrefix = "ppt/slides/slide"

// atTag matches <a:t>text</a:t> or <a:t xml:space="preserve">text</a:t> (and any other attributes).
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// extractPPTX extracts text from .pptx bytes. PPTX is a ZIP containing ppt/slides/slideN.xml
// (Office Open XML). We extract all <a:t>...</a:t> text nodes from each slide, emit one
// "[Slide N]" section per slide in slide order, and return the slide count.
func extractPPTX(content []byte) (string, int, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("extract PPTX: not a zip: %w", err)
	}

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePathPrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		num, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, pptxSlidePathPrefix), ".xml"))

		rc, err := f.Open()
		if err != nil {
			return "", 0, fmt.Errorf("extract PPTX: open %s: %w", f.Name, err)
		}
		var slideBuf bytes.Buffer
		if _, err := slideBuf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return "", 0, fmt.Errorf("extract PPTX: read %s: %w", f.Name, err)
		}
		_ = rc.Close()

		var b strings.Builder
		for _, p := range atTag.FindAllStringSubmatch(slideBuf.String(), -1) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(p[1]))
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			slides = append(slides, slide{num: num, text: text})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var buf strings.Builder
	for i, s := range slides {
		if i > 0 {
			buf.WriteString("\n\n")
		}
		fmt.Fprintf(&buf, "[Slide %d]\n%s", s.num, s.text)
	}
	pages := len(slides)
	if pages < 1 {
		pages = 1
	}
	return buf.String(), pages, nil
}
