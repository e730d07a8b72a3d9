package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// odfContentPath is the main content stream inside an OpenDocument zip.
const odfContentPath = "content.xml"

// zipFileBytes reads one named file out of a zip archive.
func zipFileBytes(zr *zip.Reader, name string) ([]byte, bool, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, true, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, true, err
		}
		return data, true, nil
	}
	return nil, false, nil
}

// odfContent is what a single pass over content.xml yields: the visible
// text in document order, plus the presentation page and spreadsheet table
// counts so the caller can report them as pages.
type odfContent struct {
	text   string
	pages  int
	tables int
}

// odfNamespace reports whether an element namespace belongs to the
// OpenDocument vocabulary named by prefix. Files in the wild declare the
// full urn; hand-built fixtures often leave the prefix undeclared, which
// the xml decoder surfaces as the literal prefix.
func odfNamespace(space, prefix string) bool {
	return space == prefix ||
		strings.Contains(space, "opendocument:xmlns:"+prefix)
}

func odfTextElement(n xml.Name) bool {
	switch n.Local {
	case "p", "h", "span":
		return odfNamespace(n.Space, "text")
	}
	return false
}

// parseOpenDocument walks content.xml with a streaming decoder, collecting
// character data inside text:p, text:h and text:span elements and counting
// draw:page and table:table elements along the way.
func parseOpenDocument(content []byte, kind string) (*odfContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	contentXML, found, err := zipFileBytes(zr, odfContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: read %s: %w", kind, odfContentPath, err)
	}
	if !found {
		return nil, fmt.Errorf("extract %s: %s not found", kind, odfContentPath)
	}

	dec := xml.NewDecoder(bytes.NewReader(contentXML))
	var (
		out   odfContent
		parts []string
		depth int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("extract %s: parse %s: %w", kind, odfContentPath, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case odfTextElement(t.Name):
				depth++
			case t.Name.Local == "page" && odfNamespace(t.Name.Space, "draw"):
				out.pages++
			case t.Name.Local == "table" && odfNamespace(t.Name.Space, "table"):
				out.tables++
			}
		case xml.EndElement:
			if odfTextElement(t.Name) && depth > 0 {
				depth--
			}
		case xml.CharData:
			if depth > 0 {
				if s := strings.TrimSpace(string(t)); s != "" {
					parts = append(parts, s)
				}
			}
		}
	}
	out.text = strings.Join(parts, " ")
	return &out, nil
}

// extractODP extracts text from an OpenDocument presentation and reports
// its slide count.
func extractODP(content []byte) (string, int, error) {
	doc, err := parseOpenDocument(content, "ODP")
	if err != nil {
		return "", 0, err
	}
	slides := doc.pages
	if slides < 1 {
		slides = 1
	}
	return doc.text, slides, nil
}

// extractODS extracts cell text from an OpenDocument spreadsheet and
// reports its sheet count.
func extractODS(content []byte) (string, int, error) {
	doc, err := parseOpenDocument(content, "ODS")
	if err != nil {
		return "", 0, err
	}
	sheets := doc.tables
	if sheets < 1 {
		sheets = 1
	}
	return doc.text, sheets, nil
}
