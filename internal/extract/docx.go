package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxDefaultDocumentPath is where the document body usually lives inside
// a .docx zip. [Content_Types].xml can point somewhere else.
const docxDefaultDocumentPath = "word/document.xml"

// contentTypesPath is the part index of an OOXML package.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType marks the main document part in [Content_Types].xml.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// wordprocessingNamespace reports whether an element belongs to the
// WordprocessingML vocabulary. Fixtures that leave the w prefix undeclared
// surface it as the literal prefix.
func wordprocessingNamespace(space string) bool {
	return space == "w" || strings.Contains(space, "wordprocessingml")
}

// docxMainDocumentPath resolves the main document part from
// [Content_Types].xml, or returns the conventional path when the index is
// absent or does not name one.
func docxMainDocumentPath(zr *zip.Reader) string {
	data, found, err := zipFileBytes(zr, contentTypesPath)
	if err != nil || !found {
		return docxDefaultDocumentPath
	}
	var types struct {
		Overrides []struct {
			PartName    string `xml:"PartName,attr"`
			ContentType string `xml:"ContentType,attr"`
		} `xml:"Override"`
	}
	if err := xml.Unmarshal(data, &types); err != nil {
		return docxDefaultDocumentPath
	}
	for _, o := range types.Overrides {
		if o.ContentType == docxMainContentType {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return docxDefaultDocumentPath
}

// extractDOCX extracts text from a .docx package and estimates its page
// count. Text is every w:t run in document order; joining on spaces keeps
// content searchable regardless of paragraph or run attributes. Pages come
// from Word's rendered page break marks when present, otherwise from
// explicit page-type breaks.
func extractDOCX(content []byte) (string, int, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	docPath := docxMainDocumentPath(zr)
	docXML, found, err := zipFileBytes(zr, docPath)
	if err != nil {
		return "", 0, fmt.Errorf("extract DOCX: read %s: %w", docPath, err)
	}
	if !found {
		return "", 0, fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	dec := xml.NewDecoder(bytes.NewReader(docXML))
	var (
		parts          []string
		run            strings.Builder
		inRun          int
		renderedBreaks int
		explicitBreaks int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("extract DOCX: parse %s: %w", docPath, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !wordprocessingNamespace(t.Name.Space) {
				continue
			}
			switch t.Name.Local {
			case "t":
				inRun++
			case "lastRenderedPageBreak":
				renderedBreaks++
			case "br":
				for _, a := range t.Attr {
					if a.Name.Local == "type" && a.Value == "page" {
						explicitBreaks++
					}
				}
			}
		case xml.EndElement:
			if t.Name.Local == "t" && wordprocessingNamespace(t.Name.Space) && inRun > 0 {
				inRun--
				if s := strings.TrimSpace(run.String()); s != "" {
					parts = append(parts, s)
				}
				run.Reset()
			}
		case xml.CharData:
			if inRun > 0 {
				run.Write(t)
			}
		}
	}

	breaks := renderedBreaks
	if explicitBreaks > breaks {
		breaks = explicitBreaks
	}
	return strings.Join(parts, " "), breaks + 1, nil
}
