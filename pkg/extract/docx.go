package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"path/filepath"
	"strings"

	"github.com/xhad/askdocs/internal/errs"
)

// documentXML models the parts of word/document.xml we care about.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// docxText extracts paragraph text from a DOCX archive. A DOCX file is a
// ZIP container; the document body lives in word/document.xml.
func docxText(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", errs.Wrap(errs.KindExtractionFailed, err, "failed to open DOCX %s", filepath.Base(path))
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", errs.Wrap(errs.KindExtractionFailed, err, "failed to read DOCX %s", filepath.Base(path))
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", errs.Wrap(errs.KindExtractionFailed, err, "failed to read DOCX %s", filepath.Base(path))
		}

		return parseDocumentXML(content), nil
	}

	return "", errs.New(errs.KindExtractionFailed, "%s has no word/document.xml", filepath.Base(path))
}

func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				result.WriteString(text.Content)
			}
		}
	}

	return strings.TrimSpace(result.String())
}
