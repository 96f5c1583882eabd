// Package extract pulls plain text out of uploaded documents. Extraction
// happens entirely before any chunking or indexing so a bad file can never
// leave the index partially mutated.
package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"

	"github.com/xhad/askdocs/internal/errs"
)

// SupportedExtensions lists the file types accepted for ingestion.
var SupportedExtensions = []string{".pdf", ".docx", ".txt"}

// Supported reports whether the extension of path is accepted.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Text dispatches on the file extension and returns the extracted plain
// text. Unsupported extensions fail before any file I/O.
func Text(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var text string
	var err error

	switch ext {
	case ".pdf":
		text, err = pdfText(ctx, path)
	case ".docx":
		text, err = docxText(path)
	case ".txt":
		text, err = plainText(ctx, path)
	default:
		return "", errs.New(errs.KindUnsupportedFormat, "unsupported file type: %s", ext)
	}

	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errs.New(errs.KindExtractionFailed, "no extractable text in %s", filepath.Base(path))
	}
	return text, nil
}

func pdfText(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(errs.KindExtractionFailed, err, "failed to open %s", filepath.Base(path))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", errs.Wrap(errs.KindExtractionFailed, err, "failed to stat %s", filepath.Base(path))
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return "", errs.Wrap(errs.KindExtractionFailed, err, "failed to read PDF %s", filepath.Base(path))
	}

	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.PageContent) == "" {
			continue
		}
		pages = append(pages, doc.PageContent)
	}

	return strings.Join(pages, "\n\n"), nil
}

func plainText(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(errs.KindExtractionFailed, err, "failed to open %s", filepath.Base(path))
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return "", errs.Wrap(errs.KindExtractionFailed, err, "failed to read %s", filepath.Base(path))
	}

	var b strings.Builder
	for _, doc := range docs {
		b.WriteString(doc.PageContent)
	}
	return b.String(), nil
}
