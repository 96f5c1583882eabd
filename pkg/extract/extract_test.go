package extract_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/internal/errs"
	"github.com/xhad/askdocs/pkg/extract"
)

func TestSupported(t *testing.T) {
	assert.True(t, extract.Supported("report.pdf"))
	assert.True(t, extract.Supported("notes.docx"))
	assert.True(t, extract.Supported("readme.txt"))
	assert.True(t, extract.Supported("SHOUTING.TXT"))

	assert.False(t, extract.Supported("page.html"))
	assert.False(t, extract.Supported("data.csv"))
	assert.False(t, extract.Supported("archive.docx.zip"))
	assert.False(t, extract.Supported("noextension"))
}

func TestTextFromPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	content := "first line\n\nsecond paragraph"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	text, err := extract.Text(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, content, text)
}

func TestTextFromDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	writeDocx(t, path, []string{"Quarterly results improved.", "Revenue grew in all regions."})

	text, err := extract.Text(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Quarterly results improved.")
	assert.Contains(t, text, "Revenue grew in all regions.")
}

func TestTextUnsupportedExtension(t *testing.T) {
	// The file does not exist: the extension check must fire before any I/O.
	_, err := extract.Text(context.Background(), "/nonexistent/page.html")
	require.Error(t, err)
	assert.Equal(t, errs.KindUnsupportedFormat, errs.KindOf(err))
}

func TestTextEmptyPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n\t\n"), 0644))

	_, err := extract.Text(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, errs.KindExtractionFailed, errs.KindOf(err))
}

func TestTextTruncatedPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte{}, 0644))

	_, err := extract.Text(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, errs.KindExtractionFailed, errs.KindOf(err))
}

func TestTextMissingFile(t *testing.T) {
	_, err := extract.Text(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	require.Error(t, err)
	assert.Equal(t, errs.KindExtractionFailed, errs.KindOf(err))
}

// writeDocx builds a minimal but structurally valid .docx with one paragraph
// per entry in paragraphs.
func writeDocx(t *testing.T, path string, paragraphs []string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)

	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		doc += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	doc += `</w:body></w:document>`

	entry, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(doc))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
}
