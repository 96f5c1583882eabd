package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/internal/errs"
	"github.com/xhad/askdocs/pkg/chunker"
	"github.com/xhad/askdocs/pkg/ingest"
	"github.com/xhad/askdocs/pkg/store"
)

const testDim = 4

// fakeEmbedder returns a deterministic unit vector per text and records
// every batch it was asked to embed.
type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, testDim)
		v[i%testDim] = 1
		vectors[i] = v
	}
	return vectors, nil
}

func newTestPipeline(t *testing.T) (*ingest.Pipeline, *fakeEmbedder, *store.FileStore) {
	t.Helper()

	index, err := store.Open(store.FileStoreConfig{
		Path:      filepath.Join(t.TempDir(), "index.bin"),
		VectorDim: testDim,
	})
	require.NoError(t, err)

	embedder := &fakeEmbedder{}
	split := chunker.NewWithConfig(chunker.ChunkerConfig{ChunkSize: 50, ChunkOverlap: 10})
	return ingest.New(split, embedder, index), embedder, index
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestIngestIndexesAllChunks(t *testing.T) {
	pipeline, embedder, index := newTestPipeline(t)

	path := writeFile(t, "doc.txt",
		"first paragraph with enough words to split\n\nsecond paragraph with more words here")

	err := pipeline.Ingest(context.Background(), path, 42)
	require.NoError(t, err)

	require.Len(t, embedder.batches, 1)
	assert.Equal(t, len(embedder.batches[0]), index.Count())

	// Every chunk is searchable and tagged with the document id.
	query := make([]float32, testDim)
	query[0] = 1
	results, err := index.Search(context.Background(), query, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, sc := range results {
		assert.Equal(t, int64(42), sc.FileID)
	}
}

func TestIngestAssignsSequentialSeq(t *testing.T) {
	pipeline, _, index := newTestPipeline(t)

	path := writeFile(t, "doc.txt",
		"alpha paragraph padded with extra words\n\nbeta paragraph padded with extra words\n\ngamma paragraph padded with extra words")

	require.NoError(t, pipeline.Ingest(context.Background(), path, 1))

	query := make([]float32, testDim)
	query[0] = 1
	results, err := index.Search(context.Background(), query, 100)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	seqs := make(map[int]bool)
	for _, sc := range results {
		seqs[sc.Seq] = true
	}
	for i := 0; i < len(results); i++ {
		assert.Truef(t, seqs[i], "missing seq %d", i)
	}
}

func TestIngestUnsupportedFileLeavesIndexUntouched(t *testing.T) {
	pipeline, embedder, index := newTestPipeline(t)

	path := writeFile(t, "page.html", "<html>hello</html>")

	err := pipeline.Ingest(context.Background(), path, 1)
	require.Error(t, err)
	assert.Equal(t, errs.KindUnsupportedFormat, errs.KindOf(err))
	assert.Empty(t, embedder.batches)
	assert.Equal(t, 0, index.Count())
}

func TestIngestEmptyFileLeavesIndexUntouched(t *testing.T) {
	pipeline, embedder, index := newTestPipeline(t)

	path := writeFile(t, "blank.txt", "   \n\n  ")

	err := pipeline.Ingest(context.Background(), path, 1)
	require.Error(t, err)
	assert.Equal(t, errs.KindExtractionFailed, errs.KindOf(err))
	assert.Empty(t, embedder.batches)
	assert.Equal(t, 0, index.Count())
}

func TestIngestEmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	pipeline, embedder, index := newTestPipeline(t)
	embedder.err = errors.New("ollama unreachable")

	path := writeFile(t, "doc.txt", "some perfectly fine content")

	err := pipeline.Ingest(context.Background(), path, 1)
	require.Error(t, err)
	assert.Equal(t, 0, index.Count())
}
