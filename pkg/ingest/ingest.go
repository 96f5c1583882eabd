// Package ingest orchestrates file ingestion: text extraction, chunking,
// embedding and a single batched index insert. It never touches the
// document record store; the caller owns the record lifecycle.
package ingest

import (
	"context"
	"path/filepath"

	"github.com/xhad/askdocs/internal/errs"
	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/chunker"
	"github.com/xhad/askdocs/pkg/extract"
	"github.com/xhad/askdocs/pkg/store"
)

// Embedder is the slice of the embedding client the pipeline needs.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type Pipeline struct {
	chunker  chunker.Chunker
	embedder Embedder
	store    store.VectorStore
}

func New(chunker chunker.Chunker, embedder Embedder, store store.VectorStore) *Pipeline {
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
	}
}

// Ingest extracts, chunks, embeds and indexes the file at path, tagging
// every chunk with fileID. Extraction completes before the index is
// touched, so any failure up to the final Add leaves the index unchanged.
func (p *Pipeline) Ingest(ctx context.Context, path string, fileID int64) error {
	text, err := extract.Text(ctx, path)
	if err != nil {
		return err
	}

	parts, err := p.chunker.Split(text)
	if err != nil {
		return errs.Wrap(errs.KindExtractionFailed, err, "failed to chunk %s", filepath.Base(path))
	}
	if len(parts) == 0 {
		return errs.New(errs.KindExtractionFailed, "no chunks produced from %s", filepath.Base(path))
	}

	vectors, err := p.embedder.EmbedTexts(ctx, parts)
	if err != nil {
		return err
	}

	chunks := make([]models.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = models.Chunk{
			Text:      part,
			Embedding: vectors[i],
			FileID:    fileID,
			Seq:       i,
		}
	}

	if _, err := p.store.Add(ctx, chunks); err != nil {
		return err
	}
	return nil
}
