// Package store holds the vector index backends. The file backend persists
// to a single path the way the service expects for local deployments; the
// pgvector backend targets a Postgres cluster.
package store

import (
	"context"
	"math"

	"github.com/xhad/askdocs/internal/models"
)

// VectorStore is the nearest-neighbor index over (vector, text, provenance)
// triples. Implementations are safe for concurrent use; mutations are
// durable before they report success.
type VectorStore interface {
	// Add stores chunks whose embeddings were computed by the caller and
	// returns the ids it assigned, in input order.
	Add(ctx context.Context, chunks []models.Chunk) ([]string, error)

	// Search returns up to k chunks ordered by ascending cosine distance,
	// ties broken by insertion order.
	Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)

	// DeleteByDocument removes every chunk tagged with fileID and returns
	// how many were removed. Zero matches is not an error.
	DeleteByDocument(ctx context.Context, fileID int64) (int, error)

	// DeleteByIDs removes the given chunk ids, reporting false when none
	// existed.
	DeleteByIDs(ctx context.Context, ids []string) (bool, error)

	Close() error
}

// cosineDistance returns 1 - cos(a, b). Zero-norm vectors are treated as
// maximally distant.
func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
