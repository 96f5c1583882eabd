package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/internal/models"
)

// Integration tests against a real Postgres with the pgvector extension.
// Skipped unless DATABASE_URL is set.

func pgTestStore(t *testing.T) *PGStore {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set, skipping pgvector integration test")
	}

	table := fmt.Sprintf("chunks_test_%d", time.Now().UnixNano())
	s, err := NewPGStoreWithConfig(PGStoreConfig{
		ConnString: connString,
		TableName:  table,
		VectorDim:  testDim,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		s.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+table)
		s.Close()
	})
	return s
}

func TestPGStoreAddAndSearch(t *testing.T) {
	s := pgTestStore(t)
	ctx := context.Background()

	ids, err := s.Add(ctx, []models.Chunk{
		chunk("exact", 1, 0, vec(1, 0, 0, 0)),
		chunk("orthogonal", 1, 1, vec(0, 1, 0, 0)),
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	results, err := s.Search(ctx, vec(1, 0, 0, 0), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Text)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestPGStoreDeleteByDocument(t *testing.T) {
	s := pgTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, []models.Chunk{
		chunk("doc1 a", 1, 0, vec(1, 0, 0, 0)),
		chunk("doc1 b", 1, 1, vec(0, 1, 0, 0)),
		chunk("doc2 a", 2, 0, vec(0, 0, 1, 0)),
	})
	require.NoError(t, err)

	removed, err := s.DeleteByDocument(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = s.DeleteByDocument(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	results, err := s.Search(ctx, vec(0, 0, 1, 0), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc2 a", results[0].Text)
}

func TestPGStoreDeleteByIDs(t *testing.T) {
	s := pgTestStore(t)
	ctx := context.Background()

	ids, err := s.Add(ctx, []models.Chunk{
		chunk("keep", 1, 0, vec(1, 0, 0, 0)),
		chunk("drop", 1, 1, vec(0, 1, 0, 0)),
	})
	require.NoError(t, err)

	deleted, err := s.DeleteByIDs(ctx, ids[1:])
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteByIDs(ctx, []string{"no-such-id"})
	require.NoError(t, err)
	assert.False(t, deleted)
}
