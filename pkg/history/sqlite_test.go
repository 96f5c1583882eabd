package history_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/history"
)

func openTestDB(t *testing.T) *history.SQLite {
	t.Helper()
	s, err := history.OpenSQLite(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDocumentLifecycle(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	first, err := s.CreateDocument(ctx, "report.pdf")
	require.NoError(t, err)
	second, err := s.CreateDocument(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Greater(t, second, first)

	records, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "notes.txt", records[0].Filename)
	assert.Equal(t, "report.pdf", records[1].Filename)
	assert.False(t, records[0].UploadedAt.IsZero())

	deleted, err := s.DeleteDocument(ctx, first)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Deleting again reports absence without erroring.
	deleted, err = s.DeleteDocument(ctx, first)
	require.NoError(t, err)
	assert.False(t, deleted)

	records, err = s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second, records[0].FileID)
}

func TestSessionHistory(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	turns, err := s.History(ctx, "unknown-session")
	require.NoError(t, err)
	assert.Empty(t, turns)

	require.NoError(t, s.AppendTurn(ctx, "s1", "first question", "first answer", "mistral"))
	require.NoError(t, s.AppendTurn(ctx, "s1", "second question", "second answer", "mistral"))
	require.NoError(t, s.AppendTurn(ctx, "s2", "other session", "other answer", "mistral"))

	turns, err = s.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 4)

	assert.Equal(t, models.RoleHuman, turns[0].Role)
	assert.Equal(t, "first question", turns[0].Content)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
	assert.Equal(t, "first answer", turns[1].Content)
	assert.Equal(t, "second question", turns[2].Content)
	assert.Equal(t, "second answer", turns[3].Content)

	// Sessions are isolated.
	turns, err = s.History(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "other session", turns[0].Content)
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	ctx := context.Background()

	s, err := history.OpenSQLite(path)
	require.NoError(t, err)
	fileID, err := s.CreateDocument(ctx, "durable.txt")
	require.NoError(t, err)
	require.NoError(t, s.AppendTurn(ctx, "s1", "q", "a", "mistral"))
	require.NoError(t, s.Close())

	s, err = history.OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	records, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, fileID, records[0].FileID)

	turns, err := s.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestMemoryMatchesSQLiteSemantics(t *testing.T) {
	m := history.NewMemory()
	ctx := context.Background()

	first, err := m.CreateDocument(ctx, "a.txt")
	require.NoError(t, err)
	_, err = m.CreateDocument(ctx, "b.txt")
	require.NoError(t, err)

	records, err := m.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b.txt", records[0].Filename)

	deleted, err := m.DeleteDocument(ctx, first)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = m.DeleteDocument(ctx, first)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, m.AppendTurn(ctx, "s1", "q", "a", "mistral"))
	turns, err := m.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleHuman, turns[0].Role)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
}
