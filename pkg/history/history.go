// Package history persists the metadata surrounding the index: one record
// per uploaded document and the per-session chat log.
package history

import (
	"context"

	"github.com/xhad/askdocs/internal/models"
)

// DocumentStore tracks uploaded files. The caller creates the record
// before ingestion and deletes it again if ingestion fails.
type DocumentStore interface {
	CreateDocument(ctx context.Context, filename string) (int64, error)
	DeleteDocument(ctx context.Context, fileID int64) (bool, error)
	ListDocuments(ctx context.Context) ([]models.DocumentRecord, error)
}

// SessionStore keeps chat turns per session in append order. AppendTurn
// writes a question/answer pair in one operation so a failed request never
// leaves half a turn behind.
type SessionStore interface {
	History(ctx context.Context, sessionID string) ([]models.ChatTurn, error)
	AppendTurn(ctx context.Context, sessionID, question, answer, model string) error
}
