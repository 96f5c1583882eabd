package history

import (
	"context"
	"sync"
	"time"

	"github.com/xhad/askdocs/internal/models"
)

// Memory is an in-process implementation of both stores, used by tests and
// throwaway runs that should not touch disk.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	docs     map[int64]models.DocumentRecord
	docOrder []int64
	sessions map[string][]models.ChatTurn
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[int64]models.DocumentRecord),
		sessions: make(map[string][]models.ChatTurn),
	}
}

func (m *Memory) CreateDocument(ctx context.Context, filename string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.docs[m.nextID] = models.DocumentRecord{
		FileID:     m.nextID,
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
	}
	m.docOrder = append(m.docOrder, m.nextID)
	return m.nextID, nil
}

func (m *Memory) DeleteDocument(ctx context.Context, fileID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[fileID]; !ok {
		return false, nil
	}
	delete(m.docs, fileID)
	for i, id := range m.docOrder {
		if id == fileID {
			m.docOrder = append(m.docOrder[:i], m.docOrder[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *Memory) ListDocuments(ctx context.Context) ([]models.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]models.DocumentRecord, 0, len(m.docOrder))
	for i := len(m.docOrder) - 1; i >= 0; i-- {
		records = append(records, m.docs[m.docOrder[i]])
	}
	return records, nil
}

func (m *Memory) History(ctx context.Context, sessionID string) ([]models.ChatTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.sessions[sessionID]
	out := make([]models.ChatTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *Memory) AppendTurn(ctx context.Context, sessionID, question, answer, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	m.sessions[sessionID] = append(m.sessions[sessionID],
		models.ChatTurn{Role: models.RoleHuman, Content: question, CreatedAt: now},
		models.ChatTurn{Role: models.RoleAssistant, Content: answer, CreatedAt: now},
	)
	return nil
}
