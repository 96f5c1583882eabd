package models

import "time"

// Chunk is a bounded text segment with its embedding and the id of the
// source document it came from. The ID is assigned by the vector store at
// insertion time and stays stable for the chunk's lifetime.
type Chunk struct {
	ID        string
	Text      string
	Embedding []float32
	FileID    int64
	Seq       int
}

// ScoredChunk pairs a chunk with its distance to a query vector.
// Lower distance means more similar.
type ScoredChunk struct {
	Chunk
	Distance float32
}

// DocumentRecord tracks an uploaded source file, independent of its
// indexed chunks.
type DocumentRecord struct {
	FileID     int64     `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"upload_timestamp"`
}

// Chat roles as stored in session history.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// ChatTurn is a single message within a chat session, in append order.
type ChatTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// QueryInput is the payload of a chat request. SessionID may be empty for
// the first message of a new session.
type QueryInput struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
}

// QueryResponse carries the generated answer and the session it belongs to.
type QueryResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

// DeleteFileRequest identifies a document to remove from the index and the
// record store.
type DeleteFileRequest struct {
	FileID int64 `json:"file_id"`
}
