package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xhad/askdocs/internal/models"
)

const timeFormat = time.RFC3339Nano

// SQLite backs both the document records and the session log with a single
// database file.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create metadata directory: %v", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %v", err)
	}

	s := &SQLite{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS document_store (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			upload_timestamp TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS application_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			user_query TEXT NOT NULL,
			gpt_response TEXT NOT NULL,
			model TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS application_logs_session_idx
			ON application_logs (session_id)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize metadata schema: %v", err)
		}
	}
	return nil
}

func (s *SQLite) CreateDocument(ctx context.Context, filename string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO document_store (filename, upload_timestamp) VALUES (?, ?)",
		filename, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("failed to insert document record: %v", err)
	}
	return res.LastInsertId()
}

func (s *SQLite) DeleteDocument(ctx context.Context, fileID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM document_store WHERE id = ?", fileID)
	if err != nil {
		return false, fmt.Errorf("failed to delete document record: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLite) ListDocuments(ctx context.Context) ([]models.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, filename, upload_timestamp FROM document_store ORDER BY upload_timestamp DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list document records: %v", err)
	}
	defer rows.Close()

	var records []models.DocumentRecord
	for rows.Next() {
		var rec models.DocumentRecord
		var uploaded string
		if err := rows.Scan(&rec.FileID, &rec.Filename, &uploaded); err != nil {
			return nil, fmt.Errorf("failed to scan document record: %v", err)
		}
		rec.UploadedAt, err = time.Parse(timeFormat, uploaded)
		if err != nil {
			return nil, fmt.Errorf("failed to parse upload timestamp: %v", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLite) History(ctx context.Context, sessionID string) ([]models.ChatTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_query, gpt_response, created_at
		 FROM application_logs WHERE session_id = ?
		 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %v", err)
	}
	defer rows.Close()

	var turns []models.ChatTurn
	for rows.Next() {
		var question, answer, created string
		if err := rows.Scan(&question, &answer, &created); err != nil {
			return nil, fmt.Errorf("failed to scan session turn: %v", err)
		}
		at, err := time.Parse(timeFormat, created)
		if err != nil {
			return nil, fmt.Errorf("failed to parse turn timestamp: %v", err)
		}
		turns = append(turns,
			models.ChatTurn{Role: models.RoleHuman, Content: question, CreatedAt: at},
			models.ChatTurn{Role: models.RoleAssistant, Content: answer, CreatedAt: at},
		)
	}
	return turns, rows.Err()
}

func (s *SQLite) AppendTurn(ctx context.Context, sessionID, question, answer, model string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO application_logs (session_id, user_query, gpt_response, model, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, question, answer, model, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to append session turn: %v", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
