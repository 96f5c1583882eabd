package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/askdocs/internal/errs"
	"github.com/xhad/askdocs/internal/models"
)

type PGStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// PGStore is the pgvector-backed index for deployments where the corpus
// outgrows a single file. Postgres provides durability per statement, so
// it needs no bootstrap entry and no explicit save step.
type PGStore struct {
	config PGStoreConfig
	pool   *pgxpool.Pool
}

func NewPGStoreWithConfig(config PGStoreConfig) (*PGStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	s := &PGStore{
		config: config,
		pool:   pool,
	}

	if err := s.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PGStore) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	// pos preserves insertion order for deterministic tie-breaking.
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			pos BIGSERIAL,
			content TEXT NOT NULL,
			file_id BIGINT NOT NULL,
			seq INTEGER NOT NULL,
			embedding vector(%d)
		)`, s.config.TableName, s.config.VectorDim)

	_, err = s.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		s.config.TableName, s.config.TableName)

	_, err = s.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	createDocIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_file_id_idx ON %s (file_id)`,
		s.config.TableName, s.config.TableName)

	_, err = s.pool.Exec(ctx, createDocIndex)
	if err != nil {
		return fmt.Errorf("failed to create file_id index: %v", err)
	}

	return nil
}

func (s *PGStore) Add(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindIndexPersistFailed, err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, file_id, seq, embedding)
		VALUES ($1, $2, $3, $4, $5)`,
		s.config.TableName)

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = uuid.NewString()
		_, err = tx.Exec(ctx, stmt,
			ids[i],
			chunk.Text,
			chunk.FileID,
			chunk.Seq,
			pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return nil, errs.Wrap(errs.KindIndexPersistFailed, err, "failed to insert chunk")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errs.Wrap(errs.KindIndexPersistFailed, err, "add not committed")
	}

	return ids, nil
}

func (s *PGStore) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = 5
	}

	query := fmt.Sprintf(`
		SELECT id, content, file_id, seq, embedding <=> $1 AS distance
		FROM %s
		ORDER BY distance, pos
		LIMIT $2`,
		s.config.TableName)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %v", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		var distance float64
		if err := rows.Scan(&sc.ID, &sc.Text, &sc.FileID, &sc.Seq, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		sc.Distance = float32(distance)
		results = append(results, sc)
	}

	return results, rows.Err()
}

func (s *PGStore) DeleteByDocument(ctx context.Context, fileID int64) (int, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE file_id = $1", s.config.TableName)

	tag, err := s.pool.Exec(ctx, stmt, fileID)
	if err != nil {
		return 0, errs.Wrap(errs.KindIndexPersistFailed, err, "delete not committed")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGStore) DeleteByIDs(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", s.config.TableName)

	tag, err := s.pool.Exec(ctx, stmt, ids)
	if err != nil {
		return false, errs.Wrap(errs.KindIndexPersistFailed, err, "delete not committed")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
