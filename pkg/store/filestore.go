package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/xhad/askdocs/internal/errs"
	"github.com/xhad/askdocs/internal/models"
)

// bootstrapText seeds a freshly initialized index so the persisted
// structure is never empty. The entry is inert: search filters it out and
// the first real Add purges it.
const bootstrapText = "Initialize empty vector store"

type FileStoreConfig struct {
	Path      string
	VectorDim int
}

// FileStore is a brute-force cosine index held in memory and persisted as a
// single gob blob. Every mutation is written to a temp file and renamed
// over the committed one, so a crash mid-save never corrupts the previous
// version. Single writer; readers may run concurrently.
type FileStore struct {
	mu     sync.RWMutex
	config FileStoreConfig
	chunks []models.Chunk // insertion order
	byDoc  map[int64][]string
	seeded bool // bootstrap entry still present
}

type snapshot struct {
	VectorDim int
	Seeded    bool
	Chunks    []models.Chunk
}

// Open loads the index persisted at config.Path, or initializes a fresh
// one and persists it immediately so subsequent loads are stable. A
// corrupt or unreadable file is reported and replaced with a fresh index,
// never a crash.
func Open(config FileStoreConfig) (*FileStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("index path is required")
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	s := &FileStore{
		config: config,
		byDoc:  make(map[int64][]string),
	}

	data, err := os.ReadFile(config.Path)
	switch {
	case os.IsNotExist(err):
		s.seedLocked()
	case err != nil:
		log.Printf("warning: %v", errs.Wrap(errs.KindIndexCorrupt, err, "index at %s unreadable, reinitializing", config.Path))
		s.seedLocked()
	default:
		var snap snapshot
		if decErr := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); decErr != nil {
			log.Printf("warning: %v", errs.Wrap(errs.KindIndexCorrupt, decErr, "index at %s corrupt, reinitializing", config.Path))
			s.seedLocked()
		} else {
			s.chunks = snap.Chunks
			s.seeded = snap.Seeded
			if snap.VectorDim != 0 {
				s.config.VectorDim = snap.VectorDim
			}
			s.rebuildByDocLocked()
			return s, nil
		}
	}

	if err := s.persistLocked(); err != nil {
		return nil, errs.Wrap(errs.KindIndexPersistFailed, err, "failed to persist fresh index at %s", config.Path)
	}
	return s, nil
}

func (s *FileStore) Add(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	for i, chunk := range chunks {
		if len(chunk.Embedding) != s.config.VectorDim {
			return nil, fmt.Errorf("chunk %d has dimension %d, index expects %d",
				i, len(chunk.Embedding), s.config.VectorDim)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seeded {
		s.purgeBootstrapLocked()
	}

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		chunk.ID = uuid.NewString()
		ids[i] = chunk.ID
		s.chunks = append(s.chunks, chunk)
		s.byDoc[chunk.FileID] = append(s.byDoc[chunk.FileID], chunk.ID)
	}

	if err := s.persistLocked(); err != nil {
		s.reloadLocked()
		return nil, errs.Wrap(errs.KindIndexPersistFailed, err, "add not committed")
	}
	return ids, nil
}

func (s *FileStore) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if len(vector) != s.config.VectorDim {
		return nil, fmt.Errorf("query has dimension %d, index expects %d",
			len(vector), s.config.VectorDim)
	}
	if k <= 0 {
		k = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.ScoredChunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if chunk.FileID < 0 {
			continue // bootstrap entry
		}
		results = append(results, models.ScoredChunk{
			Chunk:    chunk,
			Distance: cosineDistance(vector, chunk.Embedding),
		})
	}

	// Stable sort keeps insertion order for equal distances.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *FileStore) DeleteByDocument(ctx context.Context, fileID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byDoc[fileID]
	if len(ids) == 0 {
		return 0, nil
	}

	kept := s.chunks[:0]
	for _, chunk := range s.chunks {
		if chunk.FileID != fileID {
			kept = append(kept, chunk)
		}
	}
	removed := len(s.chunks) - len(kept)
	s.chunks = kept
	delete(s.byDoc, fileID)

	if err := s.persistLocked(); err != nil {
		s.reloadLocked()
		return 0, errs.Wrap(errs.KindIndexPersistFailed, err, "delete not committed")
	}
	return removed, nil
}

func (s *FileStore) DeleteByIDs(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}

	target := make(map[string]bool, len(ids))
	for _, id := range ids {
		target[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	for _, chunk := range s.chunks {
		if !target[chunk.ID] {
			kept = append(kept, chunk)
		}
	}
	removed := len(s.chunks) - len(kept)
	if removed == 0 {
		return false, nil
	}
	s.chunks = kept
	s.rebuildByDocLocked()

	if err := s.persistLocked(); err != nil {
		s.reloadLocked()
		return false, errs.Wrap(errs.KindIndexPersistFailed, err, "delete not committed")
	}
	return true, nil
}

// Count returns the number of live chunks, excluding the bootstrap entry.
func (s *FileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, chunk := range s.chunks {
		if chunk.FileID >= 0 {
			count++
		}
	}
	return count
}

func (s *FileStore) Close() error {
	// Every mutation persists before returning; nothing left to flush.
	return nil
}

func (s *FileStore) seedLocked() {
	s.chunks = []models.Chunk{{
		ID:        "bootstrap",
		Text:      bootstrapText,
		Embedding: make([]float32, s.config.VectorDim),
		FileID:    -1,
	}}
	s.byDoc = make(map[int64][]string)
	s.seeded = true
}

func (s *FileStore) purgeBootstrapLocked() {
	kept := s.chunks[:0]
	for _, chunk := range s.chunks {
		if chunk.FileID >= 0 {
			kept = append(kept, chunk)
		}
	}
	s.chunks = kept
	s.seeded = false
}

func (s *FileStore) rebuildByDocLocked() {
	s.byDoc = make(map[int64][]string)
	for _, chunk := range s.chunks {
		if chunk.FileID < 0 {
			continue
		}
		s.byDoc[chunk.FileID] = append(s.byDoc[chunk.FileID], chunk.ID)
	}
}

// persistLocked writes the full snapshot to a temp file and renames it over
// the committed one.
func (s *FileStore) persistLocked() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot{
		VectorDim: s.config.VectorDim,
		Seeded:    s.seeded,
		Chunks:    s.chunks,
	}); err != nil {
		return err
	}

	if dir := filepath.Dir(s.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := s.config.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.config.Path)
}

// reloadLocked restores the in-memory state from the last committed file
// after a failed persist, so memory never diverges from the reported
// outcome.
func (s *FileStore) reloadLocked() {
	data, err := os.ReadFile(s.config.Path)
	if err != nil {
		log.Printf("warning: failed to reload index after persist failure: %v", err)
		return
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		log.Printf("warning: failed to decode index after persist failure: %v", err)
		return
	}
	s.chunks = snap.Chunks
	s.seeded = snap.Seeded
	s.rebuildByDocLocked()
}
