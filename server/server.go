// Package server exposes the QA backend over a JSON HTTP API: chat,
// document upload, listing and deletion. It is thin plumbing around the
// engine, the ingestion pipeline and the stores.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/xhad/askdocs/internal/errs"
	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/extract"
	"github.com/xhad/askdocs/pkg/history"
	"github.com/xhad/askdocs/pkg/store"
)

// Answerer runs one chat request end to end.
type Answerer interface {
	Answer(ctx context.Context, input models.QueryInput) (models.QueryResponse, error)
}

// Ingestor indexes a file under an existing document record id.
type Ingestor interface {
	Ingest(ctx context.Context, path string, fileID int64) error
}

type Config struct {
	Addr           string
	UploadDir      string
	MaxUploadBytes int64
}

type Server struct {
	config   Config
	engine   Answerer
	pipeline Ingestor
	index    store.VectorStore
	docs     history.DocumentStore
}

func New(config Config, engine Answerer, pipeline Ingestor, index store.VectorStore, docs history.DocumentStore) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.UploadDir == "" {
		config.UploadDir = "data/uploads"
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = 32 << 20
	}

	return &Server{
		config:   config,
		engine:   engine,
		pipeline: pipeline,
		index:    index,
		docs:     docs,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", requireMethod(http.MethodPost, s.handleChat))
	mux.HandleFunc("/upload-doc", requireMethod(http.MethodPost, s.handleUpload))
	mux.HandleFunc("/list-docs", requireMethod(http.MethodGet, s.handleListDocs))
	mux.HandleFunc("/delete-doc", requireMethod(http.MethodPost, s.handleDeleteDoc))
	return mux
}

// requireMethod enforces the HTTP method for a route, matching the behavior
// of Go 1.22 method-qualified ServeMux patterns on older toolchains.
func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) ListenAndServe() error {
	log.Printf("listening on %s", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.Handler())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var input models.QueryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidInput, err, "invalid request body"))
		return
	}

	response, err := s.engine.Answer(r.Context(), input)
	if err != nil {
		log.Printf("chat failed for session %q: %v", input.SessionID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidInput, err, "missing file field"))
		return
	}
	defer file.Close()

	// Reject unsupported extensions before any core work begins.
	if !extract.Supported(header.Filename) {
		writeError(w, errs.New(errs.KindUnsupportedFormat,
			"unsupported file type %s, allowed: .pdf, .docx, .txt", filepath.Ext(header.Filename)))
		return
	}

	tempPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		writeError(w, errs.Wrap(errs.KindInternal, err, "failed to store upload"))
		return
	}
	defer os.Remove(tempPath)

	// The record exists before ingestion and is rolled back on failure,
	// so at-rest state never shows a record from a failed ingestion.
	fileID, err := s.docs.CreateDocument(r.Context(), header.Filename)
	if err != nil {
		writeError(w, errs.Wrap(errs.KindInternal, err, "failed to create document record"))
		return
	}

	if err := s.pipeline.Ingest(r.Context(), tempPath, fileID); err != nil {
		// The request context may already be canceled (client gone); the
		// rollback must still run or the record is orphaned.
		if _, delErr := s.docs.DeleteDocument(context.WithoutCancel(r.Context()), fileID); delErr != nil {
			log.Printf("failed to roll back document record %d: %v", fileID, delErr)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("File %s uploaded and indexed.", header.Filename),
		"file_id": fileID,
	})
}

func (s *Server) handleListDocs(w http.ResponseWriter, r *http.Request) {
	records, err := s.docs.ListDocuments(r.Context())
	if err != nil {
		writeError(w, errs.Wrap(errs.KindInternal, err, "failed to list documents"))
		return
	}
	if records == nil {
		records = []models.DocumentRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.KindInvalidInput, err, "invalid request body"))
		return
	}

	removed, err := s.index.DeleteByDocument(r.Context(), req.FileID)
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := s.docs.DeleteDocument(r.Context(), req.FileID)
	if err != nil {
		writeError(w, errs.Wrap(errs.KindInternal, err,
			"deleted %d chunks but failed to delete document record %d", removed, req.FileID))
		return
	}

	if removed == 0 && !deleted {
		writeError(w, errs.New(errs.KindNotFound, "no document found with file_id %d", req.FileID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Successfully deleted document with file_id %d.", req.FileID),
	})
}

func (s *Server) saveUpload(file io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return "", err
	}

	// Keep the original extension so ingestion dispatch still works.
	out, err := os.CreateTemp(s.config.UploadDir, "upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case errs.KindUnsupportedFormat, errs.KindInvalidInput:
		status = http.StatusBadRequest
	case errs.KindExtractionFailed:
		status = http.StatusUnprocessableEntity
	case errs.KindNotFound:
		status = http.StatusNotFound
	}

	var body errorBody
	body.Error.Kind = string(kind)
	var classified *errs.Error
	if errors.As(err, &classified) {
		body.Error.Message = classified.Msg
	} else {
		body.Error.Message = err.Error()
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
