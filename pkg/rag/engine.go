// Package rag orchestrates a chat request through its stages: resolve the
// session, reformulate the question into a standalone query, expand it,
// retrieve chunks and generate the answer. Only a fully answered request
// commits anything to the session log.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xhad/askdocs/internal/errs"
	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/history"
)

// stage labels where in the pipeline a request currently is; it is carried
// on errors so callers can see which transition failed.
type stage string

const (
	stageReceived     stage = "received"
	stageReformulated stage = "reformulated"
	stageExpanded     stage = "expanded"
	stageRetrieved    stage = "retrieved"
	stageAnswered     stage = "answered"
)

// Generator is the language-model capability the engine depends on. The
// model argument selects the model per request; empty means the generator's
// default.
type Generator interface {
	Answer(ctx context.Context, model, question string, history []models.ChatTurn, chunks []models.ScoredChunk) (string, error)
	Reformulate(ctx context.Context, model string, history []models.ChatTurn, question string) (string, error)
}

// Retriever fans a standalone query out and fetches the merged chunk set.
type Retriever interface {
	ExpandQuery(ctx context.Context, standalone string) []string
	Retrieve(ctx context.Context, queries []string, kPerQuery int) ([]models.ScoredChunk, error)
}

type EngineConfig struct {
	Model         string
	HistoryWindow int // turns (question/answer pairs) passed to the model
	KPerQuery     int
	DomainQuery   string // standalone query used for vague context-free input
}

type Engine struct {
	config    EngineConfig
	generator Generator
	retriever Retriever
	sessions  history.SessionStore
}

func NewEngine(config EngineConfig, generator Generator, retriever Retriever, sessions history.SessionStore) *Engine {
	if config.HistoryWindow == 0 {
		config.HistoryWindow = 5
	}
	if config.KPerQuery == 0 {
		config.KPerQuery = 4
	}
	if config.DomainQuery == "" {
		config.DomainQuery = "general overview of the indexed documents"
	}

	return &Engine{
		config:    config,
		generator: generator,
		retriever: retriever,
		sessions:  sessions,
	}
}

// Answer runs one chat request through the full pipeline. A failure at any
// stage surfaces as a classified error with no session mutation; the turn
// is appended only after generation succeeds.
func (e *Engine) Answer(ctx context.Context, input models.QueryInput) (models.QueryResponse, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return models.QueryResponse{}, errs.New(errs.KindInvalidInput, "question is required")
	}

	model := input.Model
	if model == "" {
		model = e.config.Model
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	turns, err := e.sessions.History(ctx, sessionID)
	if err != nil {
		return models.QueryResponse{}, stageErr(stageReceived, err)
	}
	turns = trimHistory(turns, e.config.HistoryWindow)

	standalone, err := e.standaloneQuery(ctx, model, turns, question)
	if err != nil {
		return models.QueryResponse{}, stageErr(stageReformulated, err)
	}

	// Expansion failure degrades inside ExpandQuery to the standalone
	// query alone; it never fails the request.
	queries := e.retriever.ExpandQuery(ctx, standalone)

	chunks, err := e.retriever.Retrieve(ctx, queries, e.config.KPerQuery)
	if err != nil {
		return models.QueryResponse{}, stageErr(stageRetrieved, err)
	}

	// Zero retrieved chunks still proceeds; the generator handles the
	// "can't find it" framing.
	answer, err := e.generator.Answer(ctx, model, question, turns, chunks)
	if err != nil {
		return models.QueryResponse{}, stageErr(stageAnswered, err)
	}

	if err := e.sessions.AppendTurn(ctx, sessionID, question, answer, model); err != nil {
		return models.QueryResponse{}, stageErr(stageAnswered, err)
	}

	return models.QueryResponse{
		Answer:    answer,
		SessionID: sessionID,
		Model:     model,
	}, nil
}

// standaloneQuery rewrites the question so it is understandable without
// the chat history. With no history there is nothing to resolve: the
// question passes through verbatim, except vague greeting-like input which
// maps to the configured broad domain query instead of going out raw.
func (e *Engine) standaloneQuery(ctx context.Context, model string, turns []models.ChatTurn, question string) (string, error) {
	if len(turns) == 0 {
		if isVague(question) {
			return e.config.DomainQuery, nil
		}
		return question, nil
	}
	return e.generator.Reformulate(ctx, model, turns, question)
}

var greetings = map[string]bool{
	"hi":           true,
	"hello":        true,
	"hey":          true,
	"yo":           true,
	"sup":          true,
	"whats up":     true,
	"what's up":    true,
	"how are you":  true,
	"good morning": true,
	"good evening": true,
	"help":         true,
}

func isVague(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	q = strings.TrimRight(q, "?!. ")
	if len([]rune(q)) < 3 {
		return true
	}
	return greetings[q]
}

// trimHistory keeps the most recent window question/answer pairs.
func trimHistory(turns []models.ChatTurn, window int) []models.ChatTurn {
	limit := window * 2
	if len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}

func stageErr(s stage, err error) error {
	return fmt.Errorf("chat pipeline failed at %s: %w", s, err)
}
