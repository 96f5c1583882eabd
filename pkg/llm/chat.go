package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"

	"github.com/xhad/askdocs/internal/errs"
	"github.com/xhad/askdocs/internal/models"
)

// Default prompt templates. These are copy, not logic; deployments override
// them through ChatConfig.
const (
	defaultSystemTemplate = "You are a helpful assistant that answers questions based on the provided context and chat history. If the context does not contain the answer, say so instead of guessing."

	defaultContextTemplate = "Context:\n%s\n\nQuestion: %s\nAnswer:"

	defaultContextualizeTemplate = `Given a chat history and the latest user question which might reference context in the chat history, formulate a standalone question which can be understood without the chat history. Do NOT answer the question, just reformulate it if needed and otherwise return it as is.
Chat History:
%s
Question: %s
Standalone question:`

	defaultExpandTemplate = `You are an AI language model assistant. Generate %d different versions of the given user question to retrieve relevant documents from a vector database. Provide alternative phrasings and perspectives, one per line, without numbering.
Original question: %s`
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model                 string
	Temperature           float64
	MaxTokens             int
	BaseURL               string // Ollama server URL
	RateLimit             float64
	SystemTemplate        string
	ContextTemplate       string
	ContextualizeTemplate string
	ExpandTemplate        string
}

// ChatEngine is an engine that uses an LLM to generate chat responses,
// standalone query reformulations and multi-query expansions.
type ChatEngine struct {
	config  ChatConfig
	llm     llms.Model
	limiter *rate.Limiter
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature <= 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 2.0
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = defaultContextTemplate
	}
	if config.ContextualizeTemplate == "" {
		config.ContextualizeTemplate = defaultContextualizeTemplate
	}
	if config.ExpandTemplate == "" {
		config.ExpandTemplate = defaultExpandTemplate
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config:  config,
		llm:     llm,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// callOptions builds the per-call options, overriding the configured model
// when the request names a different one.
func (ce *ChatEngine) callOptions(model string) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}
	if model != "" && model != ce.config.Model {
		opts = append(opts, llms.WithModel(model))
	}
	return opts
}

// Answer generates the final answer from the retrieved chunks, the trimmed
// chat history and the user question, using model when non-empty.
func (ce *ChatEngine) Answer(ctx context.Context, model, question string, history []models.ChatTurn, chunks []models.ScoredChunk) (string, error) {
	var contextBuilder strings.Builder
	for _, chunk := range chunks {
		contextBuilder.WriteString(chunk.Text)
		contextBuilder.WriteString("\n\n")
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, ce.config.SystemTemplate),
	}
	for _, turn := range history {
		role := schema.ChatMessageTypeHuman
		if turn.Role == models.RoleAssistant {
			role = schema.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, turn.Content))
	}
	content = append(content, llms.TextParts(schema.ChatMessageTypeHuman,
		fmt.Sprintf(ce.config.ContextTemplate, contextBuilder.String(), question)))

	if err := ce.limiter.Wait(ctx); err != nil {
		return "", errs.Wrap(errs.KindGenerationUnavailable, err, "rate limiter interrupted")
	}

	response, err := ce.llm.GenerateContent(ctx, content, ce.callOptions(model)...)
	if err != nil {
		return "", errs.Wrap(errs.KindGenerationUnavailable, err, "chat generation failed")
	}
	if len(response.Choices) == 0 {
		return "", errs.New(errs.KindGenerationUnavailable, "model returned no choices")
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}

// Reformulate turns the question plus chat history into a standalone query.
// The instruction forbids answering; the model may only restate or clarify.
func (ce *ChatEngine) Reformulate(ctx context.Context, model string, history []models.ChatTurn, question string) (string, error) {
	if err := ce.limiter.Wait(ctx); err != nil {
		return "", errs.Wrap(errs.KindGenerationUnavailable, err, "rate limiter interrupted")
	}

	prompt := fmt.Sprintf(ce.config.ContextualizeTemplate, renderHistory(history), question)
	out, err := llms.GenerateFromSinglePrompt(ctx, ce.llm, prompt, ce.callOptions(model)...)
	if err != nil {
		return "", errs.Wrap(errs.KindGenerationUnavailable, err, "reformulation failed")
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return question, nil
	}
	return out, nil
}

// Expand produces up to n paraphrases of query exploring distinct phrasings.
// The model returning fewer than n is a recall degradation, not an error.
func (ce *ChatEngine) Expand(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		n = 5
	}

	if err := ce.limiter.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.KindGenerationUnavailable, err, "rate limiter interrupted")
	}

	prompt := fmt.Sprintf(ce.config.ExpandTemplate, n, query)
	out, err := llms.GenerateFromSinglePrompt(ctx, ce.llm, prompt, ce.callOptions("")...)
	if err != nil {
		return nil, errs.Wrap(errs.KindGenerationUnavailable, err, "query expansion failed")
	}

	return SplitExpansions(out, n), nil
}

// SplitExpansions parses the model output into clean query lines, stripping
// bullets and numbering and dropping duplicates, capped at n.
func SplitExpansions(out string, n int) []string {
	var queries []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(out, "\n") {
		line = stripListMarker(line)
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, line)
		if len(queries) == n {
			break
		}
	}

	return queries
}

// stripListMarker removes a leading bullet or "1." / "2)" style numbering.
// Digits not followed by a list delimiter are content ("2024 revenue
// outlook") and stay.
func stripListMarker(line string) string {
	line = strings.TrimLeft(strings.TrimSpace(line), "-* \t")

	rest := strings.TrimLeft(line, "0123456789")
	if rest != line && (strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, ")")) {
		return strings.TrimSpace(rest[1:])
	}
	return strings.TrimSpace(line)
}

func renderHistory(history []models.ChatTurn) string {
	if len(history) == 0 {
		return "(none)"
	}

	var b strings.Builder
	for _, turn := range history {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return b.String()
}
