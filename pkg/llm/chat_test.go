package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/askdocs/internal/models"
)

func TestNewWithConfig(t *testing.T) {
	engine, err := NewWithConfig(ChatConfig{Temperature: 0.7})
	require.NoError(t, err)
	require.NotNil(t, engine)

	assert.Equal(t, "mistral", engine.config.Model)
	assert.Equal(t, 2000, engine.config.MaxTokens)
	assert.Equal(t, "http://localhost:11434", engine.config.BaseURL)
	assert.Equal(t, 2.0, engine.config.RateLimit)
	assert.Equal(t, defaultSystemTemplate, engine.config.SystemTemplate)
	assert.Equal(t, defaultContextualizeTemplate, engine.config.ContextualizeTemplate)
}

func TestNewWithConfigValidation(t *testing.T) {
	_, err := NewWithConfig(ChatConfig{Temperature: 0})
	assert.Error(t, err)

	_, err = NewWithConfig(ChatConfig{Temperature: 1.5})
	assert.Error(t, err)

	_, err = NewWithConfig(ChatConfig{Temperature: 0.7, MaxTokens: -1})
	assert.Error(t, err)
}

func TestSplitExpansions(t *testing.T) {
	out := `1. What were the quarterly earnings?
2) How did revenue change this quarter?
- Summarize the financial results
* Summarize the financial results
How profitable was the last quarter?`

	queries := SplitExpansions(out, 5)
	assert.Equal(t, []string{
		"What were the quarterly earnings?",
		"How did revenue change this quarter?",
		"Summarize the financial results",
		"How profitable was the last quarter?",
	}, queries)
}

func TestSplitExpansionsKeepsLeadingDigitsInContent(t *testing.T) {
	out := `2024 revenue outlook
3 ways costs changed
1. an actually numbered item
10) another numbered item`

	queries := SplitExpansions(out, 5)
	assert.Equal(t, []string{
		"2024 revenue outlook",
		"3 ways costs changed",
		"an actually numbered item",
		"another numbered item",
	}, queries)
}

func TestSplitExpansionsCapsAtN(t *testing.T) {
	out := "one\ntwo\nthree\nfour\nfive\nsix"

	queries := SplitExpansions(out, 3)
	assert.Equal(t, []string{"one", "two", "three"}, queries)
}

func TestSplitExpansionsSkipsBlankLines(t *testing.T) {
	out := "\n\n  \nfirst query\n\n\nsecond query\n"

	queries := SplitExpansions(out, 5)
	assert.Equal(t, []string{"first query", "second query"}, queries)
}

func TestSplitExpansionsEmptyOutput(t *testing.T) {
	assert.Empty(t, SplitExpansions("", 5))
	assert.Empty(t, SplitExpansions("   \n- \n3. ", 5))
}

func TestRenderHistory(t *testing.T) {
	assert.Equal(t, "(none)", renderHistory(nil))

	out := renderHistory([]models.ChatTurn{
		{Role: models.RoleHuman, Content: "what is in the report?"},
		{Role: models.RoleAssistant, Content: "it covers Q3 results"},
	})
	assert.Equal(t, "human: what is in the report?\nassistant: it covers Q3 results\n", out)
}
