// Package chunker splits raw document text into overlapping fixed-size
// segments along natural boundaries, coarsest separator first.
package chunker

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type Chunker struct {
	config   ChunkerConfig
	splitter textsplitter.RecursiveCharacter
}

func NewWithConfig(config ChunkerConfig) Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(config.ChunkSize),
		textsplitter.WithChunkOverlap(config.ChunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)

	return Chunker{
		config:   config,
		splitter: splitter,
	}
}

// Split breaks text into chunks of at most ChunkSize characters, adjacent
// chunks sharing ChunkOverlap characters of context. Empty input yields an
// empty slice. The result is deterministic for identical input and config.
func (c Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, part)
	}

	return chunks, nil
}
