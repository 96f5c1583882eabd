// Package retriever widens recall by fanning a standalone query out into
// several paraphrases, searching the index per query and merging the
// results into one bounded, deduplicated set.
package retriever

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/store"
)

// Expander produces paraphrases of a query. Returning fewer than requested
// is fine.
type Expander interface {
	Expand(ctx context.Context, query string, n int) ([]string, error)
}

// QueryEmbedder maps a query string to its vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type RetrieverConfig struct {
	Expansions int
	KPerQuery  int
	FinalK     int
}

type Retriever struct {
	config   RetrieverConfig
	expander Expander
	embedder QueryEmbedder
	store    store.VectorStore
}

func NewWithConfig(config RetrieverConfig, expander Expander, embedder QueryEmbedder, store store.VectorStore) *Retriever {
	if config.Expansions == 0 {
		config.Expansions = 5
	}
	if config.KPerQuery == 0 {
		config.KPerQuery = 4
	}
	if config.FinalK == 0 {
		config.FinalK = 7
	}

	return &Retriever{
		config:   config,
		expander: expander,
		embedder: embedder,
		store:    store,
	}
}

// ExpandQuery returns the standalone query plus its paraphrases. A failed
// expansion degrades to the standalone query alone rather than failing the
// request.
func (r *Retriever) ExpandQuery(ctx context.Context, standalone string) []string {
	queries := []string{standalone}

	more, err := r.expander.Expand(ctx, standalone, r.config.Expansions)
	if err != nil {
		log.Printf("warning: query expansion failed, falling back to standalone query: %v", err)
		return queries
	}

	for _, q := range more {
		if strings.EqualFold(q, standalone) {
			continue
		}
		queries = append(queries, q)
	}
	return queries
}

// Retrieve searches the index once per query and merges the per-query
// top-k by ascending distance. Exact text duplicates collapse to their
// closest occurrence; the merged set is truncated to FinalK.
func (r *Retriever) Retrieve(ctx context.Context, queries []string, kPerQuery int) ([]models.ScoredChunk, error) {
	if kPerQuery <= 0 {
		kPerQuery = r.config.KPerQuery
	}

	var merged []models.ScoredChunk
	seen := make(map[string]int) // chunk text -> index into merged

	for _, query := range queries {
		vector, err := r.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, err
		}

		results, err := r.store.Search(ctx, vector, kPerQuery)
		if err != nil {
			return nil, err
		}

		for _, sc := range results {
			if sc.FileID < 0 {
				continue // never surface the bootstrap entry
			}
			if at, ok := seen[sc.Text]; ok {
				if sc.Distance < merged[at].Distance {
					merged[at] = sc
				}
				continue
			}
			seen[sc.Text] = len(merged)
			merged = append(merged, sc)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})

	if len(merged) > r.config.FinalK {
		merged = merged[:r.config.FinalK]
	}
	return merged, nil
}
