// Package retrieval fuses dense embedding search with lexical term-overlap
// ranking into one result list for a session's knowledge base.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/vectorstore"
)

// Fusion weights. Dense similarity dominates; the lexical ranker catches
// exact-term matches the embedding space misses.
const (
	denseWeight   = 0.7
	lexicalWeight = 0.3

	// rrfOffset dampens the rank contribution in reciprocal rank fusion.
	rrfOffset = 60
)

// DenseSearcher is the embedding-similarity side of the fusion.
// *vectorstore.Manager satisfies it.
type DenseSearcher interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.Result, error)
}

// Config holds the dependencies for a Hybrid retriever.
type Config struct {
	Dense   DenseSearcher
	Lexical *LexicalIndex // optional; nil falls back to dense-only
	TopK    int
	Logger  log.Logger
}

func (c *Config) validate() error {
	if c.Dense == nil {
		return errors.New("dense searcher is required")
	}
	if c.TopK <= 0 {
		return errors.New("top-k must be positive")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Hybrid combines a dense searcher and an optional lexical index via
// weighted reciprocal rank fusion (0.7 dense / 0.3 lexical). It is rebuilt
// whenever documents are ingested and discarded on collection clear.
type Hybrid struct {
	dense   DenseSearcher
	lexical *LexicalIndex
	topK    int
	logger  log.Logger
}

// NewHybrid creates a Hybrid retriever.
func NewHybrid(cfg Config) (*Hybrid, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}
	return &Hybrid{
		dense:   cfg.Dense,
		lexical: cfg.Lexical,
		topK:    cfg.TopK,
		logger:  cfg.Logger,
	}, nil
}

// Retrieve returns the fused top-k results for the query. When the lexical
// index is absent the dense ranking is returned as-is, with no error.
func (h *Hybrid) Retrieve(ctx context.Context, query string) ([]vectorstore.Result, error) {
	dense, err := h.dense.Search(ctx, query, h.topK)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}

	if h.lexical == nil {
		h.logger.Debug("lexical index absent, dense-only retrieval", "results", len(dense))
		return dense, nil
	}

	lexical := h.lexical.Search(query, h.topK)
	return fuse(dense, lexical, h.topK), nil
}

// fuse merges the two rankings with weighted reciprocal rank fusion,
// deduplicating by document content. Ties break toward whichever document
// entered the fused list first.
func fuse(dense, lexical []vectorstore.Result, k int) []vectorstore.Result {
	type entry struct {
		doc   vectorstore.Document
		score float32
	}
	byContent := make(map[string]*entry)
	var entries []*entry

	accumulate := func(results []vectorstore.Result, weight float32) {
		for rank, r := range results {
			contribution := weight / float32(rrfOffset+rank+1)
			if e, ok := byContent[r.Document.Content]; ok {
				e.score += contribution
				continue
			}
			e := &entry{doc: r.Document, score: contribution}
			byContent[r.Document.Content] = e
			entries = append(entries, e)
		}
	}
	accumulate(dense, denseWeight)
	accumulate(lexical, lexicalWeight)

	// Stable keeps the first-seen order between equal scores.
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].score > entries[b].score
	})
	if len(entries) > k {
		entries = entries[:k]
	}

	fused := make([]vectorstore.Result, 0, len(entries))
	for _, e := range entries {
		fused = append(fused, vectorstore.Result{Document: e.doc, Similarity: e.score})
	}
	return fused
}
