package retrieval

import (
	"sort"
	"strings"
	"unicode"

	"github.com/murshid-ai/murshid/internal/vectorstore"
)

// LexicalIndex is an in-memory term-overlap ranker over one session's
// documents. It is rebuilt from the collection contents after each
// ingestion and discarded on collection clear.
type LexicalIndex struct {
	docs   []vectorstore.Document
	tokens []map[string]struct{}
}

// NewLexicalIndex builds an index over the given documents.
func NewLexicalIndex(docs []vectorstore.Document) *LexicalIndex {
	idx := &LexicalIndex{
		docs:   docs,
		tokens: make([]map[string]struct{}, len(docs)),
	}
	for i, doc := range docs {
		idx.tokens[i] = tokenSet(doc.Content)
	}
	return idx
}

// Search returns the top-k documents by normalized query-term overlap.
// Documents sharing no terms with the query are omitted.
func (idx *LexicalIndex) Search(query string, k int) []vectorstore.Result {
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return nil
	}

	type scored struct {
		pos   int
		score float32
	}
	var matches []scored
	for i, docTokens := range idx.tokens {
		var overlap int
		for tok := range queryTokens {
			if _, ok := docTokens[tok]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		matches = append(matches, scored{
			pos:   i,
			score: float32(overlap) / float32(len(queryTokens)),
		})
	}

	// Stable keeps insertion order between equal scores.
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	results := make([]vectorstore.Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, vectorstore.Result{
			Document:   idx.docs[m.pos],
			Similarity: m.score,
		})
	}
	return results
}

// tokenSet lower-cases and splits on non-alphanumeric runes, dropping
// single-character tokens.
func tokenSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}
