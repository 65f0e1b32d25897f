package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/vectorstore"
)

// Messages returned to the model when retrieval cannot produce documents.
const (
	// NoKnowledgeBaseMessage is returned when the session has no retriever,
	// i.e. nothing has been ingested yet.
	NoKnowledgeBaseMessage = "No knowledge base has been configured. Please upload documents to create one."

	// NoResultsMessage is returned when retrieval ran but matched nothing.
	NoResultsMessage = "No relevant information was found in the knowledge base for this query. You can try rephrasing the question."
)

// DocumentRetriever returns ranked knowledge-base results for a query.
// *retrieval.Hybrid satisfies it.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string) ([]vectorstore.Result, error)
}

type retrieverKey struct{}

// WithRetriever returns a context carrying the session's retriever. The
// executor sets it before running the tool loop so one registered
// search_documents tool serves every session.
func WithRetriever(ctx context.Context, r DocumentRetriever) context.Context {
	return context.WithValue(ctx, retrieverKey{}, r)
}

// RetrieverFrom extracts the session retriever from the context, or nil when
// the session has no knowledge base.
func RetrieverFrom(ctx context.Context) DocumentRetriever {
	r, _ := ctx.Value(retrieverKey{}).(DocumentRetriever)
	return r
}

// SearchInput defines input for the search_documents tool.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"The question to answer from the uploaded documents"`
}

// DefineSearchDocuments registers the search_documents tool. The retriever is
// resolved per call from the context via WithRetriever.
func DefineSearchDocuments(g *genkit.Genkit, logger log.Logger) ai.Tool {
	return genkit.DefineTool(g, SearchDocumentsName,
		"Use this tool to answer questions about any uploaded documents, including text files and images. "+
			"This is your primary tool for retrieving information. If the user's query mentions a specific filename "+
			"(e.g., 'homework.pdf', 'diagram.png'), you MUST use this tool. It is the only way to access the "+
			"content of the files the user has provided.",
		func(tctx *ai.ToolContext, input SearchInput) (string, error) {
			retriever := RetrieverFrom(tctx.Context)
			if retriever == nil {
				return NoKnowledgeBaseMessage, nil
			}

			logger.Info("searching knowledge base", "query", input.Query)
			results, err := retriever.Retrieve(tctx.Context, input.Query)
			if err != nil {
				return "", fmt.Errorf("knowledge base search: %w", err)
			}
			if len(results) == 0 {
				return NoResultsMessage, nil
			}
			return FormatResults(results), nil
		})
}

// FormatResults renders retrieval results as the context block handed back
// to the model.
func FormatResults(results []vectorstore.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		source := r.Document.Source
		if source == "" {
			source = "N/A"
		}
		parts[i] = fmt.Sprintf("Source: %s\nContent: %s", source, r.Document.Content)
	}
	return strings.Join(parts, "\n\n")
}
