// Package vectorstore manages per-session vector collections backed by
// PostgreSQL + pgvector.
//
// Each tutoring session owns one collection, named from a nanosecond
// timestamp at session creation so collections never collide across
// sessions. Documents are embedded on write and searched by cosine
// similarity on read.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/murshid-ai/murshid/internal/log"
)

// VectorDimension is the embedding width of the documents table schema.
// gemini-embedding-001 supports truncation to 768 via OutputDimensionality.
const VectorDimension = 768

var (
	// ErrCollectionNameEmpty indicates the manager was built without a collection name.
	ErrCollectionNameEmpty = errors.New("collection name is empty")

	// ErrNotInitialized indicates an operation requiring an initialized
	// collection ran before InitializeCollection.
	ErrNotInitialized = errors.New("collection not initialized")

	// ErrEmptyEmbedding indicates the embedder returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding returned")
)

const searchTimeout = 10 * time.Second

// Querier is the database access the manager needs. *pgxpool.Pool satisfies it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config holds the dependencies for a Manager.
type Config struct {
	DB         Querier
	Embedder   ai.Embedder
	Collection string
	Logger     log.Logger
}

func (c *Config) validate() error {
	if c.DB == nil {
		return errors.New("db querier is required")
	}
	if c.Embedder == nil {
		return errors.New("embedder is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Manager owns one session's vector collection. It is safe for concurrent
// use once initialized; initialization itself is guarded by the owning
// session's lock.
type Manager struct {
	db          Querier
	embedder    ai.Embedder
	collection  string
	logger      log.Logger
	initialized bool
}

// NewManager creates a Manager for the given collection. The collection is
// not touched until InitializeCollection.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid vectorstore config: %w", err)
	}
	return &Manager{
		db:         cfg.DB,
		embedder:   cfg.Embedder,
		collection: cfg.Collection,
		logger:     cfg.Logger,
	}, nil
}

// Collection returns the collection name this manager owns.
func (m *Manager) Collection() string { return m.collection }

// Initialized reports whether InitializeCollection has succeeded.
func (m *Manager) Initialized() bool { return m.initialized }

// InitializeCollection creates the collection row if absent. Idempotent:
// an existing collection is reused. Fails if the collection name is unset.
func (m *Manager) InitializeCollection(ctx context.Context) error {
	if m.collection == "" {
		return ErrCollectionNameEmpty
	}

	_, err := m.db.Exec(ctx,
		`INSERT INTO collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		m.collection)
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", m.collection, err)
	}

	m.initialized = true
	m.logger.Debug("collection initialized", "collection", m.collection)
	return nil
}

// AddDocuments embeds and upserts the given documents. The collection must
// already be initialized. Errors propagate; there is no partial-failure
// recovery inside one batch.
func (m *Manager) AddDocuments(ctx context.Context, docs []Document) error {
	if !m.initialized {
		return ErrNotInitialized
	}
	if len(docs) == 0 {
		return nil
	}

	input := make([]*ai.Document, 0, len(docs))
	for _, doc := range docs {
		input = append(input, &ai.Document{
			Content: []*ai.Part{ai.NewTextPart(doc.Content)},
		})
	}

	resp, err := m.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return fmt.Errorf("embedding %d documents: %w", len(docs), err)
	}
	if len(resp.Embeddings) != len(docs) {
		return fmt.Errorf("%w: got %d embeddings for %d documents",
			ErrEmptyEmbedding, len(resp.Embeddings), len(docs))
	}

	for i, doc := range docs {
		if len(resp.Embeddings[i].Embedding) == 0 {
			return fmt.Errorf("%w: document %d", ErrEmptyEmbedding, i)
		}
		embedding := pgvector.NewVector(resp.Embeddings[i].Embedding)

		_, err := m.db.Exec(ctx,
			`INSERT INTO documents (id, collection, content, source, doc_type, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), m.collection, doc.Content, doc.Source, doc.Type, &embedding)
		if err != nil {
			return fmt.Errorf("inserting document %d (%s): %w", i, doc.Source, err)
		}
	}

	m.logger.Debug("documents added", "collection", m.collection, "count", len(docs))
	return nil
}

// ClearCollection deletes then recreates the collection. Deletion errors are
// logged and swallowed so the session always ends with a usable empty
// collection; recreation errors are returned.
func (m *Manager) ClearCollection(ctx context.Context) error {
	if m.collection == "" {
		return ErrCollectionNameEmpty
	}

	// Cascade removes the collection's documents with it.
	if _, err := m.db.Exec(ctx,
		`DELETE FROM collections WHERE name = $1`, m.collection); err != nil {
		m.logger.Warn("collection deletion failed, recreating anyway",
			"collection", m.collection, "error", err)
	}

	return m.InitializeCollection(ctx)
}

// Drop removes the collection and its documents entirely. Used by session
// teardown; afterwards the manager must be re-initialized before use.
func (m *Manager) Drop(ctx context.Context) error {
	if m.collection == "" {
		return ErrCollectionNameEmpty
	}
	if _, err := m.db.Exec(ctx,
		`DELETE FROM collections WHERE name = $1`, m.collection); err != nil {
		return fmt.Errorf("dropping collection %q: %w", m.collection, err)
	}
	m.initialized = false
	return nil
}

// Count returns the number of documents in the collection.
func (m *Manager) Count(ctx context.Context) (int, error) {
	var count int
	err := m.db.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE collection = $1`, m.collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Search returns the top-k documents by embedding cosine similarity.
// A 10-second timeout bounds the embed plus query round trip.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if !m.initialized {
		return nil, ErrNotInitialized
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	resp, err := m.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{{Content: []*ai.Part{ai.NewTextPart(query)}}},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: query", ErrEmptyEmbedding)
	}
	queryEmbedding := pgvector.NewVector(resp.Embeddings[0].Embedding)

	rows, err := m.db.Query(queryCtx,
		`SELECT content, source, doc_type, 1 - (embedding <=> $1) AS similarity
		 FROM documents
		 WHERE collection = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		&queryEmbedding, m.collection, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Document.Content, &r.Document.Source,
			&r.Document.Type, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return results, nil
}

// Documents returns every document in the collection, insertion-ordered.
// The lexical index is rebuilt from this after each ingestion.
func (m *Manager) Documents(ctx context.Context) ([]Document, error) {
	rows, err := m.db.Query(ctx,
		`SELECT content, source, doc_type FROM documents
		 WHERE collection = $1 ORDER BY created_at`, m.collection)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Content, &d.Source, &d.Type); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading document rows: %w", err)
	}
	return docs, nil
}

// CollectionName derives a unique collection name for a new session from a
// high-resolution timestamp.
func CollectionName(now time.Time) string {
	return fmt.Sprintf("rag_session_%d", now.UnixNano())
}
