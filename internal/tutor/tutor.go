// Package tutor orchestrates one chat session: query rewriting, routing
// between the tool-enabled agent and image generation, knowledge-base
// lifecycle, and per-session history.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/retrieval"
	"github.com/murshid-ai/murshid/internal/tools"
	"github.com/murshid-ai/murshid/internal/vectorstore"
)

// History roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one stored history turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Event types streamed to the client.
const (
	EventTextChunk     = "text_chunk"
	EventImageResponse = "image-response"
)

// Event is one streamed chunk of a chat turn. Image responses carry base64
// PNG data and are excluded from history.
type Event struct {
	Type    string
	Content string
}

// StreamFunc receives each event of a chat turn in order.
type StreamFunc func(ctx context.Context, ev Event) error

// Config contains all required parameters for a Tutor session.
type Config struct {
	Genkit   *genkit.Genkit
	Manager  *vectorstore.Manager
	Registry *tools.Registry
	ImageGen ImageGenerator // optional; nil disables the image path

	Persona     Persona
	ModelName   string // provider-qualified
	Temperature float64
	MaxTokens   int
	RetrievalK  int

	WebSearchEnabled bool
	RateLimiter      *rate.Limiter // optional
	Logger           log.Logger
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Manager == nil {
		return errors.New("vector store manager is required")
	}
	if cfg.Registry == nil {
		return errors.New("tool registry is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	if cfg.RetrievalK <= 0 {
		return errors.New("retrieval k must be positive")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Tutor owns one chat session. All public methods are safe for concurrent
// use; a session mutex serializes turns and knowledge-base mutation so a
// turn never observes a half-rebuilt retriever.
type Tutor struct {
	mu sync.Mutex

	manager   *vectorstore.Manager
	retriever *retrieval.Hybrid // nil until documents are ingested
	history   []Message

	rewriter *Rewriter
	router   *Router
	executor *Executor
	imageGen ImageGenerator

	persona    Persona
	retrievalK int
	webSearch  bool
	logger     log.Logger
}

// New creates a Tutor session around an initialized vector store manager.
func New(cfg Config) (*Tutor, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid tutor config: %w", err)
	}

	executor, err := NewExecutor(ExecutorConfig{
		Genkit:      cfg.Genkit,
		Registry:    cfg.Registry,
		ModelName:   cfg.ModelName,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		RateLimiter: cfg.RateLimiter,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	persona := cfg.Persona
	if persona == "" {
		persona = PersonaStudent
	}

	t := &Tutor{
		manager:    cfg.Manager,
		rewriter:   NewRewriter(cfg.Genkit, cfg.ModelName, cfg.Temperature, cfg.Logger),
		router:     NewRouter(cfg.Genkit, cfg.ModelName, cfg.Logger),
		executor:   executor,
		imageGen:   cfg.ImageGen,
		persona:    persona,
		retrievalK: cfg.RetrievalK,
		webSearch:  cfg.WebSearchEnabled,
		logger:     cfg.Logger.With("collection", cfg.Manager.Collection()),
	}
	t.logger.Info("tutor session created", "persona", persona)
	return t, nil
}

// Collection returns the session's vector store collection name.
func (t *Tutor) Collection() string { return t.manager.Collection() }

// SetWebSearch toggles the web search tool for subsequent turns.
func (t *Tutor) SetWebSearch(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.webSearch != enabled {
		t.logger.Info("web search status updated", "enabled", enabled)
	}
	t.webSearch = enabled
}

// KnowledgeBaseReady reports whether documents have been ingested.
func (t *Tutor) KnowledgeBaseReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retriever != nil
}

// Ingest adds documents to the session's knowledge base and rebuilds the
// hybrid retriever over the full collection.
func (t *Tutor) Ingest(ctx context.Context, docs []vectorstore.Document) error {
	if len(docs) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.manager.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return t.rebuildRetrieverLocked(ctx)
}

// ClearKnowledgeBase removes every ingested document and discards the
// retriever. The collection stays usable for new ingestion.
func (t *Tutor) ClearKnowledgeBase(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.manager.ClearCollection(ctx); err != nil {
		return err
	}
	t.retriever = nil
	t.logger.Info("knowledge base cleared")
	return nil
}

// Teardown drops the session's collection. Called when the session is
// evicted; the Tutor must not be used afterwards.
func (t *Tutor) Teardown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.manager.Drop(ctx)
}

// History returns a copy of the stored conversation.
func (t *Tutor) History() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]Message, len(t.history))
	copy(cp, t.history)
	return cp
}

// rebuildRetrieverLocked rebuilds the lexical index from the stored
// documents and wires it into a fresh hybrid retriever. Caller holds t.mu.
func (t *Tutor) rebuildRetrieverLocked(ctx context.Context) error {
	all, err := t.manager.Documents(ctx)
	if err != nil {
		return fmt.Errorf("listing documents for lexical index: %w", err)
	}

	hybrid, err := retrieval.NewHybrid(retrieval.Config{
		Dense:   t.manager,
		Lexical: retrieval.NewLexicalIndex(all),
		TopK:    t.retrievalK,
		Logger:  t.logger,
	})
	if err != nil {
		return err
	}
	t.retriever = hybrid
	t.logger.Info("retriever rebuilt", "documents", len(all))
	return nil
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Query         string
	UploadedFiles []string // filenames just uploaded, for rewrite context
	ContextData   string   // student or teaching data blob for the system prompt
}

// Chat runs one turn: rewrite, route, then either the tool-enabled agent
// stream or the image generation path. Events are delivered in order through
// stream. A returned error means the turn produced no usable answer.
func (t *Tutor) Chat(ctx context.Context, req ChatRequest, stream StreamFunc) error {
	if req.Query == "" {
		return errors.New("query is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rewritten, err := t.rewriter.Rewrite(ctx, req.Query, t.history, req.UploadedFiles)
	if err != nil {
		t.logger.Warn("query rewrite failed, using original", "error", err)
		rewritten = req.Query
	}

	decision := t.router.Route(ctx, rewritten)
	if decision.Action == ActionGenerateImage && t.imageGen != nil {
		return t.generateImage(ctx, req.Query, decision.Params, stream)
	}

	return t.runAgent(ctx, req, rewritten, stream)
}

// runAgent executes the tool-enabled turn and records it in history.
func (t *Tutor) runAgent(ctx context.Context, req ChatRequest, rewritten string, stream StreamFunc) error {
	if t.retriever != nil {
		ctx = tools.WithRetriever(ctx, t.retriever)
	}

	answer, err := t.executor.Stream(ctx, TurnInput{
		Query:              rewritten,
		History:            t.history,
		SystemPrompt:       systemPrompt(t.persona, len(t.history) == 0, req.ContextData, time.Now()),
		KnowledgeBaseReady: t.retriever != nil,
		WebSearchEnabled:   t.webSearch,
	}, func(ctx context.Context, chunk string) error {
		return stream(ctx, Event{Type: EventTextChunk, Content: chunk})
	})
	if err != nil {
		return err
	}

	t.history = append(t.history,
		Message{Role: RoleUser, Content: req.Query},
		Message{Role: RoleAssistant, Content: answer},
	)
	return nil
}

// generateImage runs the image path. Successful images are streamed as an
// image-response event and excluded from history; failures degrade to a
// plain text notice recorded as a normal turn.
func (t *Tutor) generateImage(ctx context.Context, originalQuery string, params ImageParams, stream StreamFunc) error {
	if err := stream(ctx, Event{Type: EventTextChunk, Content: GeneratingImageNotice}); err != nil {
		return err
	}

	t.logger.Info("generating image",
		"topic", params.Topic, "visual_type", params.PreferredVisualType)

	imageB64, err := t.imageGen.Generate(ctx, BuildImagePrompt(params))
	if err != nil || imageB64 == "" {
		if err != nil {
			t.logger.Warn("image generation failed", "error", err)
		}
		if streamErr := stream(ctx, Event{Type: EventTextChunk, Content: ImageFailedNotice}); streamErr != nil {
			return streamErr
		}
		t.history = append(t.history,
			Message{Role: RoleUser, Content: originalQuery},
			Message{Role: RoleAssistant, Content: ImageFailedNotice},
		)
		return nil
	}

	return stream(ctx, Event{Type: EventImageResponse, Content: imageB64})
}
