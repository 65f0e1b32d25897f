// Package api provides the HTTP surface of the tutoring backend.
//
// Endpoints:
//
//	POST /api/chat               student tutoring turn (SSE stream)
//	POST /api/teacher/chat       teacher assistant turn (SSE stream)
//	POST /api/documents/upload   knowledge base upload (multipart)
//	POST /api/assessment         test generation (JSON)
//	POST /api/teaching-content   teaching material generation (JSON)
//	POST /api/presentation       slide deck generation (JSON)
//	POST /api/image              educational image generation (JSON)
//	POST /api/web-search         curated resource search (JSON)
//	POST /api/comics             comic strip generation (SSE stream)
//	GET  /ws/voice/student       realtime voice relay (WebSocket)
//	GET  /ws/voice/teacher       realtime voice relay (WebSocket)
//	GET  /health                 liveness probe
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/murshid-ai/murshid/internal/document"
	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/media"
	"github.com/murshid-ai/murshid/internal/session"
	"github.com/murshid-ai/murshid/internal/storage"
	"github.com/murshid-ai/murshid/internal/voice"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against Slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// AssessmentGenerator produces formatted test papers.
type AssessmentGenerator interface {
	Generate(ctx context.Context, req media.AssessmentRequest) (string, error)
}

// TeachingGenerator produces teaching materials.
type TeachingGenerator interface {
	Generate(ctx context.Context, req media.TeachingRequest) (string, error)
}

// SlidesGenerator produces slide decks.
type SlidesGenerator interface {
	Generate(ctx context.Context, req media.PresentationRequest) (*media.PresentationResult, error)
}

// ImageGenerator renders a prompt to base64 PNG data.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ComicsStreamer produces comic strips as an event stream.
type ComicsStreamer interface {
	Stream(ctx context.Context, req media.ComicsRequest, emit media.ComicEmitFunc) error
}

// Config wires the server's dependencies. Students, Ingestor, Store, and
// Logger are required; the rest degrade to 503 responses when nil.
type Config struct {
	Students *session.Registry
	Teachers *session.Registry
	Store    storage.Store
	Ingestor *document.Ingestor

	Assessments AssessmentGenerator
	Teaching    TeachingGenerator
	Slides      SlidesGenerator
	Images      ImageGenerator
	Comics      ComicsStreamer
	Searcher    media.Searcher
	Voice       *voice.Relay

	Logger log.Logger
}

func (c Config) validate() error {
	if c.Students == nil {
		return errors.New("student session registry is required")
	}
	if c.Store == nil {
		return errors.New("object store is required")
	}
	if c.Ingestor == nil {
		return errors.New("document ingestor is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Server is the tutoring backend's HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s := &Server{mux: mux, logger: cfg.Logger}

	chat := &chatHandler{students: cfg.Students, teachers: cfg.Teachers, logger: cfg.Logger}
	mux.HandleFunc("POST /api/chat", chat.handleStudent)
	mux.HandleFunc("POST /api/teacher/chat", chat.handleTeacher)

	docs := &documentsHandler{
		sessions: cfg.Students,
		store:    cfg.Store,
		ingestor: cfg.Ingestor,
		logger:   cfg.Logger,
	}
	mux.HandleFunc("POST /api/documents/upload", docs.handleUpload)

	mediaHandler := &mediaHandler{
		assessments: cfg.Assessments,
		teaching:    cfg.Teaching,
		slides:      cfg.Slides,
		images:      cfg.Images,
		comics:      cfg.Comics,
		searcher:    cfg.Searcher,
		logger:      cfg.Logger,
	}
	mux.HandleFunc("POST /api/assessment", mediaHandler.handleAssessment)
	mux.HandleFunc("POST /api/teaching-content", mediaHandler.handleTeachingContent)
	mux.HandleFunc("POST /api/presentation", mediaHandler.handlePresentation)
	mux.HandleFunc("POST /api/image", mediaHandler.handleImage)
	mux.HandleFunc("POST /api/web-search", mediaHandler.handleWebSearch)
	mux.HandleFunc("POST /api/comics", mediaHandler.handleComics)

	if cfg.Voice != nil {
		mux.HandleFunc("GET /ws/voice/student", cfg.Voice.StudentHandler())
		mux.HandleFunc("GET /ws/voice/teacher", cfg.Voice.TeacherHandler())
	}

	mux.HandleFunc("GET /health", handleHealth)

	return s, nil
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → mux.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled.
// Write timeouts are left unset: chat, comics, and voice hold long-lived
// streaming connections.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
