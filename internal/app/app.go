// Package app assembles the tutoring backend: configuration, Genkit,
// PostgreSQL, object storage, session registries, media generators, the
// voice relay, and the HTTP server.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/murshid-ai/murshid/api"
	"github.com/murshid-ai/murshid/internal/config"
	"github.com/murshid-ai/murshid/internal/document"
	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/session"
	"github.com/murshid-ai/murshid/internal/storage"
)

// App is the application container. Build one with Setup and release its
// resources with Close.
type App struct {
	Config *config.Config

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Store    storage.Store
	Ingestor *document.Ingestor
	Students *session.Registry
	Teachers *session.Registry

	Server *api.Server

	logger   log.Logger
	cleanups []func() // run in reverse order on Close
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.Server.Run(ctx, a.Config.Addr)
}

// Close releases all resources in reverse initialization order. Session
// registries are closed first so collection teardowns still have a live
// database pool.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

func (a *App) onClose(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}
