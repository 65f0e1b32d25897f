package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	coreapi "github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/murshid-ai/murshid/api"
	"github.com/murshid-ai/murshid/db"
	"github.com/murshid-ai/murshid/internal/config"
	"github.com/murshid-ai/murshid/internal/document"
	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/media"
	"github.com/murshid-ai/murshid/internal/session"
	"github.com/murshid-ai/murshid/internal/storage"
	"github.com/murshid-ai/murshid/internal/tools"
	"github.com/murshid-ai/murshid/internal/tutor"
	"github.com/murshid-ai/murshid/internal/vectorstore"
	"github.com/murshid-ai/murshid/internal/voice"
)

// Setup creates and initializes the application. On error everything
// already initialized is released; on success call Close.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, logger: logger}
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	if cfg.TracingEnabled {
		a.onClose(provideOtelShutdown(ctx, cfg, logger))
	}

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.onClose(pool.Close)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q",
			cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	store, err := provideStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	ingestor, err := document.NewIngestor(document.Config{
		Store:        store,
		Describer:    document.NewVisionDescriber(g, cfg.FullVisionModelName()),
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	a.Ingestor = ingestor

	searcher := provideSearcher(cfg, logger)
	imageEngine := provideImageEngine(ctx, cfg, logger)

	registry := provideToolRegistry(g, searcher, logger)
	a.Students, err = provideRegistry(cfg, g, pool, embedder, registry, imageEngine,
		tutor.PersonaStudent, logger)
	if err != nil {
		return nil, err
	}
	a.onClose(a.Students.Close)
	a.Teachers, err = provideRegistry(cfg, g, pool, embedder, registry, imageEngine,
		tutor.PersonaTeacher, logger)
	if err != nil {
		return nil, err
	}
	a.onClose(a.Teachers.Close)

	apiCfg := api.Config{
		Students: a.Students,
		Teachers: a.Teachers,
		Store:    store,
		Ingestor: ingestor,
		Logger:   logger,
	}
	if err := provideMedia(&apiCfg, cfg, g, searcher, imageEngine, logger); err != nil {
		return nil, err
	}
	if relay, err := provideVoice(cfg, searcher, logger); err != nil {
		return nil, err
	} else if relay != nil {
		apiCfg.Voice = relay
	}

	server, err := api.NewServer(apiCfg)
	if err != nil {
		return nil, err
	}
	a.Server = server

	return a, nil
}

// provideOtelShutdown registers an OTLP span exporter on Genkit's tracer
// provider and returns its shutdown hook.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	tracing.TracerProvider().RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	logger.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.ConnString(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit
	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
	default:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.GeminiAPIKey}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
	}
	logger.Info("genkit initialized", "provider", cfg.Provider, "model", cfg.ModelName)
	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	if cfg.Provider == config.ProviderOpenAI {
		return genkit.LookupEmbedder(g, coreapi.NewName("openai", cfg.EmbedderModel))
	}
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}

// provideStorage returns the S3 store when configured and falls back to the
// in-memory store for local development.
func provideStorage(ctx context.Context, cfg *config.Config, logger log.Logger) (storage.Store, error) {
	if cfg.StorageEndpoint == "" {
		logger.Warn("no object storage configured, uploads are held in memory")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewS3Store(ctx, storage.S3Config{
		Endpoint:  cfg.StorageEndpoint,
		Region:    cfg.StorageRegion,
		Bucket:    cfg.StorageBucket,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Logger:    logger,
	})
}

// provideSearcher builds the web search client. Without an API key search
// is disabled and every consumer degrades.
func provideSearcher(cfg *config.Config, logger log.Logger) *tools.WebSearcher {
	searcher, err := tools.NewWebSearcher(tools.WebSearchConfig{
		APIKey:  cfg.WebSearchAPIKey,
		BaseURL: cfg.WebSearchBaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Warn("web search disabled", "error", err)
		return nil
	}
	return searcher
}

// provideImageEngine builds the Imagen client. The Gemini API serves image
// generation regardless of the chat provider.
func provideImageEngine(ctx context.Context, cfg *config.Config, logger log.Logger) *media.ImageEngine {
	engine, err := media.NewImageEngine(ctx, media.ImageConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.ImageModel,
		Logger: logger,
	})
	if err != nil {
		logger.Warn("image generation disabled", "error", err)
		return nil
	}
	return engine
}

func provideToolRegistry(g *genkit.Genkit, searcher *tools.WebSearcher, logger log.Logger) *tools.Registry {
	toolList := []ai.Tool{tools.DefineSearchDocuments(g, logger)}
	if searcher != nil {
		toolList = append(toolList, tools.DefineWebSearch(g, searcher, logger))
	}
	return tools.NewRegistry(toolList...)
}

// provideRegistry builds a session registry whose factory creates one vector
// store collection and tutor per session.
func provideRegistry(cfg *config.Config, g *genkit.Genkit, pool *pgxpool.Pool,
	embedder ai.Embedder, registry *tools.Registry, imageEngine *media.ImageEngine,
	persona tutor.Persona, logger log.Logger) (*session.Registry, error) {

	var imageGen tutor.ImageGenerator
	if imageEngine != nil {
		imageGen = imageEngine
	}

	factory := func(ctx context.Context, id string) (*tutor.Tutor, error) {
		manager, err := vectorstore.NewManager(vectorstore.Config{
			DB:         pool,
			Embedder:   embedder,
			Collection: vectorstore.CollectionName(time.Now()),
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		if err := manager.InitializeCollection(ctx); err != nil {
			return nil, err
		}
		return tutor.New(tutor.Config{
			Genkit:           g,
			Manager:          manager,
			Registry:         registry,
			ImageGen:         imageGen,
			Persona:          persona,
			ModelName:        cfg.FullModelName(),
			Temperature:      float64(cfg.Temperature),
			MaxTokens:        cfg.MaxTokens,
			RetrievalK:       cfg.RetrievalK,
			WebSearchEnabled: true,
			Logger:           logger.With("session_id", id),
		})
	}

	return session.NewRegistry(session.Config{
		TTL:     cfg.SessionTTL,
		Factory: factory,
		Logger:  logger.With("persona", string(persona)),
	})
}

// provideMedia wires the standalone generation endpoints into the server
// config. Components without credentials stay nil and answer 503.
func provideMedia(apiCfg *api.Config, cfg *config.Config, g *genkit.Genkit,
	searcher *tools.WebSearcher, imageEngine *media.ImageEngine, logger log.Logger) error {

	var mediaSearcher media.Searcher
	if searcher != nil {
		mediaSearcher = searcher
		apiCfg.Searcher = mediaSearcher
	}

	assessments, err := media.NewAssessmentGenerator(media.AssessmentConfig{
		Genkit:    g,
		ModelName: cfg.FullModelName(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	apiCfg.Assessments = assessments

	teaching, err := media.NewTeachingGenerator(media.TeachingConfig{
		Genkit:    g,
		ModelName: cfg.FullModelName(),
		Searcher:  mediaSearcher,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	apiCfg.Teaching = teaching

	if cfg.SlidesAPIKey != "" {
		slides, err := media.NewSlidesClient(media.SlidesConfig{
			APIKey:  cfg.SlidesAPIKey,
			BaseURL: cfg.SlidesBaseURL,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		apiCfg.Slides = slides
	} else {
		logger.Warn("presentation generation disabled, no slides API key")
	}

	if imageEngine != nil {
		apiCfg.Images = imageEngine
		comics, err := media.NewComicsGenerator(media.ComicsConfig{
			Genkit:    g,
			ModelName: cfg.FullModelName(),
			Renderer:  imageEngine,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		apiCfg.Comics = comics
	}

	return nil
}

// provideVoice builds the realtime relay when an OpenAI key is present.
func provideVoice(cfg *config.Config, searcher *tools.WebSearcher, logger log.Logger) (*voice.Relay, error) {
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("voice relay disabled, no OpenAI API key")
		return nil, nil
	}

	var voiceSearcher voice.Searcher
	if searcher != nil {
		voiceSearcher = searcher
	}
	return voice.NewRelay(voice.Config{
		UpstreamURL: cfg.RealtimeURL,
		APIKey:      cfg.OpenAIAPIKey,
		Searcher:    voiceSearcher,
		Logger:      logger,
	})
}
