package document

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/storage"
	"github.com/murshid-ai/murshid/internal/vectorstore"
)

// ingestConcurrency bounds the per-file goroutines of one batch.
const ingestConcurrency = 4

// FileRef names one uploaded file: the storage key it was stored under and
// the original filename shown to the model as source metadata.
type FileRef struct {
	Key  string
	Name string
}

// Result reports one batch's outcome. A failed file contributes zero
// documents without failing the batch.
type Result struct {
	Documents []vectorstore.Document
	Processed int
	Failed    map[string]error // keyed by original filename
}

// Config holds the dependencies for an Ingestor.
type Config struct {
	Store        storage.Store
	Describer    ImageDescriber
	ChunkSize    int
	ChunkOverlap int
	Logger       log.Logger
}

func (c *Config) validate() error {
	if c.Store == nil {
		return errors.New("object store is required")
	}
	if c.Describer == nil {
		return errors.New("image describer is required")
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Ingestor converts uploaded files into chunked documents.
type Ingestor struct {
	store        storage.Store
	describer    ImageDescriber
	chunkSize    int
	chunkOverlap int
	logger       log.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(cfg Config) (*Ingestor, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}
	return &Ingestor{
		store:        cfg.Store,
		describer:    cfg.Describer,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		logger:       cfg.Logger,
	}, nil
}

// Ingest processes the batch with one goroutine per file. Per-file failures
// are collected in Result.Failed and logged; they never abort the batch.
func (ing *Ingestor) Ingest(ctx context.Context, files []FileRef) (*Result, error) {
	result := &Result{Failed: make(map[string]error)}
	if len(files) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)

	for _, file := range files {
		g.Go(func() error {
			docs, err := ing.ingestFile(gctx, file)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ing.logger.Warn("file ingestion failed",
					"file", file.Name, "key", file.Key, "error", err)
				result.Failed[file.Name] = err
				return nil
			}
			result.Documents = append(result.Documents, docs...)
			result.Processed++
			return nil
		})
	}

	// Workers never return errors; Wait only surfaces context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ing.logger.Info("batch ingested",
		"files", len(files), "processed", result.Processed,
		"failed", len(result.Failed), "documents", len(result.Documents))
	return result, nil
}

func (ing *Ingestor) ingestFile(ctx context.Context, file FileRef) ([]vectorstore.Document, error) {
	data, err := ing.store.Get(ctx, file.Key)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", file.Key, err)
	}

	kind, err := Detect(file.Name)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindImage:
		description, err := ing.describer.Describe(ctx, file.Name, data)
		if err != nil {
			return nil, err
		}
		return []vectorstore.Document{{
			Content: description,
			Source:  file.Name,
			Type:    vectorstore.TypeImage,
		}}, nil

	default:
		text, err := LoadText(file.Name, data)
		if err != nil {
			return nil, err
		}
		chunks := SplitText(text, ing.chunkSize, ing.chunkOverlap)
		docs := make([]vectorstore.Document, 0, len(chunks))
		for _, chunk := range chunks {
			docs = append(docs, vectorstore.Document{
				Content: chunk,
				Source:  file.Name,
				Type:    vectorstore.TypeText,
			})
		}
		return docs, nil
	}
}
