// Package session tracks live tutoring sessions in memory. Sessions expire
// after a sliding TTL; eviction tears down the session's vector collection
// so abandoned sessions never leak storage.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/tutor"
)

// teardownTimeout bounds the background collection drop after eviction.
const teardownTimeout = 30 * time.Second

// Factory creates the Tutor for a new session: a fresh collection, an
// initialized vector store manager, and the session's orchestrator.
type Factory func(ctx context.Context, sessionID string) (*tutor.Tutor, error)

// Config contains the parameters for a Registry.
type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration // optional, defaults to TTL/6
	Factory         Factory
	Logger          log.Logger
}

func (cfg Config) validate() error {
	if cfg.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if cfg.Factory == nil {
		return errors.New("session factory is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Registry holds the live sessions. Reads refresh the TTL, so a session
// only expires after a full TTL of inactivity.
type Registry struct {
	mu      sync.Mutex
	cache   *gocache.Cache
	factory Factory
	logger  log.Logger
	wg      sync.WaitGroup
}

// NewRegistry creates a Registry with background expiry sweeping.
func NewRegistry(cfg Config) (*Registry, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = cfg.TTL / 6
	}

	r := &Registry{
		cache:   gocache.New(cfg.TTL, cleanup),
		factory: cfg.Factory,
		logger:  cfg.Logger,
	}
	r.cache.OnEvicted(func(sessionID string, value any) {
		tut, ok := value.(*tutor.Tutor)
		if !ok {
			return
		}
		r.teardown(sessionID, tut)
	})
	return r, nil
}

// GetOrCreate returns the session's tutor, creating it on first use. The
// session's TTL is refreshed.
func (r *Registry) GetOrCreate(ctx context.Context, sessionID string) (*tutor.Tutor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if value, found := r.cache.Get(sessionID); found {
		tut := value.(*tutor.Tutor)
		r.cache.Set(sessionID, tut, gocache.DefaultExpiration)
		return tut, nil
	}

	tut, err := r.factory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	r.cache.Set(sessionID, tut, gocache.DefaultExpiration)
	r.logger.Info("session created", "session_id", sessionID, "collection", tut.Collection())
	return tut, nil
}

// Get returns an existing session's tutor and refreshes its TTL.
func (r *Registry) Get(sessionID string) (*tutor.Tutor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, found := r.cache.Get(sessionID)
	if !found {
		return nil, false
	}
	tut := value.(*tutor.Tutor)
	r.cache.Set(sessionID, tut, gocache.DefaultExpiration)
	return tut, true
}

// Evict removes a session immediately, triggering its teardown.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(sessionID)
}

// Len returns the number of live sessions, expired entries included until
// the next sweep.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Close evicts every session and waits for all teardowns to finish.
func (r *Registry) Close() {
	r.mu.Lock()
	for sessionID := range r.cache.Items() {
		r.cache.Delete(sessionID)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// teardown drops the evicted session's collection in the background.
func (r *Registry) teardown(sessionID string, tut *tutor.Tutor) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		if err := tut.Teardown(ctx); err != nil {
			r.logger.Warn("session teardown failed",
				"session_id", sessionID, "collection", tut.Collection(), "error", err)
			return
		}
		r.logger.Info("session torn down",
			"session_id", sessionID, "collection", tut.Collection())
	}()
}
