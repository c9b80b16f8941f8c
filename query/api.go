// Package query is the data-fetching layer: declared endpoints, a keyed
// result cache, subscriptions, and declarative tag invalidation keeping
// cached server data in sync after mutations.
package query

import (
	"context"
	"sync"
	"time"

	"go.trai.ch/requery/internal/adapters/logger"
	"go.trai.ch/requery/internal/adapters/telemetry"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/requery/internal/engine/cache"
	"go.trai.ch/requery/store"
)

// Tag classifies cached data for invalidation. See domain.Tag.
type Tag = domain.Tag

// CacheKey identifies a cache entry. See domain.CacheKey.
type CacheKey = domain.CacheKey

// NewTag creates a tag for a specific resource.
func NewTag(tagType, id string) Tag { return domain.NewTag(tagType, id) }

// TypeTag creates the type-wildcard form of a tag.
func TypeTag(tagType string) Tag { return domain.TypeTag(tagType) }

// Config configures an API.
type Config struct {
	// Fetcher executes requests built by endpoint request builders.
	// Required unless every endpoint uses Fn.
	Fetcher ports.Fetcher
	// TagTypes is the closed registry of tag type names.
	TagTypes []string
	// KeepUnusedFor is the retention window for entries with no
	// subscribers. Defaults to 60s.
	KeepUnusedFor time.Duration
	// RefetchParallelism bounds concurrent invalidation-triggered
	// refetches. Defaults to the number of CPUs.
	RefetchParallelism int
	// Mode enables strict tag validation in development.
	Mode store.Mode
	// Logger defaults to a no-op logger.
	Logger ports.Logger
	// Tracer defaults to a no-op tracer.
	Tracer ports.Tracer
	// Snapshots enables SaveSnapshot and RestoreSnapshot when set.
	Snapshots ports.SnapshotStore
}

// API owns a set of endpoints and the cache behind them.
type API struct {
	cache     *cache.Cache
	fetcher   ports.Fetcher
	logger    ports.Logger
	tracer    ports.Tracer
	snapshots ports.SnapshotStore

	mu       sync.RWMutex
	dispatch store.Dispatch
}

// New creates an API.
func New(cfg Config) (*API, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.NewNoop()
	}

	a := &API{
		fetcher:   cfg.Fetcher,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
		snapshots: cfg.Snapshots,
	}

	a.cache = cache.New(cache.Config{
		TagTypes:           cfg.TagTypes,
		KeepUnusedFor:      cfg.KeepUnusedFor,
		RefetchParallelism: cfg.RefetchParallelism,
		Strict:             cfg.Mode == store.ModeDevelopment,
		Logger:             cfg.Logger,
		Tracer:             cfg.Tracer,
		OnEvent:            a.onEvent,
	})

	return a, nil
}

// InvalidateTags marks every cache entry whose provided tags intersect the
// given set as stale, refetching entries with active subscribers.
func (a *API) InvalidateTags(ctx context.Context, tags ...Tag) error {
	_, err := a.cache.Invalidate(ctx, tags)
	return err
}

// Middleware returns a store middleware that connects the API to a store:
// dispatched InvalidateTagsAction values reach the cache, and cache
// lifecycle events flow through the store as actions.
func (a *API) Middleware() store.Middleware {
	return func(next store.Dispatch) store.Dispatch {
		a.bind(next)
		return func(ctx context.Context, action store.Action) error {
			if inv, ok := action.(InvalidateTagsAction); ok {
				if err := a.InvalidateTags(ctx, inv.Tags...); err != nil {
					return err
				}
			}
			return next(ctx, action)
		}
	}
}

// SaveSnapshot persists the fulfilled cache entries to the snapshot store.
func (a *API) SaveSnapshot() error {
	if a.snapshots == nil {
		return nil
	}
	return a.snapshots.Save(a.cache.Snapshot())
}

// RestoreSnapshot rehydrates the cache from the snapshot store, if a
// snapshot exists.
func (a *API) RestoreSnapshot() error {
	if a.snapshots == nil {
		return nil
	}
	snap, err := a.snapshots.Load()
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	return a.cache.Restore(*snap)
}

// Close shuts the API down, closing all subscriptions.
func (a *API) Close() error {
	return a.cache.Close()
}

func (a *API) bind(dispatch store.Dispatch) {
	a.mu.Lock()
	a.dispatch = dispatch
	a.mu.Unlock()
}

// onEvent translates cache events into store actions when the API is
// attached to a store; otherwise events are dropped.
func (a *API) onEvent(ev domain.Event) {
	a.mu.RLock()
	dispatch := a.dispatch
	a.mu.RUnlock()

	if dispatch == nil {
		return
	}
	if err := dispatch(context.Background(), actionFromEvent(ev)); err != nil {
		a.logger.Error(err)
	}
}
