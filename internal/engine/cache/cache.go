// Package cache implements the query cache engine: keyed entries, the
// provided-tag index, subscription reference counting, invalidation
// matching, and concurrent refetch scheduling.
package cache

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultKeepUnusedFor is the retention window applied to entries with no
// active subscribers when no explicit window is configured.
const DefaultKeepUnusedFor = 60 * time.Second

// subscriberBuffer sizes each subscriber's snapshot channel.
const subscriberBuffer = 16

// Config configures a cache engine.
type Config struct {
	// TagTypes is the closed registry of allowed tag type names.
	TagTypes []string
	// KeepUnusedFor is how long an entry with zero subscribers is retained.
	KeepUnusedFor time.Duration
	// RefetchParallelism bounds concurrent invalidation-triggered refetches.
	// Defaults to the number of CPUs.
	RefetchParallelism int
	// Strict makes unknown tag types an error instead of a logged drop.
	Strict bool
	// Logger receives warnings and refetch failures. Required.
	Logger ports.Logger
	// Tracer wraps fetches and invalidations in spans. Required.
	Tracer ports.Tracer
	// OnEvent, if set, receives every cache lifecycle event.
	OnEvent func(domain.Event)
}

type subscriber struct {
	id string
	ch chan domain.EntrySnapshot
}

type entry struct {
	key       domain.CacheKey
	endpoint  *Endpoint
	arg       any
	status    domain.QueryStatus
	data      any
	err       error
	stale     bool
	provided  []domain.Tag
	fetchedAt time.Time
	subs      map[string]*subscriber
	retention *time.Timer
	// staleSeq is bumped by every invalidation that marks this entry. A
	// fetch captures it at start; a success whose captured value is behind
	// the current one landed before the invalidation and must not clear
	// the stale flag.
	staleSeq uint64
}

// Cache is the engine behind an API: it owns all entries and their tags.
type Cache struct {
	cfg      Config
	tagTypes map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	endpoints map[string]*Endpoint
	entries   map[domain.CacheKey]*entry
	index     *tagIndex
	closed    bool

	flights singleflight.Group
}

// New creates a cache engine. Logger and Tracer must be non-nil.
func New(cfg Config) *Cache {
	if cfg.KeepUnusedFor <= 0 {
		cfg.KeepUnusedFor = DefaultKeepUnusedFor
	}
	if cfg.RefetchParallelism <= 0 {
		cfg.RefetchParallelism = runtime.NumCPU()
	}

	tagTypes := make(map[string]struct{}, len(cfg.TagTypes))
	for _, t := range cfg.TagTypes {
		tagTypes[t] = struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		cfg:       cfg,
		tagTypes:  tagTypes,
		ctx:       ctx,
		cancel:    cancel,
		endpoints: make(map[string]*Endpoint),
		entries:   make(map[domain.CacheKey]*entry),
		index:     newTagIndex(),
	}
}

// Register adds an endpoint to the cache.
func (c *Cache) Register(ep *Endpoint) error {
	if err := ep.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrCacheClosed
	}
	if _, exists := c.endpoints[ep.Name]; exists {
		return zerr.With(domain.ErrDuplicateEndpoint, "endpoint", ep.Name)
	}
	c.endpoints[ep.Name] = ep
	return nil
}

// Endpoint returns the registered endpoint with the given name.
func (c *Cache) Endpoint(name string) (*Endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ep, ok := c.endpoints[name]
	if !ok {
		return nil, zerr.With(domain.ErrUnknownEndpoint, "endpoint", name)
	}
	return ep, nil
}

// Subscribe attaches a subscriber to the entry for (endpoint, arg),
// creating the entry if needed. A fetch is started if the entry has never
// been fetched or is stale; concurrent subscribers share one flight.
func (c *Cache) Subscribe(ctx context.Context, endpointName string, arg any) (*Subscription, error) {
	ep, err := c.queryEndpoint(endpointName)
	if err != nil {
		return nil, err
	}

	key, err := domain.NewCacheKey(endpointName, arg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrCacheClosed
	}

	ent, created := c.ensureEntryLocked(ep, key, arg)
	c.rescueLocked(ent)

	sub := &subscriber{
		id: uuid.NewString(),
		ch: make(chan domain.EntrySnapshot, subscriberBuffer),
	}
	ent.subs[sub.id] = sub

	needFetch := ent.status == domain.StatusUninitialized || ent.stale

	// Deliver the current state as the first update. The channel is fresh
	// and buffered so this cannot block; sending under the lock keeps it
	// ordered before any close by a concurrent Close.
	sub.ch <- c.snapshotLocked(ent)
	c.mu.Unlock()

	if created && ep.OnEntryAdded != nil {
		ep.OnEntryAdded(ctx, key)
	}

	if needFetch {
		c.startFetch(key)
	}

	return &Subscription{id: sub.id, key: key, cache: c, ch: sub.ch}, nil
}

// Fetch runs a one-shot query through the cache. A fulfilled, non-stale
// entry answers from cache; otherwise the fetch shares any in-flight call
// for the same key.
func (c *Cache) Fetch(ctx context.Context, endpointName string, arg any) (any, error) {
	ep, err := c.queryEndpoint(endpointName)
	if err != nil {
		return nil, err
	}

	key, err := domain.NewCacheKey(endpointName, arg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrCacheClosed
	}

	ent, created := c.ensureEntryLocked(ep, key, arg)
	if ent.status == domain.StatusFulfilled && !ent.stale {
		data := ent.data
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	if created && ep.OnEntryAdded != nil {
		ep.OnEntryAdded(ctx, key)
	}

	data, err := c.fetch(ctx, key)

	// One-shot callers hold no subscription, so the entry enters its
	// retention window immediately.
	c.mu.Lock()
	if ent, ok := c.entries[key]; ok && len(ent.subs) == 0 && ent.retention == nil && !c.closed {
		c.scheduleRetentionLocked(ent)
	}
	c.mu.Unlock()

	return data, err
}

// Mutate executes a mutation endpoint. Triggers are never deduplicated;
// each call is an independent outcome. On success the mutation's
// invalidation tags are matched against the cache.
func (c *Cache) Mutate(ctx context.Context, endpointName string, arg any, requestID string) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrCacheClosed
	}
	ep, ok := c.endpoints[endpointName]
	c.mu.Unlock()

	if !ok || ep.Kind != KindMutation {
		return nil, zerr.With(zerr.With(domain.ErrUnknownEndpoint, "endpoint", endpointName), "kind", string(KindMutation))
	}

	c.emit(domain.Event{Kind: domain.EventMutationPending, Endpoint: endpointName, RequestID: requestID})

	ctx, span := c.cfg.Tracer.Start(ctx, "mutation.trigger",
		ports.WithAttribute("requery.endpoint", endpointName),
		ports.WithAttribute("requery.request_id", requestID),
	)
	defer span.End()

	if ep.OnStart != nil {
		ep.OnStart(ctx, arg)
	}

	data, err := ep.Fetch(ctx, arg)
	if err != nil {
		span.RecordError(err)
		wrapped := zerr.With(
			zerr.Wrap(err, domain.ErrMutationFailed.Error()),
			"endpoint", endpointName,
		)
		c.emit(domain.Event{Kind: domain.EventMutationRejected, Endpoint: endpointName, RequestID: requestID, Err: wrapped})
		return nil, wrapped
	}

	c.emit(domain.Event{Kind: domain.EventMutationFulfilled, Endpoint: endpointName, RequestID: requestID})

	tags, tagErr := c.checkTags(ep.invalidatedTags(data, nil, arg))
	if tagErr != nil {
		return data, tagErr
	}
	if len(tags) > 0 {
		if _, err := c.Invalidate(ctx, tags); err != nil {
			return data, err
		}
	}

	return data, nil
}

// Invalidate marks every entry whose provided tags intersect the given set
// as stale, then refetches the stale entries that have active subscribers.
// The whole event is matched under one lock; refetches run concurrently
// and unordered afterwards. It returns the keys that were marked stale.
func (c *Cache) Invalidate(ctx context.Context, tags []domain.Tag) ([]domain.CacheKey, error) {
	tags, err := c.checkTags(tags)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, nil
	}

	_, span := c.cfg.Tracer.Start(ctx, "cache.invalidate",
		ports.WithAttribute("requery.tags", tagStrings(tags)),
	)
	defer span.End()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrCacheClosed
	}

	matched := c.index.match(tags)
	stale := make([]domain.CacheKey, 0, len(matched))
	var refetch []domain.CacheKey

	for key := range matched {
		ent, ok := c.entries[key]
		if !ok {
			continue
		}
		ent.stale = true
		ent.staleSeq++
		stale = append(stale, key)
		if len(ent.subs) > 0 {
			refetch = append(refetch, key)
		}
		c.notifyLocked(ent)
	}
	c.mu.Unlock()

	span.SetAttribute("requery.stale_entries", len(stale))
	c.emit(domain.Event{Kind: domain.EventInvalidated, Tags: tags, Keys: stale})

	// Entries without subscribers stay flagged and refetch lazily on the
	// next subscription. Forget drops any in-flight result so the refetch
	// is a fresh call rather than a join on pre-invalidation data.
	for _, key := range refetch {
		c.flights.Forget(key.String())
	}
	c.refetchAsync(refetch)

	return stale, nil
}

// Refetch forces a fresh fetch for the entry, bypassing flight sharing
// with any call started before now.
func (c *Cache) Refetch(ctx context.Context, key domain.CacheKey) error {
	c.flights.Forget(key.String())
	_, err := c.fetch(ctx, key)
	return err
}

// Snapshot exports all fulfilled entries.
func (c *Cache) Snapshot() domain.CacheSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := domain.CacheSnapshot{SavedAt: time.Now()}
	for _, ent := range c.entries {
		if ent.status != domain.StatusFulfilled {
			continue
		}
		snap.Entries = append(snap.Entries, domain.SnapshotEntry{
			Endpoint:     ent.key.Endpoint,
			ArgHash:      ent.key.ArgHash,
			Arg:          ent.arg,
			Data:         ent.data,
			ProvidedTags: domain.NewSnapshotTags(ent.provided),
			FetchedAt:    ent.fetchedAt,
		})
	}
	return snap
}

// Restore rehydrates fulfilled entries from a snapshot. Entries for
// endpoints that are no longer registered are skipped with a warning.
// Restored entries have zero subscribers and enter their retention window
// immediately.
func (c *Cache) Restore(snap domain.CacheSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrCacheClosed
	}

	for _, rec := range snap.Entries {
		ep, ok := c.endpoints[rec.Endpoint]
		if !ok || ep.Kind != KindQuery {
			c.cfg.Logger.Warn(fmt.Sprintf("skipping snapshot entry for unknown endpoint %q", rec.Endpoint))
			continue
		}

		key := domain.CacheKey{Endpoint: rec.Endpoint, ArgHash: rec.ArgHash}
		if _, exists := c.entries[key]; exists {
			continue
		}

		tags, err := c.checkTags(rec.Tags())
		if err != nil {
			return err
		}

		ent := &entry{
			key:       key,
			endpoint:  ep,
			arg:       rec.Arg,
			status:    domain.StatusFulfilled,
			data:      rec.Data,
			provided:  tags,
			fetchedAt: rec.FetchedAt,
			subs:      make(map[string]*subscriber),
		}
		c.entries[key] = ent
		for _, tag := range tags {
			c.index.add(tag, key)
		}
		c.scheduleRetentionLocked(ent)
	}

	return nil
}

// Entry returns a snapshot of the entry for key, or false if absent.
func (c *Cache) Entry(key domain.CacheKey) (domain.EntrySnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		return domain.EntrySnapshot{}, false
	}
	return c.snapshotLocked(ent), true
}

// Close shuts the cache down: pending timers are stopped, in-flight work
// is awaited, and all subscriber channels are closed.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	var chans []chan domain.EntrySnapshot
	for _, ent := range c.entries {
		if ent.retention != nil {
			ent.retention.Stop()
		}
		for _, sub := range ent.subs {
			chans = append(chans, sub.ch)
		}
		ent.subs = make(map[string]*subscriber)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	for _, ch := range chans {
		close(ch)
	}
	return nil
}

// --- internals ---

func (c *Cache) queryEndpoint(name string) (*Endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ep, ok := c.endpoints[name]
	if !ok || ep.Kind != KindQuery {
		return nil, zerr.With(zerr.With(domain.ErrUnknownEndpoint, "endpoint", name), "kind", string(KindQuery))
	}
	return ep, nil
}

func (c *Cache) ensureEntryLocked(ep *Endpoint, key domain.CacheKey, arg any) (*entry, bool) {
	if ent, ok := c.entries[key]; ok {
		return ent, false
	}
	ent := &entry{
		key:      key,
		endpoint: ep,
		arg:      arg,
		status:   domain.StatusUninitialized,
		subs:     make(map[string]*subscriber),
	}
	c.entries[key] = ent
	return ent, true
}

// rescueLocked cancels a pending eviction when an entry gains a subscriber
// inside its retention window.
func (c *Cache) rescueLocked(ent *entry) {
	if ent.retention != nil {
		ent.retention.Stop()
		ent.retention = nil
	}
}

func (c *Cache) scheduleRetentionLocked(ent *entry) {
	key := ent.key
	ent.retention = time.AfterFunc(c.cfg.KeepUnusedFor, func() {
		c.evict(key)
	})
}

func (c *Cache) evict(key domain.CacheKey) {
	c.mu.Lock()
	ent, ok := c.entries[key]
	if !ok || len(ent.subs) > 0 || c.closed {
		c.mu.Unlock()
		return
	}
	for _, tag := range ent.provided {
		c.index.remove(tag, key)
	}
	delete(c.entries, key)
	ep := ent.endpoint
	c.mu.Unlock()

	if ep.OnEntryRemoved != nil {
		ep.OnEntryRemoved(c.ctx, key)
	}
	c.emit(domain.Event{Kind: domain.EventEntryEvicted, Endpoint: key.Endpoint, Key: key})
}

func (c *Cache) unsubscribe(key domain.CacheKey, subID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		return
	}
	sub, ok := ent.subs[subID]
	if !ok {
		return
	}
	delete(ent.subs, subID)
	close(sub.ch)

	if len(ent.subs) == 0 && !c.closed {
		c.scheduleRetentionLocked(ent)
	}
}

func (c *Cache) startFetch(key domain.CacheKey) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.fetch(c.ctx, key); err != nil {
			c.cfg.Logger.Error(err)
		}
	}()
}

// fetch runs (or joins) the flight for key and applies its result.
func (c *Cache) fetch(ctx context.Context, key domain.CacheKey) (any, error) {
	c.mu.Lock()
	ent, ok := c.entries[key]
	if !ok || c.closed {
		c.mu.Unlock()
		return nil, domain.ErrCacheClosed
	}
	ep := ent.endpoint
	arg := ent.arg
	seq := ent.staleSeq
	if ent.status != domain.StatusPending {
		ent.status = domain.StatusPending
		ent.err = nil
		c.notifyLocked(ent)
	}
	c.mu.Unlock()

	c.emit(domain.Event{Kind: domain.EventQueryPending, Endpoint: key.Endpoint, Key: key})

	data, err, _ := c.flights.Do(key.String(), func() (any, error) {
		ctx, span := c.cfg.Tracer.Start(ctx, "query.fetch",
			ports.WithAttribute("requery.endpoint", key.Endpoint),
			ports.WithAttribute("requery.key", key.String()),
		)
		defer span.End()

		if ep.OnStart != nil {
			ep.OnStart(ctx, arg)
		}

		data, err := ep.Fetch(ctx, arg)
		if err != nil {
			span.RecordError(err)
		}

		// Apply inside the flight so the result lands exactly once no
		// matter how many callers joined.
		return data, c.applyResult(key, seq, data, err)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// applyResult commits a flight outcome to the entry. A success recomputes
// and reindexes the provided tags; a failure keeps the previous data and
// tags. The stale flag is cleared only by a success that postdates the
// last invalidation of the entry.
func (c *Cache) applyResult(key domain.CacheKey, seq uint64, data any, fetchErr error) error {
	var tags []domain.Tag
	var tagErr error
	ent, ok := func() (*entry, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		e, ok := c.entries[key]
		return e, ok
	}()
	if !ok {
		// Evicted while the flight was running; drop the result.
		return fetchErr
	}

	if fetchErr == nil {
		tags, tagErr = c.checkTags(ent.endpoint.providedTags(data, nil, ent.arg))
		if tagErr != nil {
			fetchErr = tagErr
		}
	}

	var needRefetch bool
	c.mu.Lock()
	if ent, ok = c.entries[key]; !ok {
		c.mu.Unlock()
		return fetchErr
	}

	if fetchErr != nil {
		ent.status = domain.StatusRejected
		ent.err = fetchErr
	} else {
		ent.status = domain.StatusFulfilled
		ent.data = data
		ent.err = nil
		ent.fetchedAt = time.Now()

		for _, tag := range ent.provided {
			c.index.remove(tag, key)
		}
		ent.provided = domain.DedupTags(tags)
		for _, tag := range ent.provided {
			c.index.add(tag, key)
		}

		if ent.staleSeq == seq {
			ent.stale = false
		} else if len(ent.subs) > 0 {
			// Invalidated while this fetch was in flight; go again.
			needRefetch = true
		}
	}
	c.notifyLocked(ent)
	c.mu.Unlock()

	if fetchErr != nil {
		c.emit(domain.Event{Kind: domain.EventQueryRejected, Endpoint: key.Endpoint, Key: key, Err: fetchErr})
	} else {
		c.emit(domain.Event{Kind: domain.EventQueryFulfilled, Endpoint: key.Endpoint, Key: key})
	}

	if needRefetch {
		c.flights.Forget(key.String())
		c.startFetch(key)
	}
	return fetchErr
}

// refetchAsync refetches the given entries concurrently with bounded
// parallelism. Order across entries is deliberately unspecified. Failures
// leave the entry rejected with its previous data and are only logged.
func (c *Cache) refetchAsync(keys []domain.CacheKey) {
	if len(keys) == 0 {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		g, ctx := errgroup.WithContext(c.ctx)
		g.SetLimit(c.cfg.RefetchParallelism)
		for _, key := range keys {
			g.Go(func() error {
				if _, err := c.fetch(ctx, key); err != nil {
					c.cfg.Logger.Error(zerr.With(
						zerr.Wrap(err, "invalidation refetch failed"),
						"key", key.String(),
					))
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// checkTags validates tag types against the registry. Unknown types are an
// error in strict mode and a logged drop otherwise. The result is deduped.
func (c *Cache) checkTags(tags []domain.Tag) ([]domain.Tag, error) {
	valid := tags[:0:len(tags)]
	for _, tag := range tags {
		if _, ok := c.tagTypes[tag.Type]; !ok {
			if c.cfg.Strict {
				return nil, zerr.With(domain.ErrUnknownTagType, "tag", tag.String())
			}
			c.cfg.Logger.Warn(fmt.Sprintf("dropping tag with unknown type %q", tag.Type))
			continue
		}
		valid = append(valid, tag)
	}
	return domain.DedupTags(valid), nil
}

func (c *Cache) snapshotLocked(ent *entry) domain.EntrySnapshot {
	provided := make([]domain.Tag, len(ent.provided))
	copy(provided, ent.provided)

	return domain.EntrySnapshot{
		Key:          ent.key,
		Status:       ent.status,
		Data:         ent.data,
		Err:          ent.err,
		Stale:        ent.stale,
		ProvidedTags: provided,
		FetchedAt:    ent.fetchedAt,
		Subscribers:  len(ent.subs),
	}
}

// notifyLocked pushes the entry's current snapshot to all subscribers.
// Sends never block: a subscriber that stopped draining loses updates
// rather than stalling the cache.
func (c *Cache) notifyLocked(ent *entry) {
	if len(ent.subs) == 0 {
		return
	}
	snap := c.snapshotLocked(ent)
	for _, sub := range ent.subs {
		select {
		case sub.ch <- snap:
		default:
		}
	}
}

func (c *Cache) emit(ev domain.Event) {
	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(ev)
	}
}

func tagStrings(tags []domain.Tag) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.String()
	}
	return out
}
