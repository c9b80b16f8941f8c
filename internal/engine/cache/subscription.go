package cache

import (
	"context"

	"go.trai.ch/requery/internal/core/domain"
)

// Subscription ties a consumer to a cache entry and reference-counts it.
//
// The first update delivered on Updates is the entry's state at subscribe
// time; every later transition follows. The channel is closed by
// Unsubscribe or when the cache shuts down.
type Subscription struct {
	id    string
	key   domain.CacheKey
	cache *Cache
	ch    chan domain.EntrySnapshot
}

// ID returns the unique subscription ID.
func (s *Subscription) ID() string {
	return s.id
}

// Key returns the cache key the subscription is attached to.
func (s *Subscription) Key() domain.CacheKey {
	return s.key
}

// Updates returns the snapshot stream for the entry.
func (s *Subscription) Updates() <-chan domain.EntrySnapshot {
	return s.ch
}

// Current returns the entry's state right now.
func (s *Subscription) Current() domain.EntrySnapshot {
	snap, ok := s.cache.Entry(s.key)
	if !ok {
		return domain.EntrySnapshot{Key: s.key, Status: domain.StatusUninitialized}
	}
	return snap
}

// Refetch forces a fresh fetch of the entry.
func (s *Subscription) Refetch(ctx context.Context) error {
	return s.cache.Refetch(ctx, s.key)
}

// Unsubscribe detaches the consumer and closes the update channel. When
// the last subscriber leaves, the entry enters its retention window.
func (s *Subscription) Unsubscribe() {
	s.cache.unsubscribe(s.key, s.id)
}
