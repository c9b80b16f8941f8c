package query

import (
	"context"
	"time"

	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/engine/cache"
)

// State is a typed point-in-time view of a cache entry.
type State[R any] struct {
	Key       CacheKey
	Status    domain.QueryStatus
	Data      R
	Err       error
	Stale     bool
	Tags      []Tag
	FetchedAt time.Time
}

// IsUninitialized reports whether no fetch has started for the entry.
func (s State[R]) IsUninitialized() bool { return s.Status == domain.StatusUninitialized }

// IsLoading reports whether a fetch is in flight. Previous data, if any,
// remains available while loading.
func (s State[R]) IsLoading() bool { return s.Status == domain.StatusPending }

// IsSuccess reports whether the entry holds a fulfilled result.
func (s State[R]) IsSuccess() bool { return s.Status == domain.StatusFulfilled }

// IsError reports whether the last fetch failed.
func (s State[R]) IsError() bool { return s.Status == domain.StatusRejected }

// Subscription is a typed view over an engine subscription. Updates carries
// a state snapshot for every entry transition, starting with the state at
// subscription time.
type Subscription[R any] struct {
	inner *cache.Subscription
	ch    chan State[R]
}

func newSubscription[R any](inner *cache.Subscription) *Subscription[R] {
	s := &Subscription[R]{
		inner: inner,
		ch:    make(chan State[R], cap(inner.Updates())),
	}

	go func() {
		defer close(s.ch)
		for snap := range inner.Updates() {
			// Same policy as the engine: a consumer that stopped draining
			// loses updates rather than pinning this goroutine forever.
			select {
			case s.ch <- typedState[R](snap):
			default:
			}
		}
	}()

	return s
}

// Updates returns the state stream. The channel is closed on Unsubscribe
// and when the API shuts down.
func (s *Subscription[R]) Updates() <-chan State[R] {
	return s.ch
}

// Current returns the entry state right now, independent of the stream.
func (s *Subscription[R]) Current() State[R] {
	return typedState[R](s.inner.Current())
}

// Refetch forces a fresh fetch of the subscribed entry, bypassing the cache.
func (s *Subscription[R]) Refetch(ctx context.Context) error {
	return s.inner.Refetch(ctx)
}

// Unsubscribe releases the subscription. The last unsubscriber starts the
// entry's retention countdown.
func (s *Subscription[R]) Unsubscribe() {
	s.inner.Unsubscribe()
}

func typedState[R any](snap domain.EntrySnapshot) State[R] {
	st := State[R]{
		Key:       snap.Key,
		Status:    snap.Status,
		Err:       snap.Err,
		Stale:     snap.Stale,
		Tags:      snap.ProvidedTags,
		FetchedAt: snap.FetchedAt,
	}
	if snap.Data != nil {
		if data, err := convertValue[R](snap.Data); err == nil {
			st.Data = data
		} else if st.Err == nil {
			st.Err = err
		}
	}
	return st
}
