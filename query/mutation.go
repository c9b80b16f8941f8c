package query

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/requery/internal/engine/cache"
)

// MutationConfig declares a typed mutation endpoint.
type MutationConfig[A, R any] struct {
	// Request builds the request for an argument. Exactly one of
	// Request and Fn is required.
	Request func(arg A) (ports.Request, error)
	// Fn executes the mutation directly, bypassing the fetcher.
	Fn func(ctx context.Context, arg A) (R, error)
	// Transform decodes a response body into R. Defaults to JSON.
	Transform func(body []byte) (R, error)
	// Invalidates lists the tags every successful trigger invalidates.
	Invalidates []Tag
	// InvalidatesFn computes result-dependent invalidated tags.
	// Appended to Invalidates. Called only after success.
	InvalidatesFn func(result R, arg A) []Tag
	// OnStart is invoked just before a trigger executes.
	OnStart func(ctx context.Context, arg A)
}

// Mutation is a typed handle on a registered mutation endpoint.
type Mutation[A, R any] struct {
	api  *API
	name string
}

// NewMutation registers a mutation endpoint on the API.
func NewMutation[A, R any](api *API, name string, cfg MutationConfig[A, R]) (*Mutation[A, R], error) {
	fetch, err := buildFetch(api, name, cfg.Request, cfg.Fn, cfg.Transform)
	if err != nil {
		return nil, err
	}

	ep := &cache.Endpoint{
		Name:  name,
		Kind:  cache.KindMutation,
		Fetch: fetch,
		Invalidates: func(data any, err error, arg any) []domain.Tag {
			tags := append([]Tag(nil), cfg.Invalidates...)
			if err == nil && cfg.InvalidatesFn != nil {
				result, convErr := convertValue[R](data)
				typedArg, argErr := convertValue[A](arg)
				if convErr == nil && argErr == nil {
					tags = append(tags, cfg.InvalidatesFn(result, typedArg)...)
				}
			}
			return tags
		},
	}
	if cfg.OnStart != nil {
		ep.OnStart = func(ctx context.Context, arg any) {
			if typedArg, err := convertValue[A](arg); err == nil {
				cfg.OnStart(ctx, typedArg)
			}
		}
	}

	if err := api.cache.Register(ep); err != nil {
		return nil, err
	}

	return &Mutation[A, R]{api: api, name: name}, nil
}

// Trigger starts the mutation for the given argument. Triggers are never
// deduplicated: each call executes independently and gets its own handle.
// On success the endpoint's invalidated tags are applied to the cache.
func (m *Mutation[A, R]) Trigger(ctx context.Context, arg A) *Handle[R] {
	h := &Handle[R]{
		requestID: uuid.NewString(),
		done:      make(chan struct{}),
	}

	go func() {
		data, err := m.api.cache.Mutate(ctx, m.name, arg, h.requestID)

		var result R
		if err == nil {
			result, err = convertValue[R](data)
		}
		h.resolve(result, err)
	}()

	return h
}

// MutationState is a point-in-time view of a triggered mutation.
type MutationState[R any] struct {
	RequestID string
	Status    domain.QueryStatus
	Data      R
	Err       error
}

// IsUninitialized reports whether the mutation has not been triggered.
func (s MutationState[R]) IsUninitialized() bool { return s.Status == domain.StatusUninitialized }

// IsLoading reports whether the mutation is in flight.
func (s MutationState[R]) IsLoading() bool { return s.Status == domain.StatusPending }

// IsSuccess reports whether the mutation completed successfully.
func (s MutationState[R]) IsSuccess() bool { return s.Status == domain.StatusFulfilled }

// IsError reports whether the mutation failed.
func (s MutationState[R]) IsError() bool { return s.Status == domain.StatusRejected }

// Handle tracks a single mutation trigger.
type Handle[R any] struct {
	requestID string
	done      chan struct{}

	mu   sync.Mutex
	data R
	err  error
}

// RequestID uniquely identifies this trigger.
func (h *Handle[R]) RequestID() string { return h.requestID }

// Done is closed when the mutation completes.
func (h *Handle[R]) Done() <-chan struct{} { return h.done }

// Unwrap blocks until the mutation completes or the context is cancelled,
// then returns the result.
func (h *Handle[R]) Unwrap(ctx context.Context) (R, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.data, h.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// State returns the current state of the trigger without blocking.
func (h *Handle[R]) State() MutationState[R] {
	st := MutationState[R]{RequestID: h.requestID, Status: domain.StatusPending}

	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.err != nil {
			st.Status = domain.StatusRejected
			st.Err = h.err
		} else {
			st.Status = domain.StatusFulfilled
			st.Data = h.data
		}
	default:
	}

	return st
}

func (h *Handle[R]) resolve(data R, err error) {
	h.mu.Lock()
	h.data = data
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
