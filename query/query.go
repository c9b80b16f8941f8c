package query

import (
	"context"
	"encoding/json"

	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/requery/internal/engine/cache"
	"go.trai.ch/zerr"
)

// QueryConfig declares a typed query endpoint.
type QueryConfig[A, R any] struct {
	// Request builds the request for an argument. The API fetcher
	// executes it and the response body is decoded into R (or through
	// Transform when set). Exactly one of Request and Fn is required.
	Request func(arg A) (ports.Request, error)
	// Fn executes the query directly, bypassing the fetcher.
	Fn func(ctx context.Context, arg A) (R, error)
	// Transform decodes a response body into R. Defaults to JSON.
	// Ignored when Fn is set.
	Transform func(body []byte) (R, error)
	// Provides lists the tags every result of this endpoint provides.
	Provides []Tag
	// ProvidesFn computes result-dependent provided tags. Appended to
	// Provides. Called only after a successful fetch.
	ProvidesFn func(result R, arg A) []Tag
	// OnStart is invoked just before a fetch for this endpoint executes.
	OnStart func(ctx context.Context, arg A)
	// OnEntryAdded is invoked when a cache entry is created.
	OnEntryAdded func(ctx context.Context, key CacheKey)
	// OnEntryRemoved is invoked when a cache entry is evicted.
	OnEntryRemoved func(ctx context.Context, key CacheKey)
}

// Query is a typed handle on a registered query endpoint.
type Query[A, R any] struct {
	api  *API
	name string
}

// NewQuery registers a query endpoint on the API.
func NewQuery[A, R any](api *API, name string, cfg QueryConfig[A, R]) (*Query[A, R], error) {
	fetch, err := buildFetch(api, name, cfg.Request, cfg.Fn, cfg.Transform)
	if err != nil {
		return nil, err
	}

	ep := &cache.Endpoint{
		Name:  name,
		Kind:  cache.KindQuery,
		Fetch: fetch,
		Provides: func(data any, err error, arg any) []domain.Tag {
			tags := append([]Tag(nil), cfg.Provides...)
			if err == nil && cfg.ProvidesFn != nil {
				result, convErr := convertValue[R](data)
				typedArg, argErr := convertValue[A](arg)
				if convErr == nil && argErr == nil {
					tags = append(tags, cfg.ProvidesFn(result, typedArg)...)
				}
			}
			return tags
		},
		OnEntryAdded:   cfg.OnEntryAdded,
		OnEntryRemoved: cfg.OnEntryRemoved,
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

	return &Query[A, R]{api: api, name: name}, nil
}

// Subscribe creates a subscription for the given argument. The entry is
// fetched if uninitialized or stale and kept fresh across invalidations
// until the subscription is released.
func (q *Query[A, R]) Subscribe(ctx context.Context, arg A) (*Subscription[R], error) {
	inner, err := q.api.cache.Subscribe(ctx, q.name, arg)
	if err != nil {
		return nil, err
	}
	return newSubscription[R](inner), nil
}

// Fetch resolves the query once, without subscribing. A fulfilled fresh
// entry is served from cache; otherwise the fetch is executed, deduplicated
// against concurrent callers of the same key.
func (q *Query[A, R]) Fetch(ctx context.Context, arg A) (R, error) {
	data, err := q.api.cache.Fetch(ctx, q.name, arg)
	if err != nil {
		var zero R
		return zero, err
	}
	return convertValue[R](data)
}

// buildFetch adapts a typed request builder or function into the untyped
// fetch the engine executes.
func buildFetch[A, R any](
	api *API,
	name string,
	request func(A) (ports.Request, error),
	fn func(context.Context, A) (R, error),
	transform func([]byte) (R, error),
) (func(ctx context.Context, arg any) (any, error), error) {
	if (request == nil) == (fn == nil) {
		return nil, zerr.With(domain.ErrNoRequestSource, "endpoint", name)
	}
	if request != nil && api.fetcher == nil {
		return nil, zerr.With(domain.ErrNoFetcher, "endpoint", name)
	}

	return func(ctx context.Context, arg any) (any, error) {
		typedArg, err := convertValue[A](arg)
		if err != nil {
			return nil, zerr.With(err, "endpoint", name)
		}

		if fn != nil {
			return fn(ctx, typedArg)
		}

		req, err := request(typedArg)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "endpoint", name)
		}

		resp, err := api.fetcher.Do(ctx, req)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "endpoint", name)
		}
		if resp.StatusCode >= 400 {
			return nil, zerr.With(zerr.With(domain.ErrRequestRejected, "endpoint", name), "status", resp.StatusCode)
		}

		if transform != nil {
			result, err := transform(resp.Body)
			if err != nil {
				return nil, zerr.With(zerr.Wrap(err, domain.ErrTransformFailed.Error()), "endpoint", name)
			}
			return result, nil
		}

		var result R
		if len(resp.Body) > 0 {
			if err := json.Unmarshal(resp.Body, &result); err != nil {
				return nil, zerr.With(zerr.Wrap(err, domain.ErrTransformFailed.Error()), "endpoint", name)
			}
		}
		return result, nil
	}, nil
}
