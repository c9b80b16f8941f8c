package cache

import (
	"context"
	"regexp"

	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/zerr"
)

// Kind distinguishes query endpoints from mutation endpoints.
type Kind string

const (
	// KindQuery marks a read endpoint whose results are cached and deduplicated.
	KindQuery Kind = "query"
	// KindMutation marks a write endpoint whose triggers are never deduplicated.
	KindMutation Kind = "mutation"
)

var validEndpointName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// Endpoint is the untyped runtime descriptor the engine executes.
//
// The typed constructors in the query package build these; the engine only
// ever sees any-typed arguments and results.
type Endpoint struct {
	// Name uniquely identifies the endpoint within its API.
	Name string
	// Kind is query or mutation.
	Kind Kind
	// Fetch executes the endpoint for the given argument.
	Fetch func(ctx context.Context, arg any) (any, error)
	// Provides computes the provided tags of a query result.
	// Only consulted for query endpoints, and only on success.
	Provides func(data any, err error, arg any) []domain.Tag
	// Invalidates computes the tags a completed mutation invalidates.
	// Only consulted for mutation endpoints.
	Invalidates func(data any, err error, arg any) []domain.Tag
	// OnStart is invoked just before the request is executed.
	OnStart func(ctx context.Context, arg any)
	// OnEntryAdded is invoked when a cache entry is created for the endpoint.
	OnEntryAdded func(ctx context.Context, key domain.CacheKey)
	// OnEntryRemoved is invoked when a cache entry for the endpoint is evicted.
	OnEntryRemoved func(ctx context.Context, key domain.CacheKey)
}

func (e *Endpoint) validate() error {
	if !validEndpointName.MatchString(e.Name) {
		return zerr.With(domain.ErrInvalidEndpointName, "endpoint", e.Name)
	}
	if e.Fetch == nil {
		return zerr.With(domain.ErrNoRequestSource, "endpoint", e.Name)
	}
	if e.Kind != KindQuery && e.Kind != KindMutation {
		return zerr.With(zerr.With(domain.ErrInvalidEndpointName, "endpoint", e.Name), "kind", string(e.Kind))
	}
	return nil
}

func (e *Endpoint) providedTags(data any, err error, arg any) []domain.Tag {
	if e.Provides == nil {
		return nil
	}
	return e.Provides(data, err, arg)
}

func (e *Endpoint) invalidatedTags(data any, err error, arg any) []domain.Tag {
	if e.Invalidates == nil {
		return nil
	}
	return e.Invalidates(data, err, arg)
}
