package ports

import (
	"context"
	"iter"

	"go.trai.ch/requery/internal/core/domain"
)

// TagEvent is an externally produced invalidation event.
type TagEvent struct {
	// Tags is the tag set to invalidate.
	Tags []domain.Tag
	// Source describes what produced the event, for logging.
	Source string
}

// InvalidationSource emits invalidation events from outside the cache,
// e.g. from a file watcher observing data the upstream serves.
type InvalidationSource interface {
	// Start begins producing events. It returns an error if the source
	// fails to initialize.
	Start(ctx context.Context) error
	// Stop stops the source and releases all resources.
	Stop() error
	// Events returns an iterator of invalidation events. The iterator
	// terminates when the source is stopped.
	Events() iter.Seq[TagEvent]
}
