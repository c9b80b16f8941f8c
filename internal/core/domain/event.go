package domain

// EventKind identifies the lifecycle transition an Event describes.
type EventKind string

const (
	// EventQueryPending fires when a query fetch starts.
	EventQueryPending EventKind = "query.pending"
	// EventQueryFulfilled fires when a query fetch succeeds.
	EventQueryFulfilled EventKind = "query.fulfilled"
	// EventQueryRejected fires when a query fetch fails.
	EventQueryRejected EventKind = "query.rejected"
	// EventMutationPending fires when a mutation trigger starts.
	EventMutationPending EventKind = "mutation.pending"
	// EventMutationFulfilled fires when a mutation succeeds.
	EventMutationFulfilled EventKind = "mutation.fulfilled"
	// EventMutationRejected fires when a mutation fails.
	EventMutationRejected EventKind = "mutation.rejected"
	// EventInvalidated fires after an invalidation event has been matched.
	EventInvalidated EventKind = "cache.invalidated"
	// EventEntryEvicted fires when an unused entry leaves the cache.
	EventEntryEvicted EventKind = "cache.evicted"
)

// Event describes a cache lifecycle transition.
//
// Events are emitted by the engine and translated into store actions when
// the API is attached to a store, so middleware can observe cache activity.
type Event struct {
	Kind EventKind
	// Endpoint is the endpoint name, empty for external invalidations.
	Endpoint string
	// Key identifies the affected entry for query and eviction events.
	Key CacheKey
	// RequestID is the unique ID of the mutation trigger, if any.
	RequestID string
	// Tags carries the tag set of an invalidation event.
	Tags []Tag
	// Keys lists the entries marked stale by an invalidation event.
	Keys []CacheKey
	// Err is set on rejected transitions.
	Err error
}
