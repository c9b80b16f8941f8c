package domain

import "time"

// QueryStatus represents the fetch status of a cache entry.
type QueryStatus string

const (
	// StatusUninitialized indicates no fetch has been started for the entry.
	StatusUninitialized QueryStatus = "uninitialized"
	// StatusPending indicates a fetch is currently in flight.
	StatusPending QueryStatus = "pending"
	// StatusFulfilled indicates the last fetch completed successfully.
	StatusFulfilled QueryStatus = "fulfilled"
	// StatusRejected indicates the last fetch failed.
	StatusRejected QueryStatus = "rejected"
)

// EntrySnapshot is an immutable view of a cache entry at a point in time.
//
// Data carries the result of the most recent successful fetch and survives
// later pending and rejected transitions, so subscribers keep showing the
// last known value while a refetch is in flight or after it failed.
type EntrySnapshot struct {
	// Key identifies the entry.
	Key CacheKey
	// Status is the entry's fetch status.
	Status QueryStatus
	// Data is the last successfully fetched result, nil until the first
	// fulfilled transition.
	Data any
	// Err is the error of the last fetch, nil unless Status is rejected.
	Err error
	// Stale marks the entry as invalidated and due for a refetch.
	Stale bool
	// ProvidedTags is the tag set of the most recent successful fetch.
	ProvidedTags []Tag
	// FetchedAt is the completion time of the most recent successful fetch.
	FetchedAt time.Time
	// Subscribers is the number of active subscriptions on the entry.
	Subscribers int
}
