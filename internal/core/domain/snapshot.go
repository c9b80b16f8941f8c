package domain

import "time"

// CacheSnapshot is a persistable export of the fulfilled cache entries.
//
// Only fulfilled entries are exported; pending and rejected entries carry
// no data worth rehydrating. Restored entries come back fulfilled with
// zero subscribers, so they are subject to the normal retention window.
type CacheSnapshot struct {
	// SavedAt is the time the snapshot was taken.
	SavedAt time.Time `yaml:"saved_at"`
	// Entries holds the exported cache entries.
	Entries []SnapshotEntry `yaml:"entries"`
}

// SnapshotEntry is the persisted form of a single cache entry.
type SnapshotEntry struct {
	// Endpoint is the endpoint name of the entry.
	Endpoint string `yaml:"endpoint"`
	// ArgHash is the argument hash component of the cache key.
	ArgHash uint64 `yaml:"arg_hash"`
	// Arg is the original argument, kept so restored entries can refetch.
	Arg any `yaml:"arg"`
	// Data is the fetched result.
	Data any `yaml:"data"`
	// ProvidedTags is the tag set of the entry's last successful fetch.
	ProvidedTags []SnapshotTag `yaml:"provided_tags,omitempty"`
	// FetchedAt is when the data was fetched.
	FetchedAt time.Time `yaml:"fetched_at"`
}

// SnapshotTag is the persisted form of a Tag.
type SnapshotTag struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id,omitempty"`
}

// Tags converts the persisted tags back to domain tags.
func (e SnapshotEntry) Tags() []Tag {
	tags := make([]Tag, len(e.ProvidedTags))
	for i, t := range e.ProvidedTags {
		tags[i] = Tag{Type: t.Type, ID: t.ID}
	}
	return tags
}

// NewSnapshotTags converts domain tags to their persisted form.
func NewSnapshotTags(tags []Tag) []SnapshotTag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]SnapshotTag, len(tags))
	for i, t := range tags {
		out[i] = SnapshotTag{Type: t.Type, ID: t.ID}
	}
	return out
}
