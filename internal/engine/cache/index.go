package cache

import "go.trai.ch/requery/internal/core/domain"

type keySet map[domain.CacheKey]struct{}

// tagIndex maps provided tags to the cache keys that provided them.
//
// Specific tags are indexed by type and id; type-wildcard tags live in a
// separate slot per type so an id can never collide with the wildcard form.
type tagIndex struct {
	byID     map[string]map[string]keySet // type -> id -> keys
	wildcard map[string]keySet            // type -> keys that provided the type-only form
}

func newTagIndex() *tagIndex {
	return &tagIndex{
		byID:     make(map[string]map[string]keySet),
		wildcard: make(map[string]keySet),
	}
}

// add indexes key under tag.
func (ix *tagIndex) add(tag domain.Tag, key domain.CacheKey) {
	if tag.Wildcard() {
		keys, ok := ix.wildcard[tag.Type]
		if !ok {
			keys = make(keySet)
			ix.wildcard[tag.Type] = keys
		}
		keys[key] = struct{}{}
		return
	}

	ids, ok := ix.byID[tag.Type]
	if !ok {
		ids = make(map[string]keySet)
		ix.byID[tag.Type] = ids
	}
	keys, ok := ids[tag.ID]
	if !ok {
		keys = make(keySet)
		ids[tag.ID] = keys
	}
	keys[key] = struct{}{}
}

// remove drops key from the slot tag indexes it under, deleting empty slots.
func (ix *tagIndex) remove(tag domain.Tag, key domain.CacheKey) {
	if tag.Wildcard() {
		if keys, ok := ix.wildcard[tag.Type]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(ix.wildcard, tag.Type)
			}
		}
		return
	}

	ids, ok := ix.byID[tag.Type]
	if !ok {
		return
	}
	if keys, ok := ids[tag.ID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(ids, tag.ID)
		}
	}
	if len(ids) == 0 {
		delete(ix.byID, tag.Type)
	}
}

// match returns the keys whose provided tags intersect the invalidation set.
//
// An invalidating type-wildcard tag matches every entry that provided any
// tag of that type. An invalidating specific tag matches only entries that
// provided exactly that (type, id) pair.
func (ix *tagIndex) match(tags []domain.Tag) keySet {
	matched := make(keySet)

	for _, tag := range tags {
		if tag.Wildcard() {
			for key := range ix.wildcard[tag.Type] {
				matched[key] = struct{}{}
			}
			for _, keys := range ix.byID[tag.Type] {
				for key := range keys {
					matched[key] = struct{}{}
				}
			}
			continue
		}

		for key := range ix.byID[tag.Type][tag.ID] {
			matched[key] = struct{}{}
		}
	}

	return matched
}
