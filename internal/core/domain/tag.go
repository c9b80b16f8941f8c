// Package domain contains the core types of the query cache.
package domain

import (
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

// Tag classifies cached data for invalidation purposes.
//
// A tag is a (Type, ID) pair. The ID may be empty, in which case the tag
// is the type-wildcard form: as a provided tag it is indexed under the
// wildcard slot of its type, and as an invalidating tag it matches every
// entry that provided any tag of that type.
type Tag struct {
	// Type is the tag type name. It must be declared in the tag registry
	// of the API the tag is used with.
	Type string
	// ID narrows the tag to a single resource. Empty means the wildcard form.
	ID string
}

// NewTag creates a tag for a specific resource.
func NewTag(tagType, id string) Tag {
	return Tag{Type: tagType, ID: id}
}

// TypeTag creates the type-wildcard form of a tag.
func TypeTag(tagType string) Tag {
	return Tag{Type: tagType}
}

// Wildcard reports whether the tag is the type-wildcard form.
func (t Tag) Wildcard() bool {
	return t.ID == ""
}

// String returns "Type" for wildcard tags and "Type(ID)" otherwise.
func (t Tag) String() string {
	if t.Wildcard() {
		return t.Type
	}
	return fmt.Sprintf("%s(%s)", t.Type, t.ID)
}

// ParseTag parses the textual tag forms "Type" and "Type(ID)".
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)

	open := strings.IndexByte(s, '(')
	if open < 0 {
		if s == "" {
			return Tag{}, zerr.With(ErrInvalidTagExpression, "tag", s)
		}
		return TypeTag(s), nil
	}

	if open == 0 || !strings.HasSuffix(s, ")") {
		return Tag{}, zerr.With(ErrInvalidTagExpression, "tag", s)
	}

	id := s[open+1 : len(s)-1]
	if id == "" {
		return Tag{}, zerr.With(ErrInvalidTagExpression, "tag", s)
	}

	return NewTag(s[:open], id), nil
}

// DedupTags returns tags with duplicates removed, preserving first-seen order.
func DedupTags(tags []Tag) []Tag {
	if len(tags) < 2 {
		return tags
	}

	seen := make(map[Tag]struct{}, len(tags))
	out := tags[:0]
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
