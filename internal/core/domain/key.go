package domain

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// CacheKey identifies a cache entry by endpoint name and argument hash.
//
// The argument hash is the XXHash of the canonical JSON encoding of the
// argument, so two structurally equal arguments always address the same
// entry. CacheKey is comparable and used directly as a map key.
type CacheKey struct {
	// Endpoint is the endpoint name the entry belongs to.
	Endpoint string
	// ArgHash is the XXHash64 of the canonical JSON encoding of the argument.
	ArgHash uint64
}

// NewCacheKey computes the cache key for an endpoint call.
//
// encoding/json sorts map keys and encodes struct fields in declaration
// order, which makes the encoding canonical for any given argument type.
func NewCacheKey(endpoint string, arg any) (CacheKey, error) {
	encoded, err := json.Marshal(arg)
	if err != nil {
		return CacheKey{}, zerr.With(
			zerr.Wrap(err, ErrKeyEncodingFailed.Error()),
			"endpoint", endpoint,
		)
	}

	return CacheKey{
		Endpoint: endpoint,
		ArgHash:  xxhash.Sum64(encoded),
	}, nil
}

// String renders the key as "endpoint@hash" for logs and persistence.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s@%016x", k.Endpoint, k.ArgHash)
}
