package query

import (
	"encoding/json"

	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/zerr"
)

// convertValue coerces a cached value into T. Values produced by a typed
// endpoint assert directly; values rehydrated from a snapshot arrive as
// generic YAML/JSON shapes and are re-decoded through JSON.
func convertValue[T any](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}

	var t T
	if v == nil {
		return t, nil
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return t, zerr.Wrap(err, domain.ErrTransformFailed.Error())
	}
	if err := json.Unmarshal(encoded, &t); err != nil {
		return t, zerr.Wrap(err, domain.ErrTransformFailed.Error())
	}

	return t, nil
}
