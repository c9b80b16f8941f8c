package commands

import (
	"encoding/json"
	"strings"

	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/zerr"
)

// parseArgs turns repeated --arg key=value flags into an endpoint argument.
// Values that parse as JSON keep their type, so --arg id=7 yields a number
// and --arg active=true a boolean. Everything else stays a string.
func parseArgs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, zerr.With(domain.ErrInvalidArgument, "flag", pair)
		}

		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		args[key] = parsed
	}
	return args, nil
}
