package app

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/zerr"
)

var pathPlaceholderRegex = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// buildRequest turns an endpoint definition into a request builder. Path
// placeholders like /users/{id} consume the matching argument; leftover
// arguments become query parameters for body-less methods and the JSON
// body otherwise.
func buildRequest(ep domain.EndpointSpec) func(arg map[string]any) (ports.Request, error) {
	return func(arg map[string]any) (ports.Request, error) {
		remaining := make(map[string]any, len(arg))
		for k, v := range arg {
			remaining[k] = v
		}

		var missing error
		path := pathPlaceholderRegex.ReplaceAllStringFunc(ep.Path, func(match string) string {
			name := match[1 : len(match)-1]
			value, ok := remaining[name]
			if !ok {
				missing = zerr.With(zerr.With(domain.ErrMissingArgument, "argument", name), "endpoint", ep.Name)
				return match
			}
			delete(remaining, name)
			return url.PathEscape(fmt.Sprintf("%v", value))
		})
		if missing != nil {
			return ports.Request{}, missing
		}

		req := ports.Request{
			Method: ep.Method,
			Path:   path,
		}

		if len(remaining) == 0 {
			return req, nil
		}

		if bodylessMethod(ep.Method) {
			req.Query = make(map[string]string, len(remaining))
			for k, v := range remaining {
				req.Query[k] = fmt.Sprintf("%v", v)
			}
			return req, nil
		}

		body, err := json.Marshal(remaining)
		if err != nil {
			return ports.Request{}, zerr.Wrap(err, domain.ErrKeyEncodingFailed.Error())
		}
		req.Body = body

		return req, nil
	}
}

func bodylessMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "DELETE":
		return true
	default:
		return false
	}
}
