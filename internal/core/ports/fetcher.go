// Package ports defines the core interfaces for the library.
package ports

import "context"

// Request is a transport-neutral description of an upstream request.
type Request struct {
	// Method is the request method, e.g. "GET" or "POST".
	Method string
	// Path is the request path relative to the fetcher's base URL.
	Path string
	// Query holds URL query parameters.
	Query map[string]string
	// Header holds request headers.
	Header map[string]string
	// Body is the raw request body, nil for body-less requests.
	Body []byte
}

// Response is the raw upstream response before any transform is applied.
type Response struct {
	// StatusCode is the upstream status code.
	StatusCode int
	// Header holds response headers.
	Header map[string]string
	// Body is the raw response body.
	Body []byte
}

// Fetcher executes upstream requests on behalf of endpoints.
//
// Implementations must honor context cancellation. A non-2xx response is
// returned as a Response, not an error; errors are reserved for transport
// failures.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Do executes the request and returns the raw response.
	Do(ctx context.Context, req Request) (Response, error)
}
