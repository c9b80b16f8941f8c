package fetcher

import "net/http"

// NewWithClient exposes the custom-client constructor for tests.
var NewWithClient = newWithClient

// Client returns the underlying http client, for timeout assertions.
func (f *HTTPFetcher) Client() *http.Client {
	return f.httpClient
}
