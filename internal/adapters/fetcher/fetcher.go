// Package fetcher implements the Fetcher port over HTTP.
package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/requery/internal/core/ports"
	"go.trai.ch/zerr"
)

const httpClientTimeout = 30 * time.Second

var _ ports.Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher executes endpoint requests against a base URL.
type HTTPFetcher struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

// New creates a fetcher for the given base URL. The headers are attached to
// every request.
func New(baseURL string, headers map[string]string) *HTTPFetcher {
	return newWithClient(baseURL, headers, &http.Client{
		Timeout: httpClientTimeout,
	})
}

// newWithClient creates a fetcher with a custom http client (used for testing).
func newWithClient(baseURL string, headers map[string]string, client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    headers,
		httpClient: client,
	}
}

// Do executes the request. Non-2xx responses are returned as responses; an
// error means the request never produced one.
func (f *HTTPFetcher) Do(ctx context.Context, req ports.Request) (ports.Response, error) {
	target, err := f.buildURL(req)
	if err != nil {
		return ports.Response{}, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return ports.Response{}, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "url", target)
	}

	for key, value := range f.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Header {
		httpReq.Header.Set(key, value)
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return ports.Response{}, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "url", target)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ports.Response{}, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "url", target)
	}

	header := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		header[key] = resp.Header.Get(key)
	}

	return ports.Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       respBody,
	}, nil
}

func (f *HTTPFetcher) buildURL(req ports.Request) (string, error) {
	target, err := url.Parse(f.baseURL + req.Path)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "path", req.Path)
	}

	if len(req.Query) > 0 {
		values := target.Query()
		for key, value := range req.Query {
			values.Set(key, value)
		}
		target.RawQuery = values.Encode()
	}

	return target.String(), nil
}
