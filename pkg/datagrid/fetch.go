package datagrid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
)

// Fetcher retrieves one page of results from a data source.
type Fetcher interface {
	Fetch(ctx context.Context, source, query string) (*Response, error)
}

// HTTPFetcher fetches results from a JSON endpoint with GET requests.
type HTTPFetcher struct {
	client *http.Client
	base   *url.URL
}

// NewHTTPFetcher returns a fetcher using client, or http.DefaultClient
// when client is nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

// WithBase returns a copy of f that resolves relative sources against
// base.
func (f *HTTPFetcher) WithBase(base string) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", base)
	}
	return &HTTPFetcher{client: f.client, base: u}, nil
}

func (f *HTTPFetcher) resolve(source string) (string, error) {
	if f.base == nil {
		return source, nil
	}
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse source: %w", err)
	}
	return f.base.ResolveReference(u).String(), nil
}

// Fetch issues the request and decodes the response. Non-2xx replies are
// returned as *FetchError carrying the status code.
func (f *HTTPFetcher) Fetch(ctx context.Context, source, query string) (*Response, error) {
	target, err := f.resolve(source)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinQuery(target, query), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	return DecodeResponse(body)
}

// DecodeResponse parses a response document, keeping the whole payload
// in Data for templates.
func DecodeResponse(body []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(body, &r.Data); err != nil {
		return nil, fmt.Errorf("decode response payload: %w", err)
	}
	return &r, nil
}
