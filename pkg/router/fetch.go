package router

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// maxPageSize bounds how much of a page body is read.
const maxPageSize = 16 << 20

// Fetcher loads the HTML of a page. Fetch runs off the runtime thread and
// must not touch runtime state.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, u *url.URL) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, u *url.URL) ([]byte, error) { return f(ctx, u) }

// StatusError reports a page answered with a non-2xx status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("router: GET %s: status %d", e.URL, e.Status)
}

// HTTPFetcher fetches pages over HTTP.
type HTTPFetcher struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// Header is added to every request.
	Header http.Header
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range f.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/html")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: u.String(), Status: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
}

// MapFetcher serves pages from memory, keyed by path with an optional
// "?query". It is safe for concurrent use.
type MapFetcher struct {
	mu    sync.RWMutex
	pages map[string]string
}

// NewMapFetcher creates a MapFetcher over pages.
func NewMapFetcher(pages map[string]string) *MapFetcher {
	m := &MapFetcher{pages: make(map[string]string, len(pages))}
	for k, v := range pages {
		m.pages[k] = v
	}
	return m
}

// Set adds or replaces a page.
func (m *MapFetcher) Set(path, html string) {
	m.mu.Lock()
	m.pages[path] = html
	m.mu.Unlock()
}

// Fetch implements Fetcher.
func (m *MapFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u.RawQuery != "" {
		if page, ok := m.pages[u.Path+"?"+u.RawQuery]; ok {
			return []byte(page), nil
		}
	}
	if page, ok := m.pages[u.Path]; ok {
		return []byte(page), nil
	}
	return nil, &StatusError{URL: u.String(), Status: http.StatusNotFound}
}
