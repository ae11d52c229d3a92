package router

import (
	"fmt"
	"net/url"
)

// NavigateOptions configures one navigation.
type NavigateOptions struct {
	// Replace replaces the current history entry instead of pushing.
	Replace bool

	// Params are query parameters to add to the URL.
	Params map[string]any

	// Force fetches the page even when a prefetched copy exists.
	Force bool

	// history marks navigations caused by Back and Forward, which move
	// within the history instead of adding to it.
	history bool
}

// NavigateOption is a functional option for Navigate.
type NavigateOption func(*NavigateOptions)

// WithReplace replaces the current history entry instead of pushing.
func WithReplace() NavigateOption {
	return func(o *NavigateOptions) {
		o.Replace = true
	}
}

// WithParams adds query parameters to the navigation URL.
func WithParams(params map[string]any) NavigateOption {
	return func(o *NavigateOptions) {
		o.Params = params
	}
}

// WithForce ignores prefetched pages.
func WithForce() NavigateOption {
	return func(o *NavigateOptions) {
		o.Force = true
	}
}

// Status is the lifecycle state of a navigation request.
type Status uint8

const (
	StatusPending Status = iota
	StatusCommitted
	StatusStale
	StatusFailed
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCommitted:
		return "committed"
	case StatusStale:
		return "stale"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request is one navigation. At most one request is committed at a time:
// the one with the highest ID that has resolved.
type Request struct {
	ID      uint64
	URL     *url.URL
	Status  Status
	Options NavigateOptions

	// Regions lists the ids of the regions the request patched.
	Regions []string
	// Err is set for failed requests.
	Err error
}

// buildURL applies the query parameters of opts to u.
func buildURL(u *url.URL, opts NavigateOptions) *url.URL {
	if opts.Params == nil {
		return u
	}
	out := *u
	q := out.Query()
	for k, v := range opts.Params {
		q.Set(k, fmt.Sprintf("%v", v))
	}
	out.RawQuery = q.Encode()
	return &out
}
