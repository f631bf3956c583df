// Package fetch provides the transport that pages read their HTML from.
// The page model only depends on the Fetcher interface; HTTPClient is the
// production implementation with per-host rate limiting, optional robots.txt
// compliance and cancellation of pending requests.
package fetch

import (
	"context"
	"errors"
)

var (
	// ErrStatus is returned when the server answers with a non-2xx status.
	ErrStatus = errors.New("unexpected HTTP status")
	// ErrDisallowed is returned when robots.txt forbids the requested path.
	ErrDisallowed = errors.New("disallowed by robots.txt")
	// ErrClosed is returned by a client that has been closed.
	ErrClosed = errors.New("http client closed")
)

// Fetcher retrieves the body of a page as text. Implementations must honour
// ctx cancellation and report it with an error wrapping context.Canceled.
type Fetcher interface {
	Fetch(ctx context.Context, link string) (string, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, link string) (string, error)

// Fetch calls f(ctx, link).
func (f FetcherFunc) Fetch(ctx context.Context, link string) (string, error) {
	return f(ctx, link)
}
