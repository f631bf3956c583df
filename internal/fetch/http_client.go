package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

// Options configures an HTTPClient.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	RequestDelay  time.Duration // minimum gap between requests to one host
	RespectRobots bool
}

// HTTPClient fetches pages over HTTP. Every request it issues is tracked so
// that CancelPending can abort all of them without closing the client.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	limiter   *RateLimiter
	robots    *RobotsRules // nil when robots.txt is ignored

	mu      sync.Mutex
	pending map[uint64]context.CancelFunc
	nextID  uint64
	closed  bool
}

// response is the raw result of a single GET.
type response struct {
	StatusCode   int
	Body         string
	TTFB         time.Duration
	DownloadTime time.Duration
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(opts Options) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	h := &HTTPClient{
		client:    client,
		userAgent: opts.UserAgent,
		limiter:   NewRateLimiter(opts.RequestDelay),
		pending:   make(map[uint64]context.CancelFunc),
	}
	if opts.RespectRobots {
		h.robots = NewRobotsRules(h.get, opts.UserAgent)
		h.robots.OnCrawlDelay = func(host string, delay time.Duration) {
			if delay > opts.RequestDelay {
				slog.Info("Applying robots.txt crawl delay", "host", host, "delay", delay)
				h.limiter.SetHostDelay(host, delay)
			}
		}
	}
	return h
}

// Fetch waits for the host's rate limiter, checks robots.txt when enabled
// and returns the response body of a GET request for link.
func (h *HTTPClient) Fetch(ctx context.Context, link string) (string, error) {
	if err := h.limiter.Wait(ctx, link); err != nil {
		return "", err
	}

	if h.robots != nil {
		allowed, err := h.robots.IsAllowed(ctx, link)
		if err != nil {
			slog.Debug("robots.txt check failed", "url", link, "error", err)
		}
		if !allowed {
			return "", fmt.Errorf("%s: %w", link, ErrDisallowed)
		}
	}

	resp, err := h.get(ctx, link)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%s: %w: %d", link, ErrStatus, resp.StatusCode)
	}

	slog.Debug("Fetched page", "url", link, "bytes", len(resp.Body),
		"ttfb", resp.TTFB, "download_time", resp.DownloadTime)
	return resp.Body, nil
}

// CancelPending aborts every request currently in flight. Requests issued
// afterwards proceed normally.
func (h *HTTPClient) CancelPending() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, cancel := range h.pending {
		cancel()
		delete(h.pending, id)
	}
}

// Close cancels pending requests and releases idle connections. Fetch fails
// with ErrClosed afterwards.
func (h *HTTPClient) Close() {
	h.CancelPending()

	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.client.CloseIdleConnections()
}

// track registers a cancelable request context.
func (h *HTTPClient) track(ctx context.Context) (context.Context, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, ErrClosed
	}

	reqCtx, cancel := context.WithCancel(ctx)
	id := h.nextID
	h.nextID++
	h.pending[id] = cancel

	release := func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
		cancel()
	}
	return reqCtx, release, nil
}

// get performs a GET request and records time to first byte and total
// download time.
func (h *HTTPClient) get(ctx context.Context, link string) (*response, error) {
	reqCtx, release, err := h.track(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	var firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByte = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := &response{
		StatusCode:   resp.StatusCode,
		Body:         string(body),
		DownloadTime: time.Since(start),
	}
	if !firstByte.IsZero() {
		result.TTFB = firstByte.Sub(start)
	}
	return result, nil
}

var _ Fetcher = (*HTTPClient)(nil)
