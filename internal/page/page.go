// Package page models a single yande.re page: its link, its lazily fetched
// HTML and the links and pagination data scanned out of that HTML.
//
// Fetch failures never surface from the text accessors. A page whose fetch
// failed twice, or was canceled, reads as empty; State and the fetch error
// hook are the only way to tell it apart from a page with no content.
package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/masahif/yanderelinks/internal/fetch"
	"github.com/masahif/yanderelinks/internal/parser"
)

// State is the lifecycle of a page's current fetch.
type State int

const (
	StateNotStarted State = iota
	StateInFlight
	StateCompleted
	StateFailed
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInFlight:
		return "in_flight"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FetchErrorHook is called once when a page gives up fetching after its
// retry, with the error of the last attempt.
type FetchErrorHook func(link string, err error)

type options struct {
	fetcher fetch.Fetcher
	onError FetchErrorHook
	logger  *slog.Logger
}

// Option configures a Page.
type Option func(*options)

// WithFetchErrorHook reports pages that could not be fetched.
func WithFetchErrorHook(hook FetchErrorHook) Option {
	return func(o *options) {
		o.onError = hook
	}
}

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithFetcher gives a page built by NewWithText a fetcher, so that pages
// derived from it (PageAt, NextPage, PoolPages) can be fetched.
func WithFetcher(f fetch.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// attempt is one fetch of the page text. Its fields are written by the
// fetching goroutine before done is closed and only read afterwards.
type attempt struct {
	done     chan struct{}
	cancel   context.CancelFunc
	text     string
	err      error
	retry    bool
	reported sync.Once
}

// Page is one remote document. The link is fixed at construction; the text
// is fetched once in the background and cached. Every derived value is
// recomputed from the cached text on each call.
type Page struct {
	link string
	ctx  context.Context
	opts options

	static bool // text supplied at construction

	mu       sync.Mutex
	cur      *attempt
	stopped  bool // Cancel was called
	disposed bool
}

// New creates a page for link and starts fetching it in the background.
// ctx bounds the fetch and every page derived from this one.
func New(ctx context.Context, link string, fetcher fetch.Fetcher, opts ...Option) (*Page, error) {
	if !validLink(link) {
		return nil, fmt.Errorf("page link %q: %w", link, ErrInvalidArgument)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("page %s: no fetcher: %w", link, ErrInvalidArgument)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p := &Page{link: link, ctx: ctx}
	for _, opt := range opts {
		opt(&p.opts)
	}
	p.opts.fetcher = fetcher
	if p.opts.logger == nil {
		p.opts.logger = slog.Default()
	}

	p.cur = p.launch(false)
	return p, nil
}

// NewWithText creates a page whose text is already known. No fetch is
// issued for it.
func NewWithText(link, text string, opts ...Option) (*Page, error) {
	if !validLink(link) {
		return nil, fmt.Errorf("page link %q: %w", link, ErrInvalidArgument)
	}

	p := &Page{link: link, ctx: context.Background(), static: true}
	for _, opt := range opts {
		opt(&p.opts)
	}
	if p.opts.logger == nil {
		p.opts.logger = slog.Default()
	}

	done := make(chan struct{})
	close(done)
	p.cur = &attempt{done: done, cancel: func() {}, text: text}
	return p, nil
}

// launch starts a fetch attempt. Callers hold p.mu or own p exclusively.
func (p *Page) launch(retry bool) *attempt {
	ctx, cancel := context.WithCancel(p.ctx)
	a := &attempt{done: make(chan struct{}), cancel: cancel, retry: retry}

	go func() {
		defer close(a.done)
		a.text, a.err = p.opts.fetcher.Fetch(ctx, p.link)
	}()
	return a
}

func (p *Page) current() *attempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return nil
	}
	return p.cur
}

// canceled reports whether err, or the page's own context, says the fetch
// was canceled rather than failed.
func (p *Page) canceled(err error) bool {
	return errors.Is(err, context.Canceled) || p.ctx.Err() != nil
}

// Link returns the page link exactly as given at construction.
func (p *Page) Link() string { return p.link }

func (p *Page) String() string { return p.link }

// Err returns ErrDisposed once the page has been closed.
func (p *Page) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return ErrDisposed
	}
	return nil
}

// State reports the state of the current fetch without blocking.
func (p *Page) State() State {
	a := p.current()
	if a == nil {
		return StateCanceled
	}

	select {
	case <-a.done:
	default:
		return StateInFlight
	}

	switch {
	case a.err == nil:
		return StateCompleted
	case p.canceled(a.err):
		return StateCanceled
	default:
		return StateFailed
	}
}

// Text blocks until the page text is available. A failed fetch is retried
// once; if the retry fails too, or the fetch was canceled, Text returns "".
// A closed page also reads as "".
func (p *Page) Text() string {
	for {
		a := p.current()
		if a == nil {
			return ""
		}
		<-a.done

		if a.err == nil {
			return a.text
		}

		p.mu.Lock()
		replaced := !p.disposed && p.cur != a
		stopped := p.stopped
		p.mu.Unlock()
		if replaced {
			// Refresh started a new attempt; wait for that one.
			continue
		}
		if stopped || p.canceled(a.err) {
			return ""
		}
		if a.retry {
			a.reported.Do(func() { p.reportFailure(a.err) })
			return ""
		}

		p.opts.logger.Debug("Retrying page fetch", "url", p.link, "error", a.err)
		p.mu.Lock()
		if !p.disposed && !p.stopped && p.cur == a {
			p.cur = p.launch(true)
		}
		p.mu.Unlock()
	}
}

func (p *Page) reportFailure(err error) {
	p.opts.logger.Warn("Page fetch failed", "url", p.link, "error", err)
	if p.opts.onError != nil {
		p.opts.onError(p.link, err)
	}
}

// Refresh discards the cached text and fetches the page again. A page built
// from text has nothing to refetch and keeps its text. A canceled page
// cannot be refreshed.
func (p *Page) Refresh() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return ErrDisposed
	}
	if p.stopped {
		return ErrCanceled
	}
	if p.static {
		return nil
	}

	p.cur.cancel()
	<-p.cur.done
	p.cur = p.launch(false)
	return nil
}

// Cancel aborts the in-flight fetch and waits for it to settle. No further
// fetch is issued for the page; text that was already fetched stays readable.
func (p *Page) Cancel() error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return ErrDisposed
	}
	p.stopped = true
	a := p.cur
	p.mu.Unlock()

	a.cancel()
	<-a.done
	return nil
}

// Close cancels outstanding work and releases the page. Further operations
// fail with ErrDisposed.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil
	}
	a := p.cur
	p.disposed = true
	p.cur = nil
	p.mu.Unlock()

	a.cancel()
	<-a.done
	return nil
}

// Index is the 1-based position of the page in its series, read from the
// page query parameter.
func (p *Page) Index() int {
	value, ok := indexValue(p.link)
	if !ok {
		return 1
	}
	n, ok := parser.LeadingDigits(value)
	if !ok || n < 1 {
		return 1
	}
	return n
}

// PageCount is the highest index reachable from this page. Without any
// pagination markers the page stands alone and the count is 1; with only a
// previous-page marker this is the last page.
func (p *Page) PageCount() int {
	text := p.Text()

	pos := strings.Index(text, NextPageMarker)
	if pos < 0 {
		if strings.Contains(text, PrevPageMarker) {
			return p.Index()
		}
		return 1
	}

	// A next page exists, so the series is at least one longer.
	minimum := p.Index() + 1
	if next, ok := p.nextLink(text); ok {
		if value, ok := indexValue(next); ok {
			if n, ok := parser.LeadingDigits(value); ok && n > minimum {
				minimum = n
			}
		}
	}

	n, ok := parser.DigitsBefore(text, pos)
	if !ok || n < minimum {
		return minimum
	}
	return n
}

// ImageLinks returns the image links in document order.
func (p *Page) ImageLinks() []string {
	return parser.ScanAll(p.Text(), ImageLinkMarker)
}

// PoolPageLinks returns the absolute links of the pools listed on the page.
func (p *Page) PoolPageLinks() []string {
	values := parser.ScanAll(p.Text(), PoolLinkMarker)
	links := make([]string, 0, len(values))
	for _, v := range values {
		links = append(links, GalleryDetailRoot+parser.Unescape(v))
	}
	return links
}

// PoolPages creates one page per pool link. Each starts fetching at once.
func (p *Page) PoolPages() ([]*Page, error) {
	links := p.PoolPageLinks()
	pages := make([]*Page, 0, len(links))
	for _, link := range links {
		child, err := p.derive(link)
		if err != nil {
			for _, c := range pages {
				_ = c.Close()
			}
			return nil, err
		}
		pages = append(pages, child)
	}
	return pages, nil
}

// PrevPageLink returns the absolute link of the previous page, if any.
func (p *Page) PrevPageLink() (string, bool) {
	href, ok := parser.ScanFirst(p.Text(), PrevPageMarker)
	if !ok {
		return "", false
	}
	return resolveSiteLink(href), true
}

// NextPageLink returns the absolute link of the next page, if any.
func (p *Page) NextPageLink() (string, bool) {
	return p.nextLink(p.Text())
}

func (p *Page) nextLink(text string) (string, bool) {
	href, ok := parser.ScanFirst(text, NextPageMarker)
	if !ok {
		return "", false
	}
	return resolveSiteLink(href), true
}

// PrevPage returns the previous page, or nil at the start of a series.
func (p *Page) PrevPage() (*Page, error) {
	link, ok := p.PrevPageLink()
	if !ok {
		return nil, p.Err()
	}
	return p.derive(link)
}

// NextPage returns the next page, or nil at the end of a series.
func (p *Page) NextPage() (*Page, error) {
	link, ok := p.NextPageLink()
	if !ok {
		return nil, p.Err()
	}
	return p.derive(link)
}

// PageAt returns the page with index n in this page's series without
// walking the series. PageAt(0) is p itself. No bounds check is made; use
// At for that.
func (p *Page) PageAt(n int) (*Page, error) {
	if err := p.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		return p, nil
	}
	return p.derive(linkAt(p.link, n))
}

// At is PageAt restricted to [0, PageCount].
func (p *Page) At(n int) (*Page, error) {
	if err := p.Err(); err != nil {
		return nil, err
	}
	if n < 0 || n > p.PageCount() {
		return nil, fmt.Errorf("%d not in [0, %d]: %w", n, p.PageCount(), ErrIndexOutOfRange)
	}
	return p.PageAt(n)
}

// derive creates a sibling page sharing this page's context and options.
func (p *Page) derive(link string) (*Page, error) {
	if err := p.Err(); err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(p.opts.logger)}
	if p.opts.onError != nil {
		opts = append(opts, WithFetchErrorHook(p.opts.onError))
	}
	return New(p.ctx, link, p.opts.fetcher, opts...)
}

// Key is the normalized form of the link used for equality: scheme, host,
// port and path, plus the query parameters as an unordered set.
func (p *Page) Key() string {
	return normalizeLink(p.link)
}

// Equal reports whether both pages address the same resource. Query
// parameter order does not matter.
func (p *Page) Equal(other *Page) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Key() == other.Key()
}
