// Package crawler schedules link extraction over one page or a run of pages
// on a bounded worker pool. It tracks outstanding work with an atomic
// counter, supports cooperative cancellation and decides completion.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/masahif/yanderelinks/internal/extract"
	"github.com/masahif/yanderelinks/internal/fetch"
	"github.com/masahif/yanderelinks/internal/page"
)

// notStarted is the outstanding-work sentinel before the first dispatch.
const notStarted = -1

// Orchestrator runs extraction tasks. Dispatch happens on the caller's
// goroutine; extraction runs on the pool.
type Orchestrator struct {
	config  Config
	fetcher fetch.Fetcher
	engine  Extractor
	results *extract.ResultSet
	runID   string

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	outstanding atomic.Int64
	state       atomic.Int32
	nextTask    atomic.Int64

	stats      CrawlStats
	statsMutex sync.RWMutex
}

// New creates an orchestrator. Pages it creates, and pages derived from
// them, fetch under a context that RequestCancellation cancels; ctx
// canceling has the same effect.
func New(ctx context.Context, config Config, fetcher fetch.Fetcher, engine Extractor) *Orchestrator {
	config = config.withDefaults()
	runID := config.RunID

	o := &Orchestrator{
		config:  config,
		fetcher: fetcher,
		engine:  engine,
		results: extract.NewResultSet(),
		runID:   runID,
		stats: CrawlStats{
			RunID:     runID,
			StartTime: config.Clock.Now(),
		},
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.group.SetLimit(config.Concurrency)
	o.outstanding.Store(notStarted)
	return o
}

// RunID identifies this crawl in logs and exports.
func (o *Orchestrator) RunID() string { return o.runID }

// Results returns the shared result set.
func (o *Orchestrator) Results() *extract.ResultSet { return o.results }

// State returns the current crawl state.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Outstanding returns the number of dispatched tasks that have not finished,
// or -1 before the first dispatch.
func (o *Orchestrator) Outstanding() int64 { return o.outstanding.Load() }

// NewPage creates a page that fetches under the orchestrator's context and
// counts fetch failures in the crawl stats.
func (o *Orchestrator) NewPage(link string, opts ...page.Option) (*page.Page, error) {
	opts = append([]page.Option{page.WithFetchErrorHook(o.recordFetchError)}, opts...)
	return page.New(o.ctx, link, o.fetcher, opts...)
}

// ExtractSinglePage dispatches extraction of p. A gallery index page is
// split into one task per pool it lists; the pool pages are created one at
// a time as workers become free. The caller keeps ownership of p.
func (o *Orchestrator) ExtractSinglePage(p *page.Page) error {
	if p == nil {
		return ErrNilPage
	}
	return o.extract(p, false)
}

// extract dispatches p, or the pools of a gallery index page. owned pages
// are closed once they are no longer needed.
func (o *Orchestrator) extract(p *page.Page, owned bool) error {
	if !page.IsGalleryIndexPage(p) {
		err := o.dispatch(p, owned)
		if err != nil && owned {
			_ = p.Close()
		}
		return err
	}
	if owned {
		defer func() { _ = p.Close() }()
	}

	links := p.PoolPageLinks()
	if err := p.Err(); err != nil {
		return fmt.Errorf("expand %s: %w", p.Link(), err)
	}
	slog.Debug("Expanding gallery page", "run_id", o.runID, "url", p.Link(), "pools", len(links))

	for _, link := range links {
		if o.ctx.Err() != nil {
			return ErrCanceled
		}
		pool, err := o.NewPage(link)
		if err != nil {
			return fmt.Errorf("pool %s: %w", link, err)
		}
		if err := o.dispatch(pool, true); err != nil {
			_ = pool.Close()
			return err
		}
	}
	return nil
}

// EnumeratePages dispatches extraction of a run of pages starting at
// start's index. count < 0 runs to the last page of the series, count == 0
// extracts start alone, and count > 0 extracts exactly count pages. Pages
// are reached by index, not by following next links, so they are fetched in
// parallel. Each page goes through ExtractSinglePage's splitting.
//
// start itself is always extracted, even when its page count is unknown
// because its fetch failed.
func (o *Orchestrator) EnumeratePages(start *page.Page, count int) error {
	if start == nil {
		return ErrNilPage
	}

	first := start.Index()
	switch {
	case count < 0:
		count = start.PageCount() - first + 1
	case count == 0:
		count = 1
	}
	count = max(count, 1)
	slog.Info("Enumerating pages", "run_id", o.runID, "start", start.Link(), "from", first, "count", count)

	for i := first; i < first+count; i++ {
		if o.ctx.Err() != nil {
			slog.Info("Enumeration stopped by cancellation", "run_id", o.runID, "next_index", i)
			return ErrCanceled
		}

		if i == first {
			if err := o.extract(start, false); err != nil {
				return err
			}
			continue
		}

		p, err := start.PageAt(i)
		if err != nil {
			return fmt.Errorf("page %d of %s: %w", i, start.Link(), err)
		}
		if err := o.extract(p, true); err != nil {
			return err
		}
	}
	return nil
}

// dispatch counts the task and hands it to the pool. It blocks while every
// worker is busy. owned pages are closed when their task ends.
func (o *Orchestrator) dispatch(p *page.Page, owned bool) error {
	if o.ctx.Err() != nil {
		return ErrCanceled
	}

	o.outstanding.CompareAndSwap(notStarted, 0)
	o.outstanding.Add(1)
	o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning))
	o.state.CompareAndSwap(int32(StateCompleted), int32(StateRunning))

	id := o.nextTask.Add(1)
	o.updateStats(func(s *CrawlStats) { s.PagesDispatched++ })

	o.group.Go(func() error {
		defer o.outstanding.Add(-1)
		if owned {
			defer func() { _ = p.Close() }()
		}
		o.process(id, p)
		return nil
	})
	return nil
}

// process extracts one page. Failures only reduce the output.
func (o *Orchestrator) process(id int64, p *page.Page) {
	if o.ctx.Err() != nil {
		slog.Debug("Skipping page after cancellation", "task_id", id, "url", p.Link())
		o.updateStats(func(s *CrawlStats) { s.PagesSkipped++ })
		return
	}

	n, err := o.engine.ExtractOne(p, o.results)
	if err != nil {
		slog.Error("Task failed to extract page", "task_id", id, "url", p.Link(), "error", err)
	}

	o.updateStats(func(s *CrawlStats) {
		s.PagesProcessed++
		s.LinksFound += n
		if err != nil {
			s.ErrorCount++
		}
	})
	slog.Info("Task processed page", "task_id", id, "url", p.Link(), "links", n)
}

// RequestCancellation stops further dispatch and aborts pending fetches.
// Tasks already running finish their current page. It does not block.
func (o *Orchestrator) RequestCancellation() {
	slog.Info("Crawl cancellation requested", "run_id", o.runID)
	o.cancel()
	if pc, ok := o.fetcher.(PendingCanceler); ok {
		pc.CancelPending()
	}
}

// AwaitCompletion blocks until every dispatched task has finished, polling
// the outstanding counter every PollInterval. It returns ctx.Err() if ctx
// ends first. An orchestrator that never dispatched returns at once.
func (o *Orchestrator) AwaitCompletion(ctx context.Context) error {
	clk := o.config.Clock
	lastReport := clk.Now()

	for o.outstanding.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(o.config.PollInterval):
		}

		if o.config.StatsInterval > 0 && clk.Now().Sub(lastReport) >= o.config.StatsInterval {
			lastReport = clk.Now()
			stats := o.GetStats()
			slog.Info("Crawling stats", "run_id", o.runID, "processed", stats.PagesProcessed,
				"outstanding", o.outstanding.Load(), "links", stats.LinksFound, "duration", stats.Duration)
		}
	}

	// The counter drops before a task goroutine returns.
	_ = o.group.Wait()

	if o.ctx.Err() != nil {
		o.state.Store(int32(StateCanceled))
	} else {
		o.state.CompareAndSwap(int32(StateRunning), int32(StateCompleted))
	}

	stats := o.GetStats()
	slog.Info("Crawl finished", "run_id", o.runID, "state", o.State(), "processed", stats.PagesProcessed,
		"skipped", stats.PagesSkipped, "links", o.results.Len(), "fetch_errors", stats.FetchErrors,
		"duration", stats.Duration)
	return nil
}

// GetStats returns current crawling statistics
func (o *Orchestrator) GetStats() CrawlStats {
	o.statsMutex.RLock()
	defer o.statsMutex.RUnlock()

	stats := o.stats
	stats.Duration = o.config.Clock.Now().Sub(stats.StartTime)
	return stats
}

func (o *Orchestrator) updateStats(update func(*CrawlStats)) {
	o.statsMutex.Lock()
	defer o.statsMutex.Unlock()
	update(&o.stats)
}

func (o *Orchestrator) recordFetchError(link string, err error) {
	o.updateStats(func(s *CrawlStats) { s.FetchErrors++ })
}
