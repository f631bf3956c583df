// Package extract pulls image links out of pages into a shared,
// deduplicated result set and streams each page's new links to a Sink.
package extract

import (
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/masahif/yanderelinks/internal/page"
)

// Engine extracts image links from pages.
type Engine struct {
	sink Sink
}

// NewEngine creates an engine that reports new links to sink. sink may be
// nil when only the result set is of interest.
func NewEngine(sink Sink) *Engine {
	return &Engine{sink: sink}
}

// ExtractOne merges the image links of p into set and returns how many were
// new. A gallery index page has no images of its own; each pool it lists is
// opened as its own page, extracted, and closed again. The crawler splits
// gallery pages into per-pool tasks before they get here.
//
// Pages that failed to load contribute nothing. The only errors returned
// come from the sink or from a closed page.
func (e *Engine) ExtractOne(p *page.Page, set *ResultSet) (int, error) {
	if err := p.Err(); err != nil {
		return 0, fmt.Errorf("extract %s: %w", p.Link(), err)
	}
	if !page.IsGalleryIndexPage(p) {
		return e.collect(p, set)
	}

	pools, err := p.PoolPages()
	if err != nil {
		return 0, fmt.Errorf("expand %s: %w", p.Link(), err)
	}
	slog.Debug("Expanded gallery page", "url", p.Link(), "pools", len(pools))

	total := 0
	var errs *multierror.Error
	for _, pool := range pools {
		n, err := e.collect(pool, set)
		total += n
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		_ = pool.Close()
	}
	return total, errs.ErrorOrNil()
}

func (e *Engine) collect(p *page.Page, set *ResultSet) (int, error) {
	links := p.ImageLinks()
	if err := p.Err(); err != nil {
		return 0, fmt.Errorf("extract %s: %w", p.Link(), err)
	}

	added := set.Add(links...)
	slog.Debug("Extracted image links", "url", p.Link(), "found", len(links), "new", len(added))

	if len(added) == 0 || e.sink == nil {
		return len(added), nil
	}
	if err := e.sink.Emit(p.Link(), added); err != nil {
		return len(added), fmt.Errorf("emit %s: %w", p.Link(), err)
	}
	return len(added), nil
}
