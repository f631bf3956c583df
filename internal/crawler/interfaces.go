package crawler

import (
	"errors"

	"github.com/masahif/yanderelinks/internal/extract"
	"github.com/masahif/yanderelinks/internal/page"
)

var (
	// ErrCanceled is returned when work is dispatched after cancellation.
	ErrCanceled = errors.New("crawl canceled")
	// ErrNilPage is returned when a nil page is dispatched.
	ErrNilPage = errors.New("nil page")
)

// Extractor merges the links of one page into a result set.
type Extractor interface {
	ExtractOne(p *page.Page, set *extract.ResultSet) (int, error)
}

// PendingCanceler is implemented by fetchers that can abort every request in
// flight without being closed.
type PendingCanceler interface {
	CancelPending()
}
