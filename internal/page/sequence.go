package page

import "iter"

// Sequence walks a series forward from a start page by following next-page
// links. It is lazy: a page is fetched only when the walk reaches it.
//
// Pages produced by the walk, other than the start page, belong to the
// sequence and are closed when it moves past them or is reset.
type Sequence struct {
	start   *Page
	current *Page
	err     error
	started bool
}

// NewSequence creates a sequence positioned before start.
func NewSequence(start *Page) *Sequence {
	return &Sequence{start: start}
}

// Next advances to the following page. It returns false at the end of the
// series or when the next page cannot be created; Err tells the two apart.
func (s *Sequence) Next() bool {
	if s.err != nil || s.start == nil {
		return false
	}
	if !s.started {
		s.started = true
		s.current = s.start
		return true
	}
	if s.current == nil {
		return false
	}

	next, err := s.current.NextPage()
	s.release(s.current)
	s.current = next
	if err != nil {
		s.err = err
		return false
	}
	return next != nil
}

// Page returns the current page, or nil before the first Next and after the
// end of the series.
func (s *Sequence) Page() *Page {
	if !s.started {
		return nil
	}
	return s.current
}

// Err returns the error that stopped the walk, if any.
func (s *Sequence) Err() error {
	return s.err
}

// Reset rewinds the sequence to before its start page.
func (s *Sequence) Reset() {
	s.release(s.current)
	s.current = nil
	s.err = nil
	s.started = false
}

func (s *Sequence) release(p *Page) {
	if p != nil && p != s.start {
		_ = p.Close()
	}
}

// All yields p followed by each page reached through next-page links. Pages
// after p are closed once the loop body moves past them.
func (p *Page) All() iter.Seq[*Page] {
	return func(yield func(*Page) bool) {
		seq := NewSequence(p)
		defer seq.Reset()
		for seq.Next() {
			if !yield(seq.Page()) {
				return
			}
		}
	}
}
