package extract

import "sync"

// ResultSet is the deduplicated set of links found during a crawl. It is
// safe for concurrent use; a link added by two pages at once is kept once.
type ResultSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{seen: make(map[string]struct{})}
}

// Add inserts links and returns those that were not already present, in the
// order given. Duplicates within links are collapsed too.
func (s *ResultSet) Add(links ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]string, 0, len(links))
	for _, link := range links {
		if _, ok := s.seen[link]; ok {
			continue
		}
		s.seen[link] = struct{}{}
		s.order = append(s.order, link)
		added = append(added, link)
	}
	return added
}

// Contains reports whether link is in the set.
func (s *ResultSet) Contains(link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[link]
	return ok
}

// Len returns the number of links in the set.
func (s *ResultSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Links returns a copy of the set in insertion order.
func (s *ResultSet) Links() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
