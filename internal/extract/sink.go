package extract

import "github.com/hashicorp/go-multierror"

// Sink receives the links each page contributed to the result set. Emit is
// called from worker goroutines and must be safe for concurrent use.
type Sink interface {
	Emit(page string, links []string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(page string, links []string) error

// Emit calls f(page, links).
func (f SinkFunc) Emit(page string, links []string) error {
	return f(page, links)
}

// MultiSink forwards every batch to each of its sinks. All sinks are tried;
// their errors are combined.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(page string, links []string) error {
	var result *multierror.Error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(page, links); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
