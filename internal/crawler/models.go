package crawler

import (
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
)

// Config holds orchestrator configuration
type Config struct {
	RunID         string        // Identifies the crawl; empty means a fresh UUID
	Concurrency   int           // Number of pages extracted in parallel
	PollInterval  time.Duration // How often AwaitCompletion checks the outstanding counter
	StatsInterval time.Duration // How often AwaitCompletion logs progress (0=never)
	Clock         clock.Clock
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	return c
}

// State is the lifecycle of a crawl.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CrawlStats represents crawling statistics
type CrawlStats struct {
	RunID           string
	PagesDispatched int
	PagesProcessed  int
	PagesSkipped    int // dispatched but dropped after cancellation
	LinksFound      int
	FetchErrors     int // pages that could not be fetched even after a retry
	ErrorCount      int // extraction or sink errors
	StartTime       time.Time
	Duration        time.Duration
}
