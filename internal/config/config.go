// Package config provides configuration management for the link extractor.
// It defines configuration structures, default values and validation.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/masahif/yanderelinks/internal/page"
)

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// What to crawl
	PageLinks []string `mapstructure:"page_links" yaml:"page_links"` // Pages to extract from
	Enumerate int      `mapstructure:"enumerate" yaml:"enumerate"`   // Pages per link: 0=that page only, -1=to the last page

	// Crawling parameters
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`         // Number of pages extracted in parallel
	RequestDelay   time.Duration `mapstructure:"request_delay" yaml:"request_delay"`     // Minimum gap between requests to one host
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // HTTP request timeout
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header
	RespectRobots  bool          `mapstructure:"respect_robots" yaml:"respect_robots"`   // Whether to respect robots.txt
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`     // Completion polling interval

	// Output
	OutputPath   string `mapstructure:"output" yaml:"output"`               // File to append links to
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // SQLite export (empty=none)
	Quiet        bool   `mapstructure:"quiet" yaml:"quiet"`                 // Do not print links to stdout

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		Enumerate:      0,
		Concurrency:    runtime.NumCPU(),
		RequestDelay:   100 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
		UserAgent:      "yanderelinks/1.0",
		RespectRobots:  false,
		PollInterval:   10 * time.Millisecond,
		LogLevel:       "info",
	}
}

// Validate checks the configuration and reports every problem found. Each
// problem wraps one of the package's sentinel errors.
func (c *CrawlConfig) Validate() error {
	var result *multierror.Error

	if len(c.PageLinks) == 0 {
		result = multierror.Append(result, ErrNoPageLinks)
	}
	for _, link := range c.PageLinks {
		if !onSite(link) {
			result = multierror.Append(result, fmt.Errorf("%q: %w", link, ErrForeignPageLink))
		}
	}

	if c.Enumerate < -1 {
		result = multierror.Append(result, ErrInvalidEnumerate)
	}
	if c.Concurrency <= 0 {
		result = multierror.Append(result, ErrInvalidConcurrency)
	}
	if c.RequestTimeout <= 0 {
		result = multierror.Append(result, ErrInvalidTimeout)
	}
	if c.RequestDelay < 0 {
		result = multierror.Append(result, ErrInvalidDelay)
	}
	if c.PollInterval <= 0 {
		result = multierror.Append(result, ErrInvalidPollInterval)
	}

	return result.ErrorOrNil()
}

// onSite reports whether link is the site root or a path below it.
func onSite(link string) bool {
	rest, ok := strings.CutPrefix(link, page.SiteRoot)
	return ok && (rest == "" || rest[0] == '/' || rest[0] == '?')
}

// FormatPageLink completes a page link typed on the command line: a link
// without a scheme and a plain http link to the site both become https.
// Anything else is returned unchanged.
func FormatPageLink(link string) string {
	link = strings.TrimSpace(link)
	host := strings.TrimPrefix(page.SiteRoot, "https://")

	switch {
	case strings.HasPrefix(link, host):
		return "https://" + link
	case strings.HasPrefix(link, "http://"+host):
		return "https://" + strings.TrimPrefix(link, "http://")
	default:
		return link
	}
}

// FormatPageLinks applies FormatPageLink to each link. With no links it
// returns the site root.
func FormatPageLinks(links []string) []string {
	if len(links) == 0 {
		return []string{page.SiteRoot}
	}

	formatted := make([]string, 0, len(links))
	for _, link := range links {
		formatted = append(formatted, FormatPageLink(link))
	}
	return formatted
}
