package config

import "errors"

var (
	// ErrNoPageLinks is returned when no page links are configured
	ErrNoPageLinks = errors.New("no page links provided")
	// ErrForeignPageLink is returned for a page link outside the site
	ErrForeignPageLink = errors.New("page link is not on yande.re")
	// ErrInvalidEnumerate is returned when enumerate is below -1
	ErrInvalidEnumerate = errors.New("enumerate must be -1, 0 or a page count")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidDelay is returned when request delay is negative
	ErrInvalidDelay = errors.New("request_delay cannot be negative")
	// ErrInvalidPollInterval is returned when poll interval is not greater than 0
	ErrInvalidPollInterval = errors.New("poll_interval must be greater than 0")
)
