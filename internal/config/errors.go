package config

import (
	"errors"

	"github.com/nao1215/vutcrawl/internal/ratelimit"
)

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidLocale is returned for a locale other than cs or en.
	ErrInvalidLocale = errors.New("invalid locale: must be cs or en")

	// ErrNegativeDelay is returned when a delay bound is negative. It is the
	// limiter's error, so callers can match either name.
	ErrNegativeDelay = ratelimit.ErrNegativeDelay

	// ErrInvalidDelayRange is returned when the minimum delay exceeds the maximum.
	ErrInvalidDelayRange = ratelimit.ErrInvalidDelayRange

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxAttempts is returned when fewer than one attempt is allowed.
	ErrInvalidMaxAttempts = errors.New("invalid attempts: must be at least 1")

	// ErrInvalidBackoffMultiplier is returned when the multiplier is below 1.
	ErrInvalidBackoffMultiplier = ratelimit.ErrInvalidMultiplier

	// ErrInvalidMaxBackoff is returned when the backoff cap is negative.
	ErrInvalidMaxBackoff = errors.New("invalid max backoff: must be non-negative")

	// ErrInvalidPersistEvery is returned when the persist interval is below 1.
	ErrInvalidPersistEvery = errors.New("invalid persist interval: must be at least 1")

	// ErrInvalidMaxBodySize is returned when the body size limit is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidBaseURL is returned when the base URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrNoStateDir is returned when no state directory is configured.
	ErrNoStateDir = errors.New("no state directory configured")

	// ErrNoDataDir is returned when no output directory is configured.
	ErrNoDataDir = errors.New("no data directory configured")

	// ErrNoSink is returned when no output sink is enabled.
	ErrNoSink = errors.New("no sink configured")

	// ErrUnknownSink is returned for a sink name other than json, csv or sqlite.
	ErrUnknownSink = errors.New("unknown sink")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
