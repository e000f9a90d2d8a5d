package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/nao1215/vutcrawl/internal/config"
	"github.com/nao1215/vutcrawl/internal/model"
	"github.com/nao1215/vutcrawl/internal/ratelimit"
	"github.com/nao1215/vutcrawl/internal/state"
)

// Engine runs one crawl of one locale.
type Engine struct {
	cfg     *config.Config
	fetcher Fetcher
	sink    Sink
	store   state.Store

	// randSource seeds the rate limiter; nil uses a time-based seed.
	randSource rand.Source

	sleep  SleepFunc
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its walker.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRandSource sets the random source of the rate limiter.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) {
		e.randSource = src
	}
}

// WithSleepFunc replaces the wait used for delays and backoff.
func WithSleepFunc(fn SleepFunc) Option {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// New creates an Engine. Nothing is validated until Run.
func New(cfg *config.Config, fetcher Fetcher, sink Sink, store state.Store, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		sink:    sink,
		store:   store,
		sleep:   ratelimit.Wait,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Run validates the configuration, loads or initializes the state and walks
// the hierarchy. Invalid configuration fails before any request is made.
//
// The report is nil only when the crawl could not start.
func (e *Engine) Run(ctx context.Context) (*model.CrawlReport, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	limiterOpts := []ratelimit.Option{
		ratelimit.WithMultiplier(e.cfg.BackoffMultiplier),
		ratelimit.WithMaxBackoff(e.cfg.MaxBackoff),
	}
	if e.randSource != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithRand(e.randSource))
	}
	limiter, err := ratelimit.New(e.cfg.MinDelay, e.cfg.MaxDelay, limiterOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	locale := e.cfg.Locale
	st, err := state.Load(ctx, e.store, locale, e.cfg.Resume)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrState, err)
	}

	logger := e.logger.With("locale", locale.String())
	if st.Resumed() {
		p := st.Progress()
		logger.Info("resuming crawl",
			"done", p.Done.Total(),
			"pending", p.Pending.Total(),
			"updated_at", st.UpdatedAt(),
		)
	} else {
		logger.Info("starting fresh crawl")
	}
	logger.Debug("request delay", "min", limiter.Min(), "max", limiter.Max())

	walker := NewWalker(e.fetcher, e.sink, e.store, limiter, e.cfg.ListingURL,
		WithMaxAttempts(e.cfg.MaxAttempts),
		WithPersistEvery(e.cfg.PersistEvery),
		WithSleep(e.sleep),
		WithWalkerLogger(logger),
	)

	report, err := walker.Traverse(ctx, st, locale)
	if err != nil && !report.Interrupted {
		report.Error = err.Error()
	}

	logger.Info("crawl finished",
		"programmes", report.Fetched.Programmes,
		"specializations", report.Fetched.Specializations,
		"subjects", report.Fetched.Subjects,
		"skipped", report.Skipped,
		"failed", len(report.Failed),
		"pending", report.Pending,
		"interrupted", report.Interrupted,
		"duration", report.Duration(),
	)
	return report, err
}
