package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/vutcrawl/internal/model"
	"github.com/nao1215/vutcrawl/internal/ratelimit"
	"github.com/nao1215/vutcrawl/internal/state"
)

// Fetcher retrieves and parses one page.
// Errors should be *model.FetchError; anything else is treated as transient.
type Fetcher interface {
	Fetch(ctx context.Context, req model.FetchRequest) (model.PageDocument, error)
}

// Sink durably stores records. Any error is fatal to the crawl.
type Sink interface {
	Write(ctx context.Context, record model.Record, locale model.Locale) error
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Walker traverses the catalog hierarchy for one locale.
type Walker struct {
	fetcher Fetcher
	sink    Sink
	store   state.Store
	limiter *ratelimit.Limiter

	// listingURL returns the programme listing page of a locale.
	listingURL func(model.Locale) string

	// maxAttempts is the number of fetch attempts per node.
	maxAttempts int

	// persistEvery is the number of state mutations between saves.
	persistEvery int

	sleep  SleepFunc
	logger *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithMaxAttempts sets the number of fetch attempts per node.
func WithMaxAttempts(n int) WalkerOption {
	return func(w *Walker) {
		w.maxAttempts = n
	}
}

// WithPersistEvery sets how many completed nodes may accumulate before the
// state is saved.
func WithPersistEvery(n int) WalkerOption {
	return func(w *Walker) {
		w.persistEvery = n
	}
}

// WithSleep replaces the function used to wait between requests.
func WithSleep(fn SleepFunc) WalkerOption {
	return func(w *Walker) {
		w.sleep = fn
	}
}

// WithWalkerLogger sets the logger.
func WithWalkerLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) {
		w.logger = logger
	}
}

// NewWalker creates a Walker.
func NewWalker(
	fetcher Fetcher,
	sink Sink,
	store state.Store,
	limiter *ratelimit.Limiter,
	listingURL func(model.Locale) string,
	opts ...WalkerOption,
) *Walker {
	w := &Walker{
		fetcher:      fetcher,
		sink:         sink,
		store:        store,
		limiter:      limiter,
		listingURL:   listingURL,
		maxAttempts:  1,
		persistEvery: 1,
		sleep:        ratelimit.Wait,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.maxAttempts = max(w.maxAttempts, 1)
	w.persistEvery = max(w.persistEvery, 1)
	return w
}

// Traverse crawls every pending node of st. It seeds the programmes from the
// listing page when st has none. Nodes that fail are reported and left
// pending for the next run.
//
// The returned report is never nil. On cancellation the report is marked
// interrupted and the context error is returned after a final save.
func (w *Walker) Traverse(ctx context.Context, st *state.CrawlState, locale model.Locale) (*model.CrawlReport, error) {
	report := model.NewCrawlReport(locale)
	report.Resumed = st.Resumed()
	report.Skipped = st.Progress().Done.Total()
	defer func() {
		report.Pending = st.Progress().Pending.Total()
		report.FinishedAt = time.Now()
	}()

	if !st.HasProgrammes() {
		if err := w.seed(ctx, st, locale); err != nil {
			if isCanceled(ctx, err) {
				report.Interrupted = true
				return report, ctx.Err()
			}
			return report, err
		}
		report.Seeded = true
	}

	unsaved := 0
	var walkErr error
	for node := range st.PendingNodes() {
		if err := ctx.Err(); err != nil {
			walkErr = err
			break
		}
		if err := w.sleep(ctx, w.limiter.NextDelay()); err != nil {
			walkErr = err
			break
		}

		record, children, attempts, err := w.visit(ctx, node, locale)
		if err != nil {
			if isCanceled(ctx, err) {
				walkErr = ctx.Err()
				break
			}
			w.logger.Warn("node failed",
				"id", node.ID.String(),
				"kind", node.Kind().String(),
				"attempts", attempts,
				"error", err,
			)
			st.RecordFailure(node.ID, err)
			report.AddFailure(failedNode(node, attempts, err))
			unsaved++
			continue
		}

		if err := w.sink.Write(context.WithoutCancel(ctx), record, locale); err != nil {
			walkErr = fmt.Errorf("%w: %s: %w", ErrSink, node.ID, err)
			break
		}
		st.MarkDone(node.ID, children)
		report.Fetched.Add(node.Kind())
		unsaved++

		w.logger.Debug("node done",
			"id", node.ID.String(),
			"kind", node.Kind().String(),
			"children", len(children),
		)

		if unsaved >= w.persistEvery {
			if err := w.persist(ctx, st); err != nil {
				return report, err
			}
			unsaved = 0
		}
	}

	if err := w.persist(ctx, st); err != nil {
		if walkErr != nil {
			return report, errors.Join(walkErr, err)
		}
		return report, err
	}

	if walkErr != nil && isCanceled(ctx, walkErr) {
		report.Interrupted = true
		w.logger.Info("crawl interrupted, progress saved", "locale", locale.String())
	}
	return report, walkErr
}

// seed fetches the listing page and registers its programmes.
func (w *Walker) seed(ctx context.Context, st *state.CrawlState, locale model.Locale) error {
	if err := w.sleep(ctx, w.limiter.NextDelay()); err != nil {
		return err
	}

	url := w.listingURL(locale)
	req := model.FetchRequest{Kind: model.KindListing, URL: url, Locale: locale}
	doc, _, err := w.fetch(ctx, req)
	if err != nil {
		if isCanceled(ctx, err) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrSeed, url, err)
	}

	listing, ok := doc.(*model.ProgrammeListingPage)
	if !ok {
		return fmt.Errorf("%w: unexpected %s document for listing", ErrSeed, doc.DocumentKind())
	}

	programmes := make([]model.Node, 0, len(listing.Programmes))
	for _, p := range listing.Programmes {
		p.ID = model.ProgrammeID(p.ID.Programme)
		if err := p.ID.Validate(); err != nil {
			w.logger.Warn("skipping programme with invalid code", "name", p.Name, "error", err)
			continue
		}
		programmes = append(programmes, p)
	}
	if len(programmes) == 0 {
		return fmt.Errorf("%w: listing %s contains no programmes", ErrSeed, url)
	}

	added := st.Seed(programmes)
	w.logger.Info("seeded programmes", "locale", locale.String(), "count", added)
	return w.persist(ctx, st)
}

// visit fetches node and derives its record and children.
func (w *Walker) visit(ctx context.Context, node model.Node, locale model.Locale) (model.Record, []model.Node, int, error) {
	req := model.FetchRequest{
		Kind:   node.Kind(),
		Node:   node.ID,
		URL:    node.URL,
		Locale: locale,
	}
	doc, attempts, err := w.fetch(ctx, req)
	if err != nil {
		return nil, nil, attempts, err
	}

	record, children, err := expand(node, doc, locale)
	if err != nil {
		return nil, nil, attempts, err
	}
	children = w.adoptChildren(node, children)

	if prog, ok := record.(*model.ProgrammeNode); ok {
		for _, c := range children {
			if c.Kind() == model.KindSpecialization {
				prog.Specializations = append(prog.Specializations, c.ID.Specialization)
			}
		}
	}
	return record, children, attempts, nil
}

// fetch performs req with up to maxAttempts attempts. Permanent failures are
// not retried. The fetch itself is not interrupted by cancellation; waits
// between attempts are.
func (w *Walker) fetch(ctx context.Context, req model.FetchRequest) (model.PageDocument, int, error) {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := w.limiter.Backoff(attempt - 1)
			w.logger.Debug("retrying fetch",
				"url", req.URL,
				"attempt", attempt,
				"delay", delay,
			)
			if err := w.sleep(ctx, delay); err != nil {
				return nil, attempt - 1, err
			}
		}

		doc, err := w.fetcher.Fetch(context.WithoutCancel(ctx), req)
		if err == nil {
			return doc, attempt, nil
		}
		lastErr = err
		if model.IsPermanent(err) {
			return nil, attempt, err
		}
		w.logger.Debug("transient fetch failure", "url", req.URL, "attempt", attempt, "error", err)
	}
	return nil, w.maxAttempts, lastErr
}

// adoptChildren rebases child IDs under parent and drops unusable ones.
func (w *Walker) adoptChildren(parent model.Node, children []model.Node) []model.Node {
	out := make([]model.Node, 0, len(children))
	for _, child := range children {
		adopted, ok := adopt(parent.ID, child)
		if !ok {
			w.logger.Warn("skipping child with invalid code",
				"parent", parent.ID.String(),
				"name", child.Name,
			)
			continue
		}
		out = append(out, adopted)
	}
	return out
}

// persist saves st, running to completion even when ctx is cancelled.
func (w *Walker) persist(ctx context.Context, st *state.CrawlState) error {
	if err := w.store.Save(context.WithoutCancel(ctx), st); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func failedNode(node model.Node, attempts int, err error) model.FailedNode {
	class := model.FetchTransient
	if model.IsPermanent(err) {
		class = model.FetchPermanent
	}
	return model.FailedNode{
		ID:       node.ID,
		Kind:     node.Kind().String(),
		URL:      node.URL,
		Class:    class,
		Error:    err.Error(),
		Attempts: attempts,
	}
}
