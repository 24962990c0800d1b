// Package worker implements the per-URL crawl loop: claim a URL, fetch it,
// record the outcome and feed discovered links back into the frontier.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/metrics"
)

// Source hands out URLs to process. Every URL returned by Next is released
// with exactly one call to Done.
type Source interface {
	Next(ctx context.Context) (string, bool)
	Done()
}

// Scope turns raw hrefs into crawlable URLs.
type Scope interface {
	Normalize(raw string) (string, bool)
	IsValid(url string) bool
}

// Worker drains a Source until the crawl completes or its context ends.
type Worker struct {
	id       int
	source   Source
	fetcher  crawler.Fetcher
	scope    Scope
	visited  crawler.VisitedRegistry
	frontier crawler.Frontier
	store    crawler.ResultStore
	clock    crawler.Clock
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	id int,
	source Source,
	fetcher crawler.Fetcher,
	scope Scope,
	visited crawler.VisitedRegistry,
	frontier crawler.Frontier,
	store crawler.ResultStore,
	clock crawler.Clock,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:       id,
		source:   source,
		fetcher:  fetcher,
		scope:    scope,
		visited:  visited,
		frontier: frontier,
		store:    store,
		clock:    clock,
		logger:   logger.Named("worker").With(zap.Int("worker_id", id)),
	}
}

// Run blocks, processing URLs until the source reports no more work. It
// returns an error only when the result store rejects a record; per-URL fetch
// problems are recorded as failures and never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Debug("worker started")
	defer w.logger.Debug("worker stopped")
	for {
		url, ok := w.source.Next(ctx)
		if !ok {
			return nil
		}
		err := w.process(ctx, url)
		w.source.Done()
		if err != nil {
			return err
		}
	}
}

func (w *Worker) process(ctx context.Context, url string) (err error) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	recorded := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		w.logger.Error("panic while processing url",
			zap.String("url", url),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()),
		)
		if recorded {
			return
		}
		err = w.recordFailure(ctx, url, crawler.FailurePanic, fmt.Sprintf("panic: %v", r))
	}()

	start := w.clock.Now()
	result, fetchErr := w.fetcher.Fetch(ctx, url)
	if fetchErr != nil {
		if ctx.Err() != nil {
			w.logger.Debug("fetch interrupted", zap.String("url", url), zap.Error(fetchErr))
			return nil
		}
		kind := crawler.ClassifyFailure(fetchErr)
		w.logger.Warn("fetch failed",
			zap.String("url", url),
			zap.String("kind", string(kind)),
			zap.Error(fetchErr),
		)
		recorded = true
		return w.recordFailure(ctx, url, kind, fetchErr.Error())
	}

	status := result.StatusCode
	if status == 0 {
		status = crawler.StatusNoResponse
	}
	duration := result.Duration
	if duration <= 0 {
		duration = w.clock.Now().Sub(start)
	}
	record := crawler.VisitRecord{
		URL:        url,
		StatusCode: status,
		FetchedAt:  start,
		Duration:   duration,
	}
	recorded = true
	if err := w.store.RecordSuccess(ctx, record); err != nil {
		return fmt.Errorf("record visit %s: %w", url, err)
	}
	metrics.ObservePage(status, duration)
	w.logger.Debug("page fetched",
		zap.String("url", url),
		zap.Int("status", status),
		zap.Int("links", len(result.Links)),
		zap.Duration("duration", duration),
	)

	w.enqueueLinks(result.Links)
	return nil
}

func (w *Worker) enqueueLinks(links []string) {
	for _, raw := range links {
		target, ok := w.scope.Normalize(raw)
		if !ok || !w.scope.IsValid(target) {
			metrics.ObserveLink(metrics.LinkRejected)
			continue
		}
		if !w.visited.TryMarkSeen(target) {
			metrics.ObserveLink(metrics.LinkDuplicate)
			continue
		}
		w.frontier.Enqueue(target)
		metrics.ObserveLink(metrics.LinkEnqueued)
	}
	metrics.SetFrontierDepth(w.frontier.Len())
}

func (w *Worker) recordFailure(ctx context.Context, url string, kind crawler.FailureKind, reason string) error {
	metrics.ObserveFailure(string(kind))
	record := crawler.FailureRecord{
		URL:      url,
		Reason:   reason,
		Kind:     kind,
		FailedAt: w.clock.Now(),
	}
	if err := w.store.RecordFailure(ctx, record); err != nil {
		return fmt.Errorf("record failure %s: %w", url, err)
	}
	return nil
}
