// Package session wires the crawl engine for one seed URL. A Session owns
// every structure shared by its workers, so independent crawls never share
// state.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/dispatcher"
	"github.com/JakeFAU/sitecrawler/internal/metrics"
	queuemem "github.com/JakeFAU/sitecrawler/internal/queue/memory"
	storemem "github.com/JakeFAU/sitecrawler/internal/storage/memory"
	"github.com/JakeFAU/sitecrawler/internal/worker"
)

// Config controls the worker pool.
type Config struct {
	Workers      int
	PollInterval time.Duration
}

// Result is what a finished (or interrupted) crawl produced.
type Result struct {
	SessionID   string
	Root        string
	StartedAt   time.Time
	Elapsed     time.Duration
	Visits      []crawler.VisitRecord
	Failures    []crawler.FailureRecord
	Interrupted bool
}

// Session is a single crawl of one root domain.
type Session struct {
	id          string
	scope       crawler.Scope
	cfg         Config
	fetcher     crawler.Fetcher
	clock       crawler.Clock
	logger      *zap.Logger
	registry    *storemem.Registry
	frontier    *queuemem.Frontier
	store       *storemem.ResultStore
	coordinator *dispatcher.Coordinator

	runOnce sync.Once
}

// New validates the seed and pool size and seeds the frontier with the root.
// Seed and pool problems are reported as crawler.ErrConfiguration.
func New(
	seed string,
	fetcher crawler.Fetcher,
	cfg Config,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	logger *zap.Logger,
) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		return nil, crawler.ConfigError("worker count must be positive, got %d", cfg.Workers)
	}
	if fetcher == nil {
		return nil, crawler.ConfigError("fetcher is required")
	}
	scope, err := crawler.NewScope(seed)
	if err != nil {
		return nil, err
	}
	id, err := ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}

	frontier := queuemem.NewFrontier()
	s := &Session{
		id:          id,
		scope:       scope,
		cfg:         cfg,
		fetcher:     fetcher,
		clock:       clock,
		logger:      logger.With(zap.String("session_id", id), zap.String("root", scope.Root())),
		registry:    storemem.NewRegistry(),
		frontier:    frontier,
		store:       storemem.NewResultStore(),
		coordinator: dispatcher.NewCoordinator(frontier, cfg.PollInterval),
	}
	s.registry.TryMarkSeen(scope.Root())
	s.frontier.Enqueue(scope.Root())
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Root returns the canonical root URL.
func (s *Session) Root() string {
	return s.scope.Root()
}

// Run crawls until every reachable in-scope page has a record or ctx ends.
// On cancellation the partial result is returned with Interrupted set and a
// nil error. A Session can only be run once.
func (s *Session) Run(ctx context.Context) (Result, error) {
	ran := false
	var result Result
	var err error
	s.runOnce.Do(func() {
		ran = true
		result, err = s.run(ctx)
	})
	if !ran {
		return Result{}, fmt.Errorf("session %s already ran", s.id)
	}
	return result, err
}

func (s *Session) run(ctx context.Context) (Result, error) {
	startedAt := s.clock.Now()
	s.logger.Info("crawl started", zap.Int("workers", s.cfg.Workers))

	runners := make([]dispatcher.Runner, 0, s.cfg.Workers)
	for i := 0; i < s.cfg.Workers; i++ {
		runners = append(runners, worker.New(
			i,
			s.coordinator,
			s.fetcher,
			s.scope,
			s.registry,
			s.frontier,
			s.store,
			s.clock,
			s.logger,
		))
	}
	runErr := dispatcher.New(s.coordinator, runners).Run(ctx)
	metrics.SetFrontierDepth(s.frontier.Len())

	result := Result{
		SessionID:   s.id,
		Root:        s.scope.Root(),
		StartedAt:   startedAt,
		Elapsed:     s.clock.Now().Sub(startedAt),
		Visits:      s.store.Visits(),
		Failures:    s.store.Failures(),
		Interrupted: ctx.Err() != nil || !s.coordinator.IsFinished(),
	}
	if runErr != nil {
		return result, fmt.Errorf("crawl %s: %w", s.scope.Root(), runErr)
	}

	fields := []zap.Field{
		zap.Int("visited", len(result.Visits)),
		zap.Int("failed", len(result.Failures)),
		zap.Duration("elapsed", result.Elapsed),
	}
	if result.Interrupted {
		s.logger.Warn("crawl interrupted", append(fields, zap.Int("queued", s.frontier.Len()))...)
	} else {
		s.logger.Info("crawl finished", fields...)
	}
	return result, nil
}

// Snapshot reports live progress. It is safe to call while Run is active.
func (s *Session) Snapshot() crawler.Snapshot {
	visited, failed := s.store.Counts()
	return crawler.Snapshot{
		SessionID: s.id,
		Root:      s.scope.Root(),
		Visited:   visited,
		Failed:    failed,
		Seen:      s.registry.Len(),
		Queued:    s.frontier.Len(),
		InFlight:  s.coordinator.InFlight(),
		Done:      s.coordinator.IsFinished(),
	}
}
