// Package dispatcher runs the worker pool for a crawl and detects when it has
// drained the frontier.
package dispatcher

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Runner is a worker loop. Run returns nil when the crawl completes or ctx
// ends, and an error only when the crawl cannot continue.
type Runner interface {
	Run(ctx context.Context) error
}

// Dispatcher fans the frontier out to a fixed set of workers.
type Dispatcher struct {
	coordinator *Coordinator
	workers     []Runner
}

// New creates a Dispatcher.
func New(coordinator *Coordinator, workers []Runner) *Dispatcher {
	return &Dispatcher{
		coordinator: coordinator,
		workers:     workers,
	}
}

// Run starts all workers and blocks until every one has returned. The first
// worker error cancels the others and is returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range d.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	return nil
}

// Coordinator returns the termination detector shared by the workers.
func (d *Dispatcher) Coordinator() *Coordinator {
	return d.coordinator
}
