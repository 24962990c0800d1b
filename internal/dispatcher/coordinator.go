package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/metrics"
)

// DefaultPollInterval bounds how long an idle worker sleeps before
// re-checking the frontier when no wake-up signal arrives.
const DefaultPollInterval = 50 * time.Millisecond

// Coordinator hands frontier URLs to workers and decides when the crawl is
// complete. Dequeue and the in-flight increment happen under one lock, so the
// completion predicate (nothing queued and nothing in flight) can never be
// observed while a worker holds a URL whose links are not yet enqueued.
type Coordinator struct {
	frontier crawler.Frontier
	poll     time.Duration

	mu       sync.Mutex
	inFlight int
	finished bool
	done     chan struct{}
	// changed is closed and replaced every time a worker releases a URL.
	changed chan struct{}
}

// NewCoordinator wraps frontier. A non-positive poll uses DefaultPollInterval.
func NewCoordinator(frontier crawler.Frontier, poll time.Duration) *Coordinator {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Coordinator{
		frontier: frontier,
		poll:     poll,
		done:     make(chan struct{}),
		changed:  make(chan struct{}),
	}
}

// Next blocks until it claims a URL for the caller or there is no more work.
// The second result is false once the crawl is complete or ctx is done. Every
// successful Next must be paired with exactly one Done.
func (c *Coordinator) Next(ctx context.Context) (string, bool) {
	timer := time.NewTimer(c.poll)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return "", false
		}
		url, ok, changed := c.claim()
		if ok {
			return url, true
		}
		if changed == nil {
			return "", false
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-c.done:
			return "", false
		case <-changed:
		case <-c.frontier.Ready():
		case <-timer.C:
			timer.Reset(c.poll)
		}
	}
}

// claim dequeues one URL. When nothing is queued it returns the channel that
// will be closed on the next Done, or nil once the crawl has finished.
func (c *Coordinator) claim() (string, bool, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return "", false, nil
	}
	if url, ok := c.frontier.TryDequeue(); ok {
		c.inFlight++
		metrics.SetFrontierDepth(c.frontier.Len())
		return url, true, nil
	}
	if c.inFlight == 0 {
		c.finish()
		return "", false, nil
	}
	return "", false, c.changed
}

// Done releases a URL obtained from Next. Callers must enqueue every link
// discovered while processing it before calling Done.
func (c *Coordinator) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight == 0 {
		panic("dispatcher: Done called without a matching Next")
	}
	c.inFlight--
	close(c.changed)
	c.changed = make(chan struct{})
	if c.inFlight == 0 && c.frontier.IsEmpty() {
		c.finish()
	}
}

// finish must be called with mu held.
func (c *Coordinator) finish() {
	if c.finished {
		return
	}
	c.finished = true
	close(c.done)
}

// Finished is closed once the frontier is empty and no URL is in flight.
func (c *Coordinator) Finished() <-chan struct{} {
	return c.done
}

// InFlight returns the number of URLs claimed but not yet released.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// IsFinished reports whether completion has been declared.
func (c *Coordinator) IsFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}
