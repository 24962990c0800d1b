package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves a page and reports its status code and raw links.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// VisitedRegistry records every URL that has been claimed for processing.
type VisitedRegistry interface {
	// TryMarkSeen atomically records url and reports whether this call was
	// the one that recorded it.
	TryMarkSeen(url string) bool
	Len() int
}

// Frontier is the queue of discovered URLs awaiting a fetch.
type Frontier interface {
	// Enqueue appends url and reports false if it is already queued.
	Enqueue(url string) bool
	TryDequeue() (string, bool)
	IsEmpty() bool
	Len() int
	// Ready is signalled after an Enqueue so blocked consumers can retry.
	Ready() <-chan struct{}
}

// ResultStore accumulates terminal records for fetched URLs.
type ResultStore interface {
	RecordSuccess(ctx context.Context, record VisitRecord) error
	RecordFailure(ctx context.Context, record FailureRecord) error
	Visits() []VisitRecord
	Failures() []FailureRecord
	Counts() (visited int, failed int)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
