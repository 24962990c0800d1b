package crawler

import (
	"net/http"
	"time"
)

// StatusNoResponse is recorded when a fetch completed without exchanging an
// HTTP response (the fetcher reported status 0 and no error).
const StatusNoResponse = http.StatusOK

// FetchResult is what the fetch collaborator returns for one URL.
type FetchResult struct {
	// URL is the address that was requested.
	URL string
	// StatusCode is the HTTP status of the final response.
	StatusCode int
	// Links holds the raw href targets in document order, unnormalized.
	Links []string
	// Duration is the wall time spent fetching.
	Duration time.Duration
}

// VisitRecord is the terminal outcome for a URL that was fetched, whatever
// its status code.
type VisitRecord struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// FailureRecord is the terminal outcome for a URL whose fetch raised an error.
type FailureRecord struct {
	URL      string      `json:"url"`
	Reason   string      `json:"reason"`
	Kind     FailureKind `json:"kind"`
	FailedAt time.Time   `json:"failed_at"`
}

// FailureKind classifies why a fetch failed.
type FailureKind string

// Failure kinds recorded in FailureRecord.Kind.
const (
	FailureMalformedURL FailureKind = "malformed_url"
	FailureTransport    FailureKind = "transport"
	FailurePanic        FailureKind = "panic"
)

// Snapshot is a point-in-time view of a running crawl.
type Snapshot struct {
	SessionID string `json:"session_id"`
	Root      string `json:"root"`
	Visited   int    `json:"visited"`
	Failed    int    `json:"failed"`
	Seen      int    `json:"seen"`
	Queued    int    `json:"queued"`
	InFlight  int    `json:"in_flight"`
	Done      bool   `json:"done"`
}
