// Package report turns the records of a finished crawl into the console
// summary and the exported report documents.
package report

import (
	"net/http"
	"time"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/session"
)

// StatusCount is the number of visited pages that returned StatusCode.
type StatusCount struct {
	StatusCode int `json:"status_code"`
	Count      int `json:"count"`
}

// Summary is the read-only aggregate of a crawl.
type Summary struct {
	SessionID    string
	Root         string
	StartedAt    time.Time
	Elapsed      time.Duration
	Interrupted  bool
	TotalVisited int
	TotalFailed  int
	// StatusCounts lists each distinct status code once, in the order it was
	// first recorded.
	StatusCounts []StatusCount
	NotFound     []crawler.VisitRecord
	Failures     []crawler.FailureRecord
	Visits       []crawler.VisitRecord
}

// Summarize tallies visits by status code, picks out the not-found pages and
// passes failures through unchanged.
func Summarize(visits []crawler.VisitRecord, failures []crawler.FailureRecord, elapsed time.Duration) Summary {
	index := make(map[int]int)
	counts := make([]StatusCount, 0)
	notFound := make([]crawler.VisitRecord, 0)
	for _, v := range visits {
		i, ok := index[v.StatusCode]
		if !ok {
			i = len(counts)
			index[v.StatusCode] = i
			counts = append(counts, StatusCount{StatusCode: v.StatusCode})
		}
		counts[i].Count++
		if v.StatusCode == http.StatusNotFound {
			notFound = append(notFound, v)
		}
	}

	return Summary{
		Elapsed:      elapsed,
		TotalVisited: len(visits),
		TotalFailed:  len(failures),
		StatusCounts: counts,
		NotFound:     notFound,
		Failures:     append([]crawler.FailureRecord(nil), failures...),
		Visits:       append([]crawler.VisitRecord(nil), visits...),
	}
}

// FromResult summarizes a session result and carries over its identity.
func FromResult(result session.Result) Summary {
	s := Summarize(result.Visits, result.Failures, result.Elapsed)
	s.SessionID = result.SessionID
	s.Root = result.Root
	s.StartedAt = result.StartedAt
	s.Interrupted = result.Interrupted
	return s
}
