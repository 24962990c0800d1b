package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// ErrDuplicateRecord is returned when a URL already has a terminal record.
var ErrDuplicateRecord = errors.New("url already recorded")

// ResultStore accumulates visit and failure records in memory.
type ResultStore struct {
	mu       sync.RWMutex
	recorded map[string]struct{}
	visits   []crawler.VisitRecord
	failures []crawler.FailureRecord
}

// NewResultStore constructs an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{
		recorded: make(map[string]struct{}),
	}
}

// RecordSuccess appends a visit record for a fetched URL.
func (s *ResultStore) RecordSuccess(_ context.Context, record crawler.VisitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claim(record.URL); err != nil {
		return err
	}
	s.visits = append(s.visits, record)
	return nil
}

// RecordFailure appends a failure record for a URL whose fetch errored.
func (s *ResultStore) RecordFailure(_ context.Context, record crawler.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claim(record.URL); err != nil {
		return err
	}
	s.failures = append(s.failures, record)
	return nil
}

// claim must be called with mu held.
func (s *ResultStore) claim(url string) error {
	if _, exists := s.recorded[url]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, url)
	}
	s.recorded[url] = struct{}{}
	return nil
}

// Visits returns a copy of the visit records in record order.
func (s *ResultStore) Visits() []crawler.VisitRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.VisitRecord, len(s.visits))
	copy(out, s.visits)
	return out
}

// Failures returns a copy of the failure records in record order.
func (s *ResultStore) Failures() []crawler.FailureRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.FailureRecord, len(s.failures))
	copy(out, s.failures)
	return out
}

// Counts returns the number of visit and failure records.
func (s *ResultStore) Counts() (visited int, failed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.visits), len(s.failures)
}
