// Package memory provides the in-process frontier that workers drain.
package memory

import "sync"

// Frontier is an unbounded FIFO of URLs awaiting fetch. A URL is present at
// most once at any moment; once dequeued it may be enqueued again, so callers
// deduplicate across the whole crawl with a visited registry.
type Frontier struct {
	mu      sync.Mutex
	items   []string
	head    int
	members map[string]struct{}
	ready   chan struct{}
}

// NewFrontier constructs an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		members: make(map[string]struct{}),
		ready:   make(chan struct{}, 1),
	}
}

// Enqueue appends url and reports false if it is already queued.
func (f *Frontier) Enqueue(url string) bool {
	f.mu.Lock()
	if _, queued := f.members[url]; queued {
		f.mu.Unlock()
		return false
	}
	f.members[url] = struct{}{}
	f.items = append(f.items, url)
	f.mu.Unlock()

	select {
	case f.ready <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the oldest URL without blocking.
func (f *Frontier) TryDequeue() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.head == len(f.items) {
		return "", false
	}
	url := f.items[f.head]
	f.items[f.head] = ""
	f.head++
	delete(f.members, url)
	if f.head == len(f.items) {
		f.items = f.items[:0]
		f.head = 0
	}
	return url, true
}

// IsEmpty reports whether nothing is queued.
func (f *Frontier) IsEmpty() bool {
	return f.Len() == 0
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) - f.head
}

// Ready receives a value after an Enqueue. The signal is coalesced, so a
// consumer woken by it should drain with TryDequeue until it reports false.
func (f *Frontier) Ready() <-chan struct{} {
	return f.ready
}
