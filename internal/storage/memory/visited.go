// Package memory holds the in-process stores shared by the workers of a single
// crawl session.
package memory

import (
	"sync"
	"sync/atomic"
)

// Registry is the set of URLs that have been claimed for fetching. A URL is
// claimed exactly once for the lifetime of the registry.
type Registry struct {
	seen  sync.Map
	count atomic.Int64
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// TryMarkSeen records url and reports whether this call inserted it. When
// several goroutines race on the same url exactly one of them gets true.
func (r *Registry) TryMarkSeen(url string) bool {
	if _, loaded := r.seen.LoadOrStore(url, struct{}{}); loaded {
		return false
	}
	r.count.Add(1)
	return true
}

// Contains reports whether url has been claimed.
func (r *Registry) Contains(url string) bool {
	_, ok := r.seen.Load(url)
	return ok
}

// Len returns the number of claimed URLs.
func (r *Registry) Len() int {
	return int(r.count.Load())
}
