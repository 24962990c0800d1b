// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since returns the time elapsed since t, never negative.
func (c Clock) Since(t time.Time) time.Duration {
	if d := c.Now().Sub(t); d > 0 {
		return d
	}
	return 0
}
