// Package view holds the small pieces of view state shared by console
// commands: the stale-response guard and the error banner.
package view

import "sync"

// Generation tags the requests a view issues. Only the response to the
// latest request may update view state; older ones are dropped.
type Generation struct {
	mu      sync.Mutex
	current uint64
}

// Next starts a new request and returns its tag.
func (g *Generation) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	return g.current
}

func (g *Generation) Current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Apply runs fn only if gen is still the latest tag, and reports whether it ran.
// fn runs under the lock, so a newer Next cannot interleave with it.
func (g *Generation) Apply(gen uint64, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.current {
		return false
	}
	fn()
	return true
}
