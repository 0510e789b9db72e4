// Package engine implements the work scheduler (C4) and analysis driver
// (C7) as a single-threaded cooperative actor: one goroutine owns
// BackendState and drains a message channel, and every suspending call is
// dispatched as a detached goroutine that posts its result back as a
// message (spec.md §5).
package engine

import "github.com/depreview/reviewbot/pkg/pkgcache"

// BackendState is the process-wide state spec.md §3 names: the package
// cache, the set of connected operator sessions, and the monotonic
// mutation counter. Only the run loop goroutine ever touches a live
// instance.
type BackendState struct {
	Cache       *pkgcache.Cache
	Clients     map[string]bool
	updateIndex int
}

// NewBackendState returns an empty BackendState with updateIndex seeded at
// initial (normally 0).
func NewBackendState(initial int) *BackendState {
	return &BackendState{
		Cache:       pkgcache.New(),
		Clients:     make(map[string]bool),
		updateIndex: initial,
	}
}

// Bump increments and returns the new updateIndex, stamped atomically with
// every mutation (P2: updateIndex equals the number of mutations applied
// plus its initial value).
func (s *BackendState) Bump() int {
	s.updateIndex++
	return s.updateIndex
}

// UpdateIndex returns the current counter value without mutating it.
func (s *BackendState) UpdateIndex() int { return s.updateIndex }
