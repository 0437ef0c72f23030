// Package ask implements the request/reply correlation primitive (spec.md
// §4.7): a one-shot reply slot with at-most-once-write, single-reader
// semantics, and a future-like handle the caller awaits.
//
// Grounded on eventloop/promise.go and eventloop/registry.go: a promise
// there is a settle-once value with subscriber channels; an ask here is the
// same shape generalized from Resolve/Reject (JS semantics) to Reply/Fail,
// and the registry generalizes from tracking promises (to let them be
// garbage collected once dropped) to tracking asks (so a caller that drops
// its Future doesn't keep a dead ask request pinned in memory).
package ask

import "sync"

// ID identifies one ask within a registry.
type ID uint64

// state is the untyped core both Ask and Future share; Req/Rep typing is a
// thin wrapper layered on top, mirroring eventloop's Result = any pattern.
type state struct {
	mu    sync.Mutex
	done  bool
	value any
	err   error
	ch    chan struct{}
}

func newState() *state {
	return &state{ch: make(chan struct{})}
}

// settled reports whether the ask has already settled (Reply, Fail, Cancel,
// CancelAll or Rejected).
func (s *state) settled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// settle performs the at-most-once write. It returns corerr.ErrAlreadyReplied
// (via the caller's typed wrapper) on a second call.
func (s *state) settle(value any, err error) bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}
	s.done = true
	s.value, s.err = value, err
	close(s.ch)
	s.mu.Unlock()
	return true
}
