package ask

import (
	"context"

	"github.com/corebus/corebus/actor"
	"github.com/corebus/corebus/corerr"
)

// Ask is the responder-visible handle for one in-flight request: it travels
// to the target's mailbox as an ordinary message (spec.md §4.3: "ask ...
// places it into the mailbox as a message"), and the component's
// ReceiveLocal handler type-switches on the concrete Ask[Req, Rep] type to
// find it, exactly as it would any other typed local message.
type Ask[Req any, Rep any] struct {
	ID      ID
	Request Req
	s       *state
}

// Reply performs the exactly-once write. A second Reply (or Fail) on the
// same ask returns corerr.ErrAlreadyReplied (spec.md §4.7).
func (a Ask[Req, Rep]) Reply(rep Rep) error {
	if !a.s.settle(rep, nil) {
		return corerr.ErrAlreadyReplied
	}
	return nil
}

// Fail settles the ask with an error instead of a value - used when the
// responder cannot produce a reply but wants the caller to see why, rather
// than silently dropping (which would surface as corerr.ErrAskCancelled
// only once the responder itself is destroyed).
func (a Ask[Req, Rep]) Fail(err error) error {
	if !a.s.settle(nil, err) {
		return corerr.ErrAlreadyReplied
	}
	return nil
}

// Future is the caller-side handle: awaited via Wait, fulfilled on whichever
// scheduler thread served the reply (spec.md §4.7).
type Future[Rep any] struct {
	s *state
}

// Wait blocks until the ask settles or ctx is done, whichever comes first.
func (f Future[Rep]) Wait(ctx context.Context) (Rep, error) {
	var zero Rep
	select {
	case <-f.s.ch:
		if f.s.err != nil {
			return zero, f.s.err
		}
		if rep, ok := f.s.value.(Rep); ok {
			return rep, nil
		}
		return zero, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Cancel settles the ask as cancelled if it hasn't already settled,
// reflecting a caller that has given up waiting (spec.md §4.7: "a drop of
// the ask before reply yields a cancellation" generalizes, in Go, to an
// explicit Cancel call since there is no destructor to hook).
func (f Future[Rep]) Cancel() {
	f.s.settle(nil, corerr.ErrAskCancelled)
}

// Rejected returns an already-settled Future carrying err, for callers that
// must fail before ever allocating an ask (e.g. a target not owned by the
// caller's runtime).
func Rejected[Rep any](err error) Future[Rep] {
	s := newState()
	s.settle(nil, err)
	return Future[Rep]{s: s}
}

// Send allocates an ask via reg, delivers it as a Tell to target, and
// returns the caller's Future. If the Tell itself fails (e.g. target gone,
// rate limited), the ask is immediately settled with that error so Wait
// doesn't hang.
func Send[Req any, Rep any](reg *Registry, target actor.Ref, req Req) (Future[Rep], error) {
	id, s := reg.new()
	a := Ask[Req, Rep]{ID: id, Request: req, s: s}
	future := Future[Rep]{s: s}
	if err := target.Tell(a); err != nil {
		s.settle(nil, err)
		return future, err
	}
	return future, nil
}
