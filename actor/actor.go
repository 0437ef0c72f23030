// Package actor provides addressable mailbox handles: cheap, cloneable
// references permitting sends to a component's mailbox without necessarily
// holding a strong component reference.
//
// Grounded on spec.md §4.3. The strong/weak distinction, and the use of the
// stdlib weak package for the non-lifetime-extending variant, mirrors
// eventloop/registry.go's weak-pointer bookkeeping: that registry calls
// weak.Make directly on the long-lived object it wants to observe without
// retaining (the promise). We do the same with Anchor - Tell on a WeakRef
// only succeeds while something ELSE (the owning container) keeps the
// Anchor reachable; a WeakRef itself never does.
package actor

import (
	"weak"

	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"

	"github.com/corebus/corebus/corerr"
)

// ID uniquely identifies a component for its lifetime.
type ID = uuid.UUID

// NewID generates a fresh component identifier.
func NewID() ID { return uuid.New() }

// Mailbox is the minimal surface a component container exposes for message
// delivery. It is implemented by component.Container; this package never
// imports that package, avoiding a dependency cycle.
type Mailbox interface {
	// EnqueueMessage appends msg to the mailbox FIFO, marking the owner
	// ready. It returns corerr.ErrDestroyed if the owner has already
	// reached the Destroyed lifecycle state.
	EnqueueMessage(msg any) error
	ID() ID
}

// Envelope is the type-erased network message shape fed to a component's
// ReceiveNetwork operation. Byte-level framing, path encoding, and
// serialization are transport-collaborator concerns (spec.md §1, §6); this
// type only documents the boundary contract.
type Envelope struct {
	TypeID      uint64
	Source      string
	Destination string
	Payload     []byte
}

// Ref is a handle permitting Tell without exposing the mailbox
// implementation. Ask is a free function (see package ask) because Go
// methods cannot introduce new type parameters.
type Ref interface {
	// Tell is fire-and-forget: it enqueues msg and returns immediately. It
	// never blocks. Tell on a gone/destroyed target drops msg and returns
	// corerr.ErrDestroyed; nothing is logged. A send rejected by a rate
	// limiter returns corerr.ErrRateLimited.
	Tell(msg any) error
	ID() ID
}

// Limiter is the admission-control seam wired onto Tell, grounded on
// github.com/joeycumines/go-catrate's sliding-window Limiter (a sibling
// package in the teacher's monorepo). A nil Limiter means unlimited; this is
// strictly optional and never changes core ordering semantics.
type Limiter interface {
	// Allow reports whether an event in category may proceed now.
	Allow(category any) bool
}

// CatrateLimiter adapts *catrate.Limiter to the Limiter interface used by
// Tell admission control.
type CatrateLimiter struct {
	L *catrate.Limiter
}

func (c CatrateLimiter) Allow(category any) bool {
	if c.L == nil {
		return true
	}
	ok, _ := c.L.Allow(category)
	return ok
}

// Anchor is the single long-lived identity a component's container owns for
// its entire life: the container stores it in a field (a strong reference),
// so the anchor stays reachable for exactly as long as the container does.
// Strong and weak refs are both derived from the same Anchor instance.
type Anchor struct {
	mailbox Mailbox
	limiter Limiter
}

// NewAnchor creates the anchor a container should store in a field and hand
// out Strong()/Weak() refs from. limiter may be nil (unlimited).
func NewAnchor(mailbox Mailbox, limiter Limiter) *Anchor {
	return &Anchor{mailbox: mailbox, limiter: limiter}
}

// Strong returns a StrongRef derived from this anchor.
func (a *Anchor) Strong() *StrongRef { return &StrongRef{anchor: a} }

// Weak returns a WeakRef derived from this anchor. It holds no strong
// pointer to the anchor or the container - once nothing else keeps the
// anchor (and thus the container) reachable, Tell starts returning
// corerr.ErrDestroyed.
func (a *Anchor) Weak() *WeakRef {
	return &WeakRef{id: a.mailbox.ID(), wp: weak.Make(a)}
}

// StrongRef keeps its target's container alive: the owner is reachable as
// long as any StrongRef derived from its Anchor exists. Use for long-lived
// collaborators that must be certain the target exists (spec.md §4.3).
type StrongRef struct {
	anchor *Anchor
}

func (r *StrongRef) ID() ID { return r.anchor.mailbox.ID() }

func (r *StrongRef) Tell(msg any) error {
	if r.anchor.limiter != nil && !r.anchor.limiter.Allow(r.anchor.mailbox.ID()) {
		return corerr.ErrRateLimited
	}
	return r.anchor.mailbox.EnqueueMessage(msg)
}

// Weak derives a WeakRef to the same target.
func (r *StrongRef) Weak() *WeakRef { return r.anchor.Weak() }

var _ Ref = (*StrongRef)(nil)

// WeakRef does not keep its target alive; Tell is a no-op returning
// corerr.ErrDestroyed once the target is gone (spec.md §4.3).
type WeakRef struct {
	id ID
	wp weak.Pointer[Anchor]
}

func (r *WeakRef) ID() ID { return r.id }

func (r *WeakRef) Tell(msg any) error {
	a := r.wp.Value()
	if a == nil {
		return corerr.ErrDestroyed
	}
	if a.limiter != nil && !a.limiter.Allow(a.mailbox.ID()) {
		return corerr.ErrRateLimited
	}
	return a.mailbox.EnqueueMessage(msg)
}

var _ Ref = (*WeakRef)(nil)
