package component

import (
	"context"

	"github.com/corebus/corebus/actor"
	"github.com/corebus/corebus/ask"
	"github.com/corebus/corebus/corerr"
	"github.com/corebus/corebus/logging"
	"github.com/corebus/corebus/port"
)

// Spawner is the minimal surface Context exposes for spawning further
// components and resolving a peer's own ask registry, implemented by the
// top-level runtime. Defined here (rather than imported from a
// scheduler/runtime package) so component has no dependency on anything that
// would depend back on component.
type Spawner interface {
	Spawn(def Definition) (actor.Ref, error)

	// RegistryFor returns the ask.Registry owned by the component identified
	// by id, if the runtime knows of it. Used by Ask to register a new ask
	// against its target's own registry rather than the asking component's,
	// so that killing the target (not the asker) is what cancels it.
	RegistryFor(id actor.ID) (*ask.Registry, bool)
}

// Context is the object a component's definition receives in Setup and
// retains for its lifetime: self-handle, scheduler access, and a logger
// (spec.md §6, supplemented from original_source's ComponentContext in
// SPEC_FULL.md §11).
type Context struct {
	self    actor.Ref
	spawner Spawner
	logger  logging.Logger
	owner   *Container
}

// Self returns a strong reference to the component's own mailbox.
func (c *Context) Self() actor.Ref { return c.self }

// Spawn creates a new sibling component via the runtime.
func (c *Context) Spawn(def Definition) (actor.Ref, error) { return c.spawner.Spawn(def) }

// Logger returns the structured logger configured for this runtime.
func (c *Context) Logger() logging.Logger { return c.logger }

// Ready returns the callback a port's SetParent must be wired to, so that
// enqueuing a request/indication on it marks the owning container
// schedulable (spec.md §4.2 wiring contract).
func (c *Context) Ready() port.Ready { return c.owner.onPortReady }

// AddBinding registers a wired port for round-robin draining alongside the
// mailbox and network queue. Usually called during Setup, but safe from any
// handler - a container never dispatches two handlers concurrently.
func (c *Context) AddBinding(b port.Binding) { c.owner.addBinding(b) }

// Ask sends req to target and returns a Future for the typed reply Rep,
// correlated through target's own ask registry (spec.md §4.7) rather than
// the calling component's: if target is killed before replying, that's what
// must settle this ask with a cancellation, not the caller's own Kill.
func Ask[Req any, Rep any](c *Context, target actor.Ref, req Req) (ask.Future[Rep], error) {
	reg, ok := c.spawner.RegistryFor(target.ID())
	if !ok {
		return ask.Rejected[Rep](corerr.ErrUnknownComponent), corerr.ErrUnknownComponent
	}
	return ask.Send[Req, Rep](reg, target, req)
}

// BlockOn installs a continuation (spec.md §4.6): fn runs asynchronously
// (on its own goroutine, mirroring eventloop/promisify.go's Promisify), and
// once it completes, resume is invoked as though the handler that called
// BlockOn had continued synchronously. While a continuation is pending, no
// further events (including control) are delivered to this component.
func (c *Context) BlockOn(fn func(ctx context.Context) (any, error), resume func(result any, err error)) {
	c.owner.installContinuation(fn, resume)
}
