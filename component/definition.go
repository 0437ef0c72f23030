package component

import "github.com/corebus/corebus/actor"

// Definition is the contract every component's user-defined state type must
// satisfy (spec.md §6). Setup is called exactly once, during Initialising,
// before the component can accept Start.
type Definition interface {
	// Setup prepares the component: registering port handlers, wiring
	// ports via port.Connect elsewhere, and stashing ctx if needed. Port
	// wiring must complete before Start is observed (spec.md §4.2).
	Setup(ctx *Context) error

	// TypeName returns the component's declared type name, used only for
	// diagnostics (spec.md §6).
	TypeName() string
}

// Starter, Stopper, and Killer are the optional control-port handlers
// (spec.md §4.4). A Definition that doesn't implement one of these simply
// does nothing on that transition - the idiomatic Go alternative to the
// original's always-present Provide<ControlPort> implementation.
type Starter interface {
	OnStart(ctx *Context) error
}

type Stopper interface {
	OnStop(ctx *Context) error
}

type Killer interface {
	OnKill(ctx *Context) error
}

// LocalReceiver handles typed local mailbox messages (spec.md §4.3).
type LocalReceiver interface {
	ReceiveLocal(ctx *Context, msg any) error
}

// NetworkReceiver handles opaque network envelopes (spec.md §4.3, §6).
// Dispatch between LocalReceiver and NetworkReceiver is by call site
// (Container.EnqueueNetwork vs Container.EnqueueMessage), never by the
// message's type or by sniffing payload bytes.
type NetworkReceiver interface {
	ReceiveNetwork(ctx *Context, env actor.Envelope) error
}
