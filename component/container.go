// Package component implements the per-component execution unit: the
// lifecycle-aware, cooperatively-scheduled container that owns a
// definition's mailbox, control queue, and wired ports (spec.md §3-§5).
package component

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/corebus/corebus/actor"
	"github.com/corebus/corebus/ask"
	"github.com/corebus/corebus/corerr"
	"github.com/corebus/corebus/lifecycle"
	"github.com/corebus/corebus/logging"
	"github.com/corebus/corebus/port"
)

// ExecuteResult reports what one scheduler-driven Execute call did, and
// surfaces poisoning to the scheduler's own bookkeeping. StillReady means the
// container kept its scheduling claim because work remains; when it
// re-claimed the ready flag for that work, the container has already invoked
// its Submit callback, so the caller does not requeue it again.
type ExecuteResult struct {
	EventsProcessed int
	Poisoned        bool
	StillReady      bool
}

// continuation is the pending-suspension record installed by Context.BlockOn
// (spec.md §4.6). done is set by the goroutine running fn, then observed by
// the next Execute call on whichever worker eventually runs this container.
type continuation struct {
	resume func(result any, err error)
	done   atomic.Bool
	result any
	err    error
}

// ContainerConfig carries the collaborators a Container needs but does not
// construct itself, mirroring the teacher's functional-options constructors
// generalized to a config struct since most fields here are mandatory rather
// than optional tuning knobs.
type ContainerConfig struct {
	Logger   logging.Logger
	Registry *ask.Registry
	Spawner  Spawner
	Limiter  actor.Limiter
	// Submit is invoked whenever the container transitions from idle to
	// scheduled; the runtime's scheduler supplies this to enqueue the
	// container onto its ready queue.
	Submit func(*Container)
}

// Container is the runtime's per-component execution unit: it owns the
// mailbox, network queue, control queue, and wired port bindings for one
// Definition instance, and implements the cooperative-scheduling Execute
// contract (spec.md §3-§5).
type Container struct {
	id       actor.ID
	typeName string
	def      Definition
	ctx      *Context
	anchor   *actor.Anchor
	logger   logging.Logger
	registry *ask.Registry
	submit   func()

	statev atomic.Int32

	mailbox fifo[any]
	network fifo[actor.Envelope]
	control fifo[lifecycle.Event]

	bindings []port.Binding
	skip     int

	ready  readyFlag
	poison poisonLock

	contMu sync.Mutex
	pending *continuation
}

// NewContainer constructs a Container, running the definition's Setup
// exactly once before returning (spec.md §4.2: port wiring must complete
// before Start can be observed).
func NewContainer(def Definition, cfg ContainerConfig) (*Container, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	c := &Container{
		id:       actor.NewID(),
		typeName: def.TypeName(),
		def:      def,
		logger:   logger,
		registry: cfg.Registry,
	}
	c.statev.Store(int32(lifecycle.Uninitialised))
	c.anchor = actor.NewAnchor(c, cfg.Limiter)
	submit := cfg.Submit
	c.submit = func() {
		if submit != nil {
			submit(c)
		}
	}

	c.ctx = &Context{
		self:    c.anchor.Strong(),
		spawner: cfg.Spawner,
		logger:  logger,
		owner:   c,
	}

	c.statev.Store(int32(lifecycle.Initialising))
	if err := c.safeInvoke(func() error { return def.Setup(c.ctx) }); err != nil {
		return nil, err
	}
	c.statev.Store(int32(lifecycle.Passive))
	return c, nil
}

// ID implements actor.Mailbox.
func (c *Container) ID() actor.ID { return c.id }

// TypeName returns the component's declared type name.
func (c *Container) TypeName() string { return c.typeName }

// State reports the component's current lifecycle state.
func (c *Container) State() lifecycle.State { return c.loadState() }

// Anchor exposes the container's actor.Anchor, for the runtime to hand out
// strong and weak refs to other components.
func (c *Container) Anchor() *actor.Anchor { return c.anchor }

// Registry exposes the container's own ask registry. Every registry is
// per-container rather than shared runtime-wide, so that Kill's
// registry.CancelAll below only settles asks addressed to this component -
// not every other live component's in-flight asks too.
func (c *Container) Registry() *ask.Registry { return c.registry }

func (c *Container) loadState() lifecycle.State { return lifecycle.State(c.statev.Load()) }

// EnqueueMessage implements actor.Mailbox: appends a typed local message.
func (c *Container) EnqueueMessage(msg any) error {
	if c.poison.isPoisoned() {
		return corerr.ErrLockPoisoned
	}
	if !c.loadState().Alive() {
		return corerr.ErrDestroyed
	}
	if c.mailbox.push(msg) {
		c.ready.schedule(c.submit)
	}
	return nil
}

// EnqueueNetwork appends an opaque network envelope, dispatched via
// NetworkReceiver instead of LocalReceiver (spec.md §4.3, §6).
func (c *Container) EnqueueNetwork(env actor.Envelope) error {
	if c.poison.isPoisoned() {
		return corerr.ErrLockPoisoned
	}
	if !c.loadState().Alive() {
		return corerr.ErrDestroyed
	}
	if c.network.push(env) {
		c.ready.schedule(c.submit)
	}
	return nil
}

// EnqueueControl appends a lifecycle control event (spec.md §4.4). Like
// EnqueueMessage, control events are accepted at every alive state.
func (c *Container) EnqueueControl(event lifecycle.Event) error {
	if c.poison.isPoisoned() {
		return corerr.ErrLockPoisoned
	}
	if !c.loadState().Alive() {
		return corerr.ErrDestroyed
	}
	if c.control.push(event) {
		c.ready.schedule(c.submit)
	}
	return nil
}

// addBinding registers a wired port for round-robin draining. Safe to call
// from within any handler dispatch (Setup included), since a container never
// runs two handlers concurrently - the poison lock and the readyFlag's
// exactly-once scheduling guarantee together serialize every call into this
// method with every drainOrdinary/hasPendingWork call that reads c.bindings.
func (c *Container) addBinding(b port.Binding) {
	c.bindings = append(c.bindings, b)
}

// onPortReady is the port.Ready callback handed to every port via
// Context.Ready(): it marks the container schedulable exactly like an
// Enqueue* call would.
func (c *Container) onPortReady() {
	c.ready.schedule(c.submit)
}

func (c *Container) sources() []port.Binding {
	out := make([]port.Binding, 0, len(c.bindings)+2)
	out = append(out, mailboxBinding{c}, networkBinding{c})
	out = append(out, c.bindings...)
	return out
}

// installContinuation implements Context.BlockOn (spec.md §4.6): fn runs on
// its own goroutine; once it finishes, the container is rescheduled so the
// next Execute call can invoke resume with no other event dispatched first.
func (c *Container) installContinuation(fn func(context.Context) (any, error), resume func(any, error)) {
	cont := &continuation{resume: resume}
	c.contMu.Lock()
	c.pending = cont
	c.contMu.Unlock()

	go func() {
		result, err := fn(context.Background())
		cont.result, cont.err = result, err
		cont.done.Store(true)
		c.ready.schedule(c.submit)
	}()
}

// continuationState reports whether a continuation is installed and, if so,
// whether its goroutine has finished.
func (c *Container) continuationState() (pending bool, ready bool) {
	c.contMu.Lock()
	defer c.contMu.Unlock()
	if c.pending == nil {
		return false, false
	}
	return true, c.pending.done.Load()
}

// takeReadyContinuation pops the installed continuation if it has finished,
// clearing it so a later run won't re-invoke resume.
func (c *Container) takeReadyContinuation() (*continuation, bool) {
	c.contMu.Lock()
	defer c.contMu.Unlock()
	if c.pending != nil && c.pending.done.Load() {
		cont := c.pending
		c.pending = nil
		return cont, true
	}
	return nil, false
}

// hasPendingWork reports whether Execute would find anything to do on its
// next run, used by readyFlag.park's lost-wakeup double-check.
func (c *Container) hasPendingWork() bool {
	if pending, ready := c.continuationState(); pending {
		return ready
	}
	if c.control.len() > 0 {
		return true
	}
	for _, b := range c.sources() {
		if b.Pending() > 0 {
			return true
		}
	}
	return false
}

// safeInvoke runs fn with panic recovery, poisoning the container's
// definition lock on panic (spec.md §5, §7: a quarantined component accepts
// no further dispatch; every later Enqueue*, Kill included, is refused with
// corerr.ErrLockPoisoned).
func (c *Container) safeInvoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.poison.poison()
			err = &corerr.PanicError{TypeName: c.typeName, Value: r}
			c.logger.Log(logging.Entry{
				Level:       logging.LevelError,
				Category:    logging.CategoryLifecycle,
				ComponentID: c.id.String(),
				TypeName:    c.typeName,
				Message:     "handler panicked, definition lock poisoned",
				Err:         err,
			})
		}
	}()
	return fn()
}

func (c *Container) logHandlerError(op string, err error) {
	if err == nil {
		return
	}
	c.logger.Log(logging.Entry{
		Level:       logging.LevelWarn,
		Category:    logging.CategoryLifecycle,
		ComponentID: c.id.String(),
		TypeName:    c.typeName,
		Message:     op + " returned an error",
		Err:         err,
	})
}

// dispatchControl pops and applies a single pending control event,
// invoking the definition's optional Starter/Stopper/Killer handler.
func (c *Container) dispatchControl() bool {
	event, ok := c.control.pop()
	if !ok {
		return false
	}
	to, applied := lifecycle.Apply(c.loadState(), event)
	if applied {
		c.statev.Store(int32(to))
	}
	if !applied && event != lifecycle.Kill {
		return true
	}
	switch event {
	case lifecycle.Start:
		if starter, ok := c.def.(Starter); ok {
			c.logHandlerError("OnStart", c.safeInvoke(func() error { return starter.OnStart(c.ctx) }))
		}
	case lifecycle.Stop:
		if stopper, ok := c.def.(Stopper); ok {
			c.logHandlerError("OnStop", c.safeInvoke(func() error { return stopper.OnStop(c.ctx) }))
		}
	case lifecycle.Kill:
		if applied {
			if killer, ok := c.def.(Killer); ok {
				c.logHandlerError("OnKill", c.safeInvoke(func() error { return killer.OnKill(c.ctx) }))
			}
			if c.registry != nil {
				c.registry.CancelAll(corerr.ErrAskCancelled)
			}
		}
	}
	return true
}

func (c *Container) dispatchLocal(msg any) {
	receiver, ok := c.def.(LocalReceiver)
	if !ok {
		return
	}
	c.logHandlerError("ReceiveLocal", c.safeInvoke(func() error { return receiver.ReceiveLocal(c.ctx, msg) }))
}

func (c *Container) dispatchNetwork(env actor.Envelope) {
	receiver, ok := c.def.(NetworkReceiver)
	if !ok {
		return
	}
	c.logHandlerError("ReceiveNetwork", c.safeInvoke(func() error { return receiver.ReceiveNetwork(c.ctx, env) }))
}

// mailboxBinding and networkBinding adapt the container's two built-in
// queues to port.Binding, so the round-robin drain in drainOrdinary treats
// them exactly like any wired port (spec.md §4.5 fairness requirement).
type mailboxBinding struct{ c *Container }

func (m mailboxBinding) Key() port.Key    { return port.KeyFor[struct{ corebusMailbox struct{} }]() }
func (m mailboxBinding) Pending() int     { return m.c.mailbox.len() }
func (m mailboxBinding) DrainOne() bool {
	msg, ok := m.c.mailbox.pop()
	if !ok {
		return false
	}
	m.c.dispatchLocal(msg)
	return true
}

type networkBinding struct{ c *Container }

func (n networkBinding) Key() port.Key { return port.KeyFor[struct{ corebusNetwork struct{} }]() }
func (n networkBinding) Pending() int  { return n.c.network.len() }
func (n networkBinding) DrainOne() bool {
	env, ok := n.c.network.pop()
	if !ok {
		return false
	}
	n.c.dispatchNetwork(env)
	return true
}

var (
	_ port.Binding  = mailboxBinding{}
	_ port.Binding  = networkBinding{}
	_ actor.Mailbox = (*Container)(nil)
)

// drainOrdinary round-robins across the mailbox, network queue, and every
// wired port binding, starting from the container's rotating skip offset,
// up to remaining events or one full empty pass, whichever comes first
// (spec.md §4.5).
func (c *Container) drainOrdinary(remaining int) int {
	sources := c.sources()
	n := len(sources)
	if n == 0 || remaining <= 0 {
		return 0
	}

	processed := 0
	emptyStreak := 0

	start := c.skip % n
	pos := start
	for processed < remaining && emptyStreak < n {
		b := sources[pos]
		if b.DrainOne() {
			processed++
			emptyStreak = 0
			pos = (pos + 1) % n
			if c.poison.isPoisoned() {
				break
			}
			if pending, _ := c.continuationState(); pending {
				break
			}
		} else {
			emptyStreak++
			pos = (pos + 1) % n
		}
	}
	c.skip = pos
	return processed
}

// Execute runs up to maxEvents worth of dispatch for this container: any
// ready continuation first, then every pending control event, then ordinary
// events drained round-robin (spec.md §3-§5). The caller must only invoke
// Execute for a container it holds the scheduling right to (i.e. the
// readyFlag transition it rode in on); Execute itself enforces mutual
// exclusion against concurrent handler dispatch via the poison lock.
func (c *Container) Execute(maxEvents int) ExecuteResult {
	ok, poisoned := c.poison.tryLock()
	if !ok {
		return ExecuteResult{Poisoned: poisoned}
	}
	defer c.poison.unlock()

	var processed int

	if cont, ready := c.takeReadyContinuation(); ready {
		c.safeInvoke(func() error { cont.resume(cont.result, cont.err); return nil })
		processed++
		if c.poison.isPoisoned() {
			return c.park(ExecuteResult{EventsProcessed: processed})
		}
	} else if pending, _ := c.continuationState(); pending {
		return c.park(ExecuteResult{EventsProcessed: processed})
	}

	// Control events are exempt from the THROUGHPUT bound: drain every
	// queued one now, unconditionally, before any ordinary dispatch (spec.md
	// "Drain all queued control events (no limit; they must complete before
	// ordinary work)").
	for c.dispatchControl() {
		processed++
		if c.poison.isPoisoned() {
			return c.park(ExecuteResult{EventsProcessed: processed})
		}
	}

	if pending, _ := c.continuationState(); pending {
		return c.park(ExecuteResult{EventsProcessed: processed})
	}

	if maxEvents > 0 {
		processed += c.drainOrdinary(maxEvents)
	}

	return c.park(ExecuteResult{EventsProcessed: processed})
}

func (c *Container) park(result ExecuteResult) ExecuteResult {
	result.StillReady = c.ready.park(c.hasPendingWork, c.submit)
	return result
}
