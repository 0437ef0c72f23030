// Package corebus is the runtime facade: New assembles a scheduler and a
// spawn table behind the functional-options construction pattern used
// throughout the teacher's eventloop package (spec.md §3, §5).
package corebus

import (
	"context"
	goruntime "runtime"
	"sync"

	"github.com/corebus/corebus/actor"
	"github.com/corebus/corebus/ask"
	"github.com/corebus/corebus/component"
	"github.com/corebus/corebus/corerr"
	"github.com/corebus/corebus/lifecycle"
	"github.com/corebus/corebus/logging"
	"github.com/corebus/corebus/scheduler"
)

// runtimeConfig is resolved from Option values before a Runtime is built,
// mirroring eventloop/options.go's resolveLoopOptions.
type runtimeConfig struct {
	workers    int
	throughput int
	logger     logging.Logger
	limiter    actor.Limiter
}

// Option configures a Runtime at construction time.
type Option interface {
	apply(*runtimeConfig)
}

type optionFunc func(*runtimeConfig)

func (f optionFunc) apply(cfg *runtimeConfig) { f(cfg) }

// WithWorkers sets the fixed worker-goroutine pool size. Defaults to
// runtime.NumCPU().
func WithWorkers(n int) Option {
	return optionFunc(func(cfg *runtimeConfig) { cfg.workers = n })
}

// WithThroughput sets the per-Execute event bound (spec.md's THROUGHPUT).
// Defaults to 32.
func WithThroughput(n int) Option {
	return optionFunc(func(cfg *runtimeConfig) { cfg.throughput = n })
}

// WithLogger sets the structured logger every component and the scheduler
// log through. Defaults to logging.NoOpLogger.
func WithLogger(l logging.Logger) Option {
	return optionFunc(func(cfg *runtimeConfig) { cfg.logger = l })
}

// WithRateLimiter installs an admission-control Limiter consulted on every
// Tell across every spawned component's Ref. Defaults to unlimited.
func WithRateLimiter(l actor.Limiter) Option {
	return optionFunc(func(cfg *runtimeConfig) { cfg.limiter = l })
}

// Runtime owns the scheduler and the table of spawned containers. It
// implements component.Spawner so a running component can spawn siblings
// through its Context without this package depending back on component (the
// dependency runs the other way).
//
// There is deliberately no runtime-wide ask.Registry: each container gets
// its own (see Spawn), so that killing one component cancels only the asks
// addressed to it, not every other live component's in-flight asks.
// Shutdown cancels every container's registry individually instead.
type Runtime struct {
	sched   *scheduler.Scheduler
	logger  logging.Logger
	limiter actor.Limiter

	mu         sync.Mutex
	containers map[actor.ID]*component.Container
}

// New constructs and starts a Runtime. Workers begin polling the scheduler's
// ready queue immediately; Spawn is safe to call right away.
func New(opts ...Option) *Runtime {
	cfg := &runtimeConfig{
		workers:    goruntime.NumCPU(),
		throughput: 32,
		logger:     logging.NoOpLogger{},
	}
	for _, o := range opts {
		if o != nil {
			o.apply(cfg)
		}
	}

	rt := &Runtime{
		logger:     cfg.logger,
		limiter:    cfg.limiter,
		containers: make(map[actor.ID]*component.Container),
	}
	rt.sched = scheduler.New(scheduler.Config{
		Workers:    cfg.workers,
		Throughput: cfg.throughput,
		Logger:     cfg.logger,
	})
	return rt
}

// Spawn constructs a container for def (running its Setup), registers it,
// and returns a strong Ref to its mailbox. It implements component.Spawner.
// Each container gets its own ask.Registry, scoping Kill's cancellation to
// just the asks addressed to that component.
func (rt *Runtime) Spawn(def component.Definition) (actor.Ref, error) {
	c, err := component.NewContainer(def, component.ContainerConfig{
		Logger:   rt.logger,
		Registry: ask.NewRegistry(),
		Spawner:  rt,
		Limiter:  rt.limiter,
		Submit:   rt.sched.Submit,
	})
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	rt.containers[c.ID()] = c
	rt.mu.Unlock()
	return c.Anchor().Strong(), nil
}

// Start delivers the Start control event to the component identified by id
// (spec.md §4.4).
func (rt *Runtime) Start(id actor.ID) error { return rt.control(id, lifecycle.Start) }

// Stop delivers the Stop control event.
func (rt *Runtime) Stop(id actor.ID) error { return rt.control(id, lifecycle.Stop) }

// Kill delivers the Kill control event.
func (rt *Runtime) Kill(id actor.ID) error { return rt.control(id, lifecycle.Kill) }

func (rt *Runtime) control(id actor.ID, event lifecycle.Event) error {
	rt.mu.Lock()
	c, ok := rt.containers[id]
	rt.mu.Unlock()
	if !ok {
		return corerr.ErrUnknownComponent
	}
	return c.EnqueueControl(event)
}

// RegistryFor implements component.Spawner: it resolves a component's own
// ask registry, so Ask (here and in component.Ask) always registers against
// the target's registry rather than the caller's.
func (rt *Runtime) RegistryFor(id actor.ID) (*ask.Registry, bool) {
	rt.mu.Lock()
	c, ok := rt.containers[id]
	rt.mu.Unlock()
	if !ok {
		return nil, false
	}
	return c.Registry(), true
}

// Ask sends req to target and returns a Future for its typed reply,
// correlated through target's own ask registry (spec.md §4.7) - so that if
// target is later killed before replying, only this ask (and target's other
// in-flight asks) observe cancellation, not every ask in the runtime.
func Ask[Req any, Rep any](rt *Runtime, target actor.Ref, req Req) (ask.Future[Rep], error) {
	reg, ok := rt.RegistryFor(target.ID())
	if !ok {
		return ask.Rejected[Rep](corerr.ErrUnknownComponent), corerr.ErrUnknownComponent
	}
	return ask.Send[Req, Rep](reg, target, req)
}

// Shutdown cancels every component's outstanding asks with corerr.ErrShutdown
// and stops the scheduler's worker pool, waiting for in-flight Execute calls
// to return or for ctx to be done, whichever comes first.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.mu.Lock()
	for _, c := range rt.containers {
		c.Registry().CancelAll(corerr.ErrShutdown)
	}
	rt.mu.Unlock()
	return rt.sched.Shutdown(ctx)
}
