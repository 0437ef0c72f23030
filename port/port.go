// Package port implements the typed, directional channel abstraction between
// components: a port type declares a request direction (downstream) and an
// indication direction (upstream); a component provides or requires a given
// port type (spec.md §4.2).
//
// The dynamic-lookup-by-type-identifier design note in spec.md §9 is
// implemented here as a monotonic registry keyed by reflect.Type, assigning
// a stable Key the first time a given port marker type is observed -
// "derivable from a registration macro or a monotonic registry" taken
// literally, without needing a derive-macro equivalent.
package port

import (
	"reflect"
	"sync"

	"github.com/corebus/corebus/corerr"
)

// Key identifies a port type across a whole runtime. Two ports declared
// with the same marker type P always share a Key.
type Key struct {
	rt reflect.Type
}

var (
	keyMu      sync.Mutex
	keyOrdinal = map[reflect.Type]uint64{}
	nextKey    uint64 = 1
)

// KeyFor returns the stable Key for marker type P, assigning it the next
// ordinal in the monotonic registry the first time P is observed.
func KeyFor[P any]() Key {
	rt := reflect.TypeFor[P]()
	keyMu.Lock()
	if _, ok := keyOrdinal[rt]; !ok {
		keyOrdinal[rt] = nextKey
		nextKey++
	}
	keyMu.Unlock()
	return Key{rt: rt}
}

// Ordinal returns the registry-assigned integer id for diagnostics/logging.
func (k Key) Ordinal() uint64 {
	keyMu.Lock()
	defer keyMu.Unlock()
	return keyOrdinal[k.rt]
}

func (k Key) String() string { return k.rt.String() }

// Ready is the callback a port uses to tell its owning container that a
// queue transitioned from empty to non-empty. It is supplied by SetParent
// and must be safe to call concurrently.
type Ready func()

// Binding is the type-erased surface a container uses to drain a
// component's ports in round-robin order without reflecting on Req/Ind.
type Binding interface {
	Key() Key
	// Pending reports the current queue depth.
	Pending() int
	// DrainOne pops and dispatches a single queued event to the bound
	// handler. It returns false if the queue was empty.
	DrainOne() bool
}

// Provided is the provider side of port type P (request type Req,
// indication type Ind). A provided port handles Req and triggers Ind,
// fanning out to every connected Required peer (spec.md §4.2).
type Provided[P any, Req any, Ind any] struct {
	mu      sync.Mutex
	ready   Ready
	queue   []Req
	peers   []*Required[P, Req, Ind]
	handler func(Req)
}

// NewProvided constructs an unwired, unbound provided port.
func NewProvided[P any, Req any, Ind any]() *Provided[P, Req, Ind] {
	return &Provided[P, Req, Ind]{}
}

// Key implements Binding.
func (p *Provided[P, Req, Ind]) Key() Key { return KeyFor[P]() }

// Bind registers the handler invoked for every drained request. Must be
// called during setup, before Start.
func (p *Provided[P, Req, Ind]) Bind(handler func(Req)) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
}

// SetParent wires the port into its owning container's ready-notification
// path. Must happen before Start is observed, or before the first event is
// triggered (spec.md §4.2 wiring contract).
func (p *Provided[P, Req, Ind]) SetParent(ready Ready) {
	p.mu.Lock()
	p.ready = ready
	p.mu.Unlock()
}

func (p *Provided[P, Req, Ind]) wired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready != nil
}

// enqueueRequest appends req to the pending queue, notifying the owner.
func (p *Provided[P, Req, Ind]) enqueueRequest(req Req) error {
	p.mu.Lock()
	if p.ready == nil {
		p.mu.Unlock()
		return corerr.ErrPortUnwired
	}
	wasEmpty := len(p.queue) == 0
	p.queue = append(p.queue, req)
	ready := p.ready
	p.mu.Unlock()
	if wasEmpty {
		ready()
	}
	return nil
}

// Trigger enqueues ind on every connected Required peer, one independent
// delivery per peer (spec.md §4.2, fanout testable property in spec.md §8).
func (p *Provided[P, Req, Ind]) Trigger(ind Ind) error {
	if !p.wired() {
		return corerr.ErrPortUnwired
	}
	p.mu.Lock()
	peers := make([]*Required[P, Req, Ind], len(p.peers))
	copy(peers, p.peers)
	p.mu.Unlock()
	for _, peer := range peers {
		_ = peer.enqueueIndication(ind)
	}
	return nil
}

// Pending implements Binding.
func (p *Provided[P, Req, Ind]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// DrainOne implements Binding: pops the oldest queued request and invokes
// the bound handler.
func (p *Provided[P, Req, Ind]) DrainOne() bool {
	p.mu.Lock()
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return false
	}
	req := p.queue[0]
	p.queue = p.queue[1:]
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		handler(req)
	}
	return true
}

// Connect wires a provided and a required port of the same type together.
// It is symmetric and idempotent per (provider, requirer) pair (spec.md
// §4.2 wiring contract).
func Connect[P any, Req any, Ind any](provided *Provided[P, Req, Ind], required *Required[P, Req, Ind]) {
	provided.mu.Lock()
	already := false
	for _, peer := range provided.peers {
		if peer == required {
			already = true
			break
		}
	}
	if !already {
		provided.peers = append(provided.peers, required)
	}
	provided.mu.Unlock()

	required.mu.Lock()
	already = false
	for _, peer := range required.peers {
		if peer == provided {
			already = true
			break
		}
	}
	if !already {
		required.peers = append(required.peers, provided)
	}
	required.mu.Unlock()
}

// Required is the requirer side of port type P: the mirror image of
// Provided. It handles Ind and triggers Req, fanning out to every connected
// Provided peer.
type Required[P any, Req any, Ind any] struct {
	mu      sync.Mutex
	ready   Ready
	queue   []Ind
	peers   []*Provided[P, Req, Ind]
	handler func(Ind)
}

// NewRequired constructs an unwired, unbound required port.
func NewRequired[P any, Req any, Ind any]() *Required[P, Req, Ind] {
	return &Required[P, Req, Ind]{}
}

func (r *Required[P, Req, Ind]) Key() Key { return KeyFor[P]() }

func (r *Required[P, Req, Ind]) Bind(handler func(Ind)) {
	r.mu.Lock()
	r.handler = handler
	r.mu.Unlock()
}

func (r *Required[P, Req, Ind]) SetParent(ready Ready) {
	r.mu.Lock()
	r.ready = ready
	r.mu.Unlock()
}

func (r *Required[P, Req, Ind]) wired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready != nil
}

func (r *Required[P, Req, Ind]) enqueueIndication(ind Ind) error {
	r.mu.Lock()
	if r.ready == nil {
		r.mu.Unlock()
		return corerr.ErrPortUnwired
	}
	wasEmpty := len(r.queue) == 0
	r.queue = append(r.queue, ind)
	ready := r.ready
	r.mu.Unlock()
	if wasEmpty {
		ready()
	}
	return nil
}

// Trigger enqueues req on every connected Provided peer.
func (r *Required[P, Req, Ind]) Trigger(req Req) error {
	if !r.wired() {
		return corerr.ErrPortUnwired
	}
	r.mu.Lock()
	peers := make([]*Provided[P, Req, Ind], len(r.peers))
	copy(peers, r.peers)
	r.mu.Unlock()
	for _, peer := range peers {
		_ = peer.enqueueRequest(req)
	}
	return nil
}

func (r *Required[P, Req, Ind]) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Required[P, Req, Ind]) DrainOne() bool {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		return false
	}
	ind := r.queue[0]
	r.queue = r.queue[1:]
	handler := r.handler
	r.mu.Unlock()
	if handler != nil {
		handler(ind)
	}
	return true
}

var (
	_ Binding = (*Provided[struct{}, int, int])(nil)
	_ Binding = (*Required[struct{}, int, int])(nil)
)
