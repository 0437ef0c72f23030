package component

import "sync/atomic"

// readyState mirrors eventloop/state.go's FastState: a lock-free CAS state
// machine, generalized from the event loop's five running states down to
// the two a per-container ready flag needs (spec.md §3: "transitioning it
// from idle to scheduled both enqueues the container into the scheduler and
// claims the right to do so exactly once").
type readyState uint32

const (
	readyIdle readyState = iota
	readyScheduled
)

type readyFlag struct {
	v atomic.Uint32
}

func (f *readyFlag) load() readyState { return readyState(f.v.Load()) }

func (f *readyFlag) cas(from, to readyState) bool {
	return f.v.CompareAndSwap(uint32(from), uint32(to))
}

// schedule is called by every Enqueue* method whenever its queue transitions
// from empty to non-empty. submit is invoked exactly once, only by the
// caller that wins the idle->scheduled transition.
func (f *readyFlag) schedule(submit func()) {
	if f.cas(readyIdle, readyScheduled) {
		submit()
	}
}

// park attempts to transition back to idle after a run found no more
// pending work. hasWork is re-checked after the CAS succeeds, to close the
// lost-wakeup race where an enqueue happens between the caller's own
// "anything pending?" check and this CAS: if something did sneak in, park
// immediately reschedules and reports that to the caller via resubmit.
func (f *readyFlag) park(hasWork func() bool, resubmit func()) (stillScheduled bool) {
	if !f.cas(readyScheduled, readyIdle) {
		// Something else (shouldn't normally happen - only the running
		// worker transitions away from Scheduled) raced us; treat as still
		// scheduled so the caller doesn't drop work.
		return true
	}
	if hasWork() {
		if f.cas(readyIdle, readyScheduled) {
			resubmit()
			return true
		}
		// Someone else's enqueue already won the race and resubmitted.
		return true
	}
	return false
}

// poisonLock is a mutual-exclusion primitive that, once poisoned by a
// recovered handler panic, refuses every subsequent lock attempt with
// corerr.ErrLockPoisoned instead of silently granting access to a container
// whose definition may be left half-mutated (spec.md §5, §7, §8 scenario F).
type poisonLock struct {
	locked   atomic.Bool
	poisoned atomic.Bool
}

func (l *poisonLock) tryLock() (ok bool, alreadyPoisoned bool) {
	if l.poisoned.Load() {
		return false, true
	}
	if !l.locked.CompareAndSwap(false, true) {
		return false, false
	}
	if l.poisoned.Load() {
		l.locked.Store(false)
		return false, true
	}
	return true, false
}

func (l *poisonLock) unlock() { l.locked.Store(false) }

func (l *poisonLock) poison() { l.poisoned.Store(true) }

func (l *poisonLock) isPoisoned() bool { return l.poisoned.Load() }
