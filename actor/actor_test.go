package actor

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corebus/corebus/corerr"
)

type fakeMailbox struct {
	id       ID
	messages []any
}

func newFakeMailbox() *fakeMailbox { return &fakeMailbox{id: NewID()} }

func (m *fakeMailbox) ID() ID { return m.id }

func (m *fakeMailbox) EnqueueMessage(msg any) error {
	m.messages = append(m.messages, msg)
	return nil
}

func TestStrongRef_Tell(t *testing.T) {
	mb := newFakeMailbox()
	anchor := NewAnchor(mb, nil)
	ref := anchor.Strong()

	require.NoError(t, ref.Tell("hello"))
	require.Equal(t, []any{"hello"}, mb.messages)
	require.Equal(t, mb.id, ref.ID())
}

func TestWeakRef_TellWhileAnchorReachable(t *testing.T) {
	mb := newFakeMailbox()
	anchor := NewAnchor(mb, nil)
	weak := anchor.Weak()

	require.NoError(t, weak.Tell("hi"))
	require.Equal(t, []any{"hi"}, mb.messages)
	runtime.KeepAlive(anchor)
}

func TestWeakRef_TellAfterAnchorCollected(t *testing.T) {
	mb := newFakeMailbox()
	var weak *WeakRef
	func() {
		anchor := NewAnchor(mb, nil)
		weak = anchor.Weak()
	}()

	// The anchor created above is only reachable from the weak pointer
	// itself (which does not count) once the closure returns; force a
	// collection cycle so the weak pointer observes it gone.
	for i := 0; i < 20; i++ {
		runtime.GC()
		if err := weak.Tell("ghost"); err != nil {
			require.ErrorIs(t, err, corerr.ErrDestroyed)
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected WeakRef.Tell to observe a collected anchor")
}

type fakeLimiter struct{ allow bool }

func (l fakeLimiter) Allow(any) bool { return l.allow }

func TestStrongRef_RateLimited(t *testing.T) {
	mb := newFakeMailbox()
	anchor := NewAnchor(mb, fakeLimiter{allow: false})
	ref := anchor.Strong()

	err := ref.Tell("x")
	require.ErrorIs(t, err, corerr.ErrRateLimited)
	require.Empty(t, mb.messages)
}

func TestCatrateLimiter_NilLimiterAllowsEverything(t *testing.T) {
	var l CatrateLimiter
	require.True(t, l.Allow("anything"))
}
