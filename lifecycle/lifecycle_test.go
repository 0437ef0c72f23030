package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApply_StartStopCycle(t *testing.T) {
	to, ok := Apply(Passive, Start)
	require.True(t, ok)
	require.Equal(t, Active, to)

	to, ok = Apply(Active, Stop)
	require.True(t, ok)
	require.Equal(t, Passive, to)
}

func TestApply_StartWhileActiveIsNoOp(t *testing.T) {
	to, ok := Apply(Active, Start)
	require.False(t, ok)
	require.Equal(t, Active, to)
}

func TestApply_KillFromAnyAliveState(t *testing.T) {
	for _, from := range []State{Uninitialised, Initialising, Active, Passive} {
		to, ok := Apply(from, Kill)
		require.True(t, ok, "from %v", from)
		require.Equal(t, Destroyed, to)
	}
}

func TestApply_KillIsIdempotent(t *testing.T) {
	to, ok := Apply(Destroyed, Kill)
	require.False(t, ok)
	require.Equal(t, Destroyed, to)
}

func TestApply_UninitialisedRejectsStartStop(t *testing.T) {
	_, ok := Apply(Uninitialised, Start)
	require.False(t, ok)
	_, ok = Apply(Initialising, Stop)
	require.False(t, ok)
}

func TestState_Alive(t *testing.T) {
	require.True(t, Active.Alive())
	require.True(t, Passive.Alive())
	require.False(t, Destroyed.Alive())
}
