package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateLifecycle(t *testing.T) {
	t.Parallel()

	s := NewState()
	require.True(t, s.Idle())

	s.Begin("track_symptoms")
	require.False(t, s.Idle())
	s.PendingSlot = "severity"
	s.CollectedData["symptoms_experienced"] = "headache"

	snap := s.Clone()
	snap.CollectedData["symptoms_experienced"] = "changed"
	require.Equal(t, "headache", s.CollectedData["symptoms_experienced"])

	require.False(t, snap.Idle())
	require.True(t, State{}.Idle())

	s.Reset()
	require.True(t, s.Idle())
	require.Empty(t, s.PendingSlot)
	require.Empty(t, s.CollectedData)
	require.NotNil(t, s.CollectedData)
}

func TestBeginClearsPreviousData(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Begin("a")
	s.CollectedData["x"] = "1"
	s.PendingSlot = "y"

	s.Begin("b")
	require.Equal(t, "b", s.CurrentIntent)
	require.Empty(t, s.CollectedData)
	require.Empty(t, s.PendingSlot)
}

func TestSessionTranscript(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	sess := New("log", now)
	require.True(t, strings.HasPrefix(sess.ID, "session_"))
	require.Equal(t, now, sess.StartTime)

	sess.Append(RoleUser, "track my symptoms", now)
	sess.Append(RoleAgent, "What symptoms are you experiencing?", now.Add(time.Second))
	require.Len(t, sess.Messages, 2)
	require.Equal(t, RoleAgent, sess.Messages[1].Role)

	other := New("log", now)
	require.NotEqual(t, sess.ID, other.ID)
}
