package session

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Message represents a single chat message
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents a chat session transcript
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Learner   string    `json:"learner"`
	Messages  []Message `json:"messages"`
}

// New starts an empty transcript with a fresh ID.
func New(learner string, now time.Time) *Session {
	return &Session{
		ID:        "session_" + uuid.NewString(),
		StartTime: now,
		Learner:   learner,
		Messages:  []Message{},
	}
}

// Append records one turn.
func (s *Session) Append(role, content string, at time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: at})
}

// State is the mutable dialog state of one conversation.
//
// CurrentIntent and PendingSlot use the empty string for "none". When
// PendingSlot is set it names a required slot of CurrentIntent that is not
// yet a key of CollectedData.
type State struct {
	CurrentIntent string            `json:"current_intent"`
	CollectedData map[string]string `json:"collected_data"`
	PendingSlot   string            `json:"pending_slot"`
	LastActivity  time.Time         `json:"last_activity"`
}

// NewState returns an idle state.
func NewState() *State {
	return &State{CollectedData: map[string]string{}}
}

// Idle reports whether no intent is being collected.
func (s State) Idle() bool {
	return s.CurrentIntent == ""
}

// Begin switches to intent with a clean slate.
func (s *State) Begin(intent string) {
	s.CurrentIntent = intent
	s.CollectedData = map[string]string{}
	s.PendingSlot = ""
}

// Reset returns the state to idle.
func (s *State) Reset() {
	s.CurrentIntent = ""
	s.CollectedData = map[string]string{}
	s.PendingSlot = ""
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *State) Clone() State {
	out := *s
	out.CollectedData = CopyData(s.CollectedData)
	return out
}

// CopyData copies a slot map.
func CopyData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
