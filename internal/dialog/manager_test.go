package dialog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SlotChat/internal/intent"
	"SlotChat/internal/learning"
)

var symptomQuestions = intent.SymptomTracking().Questions

type submission struct {
	intent string
	data   map[string]string
}

type fakeLearner struct {
	outcome learning.Outcome
	calls   []submission
}

func (f *fakeLearner) Name() string { return "fake" }

func (f *fakeLearner) Submit(_ context.Context, intent string, data map[string]string) learning.Outcome {
	f.calls = append(f.calls, submission{intent: intent, data: data})
	return f.outcome
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeLearner) {
	t.Helper()
	l := &fakeLearner{outcome: learning.Succeeded("ok")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(intent.DefaultCatalog(), l, logger, opts...), l
}

func answerAll(t *testing.T, m *Manager, answers ...string) string {
	t.Helper()
	var last string
	for _, a := range answers {
		last = m.HandleMessage(context.Background(), a)
	}
	return last
}

func TestDetectionStartsCollecting(t *testing.T) {
	t.Parallel()

	for _, msg := range []string{"Track my symptoms", "SYMPTOM check", "i have a symptom", "symptoms!!"} {
		m, _ := newTestManager(t)
		got := m.HandleMessage(context.Background(), msg)
		require.Equal(t, symptomQuestions[0], got, msg)

		st := m.State()
		require.Equal(t, intent.TrackSymptoms, st.CurrentIntent)
		require.Equal(t, "symptoms_experienced", st.PendingSlot)
		require.Empty(t, st.CollectedData)
	}
}

func TestNoIntentFallsBack(t *testing.T) {
	t.Parallel()

	for _, msg := range []string{"hello", "track my sleep", "", "sym ptom"} {
		m, l := newTestManager(t)
		require.Equal(t, FallbackMessage, m.HandleMessage(context.Background(), msg), msg)
		require.True(t, m.State().Idle())
		require.Empty(t, l.calls)
	}
}

func TestFullConversation(t *testing.T) {
	t.Parallel()

	m, l := newTestManager(t)
	ctx := context.Background()

	require.Equal(t, symptomQuestions[0], m.HandleMessage(ctx, "Track my symptoms"))
	answers := []string{"headache", "yesterday", "7", "ibuprofen", "bright light"}
	for i, a := range answers[:4] {
		require.Equal(t, symptomQuestions[i+1], m.HandleMessage(ctx, a))
	}

	final := m.Handle(ctx, answers[4])
	want := []string{
		"Okay, I've recorded the following for your symptoms:",
		"- Symptoms: headache",
		"- Started around: yesterday",
		"- Severity: 7/10",
		"- Medication: ibuprofen",
		"- Triggers/modifying factors: bright light",
		"",
		CompletionNotice,
	}
	require.Equal(t, want, final.Lines)
	require.True(t, strings.HasSuffix(final.String(), "bright light\n\n"+CompletionNotice))

	st := m.State()
	require.True(t, st.Idle())
	require.Empty(t, st.CollectedData)
	require.Empty(t, st.PendingSlot)

	require.Len(t, l.calls, 1)
	require.Equal(t, intent.TrackSymptoms, l.calls[0].intent)
	require.Equal(t, map[string]string{
		"symptoms_experienced": "headache",
		"start_date":           "yesterday",
		"severity":             "7",
		"medication_taken":     "ibuprofen",
		"triggers":             "bright light",
	}, l.calls[0].data)
}

func TestNoLeakageAcrossSessions(t *testing.T) {
	t.Parallel()

	m, l := newTestManager(t)
	ctx := context.Background()

	m.HandleMessage(ctx, "track symptoms")
	answerAll(t, m, "headache", "yesterday", "7", "ibuprofen", "bright light")

	require.Equal(t, symptomQuestions[0], m.HandleMessage(ctx, "I have symptom of fever"))
	st := m.State()
	require.Empty(t, st.CollectedData)

	m.HandleMessage(ctx, "fever")
	st = m.State()
	require.Equal(t, map[string]string{"symptoms_experienced": "fever"}, st.CollectedData)
	require.Equal(t, "start_date", st.PendingSlot)

	answerAll(t, m, "today", "4", "none", "rest")
	require.Len(t, l.calls, 2)
	require.Equal(t, "fever", l.calls[1].data["symptoms_experienced"])
	require.Equal(t, "rest", l.calls[1].data["triggers"])

	// The data handed off earlier is not aliased to live state.
	require.Equal(t, "headache", l.calls[0].data["symptoms_experienced"])
}

func TestAnswersAreStoredVerbatim(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()
	m.HandleMessage(ctx, "symptom")
	// An answer that itself mentions symptoms is data, not a new intent.
	m.HandleMessage(ctx, "  Symptom: dizzy  ")
	require.Equal(t, "  Symptom: dizzy  ", m.State().CollectedData["symptoms_experienced"])
}

func TestHandoffFailureStillCompletes(t *testing.T) {
	t.Parallel()

	m, l := newTestManager(t)
	l.outcome = learning.Failed(errors.New("service unavailable"))
	ctx := context.Background()

	m.HandleMessage(ctx, "symptom")
	final := answerAll(t, m, "a", "b", "c", "d", "e")

	require.Contains(t, final, "- Severity: c/10")
	require.True(t, strings.HasSuffix(final, CompletionNotice))
	require.True(t, m.State().Idle())
	require.Len(t, l.calls, 1)
}

func TestHandoffFailureIsNotLoggedAsError(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	l := &fakeLearner{outcome: learning.Failed(errors.New("service unavailable"))}
	m := NewManager(intent.DefaultCatalog(), l, slog.New(slog.NewJSONHandler(&logs, nil)))

	m.HandleMessage(context.Background(), "symptom")
	answerAll(t, m, "a", "b", "c", "d", "e")
	require.Len(t, l.calls, 1)
	require.NotContains(t, logs.String(), `"level":"ERROR"`)
	require.Contains(t, logs.String(), `"handoff_ok":false`)
}

func TestNextQuestionPicksLowestUnfilledSlot(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	def := intent.SymptomTracking()

	m.state.Begin(def.Name)
	m.state.CollectedData["severity"] = "5"
	m.state.CollectedData["symptoms_experienced"] = "cough"

	q, ok := m.nextQuestion(def)
	require.True(t, ok)
	require.Equal(t, def.Questions[1], q)
	require.Equal(t, "start_date", m.state.PendingSlot)

	m.state.CollectedData["start_date"] = "monday"
	q, ok = m.nextQuestion(def)
	require.True(t, ok)
	require.Equal(t, def.Questions[3], q, "a filled slot is never asked again")
	require.Equal(t, "medication_taken", m.state.PendingSlot)

	m.state.CollectedData["medication_taken"] = "none"
	m.state.CollectedData["triggers"] = "none"
	_, ok = m.nextQuestion(def)
	require.False(t, ok)
	require.Empty(t, m.state.PendingSlot)
}

func TestMissingPendingSlotIsDiscarded(t *testing.T) {
	t.Parallel()

	m, l := newTestManager(t)
	ctx := context.Background()

	m.HandleMessage(ctx, "symptom")
	m.mu.Lock()
	m.state.PendingSlot = ""
	m.mu.Unlock()

	// The answer is dropped and the first question is asked again.
	require.Equal(t, symptomQuestions[0], m.HandleMessage(ctx, "headache"))
	st := m.State()
	require.Empty(t, st.CollectedData)
	require.Equal(t, "symptoms_experienced", st.PendingSlot)
	require.Empty(t, l.calls)
}

func zeroSlotManager(t *testing.T) (*Manager, *fakeLearner) {
	t.Helper()
	catalog, err := intent.NewCatalog(
		intent.Definition{Name: "say_hello", Keywords: []string{"hello"}},
		intent.SymptomTracking(),
	)
	require.NoError(t, err)
	l := &fakeLearner{outcome: learning.Succeeded("ok")}
	return NewManager(catalog, l, slog.New(slog.NewTextHandler(io.Discard, nil))), l
}

func TestZeroSlotIntent(t *testing.T) {
	t.Parallel()

	m, l := zeroSlotManager(t)
	ctx := context.Background()

	got := m.HandleMessage(ctx, "hello there")
	require.Equal(t, "I understand you want to say hello, but I don't know what to ask next.", got)
	st := m.State()
	require.Equal(t, "say_hello", st.CurrentIntent)
	require.Empty(t, st.PendingSlot)

	require.Equal(t, NothingCollected, m.HandleMessage(ctx, "anything"))
	require.True(t, m.State().Idle())
	require.Empty(t, l.calls)
}

func TestFirstMatchingIntentWins(t *testing.T) {
	t.Parallel()

	m, _ := zeroSlotManager(t)
	m.HandleMessage(context.Background(), "hello, I have a symptom")
	require.Equal(t, "say_hello", m.State().CurrentIntent)
}

type fixedClassifier string

func (f fixedClassifier) Classify(string) (string, bool) { return string(f), true }

func TestUnknownIntentFromClassifier(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, WithClassifier(fixedClassifier("book_flight")))
	require.Equal(t, FallbackMessage, m.HandleMessage(context.Background(), "anything"))
	require.True(t, m.State().Idle())
}

func TestIdleTimeoutResetsSession(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	m, _ := newTestManager(t, WithIdleTimeout(10*time.Minute), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	m.HandleMessage(ctx, "symptom")
	now = now.Add(5 * time.Minute)
	require.Equal(t, symptomQuestions[1], m.HandleMessage(ctx, "headache"))

	now = now.Add(11 * time.Minute)
	// Treated as a fresh message in IDLE.
	require.Equal(t, FallbackMessage, m.HandleMessage(ctx, "yesterday"))
	require.True(t, m.State().Idle())
}

func TestIdleTimeoutDisabledByDefault(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	m, _ := newTestManager(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	m.HandleMessage(ctx, "symptom")
	now = now.Add(48 * time.Hour)
	assert.Equal(t, symptomQuestions[1], m.HandleMessage(ctx, "headache"))
}

func TestReset(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	m.HandleMessage(context.Background(), "symptom")
	m.Reset()
	require.True(t, m.State().Idle())
}
