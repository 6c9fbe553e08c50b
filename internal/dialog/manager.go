package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"SlotChat/internal/intent"
	"SlotChat/internal/learning"
	"SlotChat/internal/session"
)

// Fixed responses.
const (
	FallbackMessage   = "I'm not sure how to help with that. Can you try rephrasing? Perhaps mention 'track symptoms'?"
	CompletionNotice  = "The LLM has been updated with this information."
	NothingCollected  = "It seems we haven't collected any data. Let's start over."
	nothingToAskTmpl  = "I understand you want to %s, but I don't know what to ask next."
	intentMissingNote = "I lost track of what we were doing. Let's start over."
)

// Response is an ordered list of lines; the presentation layer decides how
// to join them.
type Response struct {
	Lines []string
}

// String joins the lines with newlines.
func (r Response) String() string {
	return strings.Join(r.Lines, "\n")
}

func reply(lines ...string) Response {
	return Response{Lines: lines}
}

// Manager runs the slot-filling state machine for a single conversation.
// Calls are serialized; the mutex only lets State be read from another
// goroutine.
type Manager struct {
	catalog     *intent.Catalog
	classifier  intent.Classifier
	learner     learning.Learner
	logger      *slog.Logger
	tracer      trace.Tracer
	idleTimeout time.Duration
	now         func() time.Time

	detected    metric.Int64Counter
	fallbacks   metric.Int64Counter
	completions metric.Int64Counter
	failures    metric.Int64Counter

	mu    sync.Mutex
	state *session.State
}

// Option configures a Manager.
type Option func(*Manager)

// WithClassifier replaces the keyword classifier built from the catalog.
func WithClassifier(c intent.Classifier) Option {
	return func(m *Manager) { m.classifier = c }
}

// WithTracer sets the tracer used for per-message spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithIdleTimeout resets a collecting session that has been quiet for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMeter sets the meter for dialog counters.
func WithMeter(meter metric.Meter) Option {
	return func(m *Manager) { m.initCounters(meter) }
}

// NewManager creates a manager with an idle session.
func NewManager(catalog *intent.Catalog, learner learning.Learner, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		catalog:    catalog,
		classifier: intent.NewKeywordClassifier(catalog),
		learner:    learner,
		logger:     logger,
		tracer:     tracenoop.NewTracerProvider().Tracer("dialog"),
		now:        time.Now,
		state:      session.NewState(),
	}
	m.initCounters(metricnoop.NewMeterProvider().Meter("dialog"))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) initCounters(meter metric.Meter) {
	m.detected = m.counter(meter, "dialog.intents.detected", "Intents detected from user messages")
	m.fallbacks = m.counter(meter, "dialog.fallbacks", "Messages that matched no intent")
	m.completions = m.counter(meter, "dialog.completions", "Intents with every slot filled")
	m.failures = m.counter(meter, "dialog.handoff.failures", "Learning hand-offs that failed")
}

func (m *Manager) counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		m.logger.Warn("failed to create counter", "name", name, "error", err)
		c, _ = metricnoop.NewMeterProvider().Meter("dialog").Int64Counter(name)
	}
	return c
}

// HandleMessage feeds one user message through the state machine and
// returns the reply as a single string.
func (m *Manager) HandleMessage(ctx context.Context, text string) string {
	return m.Handle(ctx, text).String()
}

// Handle feeds one user message through the state machine.
func (m *Manager) Handle(ctx context.Context, text string) Response {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := m.tracer.Start(ctx, "dialog.handle_message")
	defer span.End()

	now := m.now()
	m.expireIfIdle(ctx, now)
	m.state.LastActivity = now

	var resp Response
	if m.state.Idle() {
		resp = m.detect(ctx, text)
	} else {
		resp = m.collect(ctx, text)
	}

	span.SetAttributes(
		attribute.String("dialog.intent", m.state.CurrentIntent),
		attribute.String("dialog.pending_slot", m.state.PendingSlot),
		attribute.Int("dialog.collected", len(m.state.CollectedData)),
	)
	return resp
}

// State returns a copy of the current session state.
func (m *Manager) State() session.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Reset abandons any intent in progress.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Reset()
}

func (m *Manager) expireIfIdle(ctx context.Context, now time.Time) {
	if m.idleTimeout <= 0 || m.state.Idle() || m.state.LastActivity.IsZero() {
		return
	}
	if idle := now.Sub(m.state.LastActivity); idle >= m.idleTimeout {
		m.logger.InfoContext(ctx, "session expired", "intent", m.state.CurrentIntent, "idle", idle.String())
		m.state.Reset()
	}
}

func (m *Manager) detect(ctx context.Context, text string) Response {
	name, ok := m.classifier.Classify(text)
	if !ok {
		m.fallbacks.Add(ctx, 1)
		return reply(FallbackMessage)
	}

	def, ok := m.catalog.Lookup(name)
	if !ok {
		m.logger.ErrorContext(ctx, "classifier returned unknown intent", "intent", name)
		m.fallbacks.Add(ctx, 1)
		return reply(FallbackMessage)
	}

	m.state.Begin(def.Name)
	m.detected.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", def.Name)))
	m.logger.InfoContext(ctx, "intent detected", "intent", def.Name)

	if q, ok := m.nextQuestion(def); ok {
		return reply(q)
	}
	return reply(fmt.Sprintf(nothingToAskTmpl, def.DisplayName()))
}

func (m *Manager) collect(ctx context.Context, text string) Response {
	def, ok := m.catalog.Lookup(m.state.CurrentIntent)
	if !ok {
		m.logger.ErrorContext(ctx, "current intent not in catalog", "intent", m.state.CurrentIntent)
		m.state.Reset()
		return reply(intentMissingNote)
	}

	if slot := m.state.PendingSlot; slot != "" {
		m.state.CollectedData[slot] = text
		m.logger.DebugContext(ctx, "collected slot", "intent", def.Name, "slot", slot)
	} else {
		m.logger.WarnContext(ctx, "no pending slot for answer, discarding it", "intent", def.Name)
	}

	if q, ok := m.nextQuestion(def); ok {
		return reply(q)
	}

	defer m.state.Reset()

	if len(m.state.CollectedData) == 0 {
		return reply(NothingCollected)
	}

	data := session.CopyData(m.state.CollectedData)
	out := m.learner.Submit(ctx, def.Name, data)
	if !out.Success {
		m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", def.Name)))
		m.logger.DebugContext(ctx, "learning hand-off failed", "intent", def.Name, "error", out.Message)
	}
	m.completions.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", def.Name)))
	m.logger.InfoContext(ctx, "intent completed", "intent", def.Name, "slots", len(data), "handoff_ok", out.Success)

	lines := Summarize(&def, data)
	lines = append(lines, "", CompletionNotice)
	return reply(lines...)
}

// nextQuestion marks the first unfilled slot as pending and returns its
// question. It reports false when every slot is filled.
func (m *Manager) nextQuestion(def intent.Definition) (string, bool) {
	for i, slot := range def.RequiredSlots {
		if _, filled := m.state.CollectedData[slot]; !filled {
			m.state.PendingSlot = slot
			return def.Questions[i], true
		}
	}
	m.state.PendingSlot = ""
	return "", false
}
