package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"SlotChat/internal/backend"
	"SlotChat/internal/config"
	"SlotChat/internal/dialog"
	"SlotChat/internal/intent"
	"SlotChat/internal/learning"
	"SlotChat/internal/session"
	"SlotChat/internal/store"
	"SlotChat/internal/telemetry"
)

const quitWord = "quit"

// ChatBot represents the main application
type ChatBot struct {
	config   config.Config
	store    *store.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	catalog  *intent.Catalog
	manager  *dialog.Manager
	registry *learning.Registry
	session  *session.Session
	mu       sync.Mutex

	in      io.Reader
	out     io.Writer
	now     func() time.Time
	closers []func()
}

// Deps are the collaborators NewWithDeps wires together. Nil telemetry
// fields fall back to no-op implementations.
type Deps struct {
	Logger  *slog.Logger
	Store   *store.Store
	Catalog *intent.Catalog
	Tracer  trace.Tracer
	Meter   metric.Meter
	In      io.Reader
	Out     io.Writer
}

// NewChatBot creates a ChatBot with file logging, telemetry and SQLite
// storage, reading stdin and writing stdout.
func NewChatBot(cfg config.Config) (*ChatBot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logFile, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		shutdown()
		logFile.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	catalog := intent.DefaultCatalog()
	if cfg.IntentsFile != "" {
		catalog, err = intent.LoadFile(cfg.IntentsFile)
		if err != nil {
			st.Close()
			shutdown()
			logFile.Close()
			return nil, fmt.Errorf("failed to load intents: %w", err)
		}
		logger.Info("loaded intent catalog", "path", cfg.IntentsFile, "intents", catalog.Len())
	}

	if cfg.Debug {
		logger.Debug("debug mode enabled")
	}

	cb, err := NewWithDeps(cfg, Deps{
		Logger:  logger,
		Store:   st,
		Catalog: catalog,
		Tracer:  tracer,
		Meter:   meter,
		In:      os.Stdin,
		Out:     os.Stdout,
	})
	if err != nil {
		st.Close()
		shutdown()
		logFile.Close()
		return nil, err
	}
	cb.closers = append(cb.closers, shutdown, func() { logFile.Close() })
	return cb, nil
}

// NewWithDeps creates a ChatBot around already-initialized collaborators.
// The ChatBot takes ownership of deps.Store.
func NewWithDeps(cfg config.Config, deps Deps) (*ChatBot, error) {
	if deps.Logger == nil || deps.Store == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("logger, store and catalog are required")
	}
	if deps.Tracer == nil {
		deps.Tracer = tracenoop.NewTracerProvider().Tracer("chatbot")
	}
	if deps.Meter == nil {
		deps.Meter = metricnoop.NewMeterProvider().Meter("chatbot")
	}

	cb := &ChatBot{
		config:  cfg,
		store:   deps.Store,
		logger:  deps.Logger,
		tracer:  deps.Tracer,
		meter:   deps.Meter,
		catalog: deps.Catalog,
		in:      deps.In,
		out:     deps.Out,
		now:     time.Now,
	}

	cb.initializeLearners(context.Background())

	var learner learning.Learner = cb.registry
	if cfg.DedupeWindow > 0 {
		learner = learning.NewDedupe(learner, cfg.DedupeWindow, cb.logger)
	}

	cb.manager = dialog.NewManager(cb.catalog, learner, cb.logger,
		dialog.WithTracer(cb.tracer),
		dialog.WithMeter(cb.meter),
		dialog.WithIdleTimeout(cfg.IdleTimeout),
	)
	cb.session = cb.newSession()
	return cb, nil
}

// newSession creates a new transcript
func (cb *ChatBot) newSession() *session.Session {
	sess := session.New(cb.registry.Name(), cb.now())
	cb.logger.Info("created new session", "session_id", sess.ID, "learners", sess.Learner)
	return sess
}

// initializeLearners builds one learner per configured name. Learners that
// fail to start are skipped; if none start, the log learner is used.
func (cb *ChatBot) initializeLearners(ctx context.Context) {
	cb.registry = learning.NewRegistry()

	for _, name := range cb.config.Learners {
		l, closer, err := cb.buildLearner(ctx, name)
		if err != nil {
			cb.logger.Warn("failed to initialize learner, continuing without it", "learner", name, "error", err)
			continue
		}
		cb.registry.Register(learning.Instrument(l, cb.tracer, cb.meter, cb.logger, cb.config.SubmitTimeout), closer)
		cb.logger.Info("registered learner", "learner", name)
	}

	if cb.registry.Count() == 0 {
		cb.logger.Warn("no learners available, falling back to log learner")
		cb.registry.Register(learning.Instrument(learning.NewLogLearner(cb.logger), cb.tracer, cb.meter, cb.logger, cb.config.SubmitTimeout), nil)
	}
}

func (cb *ChatBot) buildLearner(ctx context.Context, name string) (learning.Learner, func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, cb.config.SubmitTimeout)
	defer cancel()

	switch name {
	case config.LearnerLog:
		return learning.NewLogLearner(cb.logger), nil, nil

	case config.LearnerSQLite:
		// The store is closed by the ChatBot itself.
		return cb.store, nil, nil

	case config.LearnerHTTP:
		l, err := backend.NewHTTPLearner(name, cb.config.LearnerURL, cb.logger)
		if err != nil {
			return nil, nil, err
		}
		if err := l.Initialize(ctx); err != nil {
			return nil, nil, err
		}
		return l, l.Close, nil

	case config.LearnerWebSocket:
		l, err := backend.NewWebSocketLearner(ctx, name, cb.config.LearnerURL, cb.logger)
		if err != nil {
			return nil, nil, err
		}
		if err := l.Initialize(ctx); err != nil {
			l.Close()
			return nil, nil, err
		}
		return l, l.Close, nil

	case config.LearnerStdio:
		parts := strings.Fields(cb.config.LearnerCmd)
		if len(parts) == 0 {
			return nil, nil, fmt.Errorf("empty learner command")
		}
		l, err := backend.NewStdioLearner(name, parts[0], parts[1:], cb.logger)
		if err != nil {
			return nil, nil, err
		}
		if err := l.Initialize(ctx); err != nil {
			l.Close()
			return nil, nil, err
		}
		return l, l.Close, nil

	case config.LearnerRedis:
		l := backend.NewRedisLearner(cb.config.RedisAddr, cb.config.RedisKey, cb.logger)
		if err := l.Ping(ctx); err != nil {
			l.Close()
			return nil, nil, err
		}
		return l, l.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown learner: %s", name)
	}
}

// saveSession saves the current transcript to the database
func (cb *ChatBot) saveSession(ctx context.Context) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if len(cb.session.Messages) == 0 {
		return nil
	}
	return cb.store.SaveSession(ctx, cb.session)
}

// Session returns the current transcript.
func (cb *ChatBot) Session() *session.Session {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.session
}

// sendMessage runs one user message through the dialog manager and records both turns
func (cb *ChatBot) sendMessage(ctx context.Context, userMessage string) string {
	cb.mu.Lock()
	cb.session.Append(session.RoleUser, userMessage, cb.now())
	cb.mu.Unlock()

	response := cb.manager.HandleMessage(ctx, userMessage)

	cb.mu.Lock()
	cb.session.Append(session.RoleAgent, response, cb.now())
	cb.mu.Unlock()

	return response
}

// handleCommand handles special commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/reset":
		cb.manager.Reset()
		fmt.Fprintln(cb.out, "Okay, let's start over.")
		return false, nil

	case "/new-session":
		if err := cb.saveSession(ctx); err != nil {
			cb.logger.Error("failed to save current session", "error", err)
		}
		cb.manager.Reset()
		cb.mu.Lock()
		cb.session = cb.newSession()
		cb.mu.Unlock()
		fmt.Fprintln(cb.out, "Started new session:", cb.session.ID)
		return false, nil

	case "/status":
		st := cb.manager.State()
		if st.Idle() {
			fmt.Fprintln(cb.out, "No intent in progress.")
			return false, nil
		}
		fmt.Fprintf(cb.out, "Intent: %s\n", st.CurrentIntent)
		fmt.Fprintf(cb.out, "Waiting for: %s\n", valueOr(st.PendingSlot, "(nothing)"))
		slots := make([]string, 0, len(st.CollectedData))
		for slot := range st.CollectedData {
			slots = append(slots, slot)
		}
		sort.Strings(slots)
		fmt.Fprintf(cb.out, "Collected (%d): %s\n", len(slots), strings.Join(slots, ", "))
		return false, nil

	case "/intents":
		fmt.Fprintln(cb.out, "Known intents:")
		for i, def := range cb.catalog.All() {
			fmt.Fprintf(cb.out, "%d. %s (%d questions)\n", i+1, def.DisplayName(), len(def.Questions))
		}
		return false, nil

	case "/help":
		fmt.Fprintln(cb.out, "Available commands:")
		fmt.Fprintln(cb.out, "  quit, /quit, /exit - Exit the assistant")
		fmt.Fprintln(cb.out, "  /reset             - Abandon the current intent")
		fmt.Fprintln(cb.out, "  /new-session       - Save this transcript and start a new one")
		fmt.Fprintln(cb.out, "  /status            - Show the intent and slots in progress")
		fmt.Fprintln(cb.out, "  /intents           - List known intents")
		fmt.Fprintln(cb.out, "  /help              - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

// Run starts the read-eval-print loop and blocks until quit or end of input
func (cb *ChatBot) Run(ctx context.Context) error {
	defer cb.close()

	fmt.Fprintln(cb.out, "=== SlotChat ===")
	fmt.Fprintf(cb.out, "Session: %s\n", cb.session.ID)
	fmt.Fprintln(cb.out, "Type 'quit' to exit, /help for commands.")
	fmt.Fprintln(cb.out, "Try saying: 'Track my symptoms'")
	fmt.Fprintln(cb.out)

	scanner := bufio.NewScanner(cb.in)

	for {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprint(cb.out, "You: ")
		if !scanner.Scan() {
			break
		}

		// Answers reach the dialog unchanged, blank lines included.
		line := scanner.Text()
		input := strings.TrimSpace(line)
		if strings.EqualFold(input, quitWord) {
			break
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(cb.out, "Error: %v\n", err)
				cb.logger.Warn("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		response := cb.sendMessage(ctx, line)
		fmt.Fprintf(cb.out, "Agent: %s\n\n", response)
	}

	if err := scanner.Err(); err != nil {
		cb.logger.Error("failed to read input", "error", err)
	}

	if err := cb.saveSession(context.Background()); err != nil {
		cb.logger.Error("failed to save session on exit", "error", err)
		return err
	}

	fmt.Fprintln(cb.out, "Goodbye!")
	return nil
}

func (cb *ChatBot) close() {
	if err := cb.registry.Close(); err != nil {
		cb.logger.Warn("failed to close learners", "error", err)
	}
	if err := cb.store.Close(); err != nil {
		cb.logger.Warn("failed to close database", "error", err)
	}
	for _, c := range cb.closers {
		c()
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
