package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"SlotChat/internal/learning"
	"SlotChat/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	start_time DATETIME,
	learner TEXT
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	role TEXT,
	content TEXT,
	timestamp DATETIME,
	FOREIGN KEY(session_id) REFERENCES sessions(id)
);
CREATE TABLE IF NOT EXISTS learned_examples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	intent TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at DATETIME
);`

// Example is one completed intent kept for later training
type Example struct {
	ID        int64
	Intent    string
	Data      map[string]string
	CreatedAt time.Time
}

// Store persists transcripts and learned examples in SQLite
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path and applies the schema
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession writes the session row and replaces its transcript
func (s *Store) SaveSession(ctx context.Context, sess *session.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO sessions (id, start_time, learner) VALUES (?, ?, ?)",
		sess.ID, sess.StartTime, sess.Learner,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	for _, msg := range sess.Messages {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)",
			sess.ID, msg.Role, msg.Content, msg.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("session saved", "session_id", sess.ID, "message_count", len(sess.Messages))
	return nil
}

// LoadSession loads a saved transcript
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*session.Session, error) {
	var learner string
	var startTime time.Time

	err := s.db.QueryRowContext(ctx, "SELECT learner, start_time FROM sessions WHERE id = ?", sessionID).
		Scan(&learner, &startTime)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, timestamp FROM messages WHERE session_id = ? ORDER BY id",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	messages := []session.Message{}
	for rows.Next() {
		var msg session.Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return &session.Session{
		ID:        sessionID,
		StartTime: startTime,
		Learner:   learner,
		Messages:  messages,
	}, nil
}

// Name identifies the store when used as a learner
func (s *Store) Name() string {
	return "sqlite"
}

// Submit records the example in learned_examples
func (s *Store) Submit(ctx context.Context, intent string, data map[string]string) learning.Outcome {
	id, err := s.RecordExample(ctx, intent, data)
	if err != nil {
		return learning.Failed(err)
	}
	return learning.Succeeded(fmt.Sprintf("stored example %d", id))
}

// RecordExample inserts one example and returns its row id
func (s *Store) RecordExample(ctx context.Context, intent string, data map[string]string) (int64, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal example: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO learned_examples (intent, data, created_at) VALUES (?, ?, ?)",
		intent, string(payload), s.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert example: %w", err)
	}
	return res.LastInsertId()
}

// Examples lists stored examples for intent, oldest first
func (s *Store) Examples(ctx context.Context, intent string) ([]Example, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, intent, data, created_at FROM learned_examples WHERE intent = ? ORDER BY id",
		intent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query examples: %w", err)
	}
	defer rows.Close()

	var out []Example
	for rows.Next() {
		var ex Example
		var payload string
		if err := rows.Scan(&ex.ID, &ex.Intent, &payload, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan example: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &ex.Data); err != nil {
			return nil, fmt.Errorf("failed to decode example %d: %w", ex.ID, err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}
