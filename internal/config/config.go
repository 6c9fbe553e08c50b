package config

import (
	"fmt"
	"time"
)

const (
	LearnerLog       = "log"
	LearnerHTTP      = "http"
	LearnerWebSocket = "websocket"
	LearnerStdio     = "stdio"
	LearnerRedis     = "redis"
	LearnerSQLite    = "sqlite"
)

// Config holds application configuration
type Config struct {
	Debug  bool
	LogDir string
	DBPath string

	// IntentsFile optionally replaces the built-in intent catalog with a YAML file
	IntentsFile string
	IdleTimeout time.Duration // zero disables the idle reset

	// Learning hand-off
	Learners      []string
	LearnerURL    string // http:// or ws:// endpoint for remote learners
	LearnerCmd    string // executable speaking JSON-RPC on stdin/stdout
	RedisAddr     string
	RedisKey      string
	DedupeWindow  time.Duration // zero disables de-duplication
	SubmitTimeout time.Duration
}

// Default returns the configuration used when no flags are given
func Default() Config {
	return Config{
		LogDir:        "logs",
		DBPath:        "slotchat.db",
		Learners:      []string{LearnerLog},
		RedisAddr:     "localhost:6379",
		RedisKey:      "slotchat:examples",
		SubmitTimeout: 10 * time.Second,
	}
}

// Validate checks that every selected learner has what it needs
func (c Config) Validate() error {
	if len(c.Learners) == 0 {
		return fmt.Errorf("at least one learner is required")
	}
	seen := make(map[string]bool, len(c.Learners))
	for _, name := range c.Learners {
		if seen[name] {
			return fmt.Errorf("learner %q listed twice", name)
		}
		seen[name] = true

		switch name {
		case LearnerLog, LearnerSQLite:
		case LearnerHTTP, LearnerWebSocket:
			if c.LearnerURL == "" {
				return fmt.Errorf("learner %q requires -learner-url", name)
			}
		case LearnerStdio:
			if c.LearnerCmd == "" {
				return fmt.Errorf("learner %q requires -learner-cmd", name)
			}
		case LearnerRedis:
			if c.RedisAddr == "" {
				return fmt.Errorf("learner %q requires -redis-addr", name)
			}
		default:
			return fmt.Errorf("unknown learner: %s", name)
		}
	}

	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout must not be negative")
	}
	if c.DedupeWindow < 0 {
		return fmt.Errorf("dedupe window must not be negative")
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("submit timeout must be positive")
	}
	return nil
}
