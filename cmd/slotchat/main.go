package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"SlotChat/internal/chatbot"
	"SlotChat/internal/config"
)

func main() {
	cfg := config.Default()
	var learners string

	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for logs, traces and metrics")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database for transcripts and learned examples")
	flag.StringVar(&cfg.IntentsFile, "intents", "", "YAML intent catalog (default: built-in symptom tracking)")
	flag.DurationVar(&cfg.IdleTimeout, "idle-timeout", 0, "Reset an unfinished intent after this much inactivity (0 disables)")

	flag.StringVar(&learners, "learner", strings.Join(cfg.Learners, ","), "Comma-separated learners (log|sqlite|http|websocket|stdio|redis)")
	flag.StringVar(&cfg.LearnerURL, "learner-url", "", "Learning service URL for http or websocket learners")
	flag.StringVar(&cfg.LearnerCmd, "learner-cmd", "", "Command line of a stdio learning service")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the redis learner")
	flag.StringVar(&cfg.RedisKey, "redis-key", cfg.RedisKey, "Redis list receiving examples")
	flag.DurationVar(&cfg.DedupeWindow, "dedupe-window", 0, "Skip identical examples submitted within this window (0 disables)")
	flag.DurationVar(&cfg.SubmitTimeout, "submit-timeout", cfg.SubmitTimeout, "Timeout for each learning hand-off")

	flag.Parse()

	cfg.Learners = nil
	for _, name := range strings.Split(learners, ",") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.Learners = append(cfg.Learners, name)
		}
	}

	bot, err := chatbot.NewChatBot(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize chatbot: %v\n", err)
		os.Exit(1)
	}

	if err := bot.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
