package learning

import (
	"context"
	"encoding/json"
	"log/slog"
)

// LogLearner writes each example to the structured log and always succeeds.
// It stands in for a real learning service.
type LogLearner struct {
	logger *slog.Logger
}

// NewLogLearner creates a learner that logs examples.
func NewLogLearner(logger *slog.Logger) *LogLearner {
	return &LogLearner{logger: logger}
}

func (l *LogLearner) Name() string { return "log" }

func (l *LogLearner) Submit(ctx context.Context, intent string, data map[string]string) Outcome {
	payload, err := json.Marshal(data)
	if err != nil {
		return Failed(err)
	}
	l.logger.InfoContext(ctx, "learning example recorded", "intent", intent, "data", string(payload))
	return Succeeded("logged")
}
