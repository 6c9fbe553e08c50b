package learning

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented traces and times submissions and bounds each one with a timeout.
type Instrumented struct {
	next     Learner
	tracer   trace.Tracer
	duration metric.Float64Histogram
	logger   *slog.Logger
	timeout  time.Duration
}

// Instrument wraps next. A zero timeout leaves the caller's deadline alone.
func Instrument(next Learner, tracer trace.Tracer, meter metric.Meter, logger *slog.Logger, timeout time.Duration) *Instrumented {
	histogram, err := meter.Float64Histogram(
		"learning.submit.duration",
		metric.WithDescription("Learning hand-off duration in milliseconds"),
	)
	if err != nil {
		logger.Warn("failed to create histogram", "error", err)
	}
	return &Instrumented{
		next:     next,
		tracer:   tracer,
		duration: histogram,
		logger:   logger,
		timeout:  timeout,
	}
}

func (i *Instrumented) Name() string { return i.next.Name() }

func (i *Instrumented) Submit(ctx context.Context, intent string, data map[string]string) Outcome {
	ctx, span := i.tracer.Start(ctx, "learning.submit",
		trace.WithAttributes(
			attribute.String("learning.intent", intent),
			attribute.String("learning.learner", i.next.Name()),
			attribute.Int("learning.slots", len(data)),
		),
	)
	defer span.End()

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	out := i.next.Submit(ctx, intent, data)
	if i.duration != nil {
		i.duration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond),
			metric.WithAttributes(attribute.Bool("success", out.Success)))
	}

	if !out.Success {
		span.SetStatus(codes.Error, out.Message)
		i.logger.ErrorContext(ctx, "learning hand-off failed", "intent", intent, "learner", i.next.Name(), "error", out.Message)
	} else {
		i.logger.InfoContext(ctx, "learning hand-off succeeded", "intent", intent, "learner", i.next.Name(), "message", out.Message)
	}
	return out
}
