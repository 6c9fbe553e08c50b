package learning

import (
	"context"
	"log/slog"
	"time"

	"SlotChat/internal/cache"
)

// Dedupe drops examples identical to one successfully submitted within the window.
type Dedupe struct {
	next   Learner
	window *cache.Window
	logger *slog.Logger
	now    func() time.Time
}

// NewDedupe wraps next with a de-duplication window of ttl.
func NewDedupe(next Learner, ttl time.Duration, logger *slog.Logger) *Dedupe {
	return &Dedupe{
		next:   next,
		window: cache.NewWindow(ttl),
		logger: logger,
		now:    time.Now,
	}
}

func (d *Dedupe) Name() string { return d.next.Name() }

func (d *Dedupe) Submit(ctx context.Context, intent string, data map[string]string) Outcome {
	key := cache.GenerateKey(intent, data)
	now := d.now()
	if d.window.Seen(key, now) {
		d.logger.InfoContext(ctx, "duplicate example skipped", "intent", intent, "key", key[:16])
		return Succeeded("duplicate skipped")
	}

	out := d.next.Submit(ctx, intent, data)
	if out.Success {
		d.window.Store(key, intent, now)
	}
	return out
}
