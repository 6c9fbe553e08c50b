package learning

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Outcome is the result of one hand-off.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Succeeded builds a successful outcome.
func Succeeded(msg string) Outcome {
	return Outcome{Success: true, Message: msg}
}

// Failed builds a failed outcome from err.
func Failed(err error) Outcome {
	return Outcome{Success: false, Message: err.Error()}
}

// Learner receives completed slot data. Implementations never panic; a
// transport failure is reported through the Outcome.
type Learner interface {
	Submit(ctx context.Context, intent string, data map[string]string) Outcome
	Name() string
}

// Registry manages the configured learners and fans submissions out to all
// of them.
type Registry struct {
	learners []Learner
	closers  []func() error
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a learner; closer, if non-nil, runs on Close.
func (r *Registry) Register(l Learner, closer func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.learners = append(r.learners, l)
	if closer != nil {
		r.closers = append(r.closers, closer)
	}
}

// Count returns the number of registered learners
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.learners)
}

// Name lists the registered learner names.
func (r *Registry) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.learners))
	for i, l := range r.learners {
		names[i] = l.Name()
	}
	return strings.Join(names, ",")
}

// Submit hands the example to every learner in registration order. The
// combined outcome succeeds only if all of them did.
func (r *Registry) Submit(ctx context.Context, intent string, data map[string]string) Outcome {
	r.mu.RLock()
	learners := make([]Learner, len(r.learners))
	copy(learners, r.learners)
	r.mu.RUnlock()

	if len(learners) == 0 {
		return Outcome{Success: false, Message: "no learners registered"}
	}

	var failures []string
	for _, l := range learners {
		out := l.Submit(ctx, intent, data)
		if !out.Success {
			failures = append(failures, fmt.Sprintf("%s: %s", l.Name(), out.Message))
		}
	}
	if len(failures) > 0 {
		return Outcome{Success: false, Message: strings.Join(failures, "; ")}
	}
	return Succeeded(fmt.Sprintf("submitted to %d learners", len(learners)))
}

// Close closes all registered learners
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, c := range r.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}
