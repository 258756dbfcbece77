package pipeline

import (
	"context"
	"time"

	"github.com/adalundhe/architect/core/cache"
	"github.com/adalundhe/architect/core/classifier"
	"github.com/adalundhe/architect/core/orchestrator"
)

// Event describes one finished invocation. It carries no prompt or code text.
type Event struct {
	RequestID   string
	Fingerprint cache.Fingerprint
	Signal      classifier.Signal
	Result      orchestrator.GenerationResult
	StartedAt   time.Time
	Duration    time.Duration
}

// Observer is notified after every Run. Observe must not block for long; it
// runs on the caller's goroutine.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}

func (p *Pipeline) notify(ctx context.Context, plan Plan, result orchestrator.GenerationResult, start time.Time) {
	if len(p.observers) == 0 {
		return
	}
	ev := Event{
		Fingerprint: plan.Fingerprint,
		Signal:      plan.Signal,
		Result:      result,
		StartedAt:   start,
		Duration:    time.Since(start),
	}
	if plan.Request != nil {
		ev.RequestID = plan.Request.ID()
	}
	// Observers record outcomes even for abandoned callers.
	ctx = context.WithoutCancel(ctx)
	for _, o := range p.observers {
		o.Observe(ctx, ev)
	}
}
