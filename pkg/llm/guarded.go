package llm

import (
	"context"
	"errors"
	"time"

	"github.com/docgraph/docgraph/pkg/metrics"
	"github.com/docgraph/docgraph/pkg/resilience"
)

// GuardOpts configure a Guarded completer.
type GuardOpts struct {
	Backend string
	Limiter resilience.LimiterOpts
	Breaker resilience.BreakerOpts
	Metrics *metrics.Metrics
}

// Guarded rate-limits calls to another Completer and stops calling it after
// repeated failures.
type Guarded struct {
	next    Completer
	backend string
	limiter *resilience.Limiter
	breaker *resilience.Breaker
	metrics *metrics.Metrics
}

// Guard wraps next. An empty response does not count against the breaker.
func Guard(next Completer, o GuardOpts) *Guarded {
	if o.Breaker.Name == "" {
		o.Breaker.Name = "llm-" + o.Backend
	}
	if o.Breaker.IsFailure == nil {
		o.Breaker.IsFailure = func(err error) bool {
			return !errors.Is(err, ErrEmptyResponse) && !errors.Is(err, context.Canceled)
		}
	}
	if o.Metrics != nil {
		prev := o.Breaker.OnStateChange
		m := o.Metrics
		o.Breaker.OnStateChange = func(name string, from, to resilience.State) {
			m.BreakerState.WithLabelValues(name).Set(float64(to))
			if prev != nil {
				prev(name, from, to)
			}
		}
	}
	return &Guarded{
		next:    next,
		backend: o.Backend,
		limiter: resilience.NewLimiter(o.Limiter),
		breaker: resilience.NewBreaker(o.Breaker),
		metrics: o.Metrics,
	}
}

// Complete waits for a limiter token, then calls through the breaker.
func (g *Guarded) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	start := time.Now()
	var out string
	err := g.limiter.CallWait(ctx, func(ctx context.Context) error {
		return g.breaker.Call(ctx, func(ctx context.Context) error {
			var cerr error
			out, cerr = g.next.Complete(ctx, prompt, opts)
			return cerr
		})
	})
	g.metrics.ObserveLLM(g.backend, "complete", err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return out, nil
}

// State reports the breaker state.
func (g *Guarded) State() resilience.State { return g.breaker.State() }
