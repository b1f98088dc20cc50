// Package check runs smoke checks against every external dependency the
// pipeline needs and reports pass/fail per check.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docgraph/docgraph/pkg/metrics"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 120 * time.Second

// ErrTimeout is recorded when a check exceeds its deadline.
var ErrTimeout = errors.New("check: timed out")

// Check is one named probe. Run returns human-readable detail lines.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// Outcome is the result of one Check.
type Outcome struct {
	Name     string
	Passed   bool
	Detail   string
	Err      error
	Duration time.Duration
}

// Reporter observes a suite as it runs.
type Reporter interface {
	Begin(checks []Check)
	Start(c Check)
	Done(o Outcome)
	End(outcomes []Outcome)
}

// Suite runs checks sequentially, each under its own timeout.
type Suite struct {
	Checks   []Check
	Timeout  time.Duration
	Reporter Reporter
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Run executes every check and returns outcomes in order. A failing or
// panicking check never stops the ones after it.
func (s *Suite) Run(ctx context.Context) []Outcome {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if s.Reporter != nil {
		s.Reporter.Begin(s.Checks)
	}

	outcomes := make([]Outcome, 0, len(s.Checks))
	for _, c := range s.Checks {
		if s.Reporter != nil {
			s.Reporter.Start(c)
		}
		o := runOne(ctx, c, timeout)
		log.Info("check: finished", "check", o.Name, "passed", o.Passed, "duration", o.Duration, "error", o.Err)
		s.Metrics.ObserveCheck(o.Name, o.Passed, o.Duration.Seconds())
		if s.Reporter != nil {
			s.Reporter.Done(o)
		}
		outcomes = append(outcomes, o)
	}

	if s.Reporter != nil {
		s.Reporter.End(outcomes)
	}
	return outcomes
}

// Passed counts passing outcomes.
func Passed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Passed {
			n++
		}
	}
	return n
}

type runResult struct {
	detail string
	err    error
}

func runOne(parent context.Context, c Check, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runResult{err: fmt.Errorf("check: panic: %v", r)}
			}
		}()
		detail, err := c.Run(ctx)
		done <- runResult{detail: detail, err: err}
	}()

	var res runResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(res.err, ErrTimeout) {
		res.err = fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, res.err)
	}
	return Outcome{
		Name:     c.Name,
		Passed:   res.err == nil,
		Detail:   res.detail,
		Err:      res.err,
		Duration: time.Since(start),
	}
}
