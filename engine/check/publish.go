package check

import (
	"context"
	"time"

	"github.com/docgraph/docgraph/pkg/natsutil"
)

// Subject receives a Summary after each suite run.
const Subject = "docgraph.checks"

// Summary is the wire form of a suite run.
type Summary struct {
	Suite     string          `json:"suite"`
	Timestamp time.Time       `json:"timestamp"`
	Passed    int             `json:"passed"`
	Total     int             `json:"total"`
	Outcomes  []OutcomeRecord `json:"outcomes"`
}

// OutcomeRecord is one Outcome with the error flattened to text.
type OutcomeRecord struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Summarize converts outcomes for publishing.
func Summarize(suite string, at time.Time, outcomes []Outcome) Summary {
	s := Summary{Suite: suite, Timestamp: at, Passed: Passed(outcomes), Total: len(outcomes)}
	for _, o := range outcomes {
		rec := OutcomeRecord{Name: o.Name, Passed: o.Passed, Detail: o.Detail, DurationMS: o.Duration.Milliseconds()}
		if o.Err != nil {
			rec.Error = o.Err.Error()
		}
		s.Outcomes = append(s.Outcomes, rec)
	}
	return s
}

// Publish sends s to Subject.
func Publish(ctx context.Context, p natsutil.Publisher, s Summary) error {
	return natsutil.Publish(ctx, p, Subject, s)
}
