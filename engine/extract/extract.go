// Package extract turns document chunks into schema-conformant entities and
// relationships using an LLM.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/pkg/llm"
	"github.com/docgraph/docgraph/pkg/metrics"
	"github.com/docgraph/docgraph/pkg/rediscache"
)

const (
	// Temperature keeps structured output consistent.
	Temperature = 0.1
	// MaxTokens bounds the JSON reply.
	MaxTokens = 1500

	cacheVersion = "extract/v1"
)

// Cache stores extraction results by key.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
}

// Extractor runs the extraction prompt against an LLM.
type Extractor struct {
	llm     llm.Completer
	cache   Cache
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCache enables result caching.
func WithCache(c Cache) Option { return func(x *Extractor) { x.cache = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(x *Extractor) { x.log = l } }

// WithMetrics records cache and entity counters.
func WithMetrics(m *metrics.Metrics) Option { return func(x *Extractor) { x.metrics = m } }

// New creates an Extractor.
func New(c llm.Completer, opts ...Option) *Extractor {
	x := &Extractor{llm: c, log: slog.Default()}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Extract never fails: LLM and parse errors are logged and produce an empty
// extraction. Entities and relationships outside the schema are dropped.
func (x *Extractor) Extract(ctx context.Context, text string) domain.Extraction {
	key := rediscache.Key(cacheVersion, text)
	if x.cache != nil {
		var cached domain.Extraction
		ok, err := x.cache.GetJSON(ctx, key, &cached)
		switch {
		case err != nil:
			x.log.Warn("extract: cache get", "error", err)
			x.countCache("error")
		case ok:
			x.countCache("hit")
			return cached
		default:
			x.countCache("miss")
		}
	}

	raw, err := x.llm.Complete(ctx, Prompt(text), llm.CallOptions{Temperature: Temperature, MaxTokens: MaxTokens})
	if err != nil {
		x.log.Error("extract: llm call failed", "error", err)
		return domain.Extraction{}
	}
	parsed, err := Parse(raw)
	if err != nil {
		x.log.Error("extract: entity extraction failed", "error", err, "reply", truncate(raw, 200))
		return domain.Extraction{}
	}

	clean, rejected := domain.Sanitize(parsed)
	for _, r := range rejected {
		x.log.Warn("extract: dropped invalid item", "error", r)
	}
	if x.metrics != nil {
		for _, e := range clean.Entities {
			x.metrics.EntitiesExtracted.WithLabelValues(string(e.Type)).Inc()
		}
	}

	if x.cache != nil {
		if err := x.cache.SetJSON(ctx, key, clean); err != nil {
			x.log.Warn("extract: cache set", "error", err)
		}
	}
	return clean
}

func (x *Extractor) countCache(result string) {
	if x.metrics != nil {
		x.metrics.ExtractionCache.WithLabelValues(result).Inc()
	}
}

// ErrNoJSON is returned when a reply contains no JSON object.
var ErrNoJSON = errors.New("extract: no JSON object in reply")

// Parse decodes an LLM reply, tolerating markdown fences and prose around the
// JSON object.
func Parse(raw string) (domain.Extraction, error) {
	s := strings.TrimSpace(llm.StripThinking(raw))
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return domain.Extraction{}, ErrNoJSON
	}

	var out domain.Extraction
	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
		return domain.Extraction{}, fmt.Errorf("extract: decode: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
