package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/pkg/llm"
	"github.com/docgraph/docgraph/pkg/metrics"
)

const reply = "```json\n" + `{
  "entities": [
    {"type": "Concept", "name": "NUMA Optimization", "description": "vCPU placement"},
    {"type": "Parameter", "name": "numa.nodeAffinity", "description": "controls NUMA node assignment"},
    {"type": "Vendor", "name": "VMware"}
  ],
  "relationships": [
    {"from": "numa.nodeAffinity", "to": "NUMA Optimization", "type": "AFFECTS"},
    {"from": "a", "to": "b", "type": "MENTIONS"}
  ],
  "chunk_summary": "NUMA settings for HANA VMs"
}` + "\n```"

type stubLLM struct {
	reply  string
	err    error
	calls  int
	prompt string
	opts   llm.CallOptions
}

func (s *stubLLM) Complete(_ context.Context, prompt string, opts llm.CallOptions) (string, error) {
	s.calls++
	s.prompt = prompt
	s.opts = opts
	return s.reply, s.err
}

type memCache struct {
	data   map[string][]byte
	getErr error
}

func (m *memCache) GetJSON(_ context.Context, key string, out any) (bool, error) {
	if m.getErr != nil {
		return false, m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *memCache) SetJSON(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestExtract(t *testing.T) {
	stub := &stubLLM{reply: reply}
	x := New(stub, WithLogger(quietLogger()))

	got := x.Extract(context.Background(), "Set numa.nodeAffinity for large VMs.")
	require.Len(t, got.Entities, 2)
	assert.Equal(t, domain.EntityConcept, got.Entities[0].Type)
	require.Len(t, got.Relationships, 1)
	assert.Equal(t, domain.RelAffects, got.Relationships[0].Type)
	assert.Equal(t, "NUMA settings for HANA VMs", got.ChunkSummary)

	assert.InDelta(t, Temperature, stub.opts.Temperature, 1e-9)
	assert.Equal(t, MaxTokens, stub.opts.MaxTokens)
	assert.Contains(t, stub.prompt, "TEXT CHUNK:\nSet numa.nodeAffinity for large VMs.")
}

func TestExtract_FailuresYieldEmpty(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	x := New(&stubLLM{err: errors.New("connection refused")}, WithLogger(log))
	assert.True(t, x.Extract(context.Background(), "text").Empty())

	x = New(&stubLLM{reply: "I could not find any entities."}, WithLogger(log))
	assert.True(t, x.Extract(context.Background(), "text").Empty())

	x = New(&stubLLM{reply: `{"entities": [}`}, WithLogger(log))
	assert.True(t, x.Extract(context.Background(), "text").Empty())

	assert.Contains(t, logs.String(), "entity extraction failed")
	assert.Contains(t, logs.String(), "connection refused")
}

func TestExtract_Cache(t *testing.T) {
	stub := &stubLLM{reply: reply}
	cache := &memCache{data: map[string][]byte{}}
	m := metrics.New()
	x := New(stub, WithCache(cache), WithLogger(quietLogger()), WithMetrics(m))

	first := x.Extract(context.Background(), "chunk")
	second := x.Extract(context.Background(), "chunk")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntitiesExtracted.WithLabelValues("Concept")))
}

func TestExtract_CacheErrorsIgnored(t *testing.T) {
	stub := &stubLLM{reply: reply}
	x := New(stub, WithCache(&memCache{data: map[string][]byte{}, getErr: errors.New("redis down")}), WithLogger(quietLogger()))

	got := x.Extract(context.Background(), "chunk")
	assert.Len(t, got.Entities, 2)
	assert.Equal(t, 1, stub.calls)
}

func TestParse(t *testing.T) {
	cases := []string{
		`{"entities":[{"type":"Component","name":"vSphere"}]}`,
		"```\n{\"entities\":[{\"type\":\"Component\",\"name\":\"vSphere\"}]}\n```",
		"Here is the JSON:\n{\"entities\":[{\"type\":\"Component\",\"name\":\"vSphere\"}]}\nDone.",
		"<think>plan</think>```json{\"entities\":[{\"type\":\"Component\",\"name\":\"vSphere\"}]}```",
	}
	for _, c := range cases {
		x, err := Parse(c)
		require.NoError(t, err, c)
		require.Len(t, x.Entities, 1, c)
		assert.Equal(t, "vSphere", x.Entities[0].Name)
	}

	_, err := Parse("no json here")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestPromptListsSchema(t *testing.T) {
	p := Prompt("chunk body")
	for _, ty := range domain.OrderedEntityTypes {
		assert.Contains(t, p, "- "+string(ty)+": ")
	}
	for _, r := range domain.ExtractedRelationTypes {
		assert.Contains(t, p, "- "+string(r)+": ")
	}
	assert.True(t, strings.HasSuffix(p, "system optimization concepts."))
	assert.NotContains(t, p, "HAS_CONCEPT")
}
