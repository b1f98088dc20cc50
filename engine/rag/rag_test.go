package rag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/engine/semantic"
	"github.com/docgraph/docgraph/pkg/llm"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// --- mocks ---

type mockLLM struct {
	reply      string
	err        error
	lastPrompt string
	lastOpts   llm.CallOptions
}

func (m *mockLLM) Complete(_ context.Context, prompt string, opts llm.CallOptions) (string, error) {
	m.lastPrompt = prompt
	m.lastOpts = opts
	return m.reply, m.err
}

type mockGraph struct {
	triplets     []domain.Triplet
	err          error
	lastKeywords []string
	lastLimit    int
}

func (m *mockGraph) Retrieve(_ context.Context, keywords []string, limit int) ([]domain.Triplet, error) {
	m.lastKeywords = keywords
	m.lastLimit = limit
	return m.triplets, m.err
}

type mockSearcher struct {
	results []semantic.SearchResult
	err     error
	topK    int
}

func (m *mockSearcher) Search(_ context.Context, _ []float32, topK int) ([]semantic.SearchResult, error) {
	m.topK = topK
	return m.results, m.err
}

var fixedEmbed = llm.EmbedderFunc(func(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
})

// --- tests ---

func TestAsk_UsesGraphContext(t *testing.T) {
	g := &mockGraph{triplets: []domain.Triplet{{Subject: "NUMA", Predicate: "AFFECTS", Object: "SAP HANA"}}}
	m := &mockLLM{reply: "  Use NUMA-aligned VMs.  "}
	svc := New(Deps{LLM: m, Graph: g, Logger: quiet}, DefaultOptions())

	ans, err := svc.Ask(context.Background(), "How do I configure NUMA settings for SAP HANA?")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "Use NUMA-aligned VMs." || ans.Mode != "graph" || len(ans.Triplets) != 1 {
		t.Errorf("unexpected answer %+v", ans)
	}
	if !strings.Contains(m.lastPrompt, "CONTEXT from semantic knowledge graph:\n- NUMA -[AFFECTS]-> SAP HANA") {
		t.Errorf("graph context missing from prompt:\n%s", m.lastPrompt)
	}
	if !strings.Contains(m.lastPrompt, "FINAL ANSWER:") || !strings.Contains(m.lastPrompt, "4. What specific recommendations apply?") {
		t.Errorf("chain-of-thought steps missing:\n%s", m.lastPrompt)
	}
	if m.lastOpts.Temperature != 0.3 || m.lastOpts.MaxTokens != 800 {
		t.Errorf("unexpected call options %+v", m.lastOpts)
	}
	if g.lastLimit != 30 || !reflect.DeepEqual(g.lastKeywords, []string{"configure", "numa", "settings", "sap", "hana"}) {
		t.Errorf("unexpected retrieve args %v %d", g.lastKeywords, g.lastLimit)
	}
}

func TestAsk_GraphFailureContinues(t *testing.T) {
	m := &mockLLM{reply: "answer"}
	svc := New(Deps{LLM: m, Graph: &mockGraph{err: errors.New("apoc missing")}, Logger: quiet}, DefaultOptions())

	ans, err := svc.Ask(context.Background(), "What is SAP HANA?")
	if err != nil {
		t.Fatalf("graph failure should not fail the answer: %v", err)
	}
	if ans.Text != "answer" || len(ans.Triplets) != 0 {
		t.Errorf("unexpected answer %+v", ans)
	}
}

func TestAsk_Errors(t *testing.T) {
	svc := New(Deps{LLM: &mockLLM{err: errors.New("timeout")}, Logger: quiet}, DefaultOptions())
	if _, err := svc.Ask(context.Background(), "   "); !errors.Is(err, domain.ErrEmptyQuestion) {
		t.Errorf("expected ErrEmptyQuestion, got %v", err)
	}
	if _, err := svc.Ask(context.Background(), "What is SAP HANA?"); err == nil {
		t.Error("expected llm error")
	}
}

func TestAskWithChunks_TruncatesContext(t *testing.T) {
	m := &mockLLM{reply: "ok"}
	svc := New(Deps{LLM: m, Logger: quiet}, DefaultOptions())

	chunks := make([]domain.Chunk, 7)
	for i := range chunks {
		chunks[i] = domain.Chunk{Text: strings.Repeat(string(rune('a'+i)), 600)}
	}
	if _, err := svc.AskWithChunks(context.Background(), "What are the storage requirements?", chunks); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(m.lastPrompt, "CONTEXT from SAP HANA on VMware documentation:") {
		t.Error("missing documentation header")
	}
	if strings.Contains(m.lastPrompt, strings.Repeat("a", 501)) {
		t.Error("chunk not truncated to 500 characters")
	}
	if !strings.Contains(m.lastPrompt, strings.Repeat("e", 500)) || strings.Contains(m.lastPrompt, "fff") {
		t.Error("expected exactly the first five chunks")
	}
}

func TestAskVector(t *testing.T) {
	m := &mockLLM{reply: "vector answer"}
	s := &mockSearcher{results: []semantic.SearchResult{
		{ID: "p1", Score: 0.9, Content: "SAP HANA is an in-memory database.", ChunkID: "g.pdf#p1#0", Source: "g.pdf", Page: 1},
	}}
	svc := New(Deps{LLM: m, Embedder: fixedEmbed, Vectors: s, Logger: quiet}, DefaultOptions())

	ans, err := svc.AskVector(context.Background(), "What is SAP HANA?")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Mode != "vector" || len(ans.Sources) != 1 || ans.Sources[0].ChunkID != "g.pdf#p1#0" {
		t.Errorf("unexpected answer %+v", ans)
	}
	if s.topK != 5 || !strings.Contains(m.lastPrompt, "in-memory database") {
		t.Errorf("topK=%d prompt=%s", s.topK, m.lastPrompt)
	}
}

func TestAskVector_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := New(Deps{LLM: &mockLLM{}, Logger: quiet}, DefaultOptions()).AskVector(ctx, "q?"); err == nil {
		t.Error("expected error without vector store")
	}
	failing := llm.EmbedderFunc(func(context.Context, string) ([]float32, error) { return nil, errors.New("down") })
	if _, err := New(Deps{LLM: &mockLLM{}, Embedder: failing, Vectors: &mockSearcher{}, Logger: quiet}, DefaultOptions()).AskVector(ctx, "q?"); err == nil {
		t.Error("expected embed error")
	}
	if _, err := New(Deps{LLM: &mockLLM{}, Embedder: fixedEmbed, Vectors: &mockSearcher{err: errors.New("grpc")}, Logger: quiet}, DefaultOptions()).AskVector(ctx, "q?"); err == nil {
		t.Error("expected search error")
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"What is SAP HANA?", []string{"sap", "hana"}},
		{"How should VMware vSphere be configured?", []string{"vmware", "vsphere", "configured"}},
		{"memory, memory (memory)", []string{"memory"}},
		{"is it a", nil},
	}
	for _, tt := range tests {
		if got := ExtractKeywords(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractKeywords(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
