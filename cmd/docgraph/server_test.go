package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/engine/graph"
	"github.com/docgraph/docgraph/engine/rag"
	"github.com/docgraph/docgraph/pkg/metrics"
	"github.com/docgraph/docgraph/pkg/repo"
	"github.com/docgraph/docgraph/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsker struct {
	err  error
	mode string
}

func (f *fakeAsker) Ask(_ context.Context, q string) (*rag.Answer, error) {
	f.mode = "graph"
	if strings.TrimSpace(q) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	return &rag.Answer{Text: "answer to " + q, Mode: "graph"}, f.err
}

func (f *fakeAsker) AskVector(_ context.Context, q string) (*rag.Answer, error) {
	f.mode = "vector"
	return &rag.Answer{Text: "vector " + q, Mode: "vector"}, f.err
}

type fakeStats struct{ connErr error }

func (fakeStats) Stats(context.Context) (map[domain.EntityType]int64, error) {
	return map[domain.EntityType]int64{domain.EntityConcept: 3}, nil
}

func (fakeStats) RelationshipCounts(context.Context) (map[string]int64, error) {
	return map[string]int64{"AFFECTS": 2}, nil
}

func (f fakeStats) VerifyConnectivity(context.Context) error { return f.connErr }

type fakeDocs struct{ lastOpts repo.ListOpts }

func (f *fakeDocs) Get(_ context.Context, id string) (graph.DocumentNode, error) {
	if id != "guide.pdf#p1#0" {
		return graph.DocumentNode{}, repo.ErrNotFound
	}
	return graph.DocumentNode{ChunkID: id, Source: "guide.pdf", Page: 1}, nil
}

func (f *fakeDocs) List(_ context.Context, o repo.ListOpts) ([]graph.DocumentNode, error) {
	f.lastOpts = o
	return []graph.DocumentNode{{ChunkID: "guide.pdf#p1#0"}}, nil
}

func (f *fakeDocs) Count(context.Context) (int64, error) { return 7, nil }

func newTestServer(a *fakeAsker, st fakeStats, d *fakeDocs) http.Handler {
	return (&server{
		asker:   a,
		stats:   st,
		docs:    d,
		metrics: metrics.New().Handler(),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}).handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestAskEndpoint(t *testing.T) {
	a := &fakeAsker{}
	h := newTestServer(a, fakeStats{}, &fakeDocs{})

	rec := do(h, "POST", "/api/ask", `{"question":"What is SAP HANA?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ans rag.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans))
	assert.Equal(t, "answer to What is SAP HANA?", ans.Text)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(h, "POST", "/api/ask", `{"question":"q","mode":"vector"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "vector", a.mode)
}

func TestAskEndpointErrors(t *testing.T) {
	h := newTestServer(&fakeAsker{}, fakeStats{}, &fakeDocs{})
	assert.Equal(t, http.StatusBadRequest, do(h, "POST", "/api/ask", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, "POST", "/api/ask", `{"question":" "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, "POST", "/api/ask", `{"question":"q","mode":"magic"}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, "GET", "/api/ask", "").Code)

	failing := newTestServer(&fakeAsker{err: errors.New("llm down")}, fakeStats{}, &fakeDocs{})
	rec := do(failing, "POST", "/api/ask", `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestAskEndpointRateLimited(t *testing.T) {
	s := &server{
		asker:   &fakeAsker{},
		stats:   fakeStats{},
		docs:    &fakeDocs{},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: 0.001, Burst: 1}),
	}
	h := s.handler()

	assert.Equal(t, http.StatusOK, do(h, "POST", "/api/ask", `{"question":"q"}`).Code)
	rec := do(h, "POST", "/api/ask", `{"question":"q"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Bad requests are rejected before a token is spent.
	assert.Equal(t, http.StatusBadRequest, do(h, "POST", "/api/ask", `{"question":"q","mode":"magic"}`).Code)
}

func TestHealthEndpoint(t *testing.T) {
	assert.Equal(t, http.StatusOK, do(newTestServer(&fakeAsker{}, fakeStats{}, &fakeDocs{}), "GET", "/api/health", "").Code)

	rec := do(newTestServer(&fakeAsker{}, fakeStats{connErr: errors.New("refused")}, &fakeDocs{}), "GET", "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestStatsEndpoint(t *testing.T) {
	rec := do(newTestServer(&fakeAsker{}, fakeStats{}, &fakeDocs{}), "GET", "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entities":{"Concept":3},"relationships":{"AFFECTS":2},"documents":7}`, rec.Body.String())
}

func TestDocumentsEndpoints(t *testing.T) {
	d := &fakeDocs{}
	h := newTestServer(&fakeAsker{}, fakeStats{}, d)

	rec := do(h, "GET", "/api/documents?offset=5&limit=1000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repo.ListOpts{Offset: 5, Limit: 100, OrderBy: "chunk_id"}, d.lastOpts)
	assert.Contains(t, rec.Body.String(), `"limit":100`)

	for query, want := range map[string]int{"": 25, "?limit=0": 25, "?limit=-3": 25, "?limit=abc": 25, "?limit=40": 40, "?limit=100": 100} {
		rec = do(h, "GET", "/api/documents"+query, "")
		require.Equal(t, http.StatusOK, rec.Code, query)
		assert.Equal(t, want, d.lastOpts.Limit, query)
	}

	rec = do(h, "GET", "/api/documents/guide.pdf%23p1%230", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chunk_id":"guide.pdf#p1#0"`)

	assert.Equal(t, http.StatusNotFound, do(h, "GET", "/api/documents/missing", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(newTestServer(&fakeAsker{}, fakeStats{}, &fakeDocs{}), "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
