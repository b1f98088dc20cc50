package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCheck(t *testing.T) {
	m := New()
	m.ObserveCheck("neo4j", true, 0.2)
	m.ObserveCheck("neo4j", false, 0.3)
	m.ObserveCheck("neo4j", false, 0.1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("neo4j", "pass")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("neo4j", "fail")))
}

func TestObserveLLM(t *testing.T) {
	m := New()
	m.ObserveLLM("ollama", "complete", nil, 1.5)
	m.ObserveLLM("ollama", "complete", errors.New("boom"), 0.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("ollama", "complete", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("ollama", "complete", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCheck("x", true, 1)
	m.ObserveLLM("x", "y", nil, 1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ChunksIngested.Add(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "docgraph_ingest_chunks_total 3"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
