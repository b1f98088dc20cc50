package check

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/engine/ingest"
	"github.com/docgraph/docgraph/engine/rag"
	"github.com/docgraph/docgraph/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(s string) llm.Completer {
	return llm.CompleterFunc(func(context.Context, string, llm.CallOptions) (string, error) { return s, nil })
}

type fakeGraph struct {
	connErr   error
	pingErr   error
	plugins   int64
	pluginErr error
}

func (g fakeGraph) VerifyConnectivity(context.Context) error { return g.connErr }

func (g fakeGraph) Ping(_ context.Context, msg string) (string, error) { return msg, g.pingErr }

func (g fakeGraph) PluginFunctions(context.Context) (int64, error) { return g.plugins, g.pluginErr }

type fakeLoader struct {
	docs []domain.Document
	err  error
}

func (l fakeLoader) Load(context.Context) ([]domain.Document, error) { return l.docs, l.err }

type fakeIndexer struct{ got []domain.Chunk }

func (i *fakeIndexer) IndexVectors(_ context.Context, c []domain.Chunk, _ int) (int, error) {
	i.got = c
	return len(c), nil
}

type fakeAsker struct {
	questions []string
	err       error
}

func (a *fakeAsker) AskVector(_ context.Context, q string) (*rag.Answer, error) {
	a.questions = append(a.questions, q)
	return &rag.Answer{Text: "vector: " + q}, a.err
}

func (a *fakeAsker) Ask(_ context.Context, q string) (*rag.Answer, error) {
	a.questions = append(a.questions, q)
	return &rag.Answer{Text: "SAP HANA is an in-memory database."}, a.err
}

type fakeIngester struct {
	rep  ingest.Report
	got  []domain.Chunk
	opts ingest.Options
}

func (f *fakeIngester) Run(_ context.Context, c []domain.Chunk, o ingest.Options) (ingest.Report, error) {
	f.got, f.opts = c, o
	return f.rep, nil
}

func pages(n int) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{ID: "guide.pdf#p" + string(rune('1'+i%9)), Source: "guide.pdf", Text: "SAP HANA runs on vSphere."}
	}
	return docs
}

type fakeServer struct {
	version string
	models  []string
	err     error
}

func (s fakeServer) Version(context.Context) (string, error)  { return s.version, s.err }
func (s fakeServer) Models(context.Context) ([]string, error) { return s.models, nil }

func TestOllamaCheck(t *testing.T) {
	srv := fakeServer{version: "0.5.7", models: []string{"llama3.2:3b", "bge-m3:latest"}}
	detail, err := Ollama(reply("SAP HANA is an in-memory database."), srv, "llama3.2:3b", "http://localhost:11434").Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, detail, "Testing Ollama with model: llama3.2:3b")
	assert.Contains(t, detail, "Server version: 0.5.7")
	assert.NotContains(t, detail, "not pulled")
	assert.Contains(t, detail, "✓ SUCCESS: SAP HANA is an in-memory database.")

	detail, err = Ollama(reply("ok"), srv, "deepseek-r1:14b", "u").Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, detail, "! Model deepseek-r1:14b is not pulled")

	_, err = Ollama(reply("ok"), fakeServer{err: errors.New("connection refused")}, "m", "u").Run(context.Background())
	assert.ErrorContains(t, err, "connection refused")

	_, err = Ollama(reply("  "), nil, "m", "u").Run(context.Background())
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestNeo4jCheck(t *testing.T) {
	detail, err := Neo4j(fakeGraph{}, "bolt://localhost:7687", "neo4j").Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, detail, "✓ SUCCESS: Neo4j is working!")

	_, err = Neo4j(fakeGraph{connErr: errors.New("refused")}, "bolt://x", "neo4j").Run(context.Background())
	assert.Error(t, err)
	_, err = Neo4j(fakeGraph{pingErr: errors.New("auth")}, "bolt://x", "neo4j").Run(context.Background())
	assert.Error(t, err)
}

func TestBasicRAGCheck(t *testing.T) {
	idx := &fakeIndexer{}
	asker := &fakeAsker{}
	emb := llm.EmbedderFunc(func(context.Context, string) ([]float32, error) { return []float32{1, 2, 3}, nil })

	detail, err := BasicRAG(BasicRAGDeps{
		Loader: fakeLoader{docs: pages(30)}, LLM: reply("ok"), Embedder: emb, Indexer: idx, Asker: asker,
	}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, idx.got, 20)
	assert.Equal(t, BasicRAGQueries, asker.questions)
	assert.Contains(t, detail, "✓ Successfully loaded 30 document chunks")
	assert.Contains(t, detail, "✓ Embedding model working, vector dimension: 3")
	assert.Contains(t, detail, "✓ Basic RAG functionality working")
}

func TestBasicRAGCheckFailures(t *testing.T) {
	emb := llm.EmbedderFunc(func(context.Context, string) ([]float32, error) { return nil, nil })
	deps := BasicRAGDeps{Loader: fakeLoader{docs: pages(1)}, LLM: reply("ok"), Embedder: emb, Indexer: &fakeIndexer{}, Asker: &fakeAsker{}}

	detail, err := BasicRAG(deps).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, detail, "✗ Embedding model failed")

	deps.Loader = fakeLoader{}
	_, err = BasicRAG(deps).Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestGraphRAGCheck(t *testing.T) {
	ing := &fakeIngester{rep: ingest.Report{Processed: 10, Ingested: 7, Skipped: 3, Entities: 21}}
	asker := &fakeAsker{}
	detail, err := GraphRAG(GraphRAGDeps{
		Loader: fakeLoader{docs: pages(12)}, Plugins: fakeGraph{plugins: 42}, Ingester: ing, Asker: asker,
	}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, ing.got, 10)
	assert.Equal(t, 10, ing.opts.Limit)
	assert.Equal(t, []string{GraphRAGQuery}, asker.questions)
	assert.Contains(t, detail, "✓ Testing with 10 chunks for speed (out of 12 total)")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(detail), "*** Full Graph RAG system working!"))
}

func TestGraphRAGCheckFailsWithoutPlugin(t *testing.T) {
	ing := &fakeIngester{}
	_, err := GraphRAG(GraphRAGDeps{
		Loader:   fakeLoader{docs: pages(2)},
		Plugins:  fakeGraph{pluginErr: domain.ErrPluginMissing},
		Ingester: ing,
		Asker:    &fakeAsker{},
	}).Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrPluginMissing)
	assert.Nil(t, ing.got, "graph must not be built without the plugin")
}

func TestGraphRAGCheckFailsOnEmptyGraph(t *testing.T) {
	_, err := GraphRAG(GraphRAGDeps{
		Loader:   fakeLoader{docs: pages(2)},
		Plugins:  fakeGraph{plugins: 1},
		Ingester: &fakeIngester{rep: ingest.Report{Processed: 2, Skipped: 2}},
		Asker:    &fakeAsker{},
	}).Run(context.Background())
	assert.ErrorContains(t, err, "knowledge graph is empty")
}

func TestCloudChecks(t *testing.T) {
	var opts llm.CallOptions
	azure := llm.CompleterFunc(func(_ context.Context, _ string, o llm.CallOptions) (string, error) {
		opts = o
		return "SAP HANA is a columnar in-memory RDBMS.", nil
	})
	detail, err := Azure(azure).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, opts.MaxTokens)
	assert.Equal(t, "✓ Azure OpenAI Response: SAP HANA is a columnar in-memory RDBMS.", detail)

	detail, err = Aura(fakeGraph{plugins: 12}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "✓ Neo4j Aura: Neo4j Aura working!\n✓ APOC functions available: 12\n", detail)

	_, err = Aura(fakeGraph{pluginErr: domain.ErrPluginMissing}).Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrPluginMissing)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type lister struct {
	names []string
	err   error
}

func (l lister) Collections(context.Context) ([]string, error) { return l.names, l.err }

func TestInfraChecks(t *testing.T) {
	_, err := Redis(pinger{}, "localhost:6379").Run(context.Background())
	assert.NoError(t, err)
	_, err = Redis(pinger{err: errors.New("NOAUTH")}, "localhost:6379").Run(context.Background())
	assert.Error(t, err)

	detail, err := Qdrant(lister{names: []string{"docgraph_chunks"}}, "localhost:6334", "docgraph_chunks").Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, detail, `"docgraph_chunks" present`)
	_, err = Qdrant(lister{err: errors.New("unavailable")}, "localhost:6334", "c").Run(context.Background())
	assert.Error(t, err)
}
