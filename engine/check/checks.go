package check

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/docgraph/docgraph/engine/document"
	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/engine/ingest"
	"github.com/docgraph/docgraph/engine/rag"
	"github.com/docgraph/docgraph/pkg/llm"
)

// Check names as they appear in reports.
const (
	NameOllama    = "Ollama LLM Connection Test"
	NameNeo4j     = "Neo4j Database Connection Test"
	NameBasicRAG  = "Document Loading & Basic RAG Test"
	NameGraphRAG  = "Full Graph RAG System Test"
	NameAzure     = "Azure OpenAI Test"
	NameAura      = "Neo4j Aura + APOC Test"
	NameRedis     = "Redis Cache Test"
	NameQdrant    = "Qdrant Vector Store Test"
	basicRAGLimit = 20
	graphRAGLimit = 10
)

// BasicRAGQueries are asked against the vector index.
var BasicRAGQueries = []string{
	"What is SAP HANA?",
	"What are the memory requirements for SAP HANA?",
	"How should VMware vSphere be configured?",
}

// GraphRAGQuery is asked against the freshly built graph.
const GraphRAGQuery = "What is SAP HANA?"

type detail struct{ strings.Builder }

func (d *detail) printf(format string, args ...any) {
	fmt.Fprintf(&d.Builder, format+"\n", args...)
}

// Pinger checks a graph database.
type Pinger interface {
	VerifyConnectivity(ctx context.Context) error
	Ping(ctx context.Context, message string) (string, error)
}

// PluginProber counts procedures of the graph query plugin.
type PluginProber interface {
	PluginFunctions(ctx context.Context) (int64, error)
}

// DocLoader loads documents.
type DocLoader interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// ModelServer describes a local model server.
type ModelServer interface {
	Version(ctx context.Context) (string, error)
	Models(ctx context.Context) ([]string, error)
}

// Ollama completes a one-sentence question with the local model. When srv is
// non-nil it also reports the server version and whether model is pulled.
func Ollama(c llm.Completer, srv ModelServer, model, baseURL string) Check {
	return Check{Name: NameOllama, Run: func(ctx context.Context) (string, error) {
		var d detail
		d.printf("Testing Ollama with model: %s", model)
		d.printf("Host: %s", baseURL)
		if srv != nil {
			v, err := srv.Version(ctx)
			if err != nil {
				d.printf("✗ FAILED: %v", err)
				return d.String(), err
			}
			d.printf("Server version: %s", v)
			if models, err := srv.Models(ctx); err == nil && !slices.Contains(models, model) {
				d.printf("! Model %s is not pulled (available: %s)", model, strings.Join(models, ", "))
			}
		}
		reply, err := c.Complete(ctx, "What is SAP HANA? Answer briefly in one sentence.", llm.CallOptions{})
		if err == nil && strings.TrimSpace(reply) == "" {
			err = llm.ErrEmptyResponse
		}
		if err != nil {
			d.printf("✗ FAILED: %v", err)
			return d.String(), err
		}
		d.printf("✓ SUCCESS: %s", strings.TrimSpace(reply))
		return d.String(), nil
	}}
}

// Neo4j verifies connectivity and runs a trivial query.
func Neo4j(g Pinger, uri, username string) Check {
	return Check{Name: NameNeo4j, Run: func(ctx context.Context) (string, error) {
		var d detail
		d.printf("Testing Neo4j connection to: %s", uri)
		d.printf("Username: %s", username)
		if err := g.VerifyConnectivity(ctx); err != nil {
			d.printf("✗ FAILED: %v", err)
			return d.String(), err
		}
		msg, err := g.Ping(ctx, "Neo4j is working!")
		if err != nil {
			d.printf("✗ FAILED: %v", err)
			return d.String(), err
		}
		d.printf("✓ SUCCESS: %s", msg)
		return d.String(), nil
	}}
}

// VectorIndexer indexes chunks for vector search.
type VectorIndexer interface {
	IndexVectors(ctx context.Context, chunks []domain.Chunk, workers int) (int, error)
}

// VectorAsker answers from the vector index.
type VectorAsker interface {
	AskVector(ctx context.Context, question string) (*rag.Answer, error)
}

// BasicRAGDeps feed the document loading and vector RAG check.
type BasicRAGDeps struct {
	Loader    DocLoader
	LLM       llm.Completer
	Embedder  llm.Embedder
	Indexer   VectorIndexer
	Asker     VectorAsker
	ChunkSize int
	Overlap   int
}

// BasicRAG loads the documents, probes the LLM and embedding model, indexes
// the first chunks and answers BasicRAGQueries from them.
func BasicRAG(deps BasicRAGDeps) Check {
	return Check{Name: NameBasicRAG, Run: func(ctx context.Context) (string, error) {
		var d detail
		fail := func(step string, err error) (string, error) {
			d.printf("✗ %s failed: %v", step, err)
			return d.String(), fmt.Errorf("%s: %w", strings.ToLower(step), err)
		}

		d.printf("Testing document loading...")
		docs, err := deps.Loader.Load(ctx)
		if err == nil && len(docs) == 0 {
			err = domain.ErrNoDocuments
		}
		if err != nil {
			return fail("Document loading", err)
		}
		d.printf("✓ Successfully loaded %d document chunks", len(docs))
		d.printf("✓ Sample text from first chunk: %s...", truncate(docs[0].Text, 150))

		d.printf("\nTesting LLM connection...")
		reply, err := deps.LLM.Complete(ctx, "What is SAP HANA? Answer in one sentence.", llm.CallOptions{})
		if err == nil && strings.TrimSpace(reply) == "" {
			err = llm.ErrEmptyResponse
		}
		if err != nil {
			return fail("LLM connection", err)
		}
		d.printf("✓ LLM connection successful")
		d.printf("✓ Sample response: %s", strings.TrimSpace(reply))

		d.printf("\nTesting embedding model...")
		vec, err := deps.Embedder.Embed(ctx, "SAP HANA database")
		if err == nil && len(vec) == 0 {
			err = errors.New("empty embedding")
		}
		if err != nil {
			return fail("Embedding model", err)
		}
		d.printf("✓ Embedding model working, vector dimension: %d", len(vec))

		d.printf("\nTesting basic RAG (vector-based, no graph)...")
		chunks := document.Split(docs, chunkSize(deps.ChunkSize), deps.Overlap)
		if len(chunks) > basicRAGLimit {
			chunks = chunks[:basicRAGLimit]
		}
		if _, err := deps.Indexer.IndexVectors(ctx, chunks, 0); err != nil {
			return fail("Basic RAG", err)
		}
		for _, q := range BasicRAGQueries {
			d.printf("\n  Query: %s", q)
			ans, err := deps.Asker.AskVector(ctx, q)
			if err != nil {
				return fail("Basic RAG", err)
			}
			d.printf("  Response: %s...", truncate(ans.Text, 600))
		}
		d.printf("✓ Basic RAG functionality working")
		return d.String(), nil
	}}
}

// GraphIngester builds the graph from chunks.
type GraphIngester interface {
	Run(ctx context.Context, chunks []domain.Chunk, opts ingest.Options) (ingest.Report, error)
}

// GraphAsker answers from the knowledge graph.
type GraphAsker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

// GraphRAGDeps feed the full graph RAG check.
type GraphRAGDeps struct {
	Loader    DocLoader
	Plugins   PluginProber
	Ingester  GraphIngester
	Asker     GraphAsker
	ChunkSize int
	Overlap   int
}

// GraphRAG builds a graph from the first chunks and answers GraphRAGQuery. It
// fails when the graph plugin is missing or nothing was ingested.
func GraphRAG(deps GraphRAGDeps) Check {
	return Check{Name: NameGraphRAG, Run: func(ctx context.Context) (string, error) {
		var d detail
		d.printf("Testing full Graph RAG system...")
		fail := func(err error) (string, error) {
			d.printf("✗ Graph RAG test failed: %v", err)
			return d.String(), err
		}

		docs, err := deps.Loader.Load(ctx)
		if err != nil {
			return fail(err)
		}
		chunks := document.Split(docs, chunkSize(deps.ChunkSize), deps.Overlap)
		d.printf("✓ Loaded %d document chunks from PDF", len(chunks))
		total := len(chunks)
		if len(chunks) > graphRAGLimit {
			chunks = chunks[:graphRAGLimit]
		}
		d.printf("✓ Testing with %d chunks for speed (out of %d total)", len(chunks), total)

		n, err := deps.Plugins.PluginFunctions(ctx)
		if err != nil {
			return fail(err)
		}
		d.printf("✓ APOC functions available: %d", n)

		d.printf("Building knowledge graph...")
		rep, err := deps.Ingester.Run(ctx, chunks, ingest.Options{Limit: graphRAGLimit})
		if err != nil {
			return fail(err)
		}
		d.printf("✓ Ingested %d chunks (%d skipped, %d failed), %d entities, %d relationships",
			rep.Ingested, rep.Skipped, rep.Failed, rep.Entities, rep.Relationships)
		if rep.Ingested == 0 {
			return fail(errors.New("knowledge graph is empty"))
		}

		d.printf("\nTesting query: %s", GraphRAGQuery)
		ans, err := deps.Asker.Ask(ctx, GraphRAGQuery)
		if err != nil {
			return fail(err)
		}
		d.printf("\n✓ GRAPH RAG RESPONSE:")
		d.printf("%s", ans.Text)
		d.printf("\n*** Full Graph RAG system working!")
		return d.String(), nil
	}}
}

// Azure asks the cloud deployment for one technical sentence.
func Azure(c llm.Completer) Check {
	return Check{Name: NameAzure, Run: func(ctx context.Context) (string, error) {
		reply, err := c.Complete(ctx, "What is SAP HANA? Answer in one technical sentence.", llm.CallOptions{MaxTokens: 100})
		if err == nil && strings.TrimSpace(reply) == "" {
			err = llm.ErrEmptyResponse
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✓ Azure OpenAI Response: %s", strings.TrimSpace(reply)), nil
	}}
}

// GraphProbe is a graph database with plugin introspection.
type GraphProbe interface {
	Ping(ctx context.Context, message string) (string, error)
	PluginProber
}

// Aura checks the managed graph database and its plugin.
func Aura(g GraphProbe) Check {
	return Check{Name: NameAura, Run: func(ctx context.Context) (string, error) {
		msg, err := g.Ping(ctx, "Neo4j Aura working!")
		if err != nil {
			return "", err
		}
		n, err := g.PluginFunctions(ctx)
		if err != nil {
			return "", err
		}
		var d detail
		d.printf("✓ Neo4j Aura: %s", msg)
		d.printf("✓ APOC functions available: %d", n)
		return d.String(), nil
	}}
}

// CachePinger is a reachable cache.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// Redis pings the extraction cache.
func Redis(c CachePinger, addr string) Check {
	return Check{Name: NameRedis, Run: func(ctx context.Context) (string, error) {
		if err := c.Ping(ctx); err != nil {
			return fmt.Sprintf("✗ FAILED: %s: %v", addr, err), err
		}
		return fmt.Sprintf("✓ SUCCESS: Redis reachable at %s", addr), nil
	}}
}

// CollectionLister lists vector collections.
type CollectionLister interface {
	Collections(ctx context.Context) ([]string, error)
}

// Qdrant lists collections and reports whether the configured one exists.
func Qdrant(q CollectionLister, addr, collection string) Check {
	return Check{Name: NameQdrant, Run: func(ctx context.Context) (string, error) {
		names, err := q.Collections(ctx)
		if err != nil {
			return fmt.Sprintf("✗ FAILED: %s: %v", addr, err), err
		}
		present := "not yet created"
		for _, n := range names {
			if n == collection {
				present = "present"
				break
			}
		}
		return fmt.Sprintf("✓ SUCCESS: Qdrant at %s has %d collections, %q %s", addr, len(names), collection, present), nil
	}}
}

func chunkSize(n int) int {
	if n <= 0 {
		return document.DefaultChunkSize
	}
	return n
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
