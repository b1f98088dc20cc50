package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docgraph/docgraph/engine/document"
	"github.com/docgraph/docgraph/engine/extract"
	"github.com/docgraph/docgraph/engine/graph"
	"github.com/docgraph/docgraph/engine/ingest"
	"github.com/docgraph/docgraph/engine/rag"
	"github.com/docgraph/docgraph/engine/semantic"
	"github.com/docgraph/docgraph/pkg/config"
	"github.com/docgraph/docgraph/pkg/llm"
	"github.com/docgraph/docgraph/pkg/metrics"
	"github.com/docgraph/docgraph/pkg/ollama"
	"github.com/docgraph/docgraph/pkg/rediscache"
	"github.com/docgraph/docgraph/pkg/resilience"
	"github.com/nats-io/nats.go"
)

// app owns every client a command needs. Connections are opened lazily and
// released by close.
type app struct {
	cfg     *config.Settings
	log     *slog.Logger
	metrics *metrics.Metrics

	ollama *ollama.Client
	local  *llm.Ollama
	llm    *llm.Guarded

	graph   *graph.GraphStore
	vectors *semantic.VectorStore
	cache   *rediscache.Cache
	nc      *nats.Conn
}

func newApp(cfg *config.Settings, log *slog.Logger) *app {
	m := metrics.New()
	client := ollama.New(cfg.OllamaURL(), ollama.WithTimeout(cfg.OllamaTimeout))
	local := llm.NewOllama(client, cfg.OllamaLLMModel, cfg.OllamaEmbedModel)
	return &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		ollama:  client,
		local:   local,
		llm: llm.Guard(local, llm.GuardOpts{
			Backend: "ollama",
			Limiter: resilience.LimiterOpts{Rate: 4, Burst: 4},
			Breaker: resilience.BreakerOpts{
				OnStateChange: func(name string, from, to resilience.State) {
					log.Warn("llm: breaker state changed", "breaker", name, "from", from, "to", to)
				},
			},
			Metrics: m,
		}),
	}
}

func (a *app) graphStore() (*graph.GraphStore, error) {
	if a.graph == nil {
		g, err := graph.Open(a.cfg.Neo4jURI, a.cfg.Neo4jUsername, a.cfg.Neo4jPassword, a.cfg.Neo4jDatabase)
		if err != nil {
			return nil, err
		}
		a.graph = g
	}
	return a.graph, nil
}

func (a *app) vectorStore() (*semantic.VectorStore, error) {
	if a.vectors == nil {
		vs, err := semantic.New(a.cfg.QdrantAddr, a.cfg.QdrantCollection)
		if err != nil {
			return nil, err
		}
		a.vectors = vs
	}
	return a.vectors, nil
}

func (a *app) redis() *rediscache.Cache {
	if a.cache == nil {
		a.cache = rediscache.New(rediscache.Options{
			Addr:     a.cfg.RedisAddr(),
			Username: a.cfg.RedisUsername,
			Password: a.cfg.RedisPassword,
			Prefix:   "docgraph:",
		})
	}
	return a.cache
}

// natsConn returns nil without error when no NATS URL is configured.
func (a *app) natsConn() (*nats.Conn, error) {
	if a.cfg.NATSURL == "" {
		return nil, nil
	}
	if a.nc == nil {
		nc, err := nats.Connect(a.cfg.NATSURL, nats.Name("docgraph"))
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		a.nc = nc
	}
	return a.nc, nil
}

func (a *app) loader() *document.Loader {
	l := document.NewLoader(a.cfg.DocDir)
	l.Logger = a.log
	return l
}

// extractor caches results in Redis when it answers a ping.
func (a *app) extractor(ctx context.Context) *extract.Extractor {
	opts := []extract.Option{extract.WithLogger(a.log), extract.WithMetrics(a.metrics)}
	if err := a.redis().Ping(ctx); err != nil {
		a.log.Warn("extract: redis unavailable, caching disabled", "addr", a.cfg.RedisAddr(), "error", err)
	} else {
		opts = append(opts, extract.WithCache(a.redis()))
	}
	return extract.New(a.llm, opts...)
}

func (a *app) ingester(ctx context.Context) (*ingest.Ingester, error) {
	g, err := a.graphStore()
	if err != nil {
		return nil, err
	}
	vs, err := a.vectorStore()
	if err != nil {
		return nil, err
	}
	return ingest.New(ingest.Deps{
		Extractor: a.extractor(ctx),
		Graph:     g,
		Vectors:   vs,
		Embedder:  a.local,
		Metrics:   a.metrics,
		Logger:    a.log,
		ChunkSize: document.DefaultChunkSize,
		Overlap:   document.DefaultOverlap,
	}), nil
}

func (a *app) rag() (*rag.Service, error) {
	g, err := a.graphStore()
	if err != nil {
		return nil, err
	}
	vs, err := a.vectorStore()
	if err != nil {
		return nil, err
	}
	return rag.New(rag.Deps{
		LLM:      a.llm,
		Embedder: a.local,
		Graph:    g,
		Vectors:  vs,
		Logger:   a.log,
	}, rag.DefaultOptions()), nil
}

func (a *app) close(ctx context.Context) {
	if a.graph != nil {
		if err := a.graph.Close(ctx); err != nil {
			a.log.Warn("close neo4j", "error", err)
		}
	}
	if a.vectors != nil {
		_ = a.vectors.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.nc != nil {
		a.nc.Close()
	}
}
