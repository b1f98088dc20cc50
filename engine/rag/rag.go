// Package rag answers questions over the ingested documentation. Ask uses the
// knowledge graph with chain-of-thought prompting, AskWithChunks puts raw
// chunks in the prompt, and AskVector does plain vector retrieval.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/engine/semantic"
	"github.com/docgraph/docgraph/pkg/llm"
)

// GraphRetriever finds triplets around entities whose names match keywords.
type GraphRetriever interface {
	Retrieve(ctx context.Context, keywords []string, limit int) ([]domain.Triplet, error)
}

// VectorSearcher abstracts Qdrant vector search.
type VectorSearcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error)
}

// Options configures the RAG pipeline behaviour.
type Options struct {
	TopK          int
	GraphLimit    int
	Temperature   float64
	MaxTokens     int
	ContextChunks int
	ChunkChars    int
}

// DefaultOptions returns the chain-of-thought defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          5,
		GraphLimit:    30,
		Temperature:   0.3,
		MaxTokens:     800,
		ContextChunks: 5,
		ChunkChars:    500,
	}
}

// Deps are the collaborators a Service needs. Graph, Embedder and Vectors are
// optional; the methods that need them fail without them.
type Deps struct {
	LLM      llm.Completer
	Embedder llm.Embedder
	Graph    GraphRetriever
	Vectors  VectorSearcher
	Logger   *slog.Logger
}

// Service is the RAG orchestration service.
type Service struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// New creates a new RAG Service.
func New(deps Deps, opts Options) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, opts: opts, logger: logger}
}

// Answer is the structured response from the pipeline.
type Answer struct {
	Text     string           `json:"text"`
	Mode     string           `json:"mode"`
	Triplets []domain.Triplet `json:"triplets,omitempty"`
	Sources  []Source         `json:"sources,omitempty"`
}

// Source is a chunk that backed a vector answer.
type Source struct {
	ID      string  `json:"id"`
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Page    int64   `json:"page"`
	Score   float32 `json:"score"`
}

// Ask answers with graph context and chain-of-thought prompting. A failing
// graph lookup is logged and the answer proceeds without context.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	s.logger.Info("rag: processing query", "question", question)

	var triplets []domain.Triplet
	if s.deps.Graph != nil {
		triplets = s.graphContext(ctx, question)
	}

	lines := make([]string, len(triplets))
	for i, t := range triplets {
		lines[i] = "- " + t.String()
	}
	text, err := s.complete(ctx, GraphPrompt(strings.Join(lines, "\n"), question))
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Mode: "graph", Triplets: triplets}, nil
}

// AskWithChunks answers with the leading chunks of raw documentation as
// context, each truncated to Options.ChunkChars.
func (s *Service) AskWithChunks(ctx context.Context, question string, chunks []domain.Chunk) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	n := min(len(chunks), s.opts.ContextChunks)
	parts := make([]string, n)
	for i := range n {
		parts[i] = truncate(chunks[i].Text, s.opts.ChunkChars)
	}
	text, err := s.complete(ctx, ChunkPrompt(strings.Join(parts, "\n"), question))
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Mode: "chunks"}, nil
}

// AskVector embeds the question, takes the top-k chunks from the vector store
// and answers from them.
func (s *Service) AskVector(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if s.deps.Embedder == nil || s.deps.Vectors == nil {
		return nil, fmt.Errorf("rag: vector search is not configured")
	}
	vec, err := s.deps.Embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	results, err := s.deps.Vectors.Search(ctx, vec, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("rag: semantic search: %w", err)
	}
	s.logger.Info("rag: semantic search done", "results", len(results))

	parts := make([]string, len(results))
	sources := make([]Source, len(results))
	for i, r := range results {
		parts[i] = r.Content
		sources[i] = Source{ID: r.ID, ChunkID: r.ChunkID, Source: r.Source, Page: r.Page, Score: r.Score}
	}
	text, err := s.complete(ctx, VectorPrompt(strings.Join(parts, "\n\n"), question))
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Mode: "vector", Sources: sources}, nil
}

func (s *Service) graphContext(ctx context.Context, question string) []domain.Triplet {
	keywords := ExtractKeywords(question)
	if len(keywords) == 0 {
		return nil
	}
	triplets, err := s.deps.Graph.Retrieve(ctx, keywords, s.opts.GraphLimit)
	if err != nil {
		s.logger.Warn("rag: graph retrieval failed, continuing without", "err", err)
		return nil
	}
	s.logger.Info("rag: graph retrieval done", "keywords", keywords, "triplets", len(triplets))
	return triplets
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	text, err := s.deps.LLM.Complete(ctx, prompt, llm.CallOptions{
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("rag: complete: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
