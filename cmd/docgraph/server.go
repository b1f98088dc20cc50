package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/engine/graph"
	"github.com/docgraph/docgraph/engine/rag"
	"github.com/docgraph/docgraph/pkg/mid"
	"github.com/docgraph/docgraph/pkg/repo"
	"github.com/docgraph/docgraph/pkg/resilience"
)

// Asker answers questions in each retrieval mode.
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
	AskVector(ctx context.Context, question string) (*rag.Answer, error)
}

// GraphStats reports graph contents.
type GraphStats interface {
	Stats(ctx context.Context) (map[domain.EntityType]int64, error)
	RelationshipCounts(ctx context.Context) (map[string]int64, error)
	VerifyConnectivity(ctx context.Context) error
}

// DocumentLister pages through Document nodes.
type DocumentLister interface {
	Get(ctx context.Context, chunkID string) (graph.DocumentNode, error)
	List(ctx context.Context, opts repo.ListOpts) ([]graph.DocumentNode, error)
	Count(ctx context.Context) (int64, error)
}

const (
	defaultDocumentLimit = 25
	maxDocumentLimit     = 100
)

type server struct {
	asker   Asker
	stats   GraphStats
	docs    DocumentLister
	metrics http.Handler
	log     *slog.Logger
	// limiter bounds POST /api/ask; nil means unlimited.
	limiter *resilience.Limiter
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/documents", s.handleDocuments)
	mux.HandleFunc("GET /api/documents/{id...}", s.handleDocument)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mid.Chain(mux,
		mid.Recover(s.log),
		mid.RequestID(),
		mid.Logger(s.log),
		mid.OTel("docgraph-api"),
	)
}

// AskRequest is the JSON body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
	// Mode is "graph" (default) or "vector".
	Mode string `json:"mode,omitempty"`
}

// StatsResponse is the JSON response for GET /api/stats.
type StatsResponse struct {
	Entities      map[domain.EntityType]int64 `json:"entities"`
	Relationships map[string]int64            `json:"relationships"`
	Documents     int64                       `json:"documents"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.stats.VerifyConnectivity(ctx); err != nil {
		s.log.Warn("health: neo4j unreachable", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "neo4j": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var ask func(context.Context, string) (*rag.Answer, error)
	switch req.Mode {
	case "", "graph":
		ask = s.asker.Ask
	case "vector":
		ask = s.asker.AskVector
	default:
		writeError(w, http.StatusBadRequest, "mode must be graph or vector")
		return
	}

	var ans *rag.Answer
	call := func(ctx context.Context) error {
		var err error
		ans, err = ask(ctx, req.Question)
		return err
	}
	var err error
	if s.limiter != nil {
		err = s.limiter.Call(r.Context(), call)
	} else {
		err = call(r.Context())
	}
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "question is required")
	case errors.Is(err, resilience.ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "too many questions, retry shortly")
	case err != nil:
		s.log.Error("rag query failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, ans)
	}
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entities, err := s.stats.Stats(ctx)
	if err != nil {
		s.log.Error("stats failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	rels, err := s.stats.RelationshipCounts(ctx)
	if err != nil {
		s.log.Error("stats failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	docs, err := s.docs.Count(ctx)
	if err != nil {
		s.log.Error("stats failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Entities: entities, Relationships: rels, Documents: docs})
}

func (s *server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	switch {
	case limit <= 0:
		limit = defaultDocumentLimit
	case limit > maxDocumentLimit:
		limit = maxDocumentLimit
	}
	if offset < 0 {
		offset = 0
	}
	docs, err := s.docs.List(r.Context(), repo.ListOpts{Offset: offset, Limit: limit, OrderBy: "chunk_id"})
	if err != nil {
		s.log.Error("list documents failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "offset": offset, "limit": limit})
}

func (s *server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case err != nil:
		s.log.Error("get document failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}
