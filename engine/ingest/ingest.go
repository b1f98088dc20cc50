// Package ingest turns document chunks into knowledge-graph nodes through an
// extract → store pipeline, and optionally indexes them into the vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docgraph/docgraph/engine/document"
	"github.com/docgraph/docgraph/engine/domain"
	"github.com/docgraph/docgraph/engine/semantic"
	"github.com/docgraph/docgraph/pkg/fn"
	"github.com/docgraph/docgraph/pkg/llm"
	"github.com/docgraph/docgraph/pkg/metrics"
	"github.com/google/uuid"
)

const (
	// DefaultLimit is how many chunks Run processes when Options.Limit is zero.
	DefaultLimit = 20
	// DefaultWorkers bounds concurrent chunk processing.
	DefaultWorkers = 4
	// EmbedBatchSize is the max chunks per vector upsert.
	EmbedBatchSize = 100
)

// Extractor produces entities and relationships for one chunk of text.
type Extractor interface {
	Extract(ctx context.Context, text string) domain.Extraction
}

// GraphWriter persists extractions.
type GraphWriter interface {
	Reset(ctx context.Context) error
	SaveExtraction(ctx context.Context, chunk domain.Chunk, x domain.Extraction) error
}

// VectorWriter persists chunk embeddings.
type VectorWriter interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Extractor Extractor
	Graph     GraphWriter
	Vectors   VectorWriter
	Embedder  llm.Embedder
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// StoreRetry governs graph writes. Zero MaxAttempts means fn.DefaultRetry.
	StoreRetry fn.RetryOpts
	ChunkSize  int
	Overlap    int
}

// Outcome is the result of pushing one chunk through the pipeline.
type Outcome struct {
	ChunkID       string
	Skipped       bool
	Entities      int
	Relationships int
}

type extracted struct {
	chunk domain.Chunk
	x     domain.Extraction
}

// Options tune a Run.
type Options struct {
	// Reset clears the graph before ingesting.
	Reset bool
	// Limit caps processed chunks. Zero means DefaultLimit, negative means all.
	Limit   int
	Workers int
}

// Report summarizes a Run.
type Report struct {
	Processed     int
	Ingested      int
	Skipped       int
	Failed        int
	Entities      int
	Relationships int
	Duration      time.Duration
	Errors        []error
}

// Ingester runs chunks through the pipeline.
type Ingester struct {
	deps     Deps
	log      *slog.Logger
	pipeline fn.Stage[domain.Chunk, Outcome]
}

// New wires the pipeline from deps.
func New(deps Deps) *Ingester {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.StoreRetry.MaxAttempts == 0 {
		deps.StoreRetry = fn.DefaultRetry
	}
	if deps.StoreRetry.Retryable == nil {
		deps.StoreRetry.Retryable = retryableStore
	}
	if deps.ChunkSize <= 0 {
		deps.ChunkSize = document.DefaultChunkSize
	}
	if deps.Overlap < 0 {
		deps.Overlap = 0
	}
	in := &Ingester{deps: deps, log: log}
	in.pipeline = NewPipeline(deps, log)
	return in
}

// NewExtract creates the stage that calls the extractor. It never fails.
func NewExtract(x Extractor) fn.Stage[domain.Chunk, extracted] {
	return func(ctx context.Context, c domain.Chunk) fn.Result[extracted] {
		return fn.Ok(extracted{chunk: c, x: x.Extract(ctx, c.Text)})
	}
}

// NewStoreGraph creates the stage that writes a non-empty extraction.
func NewStoreGraph(g GraphWriter) fn.Stage[extracted, Outcome] {
	return func(ctx context.Context, e extracted) fn.Result[Outcome] {
		if e.x.Empty() {
			return fn.Ok(Outcome{ChunkID: e.chunk.ID, Skipped: true})
		}
		if err := g.SaveExtraction(ctx, e.chunk, e.x); err != nil {
			return fn.Err[Outcome](fmt.Errorf("graph save %s: %w", e.chunk.ID, err))
		}
		return fn.Ok(Outcome{
			ChunkID:       e.chunk.ID,
			Entities:      len(e.x.Entities),
			Relationships: len(e.x.Relationships),
		})
	}
}

// retryableStore reports whether a failed graph write gets another attempt.
func retryableStore(err error) bool {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// LoggedTap returns a stage that logs the stage name and passes the value on.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return fn.TapStage(func(ctx context.Context, _ T) {
		log.DebugContext(ctx, "ingest: stage", "stage", name)
	})
}

// NewPipeline composes Extract → StoreGraph with logging taps between stages.
func NewPipeline(deps Deps, log *slog.Logger) fn.Stage[domain.Chunk, Outcome] {
	extract := fn.TracedStage("ingest.extract", NewExtract(deps.Extractor))
	store := fn.TracedStage("ingest.store", fn.RetryStage(deps.StoreRetry, NewStoreGraph(deps.Graph)))

	extractedStage := fn.Then(LoggedTap[domain.Chunk]("extract", log), extract)
	return fn.Then(extractedStage, fn.Then(LoggedTap[extracted]("store", log), store))
}

// Process runs a single chunk through the pipeline.
func (in *Ingester) Process(ctx context.Context, c domain.Chunk) (Outcome, error) {
	return in.pipeline(ctx, c).Unwrap()
}

// Run ingests the first opts.Limit chunks. Only a failed reset is returned as
// an error; per-chunk failures are counted in the Report.
func (in *Ingester) Run(ctx context.Context, chunks []domain.Chunk, opts Options) (Report, error) {
	start := time.Now()
	if opts.Reset {
		if err := in.deps.Graph.Reset(ctx); err != nil {
			return Report{}, fmt.Errorf("ingest: reset graph: %w", err)
		}
		in.log.Info("ingest: graph cleared")
	}

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	total := len(chunks)
	results := fn.ParMapResult(chunks, workers, func(c domain.Chunk) fn.Result[Outcome] {
		if err := ctx.Err(); err != nil {
			return fn.Err[Outcome](err)
		}
		in.log.Info("ingest: processing chunk", "chunk", c.Index+1, "chunk_id", c.ID, "total", total)
		return in.pipeline(ctx, c)
	})

	rep := Report{Processed: total}
	for _, r := range results {
		out, err := r.Unwrap()
		switch {
		case err != nil:
			rep.Failed++
			rep.Errors = append(rep.Errors, err)
			in.log.Error("ingest: chunk failed", "error", err)
		case out.Skipped:
			rep.Skipped++
			if in.deps.Metrics != nil {
				in.deps.Metrics.ChunksSkipped.Inc()
			}
		default:
			rep.Ingested++
			rep.Entities += out.Entities
			rep.Relationships += out.Relationships
			if in.deps.Metrics != nil {
				in.deps.Metrics.ChunksIngested.Inc()
			}
		}
	}
	rep.Duration = time.Since(start)
	in.log.Info("ingest: done",
		"processed", rep.Processed,
		"ingested", rep.Ingested,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"duration", rep.Duration,
	)
	return rep, nil
}

// PointID derives a stable vector id from a chunk's document and index.
func PointID(docID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", docID, index))).String()
}

// IndexVectors embeds chunks and upserts them into the vector store, creating
// the collection sized to the first embedding. It returns the number indexed.
func (in *Ingester) IndexVectors(ctx context.Context, chunks []domain.Chunk, workers int) (int, error) {
	if in.deps.Embedder == nil || in.deps.Vectors == nil {
		return 0, fmt.Errorf("ingest: vector indexing needs an embedder and a vector store")
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	embed := fn.BatchStage[domain.Chunk, []float32](workers, func(ctx context.Context, c domain.Chunk) fn.Result[[]float32] {
		v, err := in.deps.Embedder.Embed(ctx, c.Text)
		if err != nil {
			return fn.Err[[]float32](fmt.Errorf("embed %s: %w", c.ID, err))
		}
		return fn.Ok(v)
	})
	vectors, err := fn.TracedStage("ingest.embed", embed)(ctx, chunks).Unwrap()
	if err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}
	if len(vectors[0]) == 0 {
		return 0, fmt.Errorf("ingest: embedder returned an empty vector")
	}
	if err := in.deps.Vectors.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return 0, fmt.Errorf("ingest: ensure collection: %w", err)
	}

	records := make([]semantic.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = semantic.VectorRecord{
			ID:        PointID(c.DocID, c.Index),
			Embedding: vectors[i],
			Payload: map[string]any{
				"content":     c.Text,
				"doc_id":      c.DocID,
				"chunk_id":    c.ID,
				"source":      c.Source,
				"page":        c.Page,
				"chunk_index": c.Index,
			},
		}
	}
	for i := 0; i < len(records); i += EmbedBatchSize {
		end := min(i+EmbedBatchSize, len(records))
		if err := in.deps.Vectors.Upsert(ctx, records[i:end]); err != nil {
			return i, fmt.Errorf("ingest: vector upsert: %w", err)
		}
	}
	in.log.Info("ingest: vectors indexed", "count", len(records))
	return len(records), nil
}
